package dd_test

import (
	"math"
	"math/rand"
	"testing"

	dd "github.com/kegliz/qplay/qc/dd"
	"github.com/kegliz/qplay/qc/dd/construct"
	"github.com/kegliz/qplay/qc/dd/ddconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasisStateAmplitudeRoundTrip(t *testing.T) {
	e := dd.New(ddconfig.Config{})
	state, err := e.BasisState([]bool{true, false})
	require.NoError(t, err)

	amp, err := e.GetAmplitude(state, []bool{true, false})
	require.NoError(t, err)
	assert.Equal(t, complex(1, 0), amp)

	amp, err = e.GetAmplitude(state, []bool{false, false})
	require.NoError(t, err)
	assert.Equal(t, complex(0, 0), amp)
}

func TestProtectSurvivesGC(t *testing.T) {
	e := dd.New(ddconfig.Config{})
	state, err := e.BasisState([]bool{true, true, false})
	require.NoError(t, err)
	e.Protect(state)

	e.GC()

	amp, err := e.GetAmplitude(state, []bool{true, true, false})
	require.NoError(t, err)
	assert.Equal(t, complex(1, 0), amp)
}

// TestGCPreservesAmplitudesOnNonTrivialCircuit builds a Bell pair (H then
// CNOT, an entangled superposition: 00 and 11 carry 1/sqrt2, 01 and 10 are 0) and
// checks that a forced GC between reads never changes what GetAmplitude
// reports for a protected state — testable property 8.
func TestGCPreservesAmplitudesOnNonTrivialCircuit(t *testing.T) {
	e := dd.New(ddconfig.Config{})
	n := uint32(2)

	state, err := e.BasisState([]bool{false, false})
	require.NoError(t, err)

	inv := complex(1/math.Sqrt2, 0)
	h := construct.Block2x2{inv, inv, inv, -inv}
	hStack, err := e.Builder.SingleQubitGateStack(n, 0, h)
	require.NoError(t, err)
	state, err = e.MatVec(hStack, state, n)
	require.NoError(t, err)

	x := construct.Block2x2{0, 1, 1, 0}
	cnot, err := e.Builder.MultiControlledGate(e.Ops, n, 1,
		[]construct.ControlSpec{construct.ControlOnOne, construct.Ignore}, x)
	require.NoError(t, err)
	state, err = e.MatVec(cnot, state, n)
	require.NoError(t, err)

	e.Protect(state)
	defer e.Unprotect(state)

	bases := [][]bool{{false, false}, {false, true}, {true, false}, {true, true}}
	before := make([]complex128, len(bases))
	for i, b := range bases {
		amp, err := e.GetAmplitude(state, b)
		require.NoError(t, err)
		before[i] = amp
	}

	e.GC()

	for i, b := range bases {
		amp, err := e.GetAmplitude(state, b)
		require.NoError(t, err)
		assert.Equal(t, before[i], amp, "amplitude for %v changed across GC", b)
	}
}

func TestMeasureQubitOnEngine(t *testing.T) {
	e := dd.New(ddconfig.Config{})
	state, err := e.BasisState([]bool{false, true})
	require.NoError(t, err)

	bit, _, err := e.MeasureQubit(state, 1, 2, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.True(t, bit)
}

func TestDefaultEngineIsLazilyInitialized(t *testing.T) {
	dd.Quit()
	e1 := dd.Default()
	e2 := dd.Default()
	assert.Same(t, e1, e2)
}

func TestInitReplacesDefaultEngine(t *testing.T) {
	first := dd.Init(ddconfig.Config{})
	second := dd.Init(ddconfig.Config{})
	assert.NotSame(t, first, second)
	assert.Same(t, second, dd.Default())
}
