package ddsim

import (
	"sort"
	"testing"

	"github.com/kegliz/qplay/qc/builder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pretty prints the histogram in a deterministic, sorted order.
func pretty(t *testing.T, hist map[string]int, shots int) {
	keys := make([]string, 0, len(hist))
	for k := range hist {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	t.Log("Histogram (key : count / %):")
	for _, k := range keys {
		c := hist[k]
		pct := 100 * float64(c) / float64(shots)
		t.Logf("  %s : %4d (%.1f%%)", k, c, pct)
	}
}

func histogram(t *testing.T, r *DDRunner, shots int, build func(b builder.Builder)) map[string]int {
	t.Helper()
	b := builder.New(builder.Q(2), builder.C(2))
	build(b)
	c, err := b.BuildCircuit()
	require.NoError(t, err)

	results, err := r.RunBatch(c, shots)
	require.NoError(t, err)

	hist := make(map[string]int)
	for _, res := range results {
		hist[res]++
	}
	return hist
}

func TestBasisStateIsDeterministic(t *testing.T) {
	b := builder.New(builder.Q(2), builder.C(2))
	b.X(0).Measure(0, 0).Measure(1, 1)
	c, err := b.BuildCircuit()
	require.NoError(t, err)

	r := NewDDRunner()
	result, err := r.RunOnce(c)
	require.NoError(t, err)
	assert.Equal(t, "10", result)
}

func TestBellState(t *testing.T) {
	shots := 256
	r := NewDDRunner()
	hist := histogram(t, r, shots, func(b builder.Builder) {
		b.H(0).CNOT(0, 1).Measure(0, 0).Measure(1, 1)
	})
	pretty(t, hist, shots)

	assert.InDelta(t, 0.5, float64(hist["00"])/float64(shots), 0.15)
	assert.InDelta(t, 0.5, float64(hist["11"])/float64(shots), 0.15)
	assert.Equal(t, 0, hist["01"], "unexpected outcome 01")
	assert.Equal(t, 0, hist["10"], "unexpected outcome 10")
}

func TestSwapExchangesBasisState(t *testing.T) {
	b := builder.New(builder.Q(2), builder.C(2))
	b.X(0).SWAP(0, 1).Measure(0, 0).Measure(1, 1)
	c, err := b.BuildCircuit()
	require.NoError(t, err)

	r := NewDDRunner()
	result, err := r.RunOnce(c)
	require.NoError(t, err)
	assert.Equal(t, "01", result)
}

func TestToffoliFlipsTargetWhenBothControlsSet(t *testing.T) {
	b := builder.New(builder.Q(3), builder.C(3))
	b.X(0).X(1).Toffoli(0, 1, 2)
	b.Measure(0, 0).Measure(1, 1).Measure(2, 2)
	c, err := b.BuildCircuit()
	require.NoError(t, err)

	r := NewDDRunner()
	result, err := r.RunOnce(c)
	require.NoError(t, err)
	assert.Equal(t, "111", result)
}

func TestFredkinSwapsTargetsWhenControlSet(t *testing.T) {
	b := builder.New(builder.Q(3), builder.C(3))
	b.X(0).X(1).Fredkin(0, 1, 2)
	b.Measure(0, 0).Measure(1, 1).Measure(2, 2)
	c, err := b.BuildCircuit()
	require.NoError(t, err)

	r := NewDDRunner()
	result, err := r.RunOnce(c)
	require.NoError(t, err)
	assert.Equal(t, "101", result)
}

func TestValidateCircuitAcceptsInRangeCircuit(t *testing.T) {
	b := builder.New(builder.Q(1), builder.C(1))
	b.X(0).Measure(0, 0)
	c, err := b.BuildCircuit()
	require.NoError(t, err)

	r := NewDDRunner()
	require.NoError(t, r.ValidateCircuit(c))
}

func TestGetSupportedGatesReturnsACopy(t *testing.T) {
	r := NewDDRunner()
	gates := r.GetSupportedGates()
	gates[0] = "MUTATED"
	assert.NotEqual(t, "MUTATED", r.GetSupportedGates()[0])
}

func TestResetClearsMetrics(t *testing.T) {
	b := builder.New(builder.Q(1), builder.C(1))
	b.X(0).Measure(0, 0)
	c, err := b.BuildCircuit()
	require.NoError(t, err)

	r := NewDDRunner()
	_, err = r.RunOnce(c)
	require.NoError(t, err)
	assert.Equal(t, int64(1), r.GetMetrics().TotalExecutions)

	r.Reset()
	assert.Equal(t, int64(0), r.GetMetrics().TotalExecutions)
}
