package construct_test

import (
	"testing"

	"github.com/kegliz/qplay/qc/dd/cache"
	"github.com/kegliz/qplay/qc/dd/construct"
	"github.com/kegliz/qplay/qc/dd/edge"
	"github.com/kegliz/qplay/qc/dd/node"
	"github.com/kegliz/qplay/qc/dd/ops"
	"github.com/kegliz/qplay/qc/dd/sched"
	"github.com/kegliz/qplay/qc/dd/weight"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRig(t *testing.T) (construct.Builder, *ops.Ops) {
	t.Helper()
	wt := weight.New(weight.Config{Tolerance: 1e-12})
	nt := node.New(node.Config{})
	maker := edge.New(wt, nt, edge.Low)
	o := ops.New(wt, nt, cache.New(256), sched.New(sched.PoolConfig{MaxParallelism: 4}), maker)
	return construct.New(wt, maker), o
}

func TestIdentityIsNoOpOnBasisState(t *testing.T) {
	b, o := newRig(t)
	id, err := b.Identity(2)
	require.NoError(t, err)
	state, err := b.BasisState([]bool{true, false})
	require.NoError(t, err)

	got, err := o.MatVec(id, state, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, state, got)
}

func TestControlledGateActsAsCNOT(t *testing.T) {
	b, o := newRig(t)
	x := construct.Block2x2{0, 1, 1, 0}
	cnot, err := b.ControlledGate(2, 0, 1, x)
	require.NoError(t, err)

	in, err := b.BasisState([]bool{true, false}) // |10>
	require.NoError(t, err)
	want, err := b.BasisState([]bool{true, true}) // |11>
	require.NoError(t, err)

	got, err := o.MatVec(cnot, in, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// control off: state must pass through unchanged.
	in0, err := b.BasisState([]bool{false, false})
	require.NoError(t, err)
	got0, err := o.MatVec(cnot, in0, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, in0, got0)
}

func TestControlledGateRejectsBackwardsOrder(t *testing.T) {
	b, _ := newRig(t)
	_, err := b.ControlledGate(2, 1, 0, construct.Block2x2{0, 1, 1, 0})
	assert.ErrorIs(t, err, construct.ErrControlTargetOrder)
}

func TestAllControlPhaseNegatesOnlyTargetAmplitude(t *testing.T) {
	b, o := newRig(t)
	phase, err := b.AllControlPhase(o, []bool{true, false})
	require.NoError(t, err)

	hit, err := b.BasisState([]bool{true, false})
	require.NoError(t, err)
	miss, err := b.BasisState([]bool{false, true})
	require.NoError(t, err)

	gotHit, err := o.MatVec(phase, hit, 0, 2)
	require.NoError(t, err)
	gotMiss, err := o.MatVec(phase, miss, 0, 2)
	require.NoError(t, err)

	assert.InDelta(t, -1, real(o.Weights.Value(gotHit.Weight)), 1e-9)
	assert.InDelta(t, 1, real(o.Weights.Value(gotMiss.Weight)), 1e-9)
}
