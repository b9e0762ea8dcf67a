package ops_test

import (
	"testing"

	"github.com/kegliz/qplay/qc/dd/cache"
	"github.com/kegliz/qplay/qc/dd/edge"
	"github.com/kegliz/qplay/qc/dd/node"
	"github.com/kegliz/qplay/qc/dd/ops"
	"github.com/kegliz/qplay/qc/dd/sched"
	"github.com/kegliz/qplay/qc/dd/weight"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOps(t *testing.T) *ops.Ops {
	t.Helper()
	wt := weight.New(weight.Config{Tolerance: 1e-12})
	nt := node.New(node.Config{})
	maker := edge.New(wt, nt, edge.Low)
	return ops.New(wt, nt, cache.New(256), sched.New(sched.PoolConfig{MaxParallelism: 4}), maker)
}

// basisVector builds the 1-qubit |0> or |1> vector edge at the given
// variable index.
func basisVector(t *testing.T, o *ops.Ops, v uint32, one int) edge.Edge {
	t.Helper()
	var lo, hi edge.Edge
	if one == 0 {
		lo, hi = edge.Edge{Target: node.Terminal, Weight: weight.One}, edge.Edge{Target: node.Terminal, Weight: weight.Zero}
	} else {
		lo, hi = edge.Edge{Target: node.Terminal, Weight: weight.Zero}, edge.Edge{Target: node.Terminal, Weight: weight.One}
	}
	e, err := o.Maker.MakeEdge(v, lo, hi)
	require.NoError(t, err)
	return e
}

func TestPlusZeroIsIdentity(t *testing.T) {
	o := newOps(t)
	v0 := basisVector(t, o, 0, 0)

	r, err := o.Plus(edge.Terminal, v0)
	require.NoError(t, err)
	assert.Equal(t, v0, r)

	r, err = o.Plus(v0, edge.Terminal)
	require.NoError(t, err)
	assert.Equal(t, v0, r)
}

func TestPlusSameTargetAddsWeights(t *testing.T) {
	o := newOps(t)
	v0 := basisVector(t, o, 0, 0)
	half, err := o.Weights.Lookup(complex(0.5, 0))
	require.NoError(t, err)
	scaled := edge.Edge{Target: v0.Target, Weight: half}

	r, err := o.Plus(v0, scaled)
	require.NoError(t, err)
	assert.Equal(t, v0.Target, r.Target)
	assert.InDelta(t, 1.5, real(o.Weights.Value(r.Weight)), 1e-9)
}

func TestInnerOrthonormalBasis(t *testing.T) {
	o := newOps(t)
	v0 := basisVector(t, o, 0, 0)
	v1 := basisVector(t, o, 0, 1)

	same, err := o.Inner(v0, v0)
	require.NoError(t, err)
	assert.Equal(t, complex(1, 0), o.Weights.Value(same))

	cross, err := o.Inner(v0, v1)
	require.NoError(t, err)
	assert.Equal(t, complex(0, 0), o.Weights.Value(cross))
}

func TestMatVecPauliXFlipsBasisState(t *testing.T) {
	o := newOps(t)

	// Pauli X as a 1-qubit matrix in the doubled (row=2k, col=2k+1) variable
	// convention: row 0 selects column 1, row 1 selects column 0.
	row0, err := o.Maker.MakeEdge(1, edge.Edge{Target: node.Terminal, Weight: weight.Zero}, edge.Edge{Target: node.Terminal, Weight: weight.One})
	require.NoError(t, err)
	row1, err := o.Maker.MakeEdge(1, edge.Edge{Target: node.Terminal, Weight: weight.One}, edge.Edge{Target: node.Terminal, Weight: weight.Zero})
	require.NoError(t, err)
	X, err := o.Maker.MakeEdge(0, row0, row1)
	require.NoError(t, err)

	v0 := basisVector(t, o, 0, 0)
	want := basisVector(t, o, 0, 1)

	got, err := o.MatVec(X, v0, 0, 1)
	require.NoError(t, err)
	assert.Equal(t, want, got, "X|0> must equal |1>")
}

func TestTensorGraftsSecondOperandUnderFirst(t *testing.T) {
	o := newOps(t)
	a := basisVector(t, o, 0, 0) // |0> on qubit 0
	b := basisVector(t, o, 0, 1) // |1>, to be shifted onto qubit 1

	got, err := o.Tensor(a, b, 1)
	require.NoError(t, err)

	shiftedB, err := o.Maker.MakeEdge(1, edge.Edge{Target: node.Terminal, Weight: weight.Zero}, edge.Edge{Target: node.Terminal, Weight: weight.One})
	require.NoError(t, err)
	want, err := o.Maker.MakeEdge(0, edge.Edge{Target: shiftedB.Target, Weight: weight.One}, edge.Edge{Target: node.Terminal, Weight: weight.Zero})
	require.NoError(t, err)

	assert.Equal(t, want, got)
}
