// Package ops implements the recursive operations (C6): plus, matvec,
// matmat, the inner product, and tensor together with its shift_vars/
// replace_terminal helpers. Every operation shares the fork/join shape
// described in the design: check terminal cases, check the cache, decompose
// by top variable, recurse on cofactors in parallel, combine via make_edge.
package ops

import (
	"errors"
	"math"

	"github.com/kegliz/qplay/qc/dd/cache"
	"github.com/kegliz/qplay/qc/dd/edge"
	"github.com/kegliz/qplay/qc/dd/node"
	"github.com/kegliz/qplay/qc/dd/sched"
	"github.com/kegliz/qplay/qc/dd/weight"
)

// TopLevel is the sentinel "variable" of a terminal edge: it sorts after
// every real variable, so min(TopLevel, v) == v for any real v.
const TopLevel = math.MaxUint32

// ErrBrokenNode is returned when a node handle embedded in an edge does not
// resolve in the node table — a broken invariant, never expected in normal
// operation.
var ErrBrokenNode = errors.New("ops: edge target not found in node table")

// Ops bundles the tables and scheduler every recursive operation needs.
// A single Ops is shared by every caller of an engine instance.
type Ops struct {
	Weights *weight.Table
	Nodes   *node.Table
	Cache   *cache.Cache
	Pool    *sched.Pool
	Maker   edge.Maker
}

// New builds an Ops over the given components.
func New(w *weight.Table, n *node.Table, c *cache.Cache, p *sched.Pool, maker edge.Maker) *Ops {
	return &Ops{Weights: w, Nodes: n, Cache: c, Pool: p, Maker: maker}
}

// TopVar returns e's variable, or TopLevel if e is a terminal edge.
func (o *Ops) TopVar(e edge.Edge) (uint32, error) {
	if e.Target == node.Terminal {
		return TopLevel, nil
	}
	k, ok := o.Nodes.Get(e.Target)
	if !ok {
		return 0, ErrBrokenNode
	}
	return k.Var, nil
}

// Cofactor decomposes e at variable v into its low/high branches, pushing
// e's own weight down into each. If e is a terminal, or its node's variable
// is strictly below v (an implicitly-skipped variable), both cofactors are
// e itself — that is what lets merge-equal-children collapse the skip back
// out the next time make_edge sees them.
func (o *Ops) Cofactor(e edge.Edge, v uint32) (lo, hi edge.Edge, err error) {
	if e.Target == node.Terminal {
		return e, e, nil
	}
	k, ok := o.Nodes.Get(e.Target)
	if !ok {
		return edge.Edge{}, edge.Edge{}, ErrBrokenNode
	}
	if k.Var != v {
		return e, e, nil
	}
	lowW, err := o.Weights.Mul(e.Weight, k.LowW)
	if err != nil {
		return edge.Edge{}, edge.Edge{}, err
	}
	highW, err := o.Weights.Mul(e.Weight, k.HighW)
	if err != nil {
		return edge.Edge{}, edge.Edge{}, err
	}
	return edge.Edge{Target: k.Low, Weight: lowW}, edge.Edge{Target: k.High, Weight: highW}, nil
}

func edgeKey(e edge.Edge) uint64 { return uint64(e.Target)<<32 ^ uint64(e.Weight) }

func minVar(a, b uint32) uint32 {
	if a < b {
		return a
	}
	return b
}

// Plus computes the DD for a+b (pointwise addition of the represented
// vectors/matrices). Associative, commutative.
func (o *Ops) Plus(a, b edge.Edge) (edge.Edge, error) {
	if a.Weight == weight.Zero {
		return b, nil
	}
	if b.Weight == weight.Zero {
		return a, nil
	}
	if a.Target == b.Target {
		w, err := o.Weights.Add(a.Weight, b.Weight)
		if err != nil {
			return edge.Edge{}, err
		}
		return edge.Edge{Target: a.Target, Weight: w}, nil
	}

	key := cache.NewKey(cache.OpPlus, edgeKey(a), edgeKey(b), 0, 0)
	if v, ok := o.Cache.Get(key); ok {
		return edge.Edge{Target: v.Target, Weight: v.Weight}, nil
	}

	va, err := o.TopVar(a)
	if err != nil {
		return edge.Edge{}, err
	}
	vb, err := o.TopVar(b)
	if err != nil {
		return edge.Edge{}, err
	}
	v := minVar(va, vb)

	a0, a1, err := o.Cofactor(a, v)
	if err != nil {
		return edge.Edge{}, err
	}
	b0, b1, err := o.Cofactor(b, v)
	if err != nil {
		return edge.Edge{}, err
	}

	r0, r1, err := sched.Fork2(o.Pool,
		func() (edge.Edge, error) { return o.Plus(a0, b0) },
		func() (edge.Edge, error) { return o.Plus(a1, b1) },
	)
	if err != nil {
		return edge.Edge{}, err
	}

	res, err := o.Maker.MakeEdge(v, r0, r1)
	if err != nil {
		return edge.Edge{}, err
	}
	o.Cache.Put(key, cache.Value{Target: res.Target, Weight: res.Weight})
	return res, nil
}

// MatVec applies the n-qubit matrix M (doubled variables 2k,2k+1 per qubit)
// to the n-qubit vector v (variables k per qubit), starting decomposition
// at qubit level.
func (o *Ops) MatVec(M, v edge.Edge, level, n uint32) (edge.Edge, error) {
	if M.Weight == weight.Zero || v.Weight == weight.Zero {
		return edge.Terminal, nil
	}
	if level == n {
		w, err := o.Weights.Mul(M.Weight, v.Weight)
		if err != nil {
			return edge.Edge{}, err
		}
		return edge.Edge{Target: node.Terminal, Weight: w}, nil
	}

	key := cache.NewKey(cache.OpMatVec, uint64(M.Target), uint64(v.Target), uint64(level), 0)
	if cached, ok := o.Cache.Get(key); ok {
		w, err := o.Weights.Mul(cached.Weight, M.Weight)
		if err != nil {
			return edge.Edge{}, err
		}
		w, err = o.Weights.Mul(w, v.Weight)
		if err != nil {
			return edge.Edge{}, err
		}
		return edge.Edge{Target: cached.Target, Weight: w}, nil
	}

	// Strip the root weights from both operands: the cache entry must be
	// reusable for any scalar scaling of the same (M.Target, v.Target) pair.
	mu := edge.Edge{Target: M.Target, Weight: weight.One}
	vu := edge.Edge{Target: v.Target, Weight: weight.One}

	v0, v1, err := o.Cofactor(vu, level)
	if err != nil {
		return edge.Edge{}, err
	}
	rowLo, rowHi, err := o.Cofactor(mu, 2*level)
	if err != nil {
		return edge.Edge{}, err
	}
	m00, m01, err := o.Cofactor(rowLo, 2*level+1)
	if err != nil {
		return edge.Edge{}, err
	}
	m10, m11, err := o.Cofactor(rowHi, 2*level+1)
	if err != nil {
		return edge.Edge{}, err
	}

	tasks := []func() (edge.Edge, error){
		func() (edge.Edge, error) { return o.MatVec(m00, v0, level+1, n) },
		func() (edge.Edge, error) { return o.MatVec(m01, v1, level+1, n) },
		func() (edge.Edge, error) { return o.MatVec(m10, v0, level+1, n) },
		func() (edge.Edge, error) { return o.MatVec(m11, v1, level+1, n) },
	}
	results, err := sched.ForkN(o.Pool, tasks)
	if err != nil {
		return edge.Edge{}, err
	}

	newV0, err := o.Plus(results[0], results[1])
	if err != nil {
		return edge.Edge{}, err
	}
	newV1, err := o.Plus(results[2], results[3])
	if err != nil {
		return edge.Edge{}, err
	}
	res, err := o.Maker.MakeEdge(level, newV0, newV1)
	if err != nil {
		return edge.Edge{}, err
	}
	o.Cache.Put(key, cache.Value{Target: res.Target, Weight: res.Weight})

	w, err := o.Weights.Mul(res.Weight, M.Weight)
	if err != nil {
		return edge.Edge{}, err
	}
	w, err = o.Weights.Mul(w, v.Weight)
	if err != nil {
		return edge.Edge{}, err
	}
	return edge.Edge{Target: res.Target, Weight: w}, nil
}

// MatMat multiplies two n-qubit matrices (both using the doubled 2k,2k+1
// variable convention), starting decomposition at qubit level.
func (o *Ops) MatMat(A, B edge.Edge, level, n uint32) (edge.Edge, error) {
	if A.Weight == weight.Zero || B.Weight == weight.Zero {
		return edge.Terminal, nil
	}
	if level == n {
		w, err := o.Weights.Mul(A.Weight, B.Weight)
		if err != nil {
			return edge.Edge{}, err
		}
		return edge.Edge{Target: node.Terminal, Weight: w}, nil
	}

	key := cache.NewKey(cache.OpMatMat, uint64(A.Target), uint64(B.Target), uint64(level), 0)
	if cached, ok := o.Cache.Get(key); ok {
		w, err := o.Weights.Mul(cached.Weight, A.Weight)
		if err != nil {
			return edge.Edge{}, err
		}
		w, err = o.Weights.Mul(w, B.Weight)
		if err != nil {
			return edge.Edge{}, err
		}
		return edge.Edge{Target: cached.Target, Weight: w}, nil
	}

	au := edge.Edge{Target: A.Target, Weight: weight.One}
	bu := edge.Edge{Target: B.Target, Weight: weight.One}

	aRowLo, aRowHi, err := o.Cofactor(au, 2*level)
	if err != nil {
		return edge.Edge{}, err
	}
	a00, a01, err := o.Cofactor(aRowLo, 2*level+1)
	if err != nil {
		return edge.Edge{}, err
	}
	a10, a11, err := o.Cofactor(aRowHi, 2*level+1)
	if err != nil {
		return edge.Edge{}, err
	}

	bRowLo, bRowHi, err := o.Cofactor(bu, 2*level)
	if err != nil {
		return edge.Edge{}, err
	}
	b00, b01, err := o.Cofactor(bRowLo, 2*level+1)
	if err != nil {
		return edge.Edge{}, err
	}
	b10, b11, err := o.Cofactor(bRowHi, 2*level+1)
	if err != nil {
		return edge.Edge{}, err
	}

	tasks := []func() (edge.Edge, error){
		func() (edge.Edge, error) { return o.MatMat(a00, b00, level+1, n) },
		func() (edge.Edge, error) { return o.MatMat(a01, b10, level+1, n) },
		func() (edge.Edge, error) { return o.MatMat(a00, b01, level+1, n) },
		func() (edge.Edge, error) { return o.MatMat(a01, b11, level+1, n) },
		func() (edge.Edge, error) { return o.MatMat(a10, b00, level+1, n) },
		func() (edge.Edge, error) { return o.MatMat(a11, b10, level+1, n) },
		func() (edge.Edge, error) { return o.MatMat(a10, b01, level+1, n) },
		func() (edge.Edge, error) { return o.MatMat(a11, b11, level+1, n) },
	}
	p, err := sched.ForkN(o.Pool, tasks)
	if err != nil {
		return edge.Edge{}, err
	}

	c00, err := o.Plus(p[0], p[1])
	if err != nil {
		return edge.Edge{}, err
	}
	c01, err := o.Plus(p[2], p[3])
	if err != nil {
		return edge.Edge{}, err
	}
	c10, err := o.Plus(p[4], p[5])
	if err != nil {
		return edge.Edge{}, err
	}
	c11, err := o.Plus(p[6], p[7])
	if err != nil {
		return edge.Edge{}, err
	}

	row0, err := o.Maker.MakeEdge(2*level+1, c00, c01)
	if err != nil {
		return edge.Edge{}, err
	}
	row1, err := o.Maker.MakeEdge(2*level+1, c10, c11)
	if err != nil {
		return edge.Edge{}, err
	}
	res, err := o.Maker.MakeEdge(2*level, row0, row1)
	if err != nil {
		return edge.Edge{}, err
	}
	o.Cache.Put(key, cache.Value{Target: res.Target, Weight: res.Weight})

	w, err := o.Weights.Mul(res.Weight, A.Weight)
	if err != nil {
		return edge.Edge{}, err
	}
	w, err = o.Weights.Mul(w, B.Weight)
	if err != nil {
		return edge.Edge{}, err
	}
	return edge.Edge{Target: res.Target, Weight: w}, nil
}

// Inner computes the inner product ⟨a|b⟩, returning a weight handle rather
// than an edge.
func (o *Ops) Inner(a, b edge.Edge) (weight.Handle, error) {
	if a.Target == node.Terminal && b.Target == node.Terminal {
		bc, err := o.Weights.Conj(b.Weight)
		if err != nil {
			return 0, err
		}
		return o.Weights.Mul(a.Weight, bc)
	}

	key := cache.NewKey(cache.OpInner, edgeKey(a), edgeKey(b), 0, 0)
	if v, ok := o.Cache.Get(key); ok {
		return v.Weight, nil
	}

	va, err := o.TopVar(a)
	if err != nil {
		return 0, err
	}
	vb, err := o.TopVar(b)
	if err != nil {
		return 0, err
	}
	v := minVar(va, vb)

	a0, a1, err := o.Cofactor(a, v)
	if err != nil {
		return 0, err
	}
	b0, b1, err := o.Cofactor(b, v)
	if err != nil {
		return 0, err
	}

	r0h, r1h, err := sched.Fork2(o.Pool,
		func() (weight.Handle, error) { return o.Inner(a0, b0) },
		func() (weight.Handle, error) { return o.Inner(a1, b1) },
	)
	if err != nil {
		return 0, err
	}

	sum, err := o.Weights.Add(r0h, r1h)
	if err != nil {
		return 0, err
	}
	o.Cache.Put(key, cache.Value{Weight: sum})
	return sum, nil
}

// ShiftVars returns a copy of e with every variable shifted up by delta,
// preserving structure and weights. Used by Tensor to make room for the
// first operand's variables below the second operand's.
func (o *Ops) ShiftVars(e edge.Edge, delta uint32) (edge.Edge, error) {
	if e.Target == node.Terminal {
		return e, nil
	}
	key := cache.NewKey(cache.OpShift, uint64(e.Target), uint64(delta), 0, 0)
	if v, ok := o.Cache.Get(key); ok {
		w, err := o.Weights.Mul(v.Weight, e.Weight)
		if err != nil {
			return edge.Edge{}, err
		}
		return edge.Edge{Target: v.Target, Weight: w}, nil
	}

	k, ok := o.Nodes.Get(e.Target)
	if !ok {
		return edge.Edge{}, ErrBrokenNode
	}
	low := edge.Edge{Target: k.Low, Weight: k.LowW}
	high := edge.Edge{Target: k.High, Weight: k.HighW}

	sLow, sHigh, err := sched.Fork2(o.Pool,
		func() (edge.Edge, error) { return o.ShiftVars(low, delta) },
		func() (edge.Edge, error) { return o.ShiftVars(high, delta) },
	)
	if err != nil {
		return edge.Edge{}, err
	}

	res, err := o.Maker.MakeEdge(k.Var+delta, sLow, sHigh)
	if err != nil {
		return edge.Edge{}, err
	}
	o.Cache.Put(key, cache.Value{Target: res.Target, Weight: res.Weight})

	w, err := o.Weights.Mul(res.Weight, e.Weight)
	if err != nil {
		return edge.Edge{}, err
	}
	return edge.Edge{Target: res.Target, Weight: w}, nil
}

// ReplaceTerminal returns a copy of e with every terminal edge it reaches
// replaced by replacement, multiplying weights along the way. Used by
// Tensor to graft the second operand under the first operand's terminal.
func (o *Ops) ReplaceTerminal(e, replacement edge.Edge) (edge.Edge, error) {
	if e.Target == node.Terminal {
		w, err := o.Weights.Mul(e.Weight, replacement.Weight)
		if err != nil {
			return edge.Edge{}, err
		}
		return edge.Edge{Target: replacement.Target, Weight: w}, nil
	}

	key := cache.NewKey(cache.OpReplaceTerminal, uint64(e.Target), uint64(replacement.Target), uint64(replacement.Weight), 0)
	if v, ok := o.Cache.Get(key); ok {
		w, err := o.Weights.Mul(v.Weight, e.Weight)
		if err != nil {
			return edge.Edge{}, err
		}
		return edge.Edge{Target: v.Target, Weight: w}, nil
	}

	k, ok := o.Nodes.Get(e.Target)
	if !ok {
		return edge.Edge{}, ErrBrokenNode
	}
	low := edge.Edge{Target: k.Low, Weight: k.LowW}
	high := edge.Edge{Target: k.High, Weight: k.HighW}

	rLow, rHigh, err := sched.Fork2(o.Pool,
		func() (edge.Edge, error) { return o.ReplaceTerminal(low, replacement) },
		func() (edge.Edge, error) { return o.ReplaceTerminal(high, replacement) },
	)
	if err != nil {
		return edge.Edge{}, err
	}

	res, err := o.Maker.MakeEdge(k.Var, rLow, rHigh)
	if err != nil {
		return edge.Edge{}, err
	}
	o.Cache.Put(key, cache.Value{Target: res.Target, Weight: res.Weight})

	w, err := o.Weights.Mul(res.Weight, e.Weight)
	if err != nil {
		return edge.Edge{}, err
	}
	return edge.Edge{Target: res.Target, Weight: w}, nil
}

// Tensor computes a⊗b, where a spans variables [0,nA) and b is shifted to
// [nA, nA+nB).
func (o *Ops) Tensor(a, b edge.Edge, nA uint32) (edge.Edge, error) {
	shifted, err := o.ShiftVars(b, nA)
	if err != nil {
		return edge.Edge{}, err
	}
	return o.ReplaceTerminal(a, shifted)
}
