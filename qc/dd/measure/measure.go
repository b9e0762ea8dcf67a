// Package measure implements probability and measurement (C8): the unnormed
// probability p(edge, level, n_vars), single-qubit measurement with
// renormalization and global-phase removal, and measuring every qubit.
package measure

import (
	"math"
	"math/cmplx"

	"github.com/kegliz/qplay/qc/dd/cache"
	"github.com/kegliz/qplay/qc/dd/edge"
	"github.com/kegliz/qplay/qc/dd/node"
	"github.com/kegliz/qplay/qc/dd/ops"
	"github.com/kegliz/qplay/qc/dd/weight"
)

// RNG is the coin-flip source a measurement draws from. *math/rand.Rand
// satisfies this directly, matching qc/simulator/qsim's own use of
// math/rand for sampling.
type RNG interface {
	Float64() float64
}

// Measurer bundles the tables/maker Probability and MeasureQubit need.
type Measurer struct {
	O     *ops.Ops
	Maker edge.Maker
}

// New returns a Measurer sharing the given Ops/Maker with the rest of an
// engine instance.
func New(o *ops.Ops, maker edge.Maker) Measurer {
	return Measurer{O: o, Maker: maker}
}

func abs2(c complex128) float64 { r, i := real(c), imag(c); return r*r + i*i }

// Probability computes the unnormed probability mass of e over the
// remaining n-level variables, starting decomposition at level.
func (m Measurer) Probability(e edge.Edge, level, n uint32) (float64, error) {
	if e.Weight == weight.Zero {
		return 0, nil
	}
	q, err := m.unnormedQ(e.Target, level, n)
	if err != nil {
		return 0, err
	}
	return abs2(m.O.Weights.Value(e.Weight)) * q, nil
}

// unnormedQ computes the probability mass reachable from target assuming
// an incoming edge weight of 1, memoized on (target, level) — independent
// of any caller's scaling, exactly as the recursive operations strip and
// re-apply root weight around their cache lookups.
func (m Measurer) unnormedQ(target node.Handle, level, n uint32) (float64, error) {
	if level == n {
		return 1, nil
	}
	key := cache.NewKey(cache.OpProb, uint64(target), uint64(level), 0, 0)
	if v, ok := m.O.Cache.Get(key); ok {
		return math.Float64frombits(uint64(v.Weight)), nil
	}

	e := edge.Edge{Target: target, Weight: weight.One}
	lo, hi, err := m.O.Cofactor(e, level)
	if err != nil {
		return 0, err
	}
	qLo, err := m.unnormedQ(lo.Target, level+1, n)
	if err != nil {
		return 0, err
	}
	qHi, err := m.unnormedQ(hi.Target, level+1, n)
	if err != nil {
		return 0, err
	}
	p := abs2(m.O.Weights.Value(lo.Weight))*qLo + abs2(m.O.Weights.Value(hi.Weight))*qHi

	m.O.Cache.Put(key, cache.Value{Weight: weight.Handle(math.Float64bits(p))})
	return p, nil
}

// condProb is P(qubit k == want) marginalized over every other qubit,
// computed by recursing level-by-level down to k (summing both branches of
// every other variable along the way) and then taking the full remaining
// probability of only the matching branch at k.
func (m Measurer) condProb(e edge.Edge, level, n, k uint32, want bool) (float64, error) {
	lo, hi, err := m.O.Cofactor(e, level)
	if err != nil {
		return 0, err
	}
	if level == k {
		branch := lo
		if want {
			branch = hi
		}
		return m.Probability(branch, level+1, n)
	}
	pLo, err := m.condProb(lo, level+1, n, k, want)
	if err != nil {
		return 0, err
	}
	pHi, err := m.condProb(hi, level+1, n, k, want)
	if err != nil {
		return 0, err
	}
	return pLo + pHi, nil
}

// collapse rebuilds e with the branch opposite `want` zeroed at variable k,
// leaving every other level's structure untouched.
func (m Measurer) collapse(e edge.Edge, level, n, k uint32, want bool) (edge.Edge, error) {
	lo, hi, err := m.O.Cofactor(e, level)
	if err != nil {
		return edge.Edge{}, err
	}
	if level == k {
		if want {
			return m.Maker.MakeEdge(level, edge.Terminal, hi)
		}
		return m.Maker.MakeEdge(level, lo, edge.Terminal)
	}
	newLo, err := m.collapse(lo, level+1, n, k, want)
	if err != nil {
		return edge.Edge{}, err
	}
	newHi, err := m.collapse(hi, level+1, n, k, want)
	if err != nil {
		return edge.Edge{}, err
	}
	return m.Maker.MakeEdge(level, newLo, newHi)
}

// MeasureQubit measures qubit k of an n-qubit state e, returning the
// observed bit and the renormalized, phase-cleared post-measurement edge.
//
// Rather than the spec's "swap 0<->k, measure qubit 0, swap back" (a
// structural variable-swap primitive this implementation does not carry),
// it marginalizes and collapses directly at level k via condProb/collapse.
// Both approaches compute the same marginal and the same post-measurement
// state; this one needs no separate swap operator (Open Question
// resolution, SPEC_FULL.md §15).
func (m Measurer) MeasureQubit(e edge.Edge, k, n uint32, rng RNG) (bool, edge.Edge, error) {
	p1, err := m.condProb(e, 0, n, k, true)
	if err != nil {
		return false, edge.Edge{}, err
	}
	p0, err := m.condProb(e, 0, n, k, false)
	if err != nil {
		return false, edge.Edge{}, err
	}

	total := p0 + p1
	observed := false
	if total > 0 && rng.Float64() < p1/total {
		observed = true
	}
	pObserved := p0
	if observed {
		pObserved = p1
	}

	collapsed, err := m.collapse(e, 0, n, k, observed)
	if err != nil {
		return false, edge.Edge{}, err
	}
	if pObserved <= 0 {
		return observed, edge.Terminal, nil
	}

	val := m.O.Weights.Value(collapsed.Weight) / complex(math.Sqrt(pObserved), 0)
	newWeight, err := m.O.Weights.Lookup(complex(cmplx.Abs(val), 0))
	if err != nil {
		return false, edge.Edge{}, err
	}
	return observed, edge.Edge{Target: collapsed.Target, Weight: newWeight}, nil
}

// MeasureAll measures every qubit of an n-qubit state in order, returning
// the observed bitstring and the fully collapsed final edge (a basis
// state, up to the global phase convention MeasureQubit already applies).
func (m Measurer) MeasureAll(e edge.Edge, n uint32, rng RNG) ([]bool, edge.Edge, error) {
	bits := make([]bool, n)
	cur := e
	for k := uint32(0); k < n; k++ {
		bit, next, err := m.MeasureQubit(cur, k, n, rng)
		if err != nil {
			return nil, edge.Edge{}, err
		}
		bits[k] = bit
		cur = next
	}
	return bits, cur, nil
}
