// Package edge implements the single "make-node" primitive (C3) that every
// recursive operation funnels through to enforce canonicity: no-zero-child,
// merge-equal-children, edge-weight normalization and hash-consing.
package edge

import (
	"math/cmplx"

	"github.com/kegliz/qplay/qc/dd/node"
	"github.com/kegliz/qplay/qc/dd/weight"
)

// Edge is an unordered pair of a node handle and a weight handle. Edges are
// values, never interned on their own; they are passed and copied by value.
type Edge struct {
	Target node.Handle
	Weight weight.Handle
}

// Terminal is the canonical zero edge: the reserved terminal node weighted
// by W_ZERO. It denotes "no further state/amplitude down this path."
var Terminal = Edge{Target: node.Terminal, Weight: weight.Zero}

// Equal reports whether two edges share the same target and weight handle
// (invariant 5: hash-consing makes handle equality value equality).
func (e Edge) Equal(o Edge) bool { return e.Target == o.Target && e.Weight == o.Weight }

// NormStrategy selects which common scalar factor make_edge pulls up from a
// node's two child edges (§4.3).
type NormStrategy int

const (
	Low NormStrategy = iota
	Largest
	Min
	L2
)

func (s NormStrategy) String() string {
	switch s {
	case Low:
		return "low"
	case Largest:
		return "largest"
	case Min:
		return "min"
	case L2:
		return "l2"
	default:
		return "unknown"
	}
}

// Maker bundles the two tables make_edge hash-conses into. It carries no
// state of its own, so a single Maker is shared by every worker.
type Maker struct {
	Weights  *weight.Table
	Nodes    *node.Table
	Strategy NormStrategy
}

// New returns a Maker over the given tables using the given normalization
// strategy.
func New(w *weight.Table, n *node.Table, strategy NormStrategy) Maker {
	return Maker{Weights: w, Nodes: n, Strategy: strategy}
}

// MakeEdge enforces all five canonicity invariants for a would-be node with
// variable v and the two given child edges, returning the (already
// normalized, already hash-consed) edge a caller should use in place of the
// node it asked for.
func (m Maker) MakeEdge(v uint32, low, high Edge) (Edge, error) {
	// Invariant 2: merge-equal-children collapses a skipped variable.
	if low.Equal(high) {
		return low, nil
	}

	lowVal := m.Weights.Value(low.Weight)
	highVal := m.Weights.Value(high.Weight)

	// Invariant 1 (generalized): a combined scalar of zero kills the whole
	// subtree regardless of what the children point at.
	if lowVal == 0 && highVal == 0 {
		return Terminal, nil
	}

	wNorm, lowPrime, highPrime := m.normalize(lowVal, highVal)
	if wNorm == 0 {
		return Terminal, nil
	}

	lowW, err := m.Weights.Lookup(lowPrime)
	if err != nil {
		return Edge{}, err
	}
	highW, err := m.Weights.Lookup(highPrime)
	if err != nil {
		return Edge{}, err
	}

	// A child normalized to zero must point at the terminal: zero-weighted
	// edges to an arbitrary target are semantically equal to zero-weighted
	// edges to the terminal, but hash-cons to distinct node entries, which
	// would leak sharing and leave dead structure reachable from a "live"
	// node.
	lowTarget, highTarget := low.Target, high.Target
	if lowPrime == 0 {
		lowTarget = node.Terminal
	}
	if highPrime == 0 {
		highTarget = node.Terminal
	}

	target, err := m.Nodes.LookupOrInsert(node.Key{
		Var:   v,
		Low:   lowTarget,
		High:  highTarget,
		LowW:  lowW,
		HighW: highW,
	})
	if err != nil {
		return Edge{}, err
	}

	rootW, err := m.Weights.Lookup(wNorm)
	if err != nil {
		return Edge{}, err
	}
	return Edge{Target: target, Weight: rootW}, nil
}

// normalize implements §4.3 step 2: given the two raw child values, it picks
// the common factor w_norm per m.Strategy and returns the values the two
// children are left holding once that factor is divided out.
func (m Maker) normalize(low, high complex128) (wNorm, lowPrime, highPrime complex128) {
	switch m.Strategy {
	case Largest:
		wNorm = pickByMagnitude(low, high, true)
	case Min:
		wNorm = pickMin(low, high)
	case L2:
		return normalizeL2(low, high)
	default: // Low
		if low != 0 {
			wNorm = low
		} else {
			wNorm = high
		}
	}
	if wNorm == 0 {
		return 0, low, high
	}
	return wNorm, low / wNorm, high / wNorm
}

// pickByMagnitude returns low or high, whichever has the larger magnitude
// when largest is true (smaller otherwise), breaking ties by real part then
// imaginary part.
func pickByMagnitude(low, high complex128, largest bool) complex128 {
	al, ah := cmplx.Abs(low), cmplx.Abs(high)
	switch {
	case al > ah:
		if largest {
			return low
		}
		return high
	case ah > al:
		if largest {
			return high
		}
		return low
	default: // tie on magnitude
		if real(low) != real(high) {
			if (real(low) > real(high)) == largest {
				return low
			}
			return high
		}
		if (imag(low) > imag(high)) == largest {
			return low
		}
		return high
	}
}

// pickMin is the Min strategy's symmetric counterpart to Largest, except a
// zero child can never be the chosen factor (dividing by it would be
// undefined): when exactly one child is zero, the nonzero one normalizes.
func pickMin(low, high complex128) complex128 {
	if low == 0 {
		return high
	}
	if high == 0 {
		return low
	}
	return pickByMagnitude(low, high, false)
}

// normalizeL2 divides both children by the Euclidean norm of the pair and
// applies a sign convention so that the resulting low child's real part
// (or, if that is ~0, its imaginary part) is never negative.
func normalizeL2(low, high complex128) (wNorm, lowPrime, highPrime complex128) {
	norm := complex(cmplxHypot(low, high), 0)
	if norm == 0 {
		return 0, low, high
	}
	lowPrime = low / norm
	highPrime = high / norm
	if real(lowPrime) < -1e-12 || (cmplx.Abs(complex(real(lowPrime), 0)) < 1e-12 && imag(lowPrime) < 0) {
		norm = -norm
		lowPrime = -lowPrime
		highPrime = -highPrime
	}
	return norm, lowPrime, highPrime
}

func cmplxHypot(a, b complex128) float64 {
	aa, ab := cmplx.Abs(a), cmplx.Abs(b)
	return cmplx.Abs(complex(aa, ab))
}
