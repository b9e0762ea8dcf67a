// Package construct builds decision diagrams for basis states and gate
// matrices (C7): BasisState, Identity, SingleQubitGateStack, ControlledGate,
// MultiControlledGate and AllControlPhase, all composed from the two
// bottom-up primitives StackMatrix and StackControl.
package construct

import (
	"errors"

	"github.com/kegliz/qplay/qc/dd/edge"
	"github.com/kegliz/qplay/qc/dd/node"
	"github.com/kegliz/qplay/qc/dd/ops"
	"github.com/kegliz/qplay/qc/dd/weight"
)

// ErrControlTargetOrder is returned by ControlledGate when the control
// qubit does not precede the target in variable order (§4.6: "requires
// c < t in variable order").
var ErrControlTargetOrder = errors.New("construct: control must precede target in variable order")

// Block2x2 is a dense 2x2 gate matrix in row-major order: [m00, m01, m10, m11].
type Block2x2 [4]complex128

var identity2x2 = Block2x2{1, 0, 0, 1}

// Builder bundles the edge maker and weight table every constructor needs
// to multiply scalars into an edge's weight.
type Builder struct {
	Weights *weight.Table
	Maker   edge.Maker
}

// New returns a Builder sharing the given tables/maker with the rest of an
// engine instance.
func New(w *weight.Table, maker edge.Maker) Builder {
	return Builder{Weights: w, Maker: maker}
}

func (b Builder) scale(e edge.Edge, c complex128) (edge.Edge, error) {
	factor, err := b.Weights.Lookup(c)
	if err != nil {
		return edge.Edge{}, err
	}
	w, err := b.Weights.Mul(e.Weight, factor)
	if err != nil {
		return edge.Edge{}, err
	}
	return edge.Edge{Target: e.Target, Weight: w}, nil
}

func (b Builder) negate(e edge.Edge) (edge.Edge, error) {
	w, err := b.Weights.Neg(e.Weight)
	if err != nil {
		return edge.Edge{}, err
	}
	return edge.Edge{Target: e.Target, Weight: w}, nil
}

// StackMatrix takes a "below" edge spanning qubits k+1..n-1 and adds one
// 2x2 block at qubit k, using the doubled variables 2k (row) and 2k+1
// (column).
func (b Builder) StackMatrix(below edge.Edge, k uint32, block Block2x2) (edge.Edge, error) {
	m00, err := b.scale(below, block[0])
	if err != nil {
		return edge.Edge{}, err
	}
	m01, err := b.scale(below, block[1])
	if err != nil {
		return edge.Edge{}, err
	}
	m10, err := b.scale(below, block[2])
	if err != nil {
		return edge.Edge{}, err
	}
	m11, err := b.scale(below, block[3])
	if err != nil {
		return edge.Edge{}, err
	}

	row0, err := b.Maker.MakeEdge(2*k+1, m00, m01)
	if err != nil {
		return edge.Edge{}, err
	}
	row1, err := b.Maker.MakeEdge(2*k+1, m10, m11)
	if err != nil {
		return edge.Edge{}, err
	}
	return b.Maker.MakeEdge(2*k, row0, row1)
}

// StackControl realizes |0⟩⟨0|⊗case0 + |1⟩⟨1|⊗case1 at control qubit c:
// case0 and case1 must already span qubits c+1..n-1.
func (b Builder) StackControl(c uint32, case0, case1 edge.Edge) (edge.Edge, error) {
	row0, err := b.Maker.MakeEdge(2*c+1, case0, edge.Terminal)
	if err != nil {
		return edge.Edge{}, err
	}
	row1, err := b.Maker.MakeEdge(2*c+1, edge.Terminal, case1)
	if err != nil {
		return edge.Edge{}, err
	}
	return b.Maker.MakeEdge(2*c, row0, row1)
}

// Identity builds the n-qubit identity matrix.
func (b Builder) Identity(n uint32) (edge.Edge, error) {
	below := edge.Edge{Target: node.Terminal, Weight: weight.One}
	var err error
	for k := int(n) - 1; k >= 0; k-- {
		below, err = b.StackMatrix(below, uint32(k), identity2x2)
		if err != nil {
			return edge.Edge{}, err
		}
	}
	return below, nil
}

// SingleQubitGateStack builds the n-qubit matrix that is gate on qubit
// target and identity everywhere else.
func (b Builder) SingleQubitGateStack(n, target uint32, gate Block2x2) (edge.Edge, error) {
	below := edge.Edge{Target: node.Terminal, Weight: weight.One}
	var err error
	for k := int(n) - 1; k >= 0; k-- {
		block := identity2x2
		if uint32(k) == target {
			block = gate
		}
		below, err = b.StackMatrix(below, uint32(k), block)
		if err != nil {
			return edge.Edge{}, err
		}
	}
	return below, nil
}

// BasisState builds the n-qubit computational basis state |bits⟩, bits[k]
// giving the value of qubit k.
func (b Builder) BasisState(bits []bool) (edge.Edge, error) {
	below := edge.Edge{Target: node.Terminal, Weight: weight.One}
	var err error
	for k := len(bits) - 1; k >= 0; k-- {
		if bits[k] {
			below, err = b.Maker.MakeEdge(uint32(k), edge.Terminal, below)
		} else {
			below, err = b.Maker.MakeEdge(uint32(k), below, edge.Terminal)
		}
		if err != nil {
			return edge.Edge{}, err
		}
	}
	return below, nil
}

// ControlledGate builds the n-qubit matrix C(c→t, gate): gate applied to
// qubit t whenever control qubit c reads 1, identity otherwise. c must
// precede t in variable order.
func (b Builder) ControlledGate(n, c, t uint32, gate Block2x2) (edge.Edge, error) {
	if c >= t {
		return edge.Edge{}, ErrControlTargetOrder
	}

	tail := edge.Edge{Target: node.Terminal, Weight: weight.One}
	var err error
	for k := int(n) - 1; k > int(t); k-- {
		tail, err = b.StackMatrix(tail, uint32(k), identity2x2)
		if err != nil {
			return edge.Edge{}, err
		}
	}

	case0, err := b.StackMatrix(tail, t, identity2x2)
	if err != nil {
		return edge.Edge{}, err
	}
	case1, err := b.StackMatrix(tail, t, gate)
	if err != nil {
		return edge.Edge{}, err
	}

	for k := int(t) - 1; k > int(c); k-- {
		case0, err = b.StackMatrix(case0, uint32(k), identity2x2)
		if err != nil {
			return edge.Edge{}, err
		}
		case1, err = b.StackMatrix(case1, uint32(k), identity2x2)
		if err != nil {
			return edge.Edge{}, err
		}
	}

	combined, err := b.StackControl(c, case0, case1)
	if err != nil {
		return edge.Edge{}, err
	}

	for k := int(c) - 1; k >= 0; k-- {
		combined, err = b.StackMatrix(combined, uint32(k), identity2x2)
		if err != nil {
			return edge.Edge{}, err
		}
	}
	return combined, nil
}

// ControlSpec is a per-qubit option for MultiControlledGate.
type ControlSpec int

const (
	Ignore ControlSpec = iota
	ControlOnZero
	ControlOnOne
)

func projectorBlock(spec ControlSpec) Block2x2 {
	switch spec {
	case ControlOnZero:
		return Block2x2{1, 0, 0, 0}
	case ControlOnOne:
		return Block2x2{0, 0, 0, 1}
	default:
		return identity2x2
	}
}

// MultiControlledGate builds gate on qubit target, applied only when every
// control qubit satisfies its ControlSpec, as U_proj + I − proj where
// U_proj is the control projector tensored with gate on target and proj is
// the same projector with identity on target.
func (b Builder) MultiControlledGate(o *ops.Ops, n, target uint32, controls []ControlSpec, gate Block2x2) (edge.Edge, error) {
	proj, err := b.stackProjector(controls, target, n, identity2x2)
	if err != nil {
		return edge.Edge{}, err
	}
	uproj, err := b.stackProjector(controls, target, n, gate)
	if err != nil {
		return edge.Edge{}, err
	}
	ident, err := b.Identity(n)
	if err != nil {
		return edge.Edge{}, err
	}
	negProj, err := b.negate(proj)
	if err != nil {
		return edge.Edge{}, err
	}

	sum, err := o.Plus(ident, negProj)
	if err != nil {
		return edge.Edge{}, err
	}
	return o.Plus(uproj, sum)
}

func (b Builder) stackProjector(controls []ControlSpec, target, n uint32, targetBlock Block2x2) (edge.Edge, error) {
	below := edge.Edge{Target: node.Terminal, Weight: weight.One}
	var err error
	for k := int(n) - 1; k >= 0; k-- {
		block := targetBlock
		if uint32(k) != target {
			block = projectorBlock(controls[k])
		}
		below, err = b.StackMatrix(below, uint32(k), block)
		if err != nil {
			return edge.Edge{}, err
		}
	}
	return below, nil
}

// AllControlPhase builds the n-qubit diagonal matrix I − 2|x⟩⟨x|, which
// negates exactly the amplitude of basis state x (and leaves every other
// amplitude untouched).
func (b Builder) AllControlPhase(o *ops.Ops, bits []bool) (edge.Edge, error) {
	n := uint32(len(bits))
	controls := make([]ControlSpec, n)
	for k, bit := range bits {
		if bit {
			controls[k] = ControlOnOne
		} else {
			controls[k] = ControlOnZero
		}
	}
	// target is unused (every qubit is a control): pick any index and pass
	// identity2x2 so stackProjector never special-cases it.
	proj, err := b.stackProjector(controls, n, n, identity2x2)
	if err != nil {
		return edge.Edge{}, err
	}
	scaledProj, err := b.scale(proj, -2)
	if err != nil {
		return edge.Edge{}, err
	}
	ident, err := b.Identity(n)
	if err != nil {
		return edge.Edge{}, err
	}
	return o.Plus(ident, scaledProj)
}
