package gate

import (
	"math"
	"math/cmplx"
	"sync"
)

// MatrixID is an opaque 32-bit identifier the DD engine's constructors take
// instead of a Gate directly (§6.1: "Gate IDs are opaque 32-bit identifiers
// resolved by the external gate library into a 2x2 matrix of weight
// handles"). 4x4 two-qubit matrices (SWAP) use the same ID space.
type MatrixID uint32

const (
	idH MatrixID = iota + 1
	idX
	idY
	idZ
	idS
	idSwap
	firstDynamicID
)

// Registry maps MatrixID to its dense matrix, pre-populated with every
// builtin single-qubit gate and able to allocate fresh IDs at runtime for
// parametrized gates (rotations, phase gates).
type Registry struct {
	mu      sync.RWMutex
	mats2x2 map[MatrixID][4]complex128
	mats4x4 map[MatrixID][16]complex128
	byGate  map[Gate]MatrixID
	next    MatrixID
}

// NewRegistry returns a Registry pre-populated with the builtin gates.
func NewRegistry() *Registry {
	r := &Registry{
		mats2x2: make(map[MatrixID][4]complex128),
		mats4x4: make(map[MatrixID][16]complex128),
		byGate:  make(map[Gate]MatrixID),
		next:    firstDynamicID,
	}
	r.mats2x2[idH] = [4]complex128{
		complex(1/math.Sqrt2, 0), complex(1/math.Sqrt2, 0),
		complex(1/math.Sqrt2, 0), complex(-1/math.Sqrt2, 0),
	}
	r.mats2x2[idX] = [4]complex128{0, 1, 1, 0}
	r.mats2x2[idY] = [4]complex128{0, complex(0, -1), complex(0, 1), 0}
	r.mats2x2[idZ] = [4]complex128{1, 0, 0, -1}
	r.mats2x2[idS] = [4]complex128{1, 0, 0, complex(0, 1)}
	r.mats4x4[idSwap] = [16]complex128{
		1, 0, 0, 0,
		0, 0, 1, 0,
		0, 1, 0, 0,
		0, 0, 0, 1,
	}
	r.byGate[H()] = idH
	r.byGate[X()] = idX
	r.byGate[Y()] = idY
	r.byGate[Z()] = idZ
	r.byGate[S()] = idS
	r.byGate[Swap()] = idSwap
	return r
}

// Matrix2x2 returns the 2x2 row-major matrix for id, if id names a
// single-qubit gate.
func (r *Registry) Matrix2x2(id MatrixID) ([4]complex128, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.mats2x2[id]
	return m, ok
}

// Matrix4x4 returns the 4x4 row-major matrix for id, if id names a
// two-qubit gate.
func (r *Registry) Matrix4x4(id MatrixID) ([16]complex128, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.mats4x4[id]
	return m, ok
}

// Allocate assigns and stores a fresh MatrixID for a 2x2 matrix, for
// parametrized gates built at runtime (RZ, Phase, arbitrary unitaries).
func (r *Registry) Allocate(m [4]complex128) MatrixID {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.next
	r.next++
	r.mats2x2[id] = m
	return id
}

// IDFor bridges the Gate interface qc/circuit/qc/builder use to the
// MatrixID the DD constructors consume.
func (r *Registry) IDFor(g Gate) (MatrixID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byGate[g]
	return id, ok
}

// RZ returns the 2x2 matrix for a Z-rotation by theta radians:
// diag(e^{-i theta/2}, e^{i theta/2}).
func RZ(theta float64) [4]complex128 {
	half := theta / 2
	return [4]complex128{
		cmplx.Exp(complex(0, -half)), 0,
		0, cmplx.Exp(complex(0, half)),
	}
}

// Phase returns the 2x2 matrix for a phase gate: diag(1, e^{i theta}).
func Phase(theta float64) [4]complex128 {
	return [4]complex128{1, 0, 0, cmplx.Exp(complex(0, theta))}
}
