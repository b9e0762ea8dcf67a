// Package weight interns complex edge weights (C1 of the decision-diagram
// engine) into stable handles, with tolerance-bucketed deduplication and a
// two-table-swap GC.
package weight

import (
	"errors"
	"math"
	"math/cmplx"
	"sort"
	"sync"
)

// Handle is an opaque, table-relative reference to a complex value.
// Zero, One and MinusOne are reserved and never stored in the table.
type Handle uint64

const (
	Zero     Handle = 0
	One      Handle = 1
	MinusOne Handle = 2

	firstDynamic Handle = 3
)

// Backend selects the interning strategy (§9 "dynamic dispatch over weight
// back-ends").
type Backend int

const (
	Hashmap Backend = iota
	RealTupleHashmap
	RealTree
)

func (b Backend) String() string {
	switch b {
	case Hashmap:
		return "hashmap"
	case RealTupleHashmap:
		return "real-tuple-hashmap"
	case RealTree:
		return "real-tree"
	default:
		return "unknown"
	}
}

// ErrTableFull is returned by Lookup when the table is still full after a
// caller-triggered GC cycle.
var ErrTableFull = errors.New("weight: table full after gc")

// Config parametrizes a Table.
type Config struct {
	Tolerance   float64 // equality tolerance epsilon; 0 means exact, except that an all-zero Config gets 1e-14
	InitialSize int
	MaxSize     int
	Backend     Backend
}

func (c Config) withDefaults() Config {
	if c.Tolerance == 0 && c.MaxSize == 0 && c.InitialSize == 0 {
		c.Tolerance = 1e-14
	}
	if c.InitialSize <= 0 {
		c.InitialSize = 1024
	}
	if c.MaxSize <= 0 {
		c.MaxSize = 1 << 24
	}
	return c
}

// Table is a process-local intern table for complex edge weights.
type Table struct {
	mu       sync.RWMutex
	cfg      Config
	values   []complex128 // dense, index 0..2 reserved
	produced int

	// Hashmap backend: bucketed (real,imag) -> candidate handles.
	buckets map[[2]int64][]Handle

	// RealTupleHashmap / RealTree backend: components interned separately,
	// composite handle keyed by the pair of component ids.
	realComp map[int64]int
	imagComp map[int64]int
	realVals []float64
	imagVals []float64
	pairs    map[[2]int]Handle

	// RealTree backend keeps the component tables as sorted slices, probed
	// with binary search instead of a hashmap.
	realSorted []sortedComponent
	imagSorted []sortedComponent
}

type sortedComponent struct {
	bucket int64
	id     int
}

// New creates an empty weight table.
func New(cfg Config) *Table {
	cfg = cfg.withDefaults()
	t := &Table{
		cfg:      cfg,
		values:   make([]complex128, firstDynamic, cfg.InitialSize),
		buckets:  make(map[[2]int64][]Handle),
		realComp: make(map[int64]int),
		imagComp: make(map[int64]int),
		pairs:    make(map[[2]int]Handle),
	}
	t.values[Zero] = 0
	t.values[One] = 1
	t.values[MinusOne] = -1
	return t
}

// Tolerance returns the configured equality tolerance epsilon.
func (t *Table) Tolerance() float64 { return t.cfg.Tolerance }

// Backend returns the configured interning backend.
func (t *Table) Backend() Backend { return t.cfg.Backend }

// Len returns the number of live (non-reserved) entries.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.values) - int(firstDynamic)
}

// Cap returns the configured maximum table size.
func (t *Table) Cap() int { return t.cfg.MaxSize }

// Size returns one past the highest handle Value can report, i.e. the
// total number of dense slots (reserved Zero/One/MinusOne included). The
// table never frees a handle outside a GC-triggered rebuild, so every
// slot in [0, Size) is live.
func (t *Table) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.values)
}

// Fill returns the fraction of capacity currently used.
func (t *Table) Fill() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return float64(len(t.values)) / float64(t.cfg.MaxSize)
}

// Value returns the complex value for a live handle.
func (t *Table) Value(h Handle) complex128 {
	switch h {
	case Zero:
		return 0
	case One:
		return 1
	case MinusOne:
		return -1
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.values[h]
}

// bucket buckets a float64 to the configured tolerance. tolerance==0
// (exact mode) buckets on the raw bit pattern.
func (t *Table) bucket(f float64) int64 {
	if t.cfg.Tolerance == 0 {
		return int64(math.Float64bits(f))
	}
	return int64(math.Round(f / t.cfg.Tolerance))
}

func closeEnough(a, b complex128, eps float64) bool {
	if eps == 0 {
		return a == b
	}
	return cmplx.Abs(a-b) <= eps
}

// Lookup returns the handle for c, inserting it if no existing handle is
// within tolerance. Returns ErrTableFull if the table is still full after
// the caller should have GC'd (callers are expected to call GC before
// Lookup when Fill() exceeds their threshold; Lookup itself never GCs).
func (t *Table) Lookup(c complex128) (Handle, error) {
	if near(c, 0, t.cfg.Tolerance) {
		return Zero, nil
	}
	if near(c, 1, t.cfg.Tolerance) {
		return One, nil
	}
	if near(c, -1, t.cfg.Tolerance) {
		return MinusOne, nil
	}

	switch t.cfg.Backend {
	case RealTupleHashmap:
		return t.lookupRealTuple(c)
	case RealTree:
		return t.lookupRealTree(c)
	default:
		return t.lookupHashmap(c)
	}
}

func near(a, b complex128, eps float64) bool { return closeEnough(a, b, eps) }

func (t *Table) lookupHashmap(c complex128) (Handle, error) {
	key := [2]int64{t.bucket(real(c)), t.bucket(imag(c))}

	t.mu.RLock()
	for _, h := range t.buckets[key] {
		if closeEnough(t.values[h], c, t.cfg.Tolerance) {
			t.mu.RUnlock()
			return h, nil
		}
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	// Re-check under the write lock in case of a concurrent insert.
	for _, h := range t.buckets[key] {
		if closeEnough(t.values[h], c, t.cfg.Tolerance) {
			return h, nil
		}
	}
	if len(t.values) >= t.cfg.MaxSize {
		return 0, ErrTableFull
	}
	h := Handle(len(t.values))
	t.values = append(t.values, c)
	t.buckets[key] = append(t.buckets[key], h)
	t.produced++
	return h, nil
}

// lookupRealTuple interns the real and imaginary parts as separate
// components, then dedups the composite (realID, imagID) pair. Many edge
// weights in a quantum circuit share a magnitude (1/sqrt(2), 1/2, ...)
// across otherwise-distinct complex values, so the real axis and imaginary
// axis tables end up much smaller than the number of distinct composites.
func (t *Table) lookupRealTuple(c complex128) (Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rID := t.internComponent(real(c), t.realComp, &t.realVals)
	iID := t.internComponent(imag(c), t.imagComp, &t.imagVals)
	pk := [2]int{rID, iID}
	if h, ok := t.pairs[pk]; ok {
		return h, nil
	}
	if len(t.values) >= t.cfg.MaxSize {
		return 0, ErrTableFull
	}
	h := Handle(len(t.values))
	t.values = append(t.values, c)
	t.pairs[pk] = h
	t.produced++
	return h, nil
}

func (t *Table) internComponent(v float64, index map[int64]int, store *[]float64) int {
	key := t.bucket(v)
	if id, ok := index[key]; ok {
		return id
	}
	id := len(*store)
	*store = append(*store, v)
	index[key] = id
	return id
}

// lookupRealTree is the same component-sharing idea as lookupRealTuple, but
// probes each axis with a sorted slice + binary search instead of a hashmap
// ("tree of real-axis tables", §4.1).
func (t *Table) lookupRealTree(c complex128) (Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	rID := t.internSorted(real(c), &t.realSorted, &t.realVals)
	iID := t.internSorted(imag(c), &t.imagSorted, &t.imagVals)
	pk := [2]int{rID, iID}
	if h, ok := t.pairs[pk]; ok {
		return h, nil
	}
	if len(t.values) >= t.cfg.MaxSize {
		return 0, ErrTableFull
	}
	h := Handle(len(t.values))
	t.values = append(t.values, c)
	t.pairs[pk] = h
	t.produced++
	return h, nil
}

func (t *Table) internSorted(v float64, sorted *[]sortedComponent, store *[]float64) int {
	key := t.bucket(v)
	s := *sorted
	i := sort.Search(len(s), func(i int) bool { return s[i].bucket >= key })
	if i < len(s) && s[i].bucket == key {
		return s[i].id
	}
	id := len(*store)
	*store = append(*store, v)
	entry := sortedComponent{bucket: key, id: id}
	s = append(s, sortedComponent{})
	copy(s[i+1:], s[i:])
	s[i] = entry
	*sorted = s
	return id
}

// Arithmetic helpers perform exact complex128 arithmetic on the underlying
// values and intern the normalized result.

func (t *Table) Add(a, b Handle) (Handle, error) { return t.Lookup(t.Value(a) + t.Value(b)) }
func (t *Table) Mul(a, b Handle) (Handle, error) { return t.Lookup(t.Value(a) * t.Value(b)) }
func (t *Table) Neg(a Handle) (Handle, error)    { return t.Lookup(-t.Value(a)) }
func (t *Table) Conj(a Handle) (Handle, error)   { return t.Lookup(cmplx.Conj(t.Value(a))) }
func (t *Table) Abs(a Handle) float64            { return cmplx.Abs(t.Value(a)) }

// Reachable is called during a weight-table GC for every handle the node
// table's mark phase discovered to be live. It returns the handle in the
// fresh table that the caller (the node table, via the engine's GC
// coordinator) should rewrite node entries to use.
func (t *Table) Reachable(old *Table, h Handle) (Handle, error) {
	switch h {
	case Zero, One, MinusOne:
		return h, nil
	}
	return t.Lookup(old.Value(h))
}

// Stats reports interning statistics, grounded on the rudd BDD tables'
// stats() method (produced/used/free counters).
type Stats struct {
	Backend  Backend
	Live     int
	Capacity int
	Produced int
	Fill     float64
}

func (t *Table) Stats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return Stats{
		Backend:  t.cfg.Backend,
		Live:     len(t.values) - int(firstDynamic),
		Capacity: t.cfg.MaxSize,
		Produced: t.produced,
		Fill:     float64(len(t.values)) / float64(t.cfg.MaxSize),
	}
}
