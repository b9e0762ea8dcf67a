// Package cache implements the operation cache (C4): a fixed-capacity,
// direct-mapped memo table shared by every recursive operation in qc/dd/ops.
// Collisions overwrite silently — correctness never depends on a cache hit,
// only on a hit's value being valid when it occurs.
package cache

import (
	"sync"
	"sync/atomic"

	"github.com/kegliz/qplay/qc/dd/node"
	"github.com/kegliz/qplay/qc/dd/weight"
)

// OpID identifies which recursive operation a cache entry belongs to, so
// that otherwise-colliding handle tuples from different operations never
// alias each other.
type OpID uint8

const (
	OpPlus OpID = iota
	OpMatVec
	OpMatMat
	OpInner
	OpTensor
	OpShift
	OpReplaceTerminal
	OpProb
)

// commutative operations may have their operand handles sorted before
// lookup, since plus(a,b) == plus(b,a). The inner product is conjugate-
// symmetric rather than commutative (⟨a|b⟩ == conj(⟨b|a⟩)), so it is only
// safe to key on the unordered pair when a and b are the same operand —
// which sorting handles for free without needing a special case.
func (o OpID) commutative() bool { return o == OpPlus }

// Key is the lookup key for an operation-cache entry: the operation plus up
// to four operand handles (unused operands are left at zero).
type Key struct {
	Op             OpID
	H1, H2, H3, H4 uint64
}

// NewKey builds a Key, sorting (H1,H2) for commutative operations so that
// plus(a,b) and plus(b,a) share a cache slot.
func NewKey(op OpID, h1, h2, h3, h4 uint64) Key {
	if op.commutative() && h1 > h2 {
		h1, h2 = h2, h1
	}
	return Key{Op: op, H1: h1, H2: h2, H3: h3, H4: h4}
}

// Value is a memoized result: a result edge (Target+Weight) for operations
// that return edges, or just a Weight (Target left at node.Terminal) for
// scalar-valued operations like the inner product.
type Value struct {
	Target node.Handle
	Weight weight.Handle
}

type slot struct {
	valid bool
	key   Key
	value Value
}

// Cache is the fixed-capacity direct-mapped operation memo.
type Cache struct {
	mu    sync.RWMutex
	slots []slot

	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a cache with room for capacity entries. capacity is rounded
// up to at least 1.
func New(capacity int) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache{slots: make([]slot, capacity)}
}

func (c *Cache) index(k Key) uint64 {
	h := uint64(k.Op) + 1
	h = h*1099511628211 ^ k.H1
	h = h*1099511628211 ^ k.H2
	h = h*1099511628211 ^ k.H3
	h = h*1099511628211 ^ k.H4
	return h % uint64(len(c.slots))
}

// Get returns the memoized value for k, if the slot it maps to is currently
// occupied by k itself (a collision with a different key is a miss, not an
// error).
func (c *Cache) Get(k Key) (Value, bool) {
	c.mu.RLock()
	s := &c.slots[c.index(k)]
	if s.valid && s.key == k {
		v := s.value
		c.mu.RUnlock()
		c.hits.Add(1)
		return v, true
	}
	c.mu.RUnlock()
	c.misses.Add(1)
	return Value{}, false
}

// Put memoizes v under k, silently overwriting whatever previously occupied
// that slot.
func (c *Cache) Put(k Key, v Value) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slots[c.index(k)] = slot{valid: true, key: k, value: v}
}

// Clear empties every slot. Called on any GC of the weight or node table,
// since a stale handle in a cached key or value would otherwise silently
// alias an unrelated live object.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.slots {
		c.slots[i] = slot{}
	}
}

// Len returns the configured slot count (not the number of valid entries,
// which direct-mapping makes meaningless to track exactly).
func (c *Cache) Len() int { return len(c.slots) }

// Stats reports cumulative hit/miss counts since the cache (or the engine
// owning it) was created. Counts are not reset by Clear: a GC-triggered
// clear changes what's memoized, not how often lookups have succeeded.
type Stats struct {
	Hits   int64
	Misses int64
}

func (c *Cache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}
