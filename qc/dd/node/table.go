// Package node hash-conses decision-diagram nodes (C2): tuples of
// (var, low target, high target, low weight, high weight) are interned into
// stable handles, with a mark-sweep GC.
//
// The unique table is a sync.RWMutex-guarded Go map, following the 'Hudd'
// backend of dalzilio/rudd (a real Go BDD engine in the retrieval pack):
// a single struct embeds the lock, nodes live in a growable slice, and the
// unique table maps the tuple key straight to a slot index. That is the
// idiomatic Go substitute for a hand-rolled lock-free open-addressed probe
// sequence; correctness does not depend on which.
package node

import (
	"errors"
	"sync"

	"github.com/kegliz/qplay/qc/dd/weight"
)

// Handle is an opaque reference to an interned node. Terminal is reserved.
type Handle uint64

const Terminal Handle = 0

// ErrTableFull is returned by LookupOrInsert when the table is still full
// after the caller's GC cycle.
var ErrTableFull = errors.New("node: table full after gc")

// ErrBrokenHandle is returned by RewriteWeights for a handle that is not a
// live node.
var ErrBrokenHandle = errors.New("node: handle is not a live node")

// Key is the tuple a node hash-conses on.
type Key struct {
	Var    uint32
	Low    Handle
	High   Handle
	LowW   weight.Handle
	HighW  weight.Handle
}

type entry struct {
	key   Key
	mark  bool
	alive bool
}

// Config parametrizes a Table.
type Config struct {
	InitialSize int
	MaxSize     int
}

func (c Config) withDefaults() Config {
	if c.InitialSize <= 0 {
		c.InitialSize = 1024
	}
	if c.MaxSize <= 0 {
		c.MaxSize = 1 << 24
	}
	return c
}

// Table is a process-local hash-consing store for DD nodes.
type Table struct {
	mu       sync.RWMutex
	cfg      Config
	entries  []entry // index 0 is the reserved terminal
	unique   map[Key]Handle
	free     []Handle // slots freed by Sweep, reused before growing entries
	produced int
	gcCount  int
}

// New creates an empty node table.
func New(cfg Config) *Table {
	cfg = cfg.withDefaults()
	t := &Table{
		cfg:     cfg,
		entries: make([]entry, 1, cfg.InitialSize), // slot 0 = terminal, never in `unique`
		unique:  make(map[Key]Handle),
	}
	t.entries[Terminal] = entry{alive: true}
	return t
}

// LookupOrInsert hash-conses (var, low, high, lowW, highW) and returns its
// handle, allocating a new slot only on a miss.
func (t *Table) LookupOrInsert(k Key) (Handle, error) {
	t.mu.RLock()
	if h, ok := t.unique[k]; ok {
		t.mu.RUnlock()
		return h, nil
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	if h, ok := t.unique[k]; ok {
		return h, nil
	}
	if n := len(t.free); n > 0 {
		h := t.free[n-1]
		t.free = t.free[:n-1]
		t.entries[h] = entry{key: k, alive: true}
		t.unique[k] = h
		t.produced++
		return h, nil
	}
	if len(t.entries) >= t.cfg.MaxSize {
		return 0, ErrTableFull
	}
	h := Handle(len(t.entries))
	t.entries = append(t.entries, entry{key: k, alive: true})
	t.unique[k] = h
	t.produced++
	return h, nil
}

// Get returns the tuple for a live handle.
func (t *Table) Get(h Handle) (Key, bool) {
	if h == Terminal {
		return Key{}, true
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if int(h) >= len(t.entries) || !t.entries[h].alive {
		return Key{}, false
	}
	return t.entries[h].key, true
}

// Mark sets the GC mark bit for h and (transitively) both its children.
// Safe to call concurrently from multiple mark workers; re-marking an
// already-marked node is a no-op, which also terminates the recursion (the
// DAG is acyclic but heavily shared, so without this check mark-sweep would
// revisit shared sub-DAGs exponentially often).
func (t *Table) Mark(h Handle) {
	if h == Terminal {
		return
	}
	t.mu.Lock()
	if int(h) >= len(t.entries) || t.entries[h].mark {
		t.mu.Unlock()
		return
	}
	t.entries[h].mark = true
	k := t.entries[h].key
	t.mu.Unlock()

	t.Mark(k.Low)
	t.Mark(k.High)
}

// Sweep clears every unmarked entry and resets all mark bits, returning the
// number of entries reclaimed.
func (t *Table) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	reclaimed := 0
	for h := 1; h < len(t.entries); h++ {
		e := &t.entries[h]
		if !e.alive {
			continue
		}
		if e.mark {
			e.mark = false
			continue
		}
		delete(t.unique, e.key)
		e.alive = false
		t.free = append(t.free, Handle(h))
		reclaimed++
	}
	t.gcCount++
	return reclaimed
}

// RewriteWeights updates a live node's weight-handle pair in place, for use
// by the engine's GC coordinator after it has rebuilt the weight table and
// needs every surviving node to reference the new handles. The node's
// Var/Low/High are untouched — only the unique-table entry for its key
// needs to move, since the weight handles are part of the hash-cons key.
func (t *Table) RewriteWeights(h Handle, lowW, highW weight.Handle) error {
	if h == Terminal {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if int(h) >= len(t.entries) || !t.entries[h].alive {
		return ErrBrokenHandle
	}
	oldKey := t.entries[h].key
	newKey := Key{Var: oldKey.Var, Low: oldKey.Low, High: oldKey.High, LowW: lowW, HighW: highW}
	delete(t.unique, oldKey)
	t.entries[h].key = newKey
	t.unique[newKey] = h
	return nil
}

// Len returns the number of live (non-terminal) entries.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries) - 1 - len(t.free)
}

// Cap returns the configured maximum table size.
func (t *Table) Cap() int { return t.cfg.MaxSize }

// Size returns the number of slots ever allocated (live or freed), i.e. one
// past the highest handle Get can possibly report as live. Callers walking
// every live handle should stop at Size, not Cap.
func (t *Table) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Fill returns the fraction of capacity currently occupied by live entries.
func (t *Table) Fill() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return float64(len(t.entries)-len(t.free)) / float64(t.cfg.MaxSize)
}

// Stats reports interning/GC statistics.
type Stats struct {
	Live     int
	Capacity int
	Produced int
	GCCount  int
	Fill     float64
}

func (t *Table) Stats() Stats {
	return Stats{
		Live:     t.Len(),
		Capacity: t.cfg.MaxSize,
		Produced: t.produced,
		GCCount:  t.gcCount,
		Fill:     t.Fill(),
	}
}
