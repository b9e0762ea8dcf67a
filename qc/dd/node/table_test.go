package node_test

import (
	"testing"

	"github.com/kegliz/qplay/qc/dd/node"
	"github.com/kegliz/qplay/qc/dd/weight"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupOrInsertDedups(t *testing.T) {
	tab := node.New(node.Config{})

	k := node.Key{Var: 0, Low: node.Terminal, High: node.Terminal, LowW: weight.Zero, HighW: weight.One}
	h1, err := tab.LookupOrInsert(k)
	require.NoError(t, err)
	h2, err := tab.LookupOrInsert(k)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Equal(t, 1, tab.Len())
}

func TestLookupOrInsertDistinguishesKeys(t *testing.T) {
	tab := node.New(node.Config{})

	h1, err := tab.LookupOrInsert(node.Key{Var: 0, Low: node.Terminal, High: node.Terminal, LowW: weight.Zero, HighW: weight.One})
	require.NoError(t, err)
	h2, err := tab.LookupOrInsert(node.Key{Var: 1, Low: node.Terminal, High: node.Terminal, LowW: weight.Zero, HighW: weight.One})
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
	assert.Equal(t, 2, tab.Len())
}

func TestGetReturnsKeyForLiveHandle(t *testing.T) {
	tab := node.New(node.Config{})
	k := node.Key{Var: 3, Low: node.Terminal, High: node.Terminal, LowW: weight.One, HighW: weight.MinusOne}
	h, err := tab.LookupOrInsert(k)
	require.NoError(t, err)

	got, ok := tab.Get(h)
	require.True(t, ok)
	assert.Equal(t, k, got)

	_, ok = tab.Get(node.Terminal)
	assert.True(t, ok, "terminal is always live")
}

func TestSharedSubDAGMarkedOnce(t *testing.T) {
	tab := node.New(node.Config{})
	leaf, err := tab.LookupOrInsert(node.Key{Var: 1, Low: node.Terminal, High: node.Terminal, LowW: weight.One, HighW: weight.One})
	require.NoError(t, err)

	// Two parents share the same child — Mark must terminate, not recurse
	// exponentially, and Sweep must keep the shared leaf alive for both.
	p1, err := tab.LookupOrInsert(node.Key{Var: 0, Low: leaf, High: leaf, LowW: weight.One, HighW: weight.One})
	require.NoError(t, err)
	p2, err := tab.LookupOrInsert(node.Key{Var: 0, Low: leaf, High: leaf, LowW: weight.MinusOne, HighW: weight.One})
	require.NoError(t, err)

	tab.Mark(p1)
	tab.Mark(p2)
	reclaimed := tab.Sweep()

	assert.Equal(t, 0, reclaimed)
	assert.Equal(t, 3, tab.Len())
}

func TestMarkSweepReclaimsUnreachable(t *testing.T) {
	tab := node.New(node.Config{})
	garbage, err := tab.LookupOrInsert(node.Key{Var: 2, Low: node.Terminal, High: node.Terminal, LowW: weight.One, HighW: weight.One})
	require.NoError(t, err)
	live, err := tab.LookupOrInsert(node.Key{Var: 0, Low: node.Terminal, High: node.Terminal, LowW: weight.Zero, HighW: weight.One})
	require.NoError(t, err)

	tab.Mark(live)
	reclaimed := tab.Sweep()

	assert.Equal(t, 1, reclaimed)
	assert.Equal(t, 1, tab.Len())

	_, ok := tab.Get(garbage)
	assert.False(t, ok, "swept entry must no longer resolve")
	_, ok = tab.Get(live)
	assert.True(t, ok)
}

func TestSweepFreesSlotForReuse(t *testing.T) {
	tab := node.New(node.Config{MaxSize: 2})

	garbage, err := tab.LookupOrInsert(node.Key{Var: 0, Low: node.Terminal, High: node.Terminal, LowW: weight.Zero, HighW: weight.One})
	require.NoError(t, err)

	// Table is now full (MaxSize 2: terminal + garbage); nothing marked, so
	// the next insert must fail until a GC reclaims the dead slot.
	_, err = tab.LookupOrInsert(node.Key{Var: 1, Low: node.Terminal, High: node.Terminal, LowW: weight.One, HighW: weight.Zero})
	assert.ErrorIs(t, err, node.ErrTableFull)

	reclaimed := tab.Sweep() // nothing marked live -> garbage is reclaimed
	assert.Equal(t, 1, reclaimed)

	reused, err := tab.LookupOrInsert(node.Key{Var: 1, Low: node.Terminal, High: node.Terminal, LowW: weight.One, HighW: weight.Zero})
	require.NoError(t, err)
	assert.Equal(t, garbage, reused, "freed slot must be reused rather than growing the table")
}

func TestRewriteWeightsMovesUniqueTableEntry(t *testing.T) {
	tab := node.New(node.Config{})
	k := node.Key{Var: 0, Low: node.Terminal, High: node.Terminal, LowW: weight.Zero, HighW: weight.One}
	h, err := tab.LookupOrInsert(k)
	require.NoError(t, err)

	require.NoError(t, tab.RewriteWeights(h, weight.One, weight.MinusOne))

	got, ok := tab.Get(h)
	require.True(t, ok)
	assert.Equal(t, weight.One, got.LowW)
	assert.Equal(t, weight.MinusOne, got.HighW)

	// A fresh lookup under the old key must no longer alias h — its unique
	// table entry was moved to the new key, not duplicated.
	h2, err := tab.LookupOrInsert(k)
	require.NoError(t, err)
	assert.NotEqual(t, h, h2)
}

func TestRewriteWeightsRejectsDeadHandle(t *testing.T) {
	tab := node.New(node.Config{})
	k := node.Key{Var: 0, Low: node.Terminal, High: node.Terminal, LowW: weight.Zero, HighW: weight.One}
	h, err := tab.LookupOrInsert(k)
	require.NoError(t, err)
	tab.Sweep() // nothing marked -> h is reclaimed

	err = tab.RewriteWeights(h, weight.One, weight.One)
	assert.ErrorIs(t, err, node.ErrBrokenHandle)
}

func TestStatsReportsGCCount(t *testing.T) {
	tab := node.New(node.Config{})
	_, err := tab.LookupOrInsert(node.Key{Var: 0, Low: node.Terminal, High: node.Terminal, LowW: weight.Zero, HighW: weight.One})
	require.NoError(t, err)

	tab.Sweep()
	tab.Sweep()

	stats := tab.Stats()
	assert.Equal(t, 2, stats.GCCount)
	assert.Equal(t, 0, stats.Live)
	assert.Equal(t, 1, stats.Produced)
}
