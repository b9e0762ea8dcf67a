package cache_test

import (
	"testing"

	"github.com/kegliz/qplay/qc/dd/cache"
	"github.com/kegliz/qplay/qc/dd/node"
	"github.com/kegliz/qplay/qc/dd/weight"
	"github.com/stretchr/testify/assert"
)

func TestGetPutRoundTrip(t *testing.T) {
	c := cache.New(16)
	k := cache.NewKey(cache.OpPlus, 3, 5, 0, 0)
	want := cache.Value{Target: node.Handle(7), Weight: weight.One}

	_, ok := c.Get(k)
	assert.False(t, ok)

	c.Put(k, want)
	got, ok := c.Get(k)
	assert.True(t, ok)
	assert.Equal(t, want, got)
}

func TestCommutativeKeysShareASlot(t *testing.T) {
	k1 := cache.NewKey(cache.OpPlus, 3, 5, 0, 0)
	k2 := cache.NewKey(cache.OpPlus, 5, 3, 0, 0)
	assert.Equal(t, k1, k2, "plus(a,b) and plus(b,a) must normalize to the same key")

	// The inner product is conjugate-symmetric, not commutative, so its
	// swapped operands keep distinct keys.
	k3 := cache.NewKey(cache.OpInner, 9, 2, 0, 0)
	k4 := cache.NewKey(cache.OpInner, 2, 9, 0, 0)
	assert.NotEqual(t, k3, k4)
}

func TestNonCommutativeKeysStayDistinct(t *testing.T) {
	k1 := cache.NewKey(cache.OpMatVec, 3, 5, 0, 0)
	k2 := cache.NewKey(cache.OpMatVec, 5, 3, 0, 0)
	assert.NotEqual(t, k1, k2)
}

func TestClearInvalidatesEverything(t *testing.T) {
	c := cache.New(4)
	k := cache.NewKey(cache.OpInner, 1, 2, 0, 0)
	c.Put(k, cache.Value{Weight: weight.MinusOne})

	c.Clear()

	_, ok := c.Get(k)
	assert.False(t, ok)
}

func TestCollisionOverwritesRatherThanErrors(t *testing.T) {
	c := cache.New(1) // a single slot forces every key to collide
	k1 := cache.NewKey(cache.OpPlus, 1, 2, 0, 0)
	k2 := cache.NewKey(cache.OpTensor, 9, 9, 0, 0)

	c.Put(k1, cache.Value{Weight: weight.One})
	c.Put(k2, cache.Value{Weight: weight.MinusOne})

	_, ok := c.Get(k1)
	assert.False(t, ok, "the second put must have silently evicted the first")
	got, ok := c.Get(k2)
	assert.True(t, ok)
	assert.Equal(t, weight.MinusOne, got.Weight)
}
