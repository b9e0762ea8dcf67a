package sched_test

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kegliz/qplay/qc/dd/sched"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFork2JoinsBothResults(t *testing.T) {
	p := sched.New(sched.PoolConfig{MaxParallelism: 4})

	r1, r2, err := sched.Fork2(p,
		func() (int, error) { return 1, nil },
		func() (int, error) { return 2, nil },
	)
	require.NoError(t, err)
	assert.Equal(t, 1, r1)
	assert.Equal(t, 2, r2)
}

func TestFork2PropagatesEitherError(t *testing.T) {
	p := sched.New(sched.PoolConfig{MaxParallelism: 4})
	boom := errors.New("boom")

	_, _, err := sched.Fork2(p,
		func() (int, error) { return 0, boom },
		func() (int, error) { return 2, nil },
	)
	assert.ErrorIs(t, err, boom)

	_, _, err = sched.Fork2(p,
		func() (int, error) { return 1, nil },
		func() (int, error) { return 0, boom },
	)
	assert.ErrorIs(t, err, boom)
}

func TestFork2NeverBlocksWithASingleSlot(t *testing.T) {
	p := sched.New(sched.PoolConfig{MaxParallelism: 1})
	done := make(chan struct{})

	go func() {
		_, _, _ = sched.Fork2(p,
			func() (int, error) { return 1, nil },
			func() (int, error) { return 2, nil },
		)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Fork2 deadlocked with a single-slot pool")
	}
}

func TestForkNRunsEveryTask(t *testing.T) {
	p := sched.New(sched.PoolConfig{MaxParallelism: 2})
	var calls atomic.Int32
	tasks := make([]func() (int, error), 8)
	for i := range tasks {
		i := i
		tasks[i] = func() (int, error) {
			calls.Add(1)
			return i, nil
		}
	}

	results, err := sched.ForkN(p, tasks)
	require.NoError(t, err)
	require.Len(t, results, 8)
	for i, r := range results {
		assert.Equal(t, i, r)
	}
	assert.EqualValues(t, 8, calls.Load())
}

func TestGCBlocksUntilInFlightOpsFinish(t *testing.T) {
	p := sched.New(sched.PoolConfig{MaxParallelism: 4})
	release := p.Enter()

	gcRan := make(chan struct{})
	go func() {
		p.GC(func() { close(gcRan) })
	}()

	select {
	case <-gcRan:
		t.Fatal("GC ran while a top-level operation was still in flight")
	case <-time.After(100 * time.Millisecond):
	}

	release()

	select {
	case <-gcRan:
	case <-time.After(2 * time.Second):
		t.Fatal("GC never ran after the in-flight operation released the gate")
	}
}
