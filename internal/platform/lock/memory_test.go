package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stash/pkg/platform/sentinel"
)

func TestInMemoryMutualExclusion(t *testing.T) {
	locker := NewInMemory()
	ctx := context.Background()

	var (
		inside  atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lease, err := locker.Acquire(ctx, "item-1")
			if !assert.NoError(t, err) {
				return
			}
			n := inside.Add(1)
			for {
				cur := maxSeen.Load()
				if n <= cur || maxSeen.CompareAndSwap(cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			assert.NoError(t, lease.Release(ctx))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen.Load())
	assert.Zero(t, locker.held(), "slots are dropped once unused")
}

func TestInMemoryDistinctKeysDoNotBlock(t *testing.T) {
	locker := NewInMemory()
	ctx := context.Background()

	a, err := locker.Acquire(ctx, "a")
	require.NoError(t, err)
	defer a.Release(ctx)

	waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	b, err := locker.Acquire(waitCtx, "b")
	require.NoError(t, err)
	require.NoError(t, b.Release(ctx))
}

func TestInMemoryTimeout(t *testing.T) {
	locker := NewInMemory()
	ctx := context.Background()

	held, err := locker.Acquire(ctx, "k")
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = locker.Acquire(waitCtx, "k")
	require.ErrorIs(t, err, sentinel.ErrLockTimeout)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, held.Release(ctx))
	again, err := locker.Acquire(ctx, "k")
	require.NoError(t, err, "timed-out waiter must not leak the slot")
	require.NoError(t, again.Release(ctx))
	assert.Zero(t, locker.held())
}

func TestInMemoryDoubleReleaseIsNoop(t *testing.T) {
	locker := NewInMemory()
	ctx := context.Background()

	lease, err := locker.Acquire(ctx, "k")
	require.NoError(t, err)
	require.NoError(t, lease.Release(ctx))
	require.NoError(t, lease.Release(ctx))

	other, err := locker.Acquire(ctx, "k")
	require.NoError(t, err)
	require.NoError(t, other.Release(ctx))
}
