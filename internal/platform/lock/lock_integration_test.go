//go:build integration

package lock_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"stash/internal/platform/lock"
	"stash/pkg/platform/sentinel"
	"stash/pkg/testutil/containers"
)

type lockerSuite struct {
	suite.Suite
	newLocker func() lock.Locker
}

func (s *lockerSuite) TestSerializesContenders() {
	locker := s.newLocker()
	ctx := context.Background()

	var (
		inside  atomic.Int32
		overlap atomic.Bool
		wg      sync.WaitGroup
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			lease, err := locker.Acquire(ctx, "item-serial")
			if !s.NoError(err) {
				return
			}
			if inside.Add(1) > 1 {
				overlap.Store(true)
			}
			time.Sleep(5 * time.Millisecond)
			inside.Add(-1)
			s.NoError(lease.Release(ctx))
		}()
	}
	wg.Wait()
	s.False(overlap.Load())
}

func (s *lockerSuite) TestTimesOutWhileHeld() {
	locker := s.newLocker()
	ctx := context.Background()

	held, err := locker.Acquire(ctx, "item-timeout")
	s.Require().NoError(err)

	waitCtx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	_, err = locker.Acquire(waitCtx, "item-timeout")
	s.ErrorIs(err, sentinel.ErrLockTimeout)

	s.Require().NoError(held.Release(ctx))
	again, err := locker.Acquire(ctx, "item-timeout")
	s.Require().NoError(err)
	s.NoError(again.Release(ctx))
}

func TestRedisLocker(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	rc := containers.GetManager().GetRedis(t)
	suite.Run(t, &lockerSuite{newLocker: func() lock.Locker {
		return lock.NewRedis(rc.Client, lock.WithLeaseTTL(5*time.Second))
	}})
}

func TestZooKeeperLocker(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	zc := containers.GetManager().GetZooKeeper(t)
	suite.Run(t, &lockerSuite{newLocker: func() lock.Locker {
		return lock.NewZooKeeper(zc.Conn, "/stash-test-locks")
	}})
}
