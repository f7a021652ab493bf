package sweeper

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stash/internal/inventory/engine"
	"stash/internal/inventory/models"
	"stash/internal/inventory/store"
	"stash/internal/platform/lock"
)

type stubEngine struct {
	mu    sync.Mutex
	calls int
	err   error
	now   time.Time
}

func (s *stubEngine) SweepExpired(context.Context, time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return 1, s.err
}

func (s *stubEngine) Now() time.Time { return s.now }

func (s *stubEngine) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSweeperLoop(t *testing.T) {
	t.Run("sweeps on start and on every tick", func(t *testing.T) {
		eng := &stubEngine{}
		sw := New(eng, WithInterval(5*time.Millisecond), WithLogger(quietLogger()))
		sw.Start(context.Background())
		require.Eventually(t, func() bool { return eng.Calls() >= 3 }, time.Second, time.Millisecond)
		sw.Stop()

		after := eng.Calls()
		time.Sleep(20 * time.Millisecond)
		assert.Equal(t, after, eng.Calls(), "no sweeps after Stop")
	})

	t.Run("keeps running after a failed sweep", func(t *testing.T) {
		eng := &stubEngine{err: errors.New("store down")}
		sw := New(eng, WithInterval(5*time.Millisecond), WithLogger(quietLogger()))
		sw.Start(context.Background())
		require.Eventually(t, func() bool { return eng.Calls() >= 2 }, time.Second, time.Millisecond)
		sw.Stop()
	})

	t.Run("stop without start returns", func(t *testing.T) {
		New(&stubEngine{}).Stop()
	})

	t.Run("parent cancellation ends the loop", func(t *testing.T) {
		eng := &stubEngine{}
		sw := New(eng, WithInterval(time.Hour), WithLogger(quietLogger()))
		ctx, cancel := context.WithCancel(context.Background())
		sw.Start(ctx)
		require.Eventually(t, func() bool { return eng.Calls() == 1 }, time.Second, time.Millisecond)
		cancel()
		sw.Stop()
	})
}

func TestRunOnceReclaimsDueReservations(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	current := now
	st := store.NewInMemory()
	eng, err := engine.New(st, lock.NewInMemory(),
		engine.WithClock(func() time.Time { return current }),
		engine.WithReservationTTL(time.Minute),
		engine.WithLogger(quietLogger()),
	)
	require.NoError(t, err)

	capacity := 3
	item, err := eng.CreateItem(context.Background(), models.CreateItemRequest{Capacity: &capacity})
	require.NoError(t, err)
	_, err = eng.CreateReservation(context.Background(), item.ID, 3)
	require.NoError(t, err)

	sw := New(eng, WithLogger(quietLogger()))
	assert.Zero(t, sw.RunOnce(context.Background()))

	current = now.Add(time.Minute)
	assert.Equal(t, 1, sw.RunOnce(context.Background()))

	got, err := eng.GetItem(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Available)
}
