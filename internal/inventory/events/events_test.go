package events

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stash/internal/inventory/models"
	id "stash/pkg/domain"
	"stash/pkg/platform/circuit"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestForReservationMapsStatusToType(t *testing.T) {
	r, err := models.NewReservation(id.NewReservationID(), id.NewItemID(), 2, time.Minute, testNow)
	require.NoError(t, err)

	cases := map[models.ReservationStatus]Type{
		models.StatusPending:   ReservationCreated,
		models.StatusCommitted: ReservationCommitted,
		models.StatusCancelled: ReservationCancelled,
		models.StatusExpired:   ReservationExpired,
	}
	for status, want := range cases {
		r.Status = status
		e := ForReservation(r, "req-1")
		assert.Equal(t, want, e.Type, "status %s", status)
		assert.Equal(t, r.ItemID.String(), e.Key())
		assert.Equal(t, 2, e.Quantity)
		assert.Equal(t, "req-1", e.RequestID)
	}
}

func TestForItem(t *testing.T) {
	item, err := models.NewItem(id.NewItemID(), 5, nil, nil, testNow)
	require.NoError(t, err)

	e := ForItem(item, "")
	assert.Equal(t, ItemCreated, e.Type)
	assert.Equal(t, item.ID.String(), e.ItemID)
	assert.Equal(t, 5, e.Quantity)
	assert.Empty(t, e.ReservationID)
}

func TestLoggerWritesEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	require.NoError(t, NewLogger(logger).Publish(context.Background(), Event{Type: ItemCreated, ItemID: "abc"}))
	assert.Contains(t, buf.String(), `"event_type":"item.created"`)
	assert.Contains(t, buf.String(), `"item_id":"abc"`)
}

type failingPublisher struct{ calls atomic.Int32 }

func (f *failingPublisher) Publish(context.Context, Event) error {
	f.calls.Add(1)
	return errors.New("broker down")
}

type blockingPublisher struct {
	release chan struct{}
	mem     *Memory
}

func (b *blockingPublisher) Publish(ctx context.Context, e Event) error {
	<-b.release
	return b.mem.Publish(ctx, e)
}

type dropCount struct{ n atomic.Int32 }

func (d *dropCount) IncEventsDropped() { d.n.Add(1) }

func TestAsync(t *testing.T) {
	t.Run("delivers events in order and drains on close", func(t *testing.T) {
		mem := NewMemory()
		async := NewAsync(mem)
		for i := range 5 {
			require.NoError(t, async.Publish(context.Background(), Event{Type: ReservationCreated, Quantity: i + 1}))
		}
		require.NoError(t, async.Close(context.Background()))

		got := mem.Events()
		require.Len(t, got, 5)
		for i, e := range got {
			assert.Equal(t, i+1, e.Quantity)
		}
	})

	t.Run("sink failures are swallowed", func(t *testing.T) {
		sink := &failingPublisher{}
		async := NewAsync(sink, WithAsyncLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))
		require.NoError(t, async.Publish(context.Background(), Event{Type: ItemCreated}))
		require.NoError(t, async.Close(context.Background()))
		assert.Equal(t, int32(1), sink.calls.Load())
	})

	t.Run("full buffer drops instead of blocking", func(t *testing.T) {
		sink := &blockingPublisher{release: make(chan struct{}), mem: NewMemory()}
		drops := &dropCount{}
		async := NewAsync(sink,
			WithBuffer(1),
			WithDropCounter(drops),
			WithAsyncLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))),
		)

		// First event is taken by the worker and blocks; the second fills the buffer.
		require.NoError(t, async.Publish(context.Background(), Event{Quantity: 1}))
		require.Eventually(t, func() bool { return len(async.inbox) == 0 }, time.Second, time.Millisecond)
		require.NoError(t, async.Publish(context.Background(), Event{Quantity: 2}))
		require.NoError(t, async.Publish(context.Background(), Event{Quantity: 3}))
		assert.Equal(t, int32(1), drops.n.Load())

		close(sink.release)
		require.NoError(t, async.Close(context.Background()))
		assert.Len(t, sink.mem.Events(), 2)
	})

	t.Run("publish after close is dropped", func(t *testing.T) {
		drops := &dropCount{}
		async := NewAsync(NewMemory(), WithDropCounter(drops), WithAsyncLogger(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))))
		require.NoError(t, async.Close(context.Background()))
		require.NoError(t, async.Publish(context.Background(), Event{}))
		assert.Equal(t, int32(1), drops.n.Load())
	})
}

func TestMemoryConcurrentPublish(t *testing.T) {
	mem := NewMemory()
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = mem.Publish(context.Background(), Event{Type: ReservationCreated})
		}()
	}
	wg.Wait()
	assert.Len(t, mem.OfType(ReservationCreated), 20)
}

type flakySink struct {
	fail bool
	Memory
}

func (f *flakySink) Publish(ctx context.Context, event Event) error {
	if f.fail {
		return errors.New("broker unavailable")
	}
	return f.Memory.Publish(ctx, event)
}

func TestGuardedFallsBackWhileCircuitOpen(t *testing.T) {
	ctx := context.Background()
	primary := &flakySink{fail: true}
	fallback := NewMemory()
	g := NewGuarded(primary, fallback,
		circuit.New("kafka", circuit.WithFailureThreshold(2), circuit.WithSuccessThreshold(1)),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	event := Event{Type: ItemCreated}

	require.Error(t, g.Publish(ctx, event), "below threshold the failure surfaces")
	require.NoError(t, g.Publish(ctx, event), "the opening failure is absorbed by the fallback")
	assert.Len(t, fallback.Events(), 1)

	primary.fail = false
	require.NoError(t, g.Publish(ctx, event))
	assert.Len(t, primary.Events(), 1)
	assert.Len(t, fallback.Events(), 1)
}
