package events

import (
	"context"
	"log/slog"
	"sync"
)

const defaultBuffer = 1024

// DropCounter is told about events discarded because the buffer was full.
type DropCounter interface {
	IncEventsDropped()
}

// Async decouples publishing from mutations. Publish enqueues without
// blocking; a single worker drains the queue into the wrapped sink in order.
// When the queue is full the event is dropped and logged.
type Async struct {
	next    Publisher
	logger  *slog.Logger
	drops   DropCounter
	inbox   chan queued
	done    chan struct{}
	closeMu sync.RWMutex
	closed  bool
}

type queued struct {
	ctx   context.Context
	event Event
}

// AsyncOption configures an Async publisher.
type AsyncOption func(*Async)

func WithBuffer(n int) AsyncOption {
	return func(a *Async) {
		if n > 0 {
			a.inbox = make(chan queued, n)
		}
	}
}

func WithAsyncLogger(logger *slog.Logger) AsyncOption {
	return func(a *Async) {
		if logger != nil {
			a.logger = logger
		}
	}
}

func WithDropCounter(c DropCounter) AsyncOption {
	return func(a *Async) {
		a.drops = c
	}
}

// NewAsync starts the worker goroutine. Call Close to flush and stop it.
func NewAsync(next Publisher, opts ...AsyncOption) *Async {
	a := &Async{
		next:   next,
		logger: slog.Default(),
		inbox:  make(chan queued, defaultBuffer),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	go a.run()
	return a
}

func (a *Async) Publish(ctx context.Context, event Event) error {
	a.closeMu.RLock()
	defer a.closeMu.RUnlock()
	if a.closed {
		a.drop(ctx, event, "publisher closed")
		return nil
	}
	select {
	case a.inbox <- queued{ctx: context.WithoutCancel(ctx), event: event}:
	default:
		a.drop(ctx, event, "event buffer full")
	}
	return nil
}

func (a *Async) drop(ctx context.Context, event Event, reason string) {
	if a.drops != nil {
		a.drops.IncEventsDropped()
	}
	a.logger.WarnContext(ctx, "dropping inventory event",
		"reason", reason,
		"event_type", string(event.Type),
		"item_id", event.ItemID,
		"reservation_id", event.ReservationID,
	)
}

func (a *Async) run() {
	defer close(a.done)
	for q := range a.inbox {
		if err := a.next.Publish(q.ctx, q.event); err != nil {
			a.logger.ErrorContext(q.ctx, "failed to publish inventory event",
				"error", err,
				"event_type", string(q.event.Type),
				"item_id", q.event.ItemID,
				"reservation_id", q.event.ReservationID,
			)
		}
	}
}

// Close stops accepting events and waits for queued ones to drain or ctx to end.
func (a *Async) Close(ctx context.Context) error {
	a.closeMu.Lock()
	if !a.closed {
		a.closed = true
		close(a.inbox)
	}
	a.closeMu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
