// Package engine is the allocation engine: the only writer of items and
// reservations.
//
// Every mutation follows the same shape: acquire the item's lock with a
// bounded wait, re-read the records, apply ledger and registry changes to the
// freshly loaded copies, persist them with one atomic Store.Save, release the
// lock and finally publish a lifecycle event. Records loaded from the store
// are private copies, so a failed Save leaves nothing visible behind.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"stash/internal/inventory/events"
	"stash/internal/inventory/ledger"
	"stash/internal/inventory/metrics"
	"stash/internal/inventory/models"
	"stash/internal/inventory/registry"
	"stash/internal/platform/lock"
	id "stash/pkg/domain"
	dErrors "stash/pkg/domain-errors"
	"stash/pkg/platform/sentinel"
	"stash/pkg/requestcontext"
)

const (
	DefaultReservationTTL   = 15 * time.Minute
	DefaultLockTimeout      = 5 * time.Second
	DefaultSweepConcurrency = 4

	tracerName = "stash/internal/inventory/engine"
)

// Store is the coordination store the engine reads and writes.
type Store interface {
	GetItem(ctx context.Context, itemID id.ItemID) (*models.Item, error)
	ListItems(ctx context.Context) ([]*models.Item, error)
	GetReservation(ctx context.Context, reservationID id.ReservationID) (*models.Reservation, error)
	ListReservations(ctx context.Context, filter models.ReservationFilter) ([]*models.Reservation, error)
	ListDue(ctx context.Context, now time.Time) ([]*models.Reservation, error)
	Save(ctx context.Context, item *models.Item, reservations []*models.Reservation) error
	Health(ctx context.Context) error
}

// Publisher receives lifecycle events after a mutation commits.
type Publisher interface {
	Publish(ctx context.Context, event events.Event) error
}

// Clock supplies the current time.
type Clock func() time.Time

type Engine struct {
	store     Store
	locker    lock.Locker
	ledger    *ledger.Ledger
	registry  *registry.Registry
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	tracer    trace.Tracer
	clock     Clock

	ttl              time.Duration
	lockTimeout      time.Duration
	sweepConcurrency int
}

type Option func(*Engine)

func WithClock(clock Clock) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithPublisher(p Publisher) Option {
	return func(e *Engine) {
		if p != nil {
			e.publisher = p
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithReservationTTL sets how long a new reservation stays pending.
func WithReservationTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		if ttl > 0 {
			e.ttl = ttl
		}
	}
}

// WithLockTimeout bounds how long a mutation waits for its item lock.
func WithLockTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.lockTimeout = d
		}
	}
}

// WithSweepConcurrency bounds how many items a sweep expires in parallel.
func WithSweepConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.sweepConcurrency = n
		}
	}
}

func New(st Store, locker lock.Locker, opts ...Option) (*Engine, error) {
	if st == nil {
		return nil, errors.New("engine: store is required")
	}
	if locker == nil {
		return nil, errors.New("engine: locker is required")
	}
	e := &Engine{
		store:            st,
		locker:           locker,
		publisher:        events.Nop{},
		logger:           slog.Default(),
		tracer:           otel.Tracer(tracerName),
		clock:            time.Now,
		ttl:              DefaultReservationTTL,
		lockTimeout:      DefaultLockTimeout,
		sweepConcurrency: DefaultSweepConcurrency,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	e.ledger = ledger.New(st, ledger.WithClock(e.now))
	e.registry = registry.New(st)
	return e, nil
}

func (e *Engine) now() time.Time {
	return e.clock().UTC()
}

// Now exposes the engine clock so the sweeper shares it.
func (e *Engine) Now() time.Time {
	return e.now()
}

func (e *Engine) Health(ctx context.Context) error {
	if err := e.store.Health(ctx); err != nil {
		return dErrors.Wrap(err, dErrors.CodePersistence, "coordination store unavailable")
	}
	return nil
}

func lockKey(itemID id.ItemID) string {
	return "item:" + itemID.String()
}

// withItemLock runs fn while holding itemID's lock. The wait honours ctx and
// the configured timeout; fn itself runs on a context detached from ctx's
// cancellation so a half-applied mutation is never abandoned.
func (e *Engine) withItemLock(ctx context.Context, itemID id.ItemID, fn func(ctx context.Context) error) error {
	waitCtx, cancel := context.WithTimeout(ctx, e.lockTimeout)
	defer cancel()

	start := time.Now()
	lease, err := e.locker.Acquire(waitCtx, lockKey(itemID))
	if e.metrics != nil {
		e.metrics.ObserveLockWait(time.Since(start).Seconds())
	}
	if err != nil {
		if errors.Is(err, sentinel.ErrLockTimeout) {
			if e.metrics != nil {
				e.metrics.IncLockTimeouts()
			}
			e.logger.WarnContext(ctx, "item lock wait timed out",
				"item_id", itemID.String(),
				"timeout", e.lockTimeout.String(),
				"request_id", requestcontext.RequestID(ctx),
			)
			return dErrors.Wrap(err, dErrors.CodeLockTimeout, "timed out waiting for item lock")
		}
		return dErrors.Wrap(err, dErrors.CodePersistence, "failed to acquire item lock")
	}

	held := context.WithoutCancel(ctx)
	defer func() {
		if err := lease.Release(held); err != nil {
			e.logger.ErrorContext(held, "failed to release item lock",
				"error", err,
				"item_id", itemID.String(),
			)
		}
	}()
	return fn(held)
}

func (e *Engine) save(ctx context.Context, item *models.Item, reservations []*models.Reservation) error {
	if err := e.store.Save(ctx, item, reservations); err != nil {
		if e.metrics != nil {
			e.metrics.IncPersistenceFailures()
		}
		e.logger.ErrorContext(ctx, "failed to persist item mutation",
			"error", err,
			"item_id", item.ID.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
		return dErrors.Wrap(err, dErrors.CodePersistence, "failed to persist changes")
	}
	return nil
}

func (e *Engine) publish(ctx context.Context, event events.Event) {
	if err := e.publisher.Publish(ctx, event); err != nil {
		e.logger.WarnContext(ctx, "failed to publish inventory event",
			"error", err,
			"event_type", string(event.Type),
			"item_id", event.ItemID,
			"reservation_id", event.ReservationID,
		)
	}
}

func (e *Engine) startSpan(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, "inventory."+op, trace.WithAttributes(attrs...))
}

// finish records the outcome of op on its span and in metrics.
func (e *Engine) finish(span trace.Span, op string, err error) {
	outcome := metrics.OutcomeSuccess
	if err != nil {
		code := dErrors.CodeOf(err)
		outcome = string(code)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(code))
	}
	if e.metrics != nil {
		e.metrics.ObserveOperation(op, outcome)
	}
	span.End()
}

// VerifyItem checks the capacity invariant of one item against its
// reservation records. Both reads happen under the item lock so a concurrent
// mutation is never observed half applied.
func (e *Engine) VerifyItem(ctx context.Context, itemID id.ItemID) error {
	return e.withItemLock(ctx, itemID, func(ctx context.Context) error {
		item, err := e.ledger.Get(ctx, itemID)
		if err != nil {
			return err
		}
		rs, err := e.registry.List(ctx, models.ReservationFilter{ItemID: &itemID})
		if err != nil {
			return err
		}
		if err := item.CheckInvariant(registry.PendingQuantity(rs)); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("item %s violates its capacity invariant", itemID))
		}
		return nil
	})
}
