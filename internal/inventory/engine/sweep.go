package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"stash/internal/inventory/events"
	"stash/internal/inventory/models"
	id "stash/pkg/domain"
	"stash/pkg/requestcontext"
)

// ExpireItem expires every pending reservation of itemID that is due at now,
// in one lock hold and one write. It returns how many were expired.
func (e *Engine) ExpireItem(ctx context.Context, itemID id.ItemID, now time.Time) (_ int, err error) {
	ctx, span := e.startSpan(ctx, "expire_item", attribute.String("item_id", itemID.String()))
	defer func() { e.finish(span, "expire_item", err) }()

	var expired []*models.Reservation
	err = e.withItemLock(ctx, itemID, func(ctx context.Context) error {
		item, err := e.ledger.Get(ctx, itemID)
		if err != nil {
			return err
		}
		pending, err := e.registry.List(ctx, models.ReservationFilter{ItemID: &itemID, Status: models.StatusPending})
		if err != nil {
			return err
		}
		stamp := e.now()
		var due []*models.Reservation
		for _, r := range pending {
			if !r.IsDue(now) {
				continue
			}
			if err := item.Release(r.Quantity, stamp); err != nil {
				return err
			}
			r.Apply(models.StatusExpired, stamp)
			due = append(due, r)
		}
		if len(due) == 0 {
			return nil
		}
		if err := e.save(ctx, item, due); err != nil {
			return err
		}
		expired = due
		return nil
	})
	if err != nil {
		return 0, err
	}

	span.SetAttributes(attribute.Int("expired", len(expired)))
	for _, r := range expired {
		e.publish(ctx, events.ForReservation(r, requestcontext.RequestID(ctx)))
	}
	if len(expired) > 0 {
		e.logger.InfoContext(ctx, "expired reservations",
			"item_id", itemID.String(),
			"count", len(expired),
		)
	}
	return len(expired), nil
}

// SweepExpired expires every reservation due at now, one item at a time with
// bounded parallelism. A failing item does not stop the others: the count of
// reclaimed reservations is returned together with the joined failures.
func (e *Engine) SweepExpired(ctx context.Context, now time.Time) (_ int, err error) {
	ctx, span := e.startSpan(ctx, "sweep_expired")
	defer func() { e.finish(span, "sweep_expired", err) }()
	start := time.Now()

	due, err := e.registry.Expired(ctx, now)
	if err != nil {
		return 0, err
	}

	var order []id.ItemID
	seen := make(map[id.ItemID]struct{})
	for _, r := range due {
		if _, ok := seen[r.ItemID]; !ok {
			seen[r.ItemID] = struct{}{}
			order = append(order, r.ItemID)
		}
	}

	var (
		mu    sync.Mutex
		total int
		errs  []error
	)
	g := new(errgroup.Group)
	g.SetLimit(e.sweepConcurrency)
	for _, itemID := range order {
		g.Go(func() error {
			n, err := e.ExpireItem(ctx, itemID, now)
			mu.Lock()
			defer mu.Unlock()
			total += n
			if err != nil {
				e.logger.ErrorContext(ctx, "failed to expire item reservations",
					"error", err,
					"item_id", itemID.String(),
				)
				errs = append(errs, fmt.Errorf("item %s: %w", itemID, err))
			}
			return nil
		})
	}
	_ = g.Wait()

	if e.metrics != nil {
		e.metrics.ObserveSweep(time.Since(start).Seconds(), total)
	}
	span.SetAttributes(attribute.Int("reclaimed", total), attribute.Int("items", len(order)))
	return total, errors.Join(errs...)
}
