package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"stash/internal/inventory/events"
	"stash/internal/inventory/models"
	id "stash/pkg/domain"
	dErrors "stash/pkg/domain-errors"
	"stash/pkg/requestcontext"
)

func (e *Engine) GetReservation(ctx context.Context, reservationID id.ReservationID) (*models.Reservation, error) {
	return e.registry.Get(ctx, reservationID)
}

// ListReservations lists reservations matching filter. Filtering by an item
// that does not exist is NotFound rather than an empty list.
func (e *Engine) ListReservations(ctx context.Context, filter models.ReservationFilter) ([]*models.Reservation, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "unknown reservation status "+string(filter.Status))
	}
	if filter.ItemID != nil {
		if _, err := e.ledger.Get(ctx, *filter.ItemID); err != nil {
			return nil, err
		}
	}
	return e.registry.List(ctx, filter)
}

// CreateReservation debits quantity from the item and records a pending
// reservation in the same atomic write.
func (e *Engine) CreateReservation(ctx context.Context, itemID id.ItemID, quantity int) (_ *models.Reservation, err error) {
	ctx, span := e.startSpan(ctx, "create_reservation",
		attribute.String("item_id", itemID.String()),
		attribute.Int("quantity", quantity),
	)
	defer func() { e.finish(span, "create_reservation", err) }()

	if quantity <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "quantity must be positive")
	}

	var created *models.Reservation
	err = e.withItemLock(ctx, itemID, func(ctx context.Context) error {
		item, err := e.ledger.Get(ctx, itemID)
		if err != nil {
			return err
		}
		now := e.now()
		if err := item.Reserve(quantity, now); err != nil {
			return err
		}
		r, err := models.NewReservation(id.NewReservationID(), itemID, quantity, e.ttl, now)
		if err != nil {
			return err
		}
		if err := e.save(ctx, item, []*models.Reservation{r}); err != nil {
			return err
		}
		created = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("reservation_id", created.ID.String()))
	e.logger.InfoContext(ctx, "reservation created",
		"item_id", itemID.String(),
		"reservation_id", created.ID.String(),
		"quantity", quantity,
		"expires_at", created.ExpiresAt,
		"request_id", requestcontext.RequestID(ctx),
	)
	e.publish(ctx, events.ForReservation(created, requestcontext.RequestID(ctx)))
	return created, nil
}

// transition is a status change applied under the item lock. It reports
// whether item and r changed; a non-nil error may still accompany a change
// that must be written (confirming a due reservation).
type transition func(now time.Time, item *models.Item, r *models.Reservation) (changed bool, err error)

// mutateReservation locates the reservation's item, takes its lock, reloads
// both records and applies fn. The reservation's item never changes, so the
// unlocked lookup is only used to pick the lock.
func (e *Engine) mutateReservation(ctx context.Context, reservationID id.ReservationID, fn transition) (*models.Reservation, bool, error) {
	existing, err := e.registry.Get(ctx, reservationID)
	if err != nil {
		return nil, false, err
	}

	var (
		result  *models.Reservation
		changed bool
		opErr   error
	)
	err = e.withItemLock(ctx, existing.ItemID, func(ctx context.Context) error {
		r, err := e.registry.Get(ctx, reservationID)
		if err != nil {
			return err
		}
		item, err := e.ledger.Get(ctx, r.ItemID)
		if err != nil {
			return err
		}
		changed, opErr = fn(e.now(), item, r)
		if changed {
			if err := e.save(ctx, item, []*models.Reservation{r}); err != nil {
				changed = false
				return err
			}
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if changed {
		e.publish(ctx, events.ForReservation(result, requestcontext.RequestID(ctx)))
	}
	return result, changed, opErr
}

// ConfirmReservation commits a pending reservation. A reservation that is
// already due is expired instead, its quantity returned, and the call fails
// with Expired.
func (e *Engine) ConfirmReservation(ctx context.Context, reservationID id.ReservationID) (_ *models.Reservation, err error) {
	ctx, span := e.startSpan(ctx, "confirm_reservation", attribute.String("reservation_id", reservationID.String()))
	defer func() { e.finish(span, "confirm_reservation", err) }()

	r, changed, err := e.mutateReservation(ctx, reservationID, func(now time.Time, item *models.Item, r *models.Reservation) (bool, error) {
		if err := r.CanConfirm(now); err != nil {
			if !dErrors.HasCode(err, dErrors.CodeExpired) {
				return false, err
			}
			if relErr := item.Release(r.Quantity, now); relErr != nil {
				return false, relErr
			}
			r.Apply(models.StatusExpired, now)
			return true, err
		}
		if err := item.Commit(r.Quantity, now); err != nil {
			return false, err
		}
		r.Apply(models.StatusCommitted, now)
		return true, nil
	})
	if err != nil {
		if changed {
			e.logger.InfoContext(ctx, "reservation expired on confirm",
				"reservation_id", reservationID.String(),
				"item_id", r.ItemID.String(),
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		return nil, err
	}
	e.logger.InfoContext(ctx, "reservation committed",
		"reservation_id", reservationID.String(),
		"item_id", r.ItemID.String(),
		"quantity", r.Quantity,
		"request_id", requestcontext.RequestID(ctx),
	)
	return r, nil
}

// CancelReservation returns a pending reservation's quantity. Cancelling an
// already cancelled reservation returns it unchanged.
func (e *Engine) CancelReservation(ctx context.Context, reservationID id.ReservationID) (_ *models.Reservation, err error) {
	ctx, span := e.startSpan(ctx, "cancel_reservation", attribute.String("reservation_id", reservationID.String()))
	defer func() { e.finish(span, "cancel_reservation", err) }()

	r, changed, err := e.mutateReservation(ctx, reservationID, func(now time.Time, item *models.Item, r *models.Reservation) (bool, error) {
		if r.Status == models.StatusCancelled {
			return false, nil
		}
		if err := r.CanCancel(); err != nil {
			return false, err
		}
		if err := item.Release(r.Quantity, now); err != nil {
			return false, err
		}
		r.Apply(models.StatusCancelled, now)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		e.logger.InfoContext(ctx, "reservation cancelled",
			"reservation_id", reservationID.String(),
			"item_id", r.ItemID.String(),
			"quantity", r.Quantity,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return r, nil
}

// ExpireReservation expires one due pending reservation. It is a no-op on a
// reservation that already reached a terminal status and InvalidState on one
// that is pending but not yet due.
func (e *Engine) ExpireReservation(ctx context.Context, reservationID id.ReservationID) (_ *models.Reservation, err error) {
	ctx, span := e.startSpan(ctx, "expire_reservation", attribute.String("reservation_id", reservationID.String()))
	defer func() { e.finish(span, "expire_reservation", err) }()

	r, _, err := e.mutateReservation(ctx, reservationID, func(now time.Time, item *models.Item, r *models.Reservation) (bool, error) {
		if r.Status.IsTerminal() {
			return false, nil
		}
		if err := r.CanExpire(now); err != nil {
			return false, err
		}
		if err := item.Release(r.Quantity, now); err != nil {
			return false, err
		}
		r.Apply(models.StatusExpired, now)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}
