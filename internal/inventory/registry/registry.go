// Package registry serves reservation records.
//
// Status transitions live on models.Reservation; the allocation engine applies
// them together with the matching ledger change.
package registry

import (
	"context"
	"errors"
	"time"

	"stash/internal/inventory/models"
	"stash/internal/inventory/store"
	id "stash/pkg/domain"
	dErrors "stash/pkg/domain-errors"
	"stash/pkg/platform/sentinel"
)

type Registry struct {
	store store.ReservationReader
}

func New(st store.ReservationReader) *Registry {
	return &Registry{store: st}
}

func (r *Registry) Get(ctx context.Context, reservationID id.ReservationID) (*models.Reservation, error) {
	res, err := r.store.GetReservation(ctx, reservationID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeNotFound, "reservation not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to load reservation")
	}
	return res, nil
}

func (r *Registry) List(ctx context.Context, filter models.ReservationFilter) ([]*models.Reservation, error) {
	rs, err := r.store.ListReservations(ctx, filter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to list reservations")
	}
	return rs, nil
}

// Expired returns pending reservations whose expiry is at or before now.
func (r *Registry) Expired(ctx context.Context, now time.Time) ([]*models.Reservation, error) {
	rs, err := r.store.ListDue(ctx, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodePersistence, "failed to list expired reservations")
	}
	return rs, nil
}

// PendingQuantity sums the quantities of pending reservations.
func PendingQuantity(rs []*models.Reservation) int {
	total := 0
	for _, r := range rs {
		if r.IsPending() {
			total += r.Quantity
		}
	}
	return total
}
