// Package store persists items and reservations.
//
// Every backend keeps one record per item keyed by item id and one record per
// reservation keyed by reservation id. Save writes an item together with the
// reservations touched by the same mutation as a single atomic unit, which is
// what lets the engine publish a ledger+registry change all at once or not at
// all. Backends return sentinel.ErrNotFound for absent records and
// sentinel.ErrUnavailable when the backing service fails a request.
package store

import (
	"context"
	"fmt"
	"slices"
	"time"

	"stash/internal/inventory/models"
	id "stash/pkg/domain"
	"stash/pkg/platform/sentinel"
)

// ItemReader reads item records.
type ItemReader interface {
	GetItem(ctx context.Context, itemID id.ItemID) (*models.Item, error)
	ListItems(ctx context.Context) ([]*models.Item, error)
}

// ReservationReader reads reservation records.
type ReservationReader interface {
	GetReservation(ctx context.Context, reservationID id.ReservationID) (*models.Reservation, error)
	ListReservations(ctx context.Context, filter models.ReservationFilter) ([]*models.Reservation, error)
	// ListDue returns pending reservations whose expiry is at or before now.
	ListDue(ctx context.Context, now time.Time) ([]*models.Reservation, error)
}

// Writer persists a mutation atomically.
type Writer interface {
	Save(ctx context.Context, item *models.Item, reservations []*models.Reservation) error
}

// Store is the full coordination-store contract.
type Store interface {
	ItemReader
	ReservationReader
	Writer
	Health(ctx context.Context) error
}

// unavailable marks a backing-service failure.
func unavailable(err error) error {
	return fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
}

func sortItems(items []*models.Item) {
	slices.SortFunc(items, func(a, b *models.Item) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return compareStrings(a.ID.String(), b.ID.String())
	})
}

func sortReservations(rs []*models.Reservation) {
	slices.SortFunc(rs, func(a, b *models.Reservation) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return compareStrings(a.ID.String(), b.ID.String())
	})
}

func compareStrings(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
