package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"stash/internal/inventory/models"
	id "stash/pkg/domain"
	"stash/pkg/platform/sentinel"
)

// InMemory keeps records in process memory. It serves single-instance
// deployments and tests. Records are copied on the way in and out so callers
// never share state with the store.
type InMemory struct {
	mu           sync.RWMutex
	items        map[id.ItemID]*models.Item
	reservations map[id.ReservationID]*models.Reservation
}

func NewInMemory() *InMemory {
	return &InMemory{
		items:        make(map[id.ItemID]*models.Item),
		reservations: make(map[id.ReservationID]*models.Reservation),
	}
}

func (s *InMemory) GetItem(_ context.Context, itemID id.ItemID) (*models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[itemID]
	if !ok {
		return nil, fmt.Errorf("item %s: %w", itemID, sentinel.ErrNotFound)
	}
	return item.Clone(), nil
}

func (s *InMemory) ListItems(_ context.Context) ([]*models.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Item, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item.Clone())
	}
	sortItems(out)
	return out, nil
}

func (s *InMemory) GetReservation(_ context.Context, reservationID id.ReservationID) (*models.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reservations[reservationID]
	if !ok {
		return nil, fmt.Errorf("reservation %s: %w", reservationID, sentinel.ErrNotFound)
	}
	return r.Clone(), nil
}

func (s *InMemory) ListReservations(_ context.Context, filter models.ReservationFilter) ([]*models.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Reservation, 0)
	for _, r := range s.reservations {
		if filter.Matches(r) {
			out = append(out, r.Clone())
		}
	}
	sortReservations(out)
	return out, nil
}

func (s *InMemory) ListDue(_ context.Context, now time.Time) ([]*models.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Reservation, 0)
	for _, r := range s.reservations {
		if r.IsDue(now) {
			out = append(out, r.Clone())
		}
	}
	sortReservations(out)
	return out, nil
}

// Save replaces the item and reservation records under a single write lock.
func (s *InMemory) Save(_ context.Context, item *models.Item, reservations []*models.Reservation) error {
	if item == nil {
		return fmt.Errorf("save: item is required")
	}
	for _, r := range reservations {
		if r.ItemID != item.ID {
			return fmt.Errorf("save: reservation %s belongs to item %s, not %s", r.ID, r.ItemID, item.ID)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = item.Clone()
	for _, r := range reservations {
		s.reservations[r.ID] = r.Clone()
	}
	return nil
}

func (s *InMemory) Health(context.Context) error {
	return nil
}
