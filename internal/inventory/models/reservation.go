package models

import (
	"time"

	id "stash/pkg/domain"
	dErrors "stash/pkg/domain-errors"
)

// Reservation is a time-bounded hold against an item's capacity.
//
// Invariants:
//   - Quantity is positive and immutable
//   - ExpiresAt is fixed at creation (CreatedAt + TTL)
//   - Status transitions: pending → committed | cancelled | expired; all three are terminal
//   - Quantity counts against the item's capacity only while pending
type Reservation struct {
	ID        id.ReservationID  `json:"id"`
	ItemID    id.ItemID         `json:"item_id"`
	Quantity  int               `json:"quantity"`
	Status    ReservationStatus `json:"status"`
	ExpiresAt time.Time         `json:"expires_at"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// NewReservation constructs a pending reservation expiring ttl after now.
func NewReservation(reservationID id.ReservationID, itemID id.ItemID, quantity int, ttl time.Duration, now time.Time) (*Reservation, error) {
	if quantity <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "quantity must be positive")
	}
	if ttl <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "ttl must be positive")
	}
	return &Reservation{
		ID:        reservationID,
		ItemID:    itemID,
		Quantity:  quantity,
		Status:    StatusPending,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (r *Reservation) IsPending() bool {
	return r.Status == StatusPending
}

// IsDue reports whether a pending reservation has reached its expiry.
func (r *Reservation) IsDue(now time.Time) bool {
	return r.IsPending() && !now.Before(r.ExpiresAt)
}

// CanConfirm checks the reservation may become committed at now.
// A due reservation yields CodeExpired; callers expire it instead.
func (r *Reservation) CanConfirm(now time.Time) error {
	if !r.Status.CanTransitionTo(StatusCommitted) {
		return dErrors.New(dErrors.CodeInvalidState, "reservation is "+string(r.Status)+"; only pending reservations can be confirmed")
	}
	if r.IsDue(now) {
		return dErrors.New(dErrors.CodeExpired, "reservation expired at "+r.ExpiresAt.UTC().Format(time.RFC3339))
	}
	return nil
}

// CanCancel checks the reservation may become cancelled.
func (r *Reservation) CanCancel() error {
	if !r.Status.CanTransitionTo(StatusCancelled) {
		return dErrors.New(dErrors.CodeInvalidState, "reservation is "+string(r.Status)+"; only pending reservations can be cancelled")
	}
	return nil
}

// CanExpire checks the reservation may become expired at now.
func (r *Reservation) CanExpire(now time.Time) error {
	if !r.Status.CanTransitionTo(StatusExpired) {
		return dErrors.New(dErrors.CodeInvalidState, "reservation is "+string(r.Status))
	}
	if !r.IsDue(now) {
		return dErrors.New(dErrors.CodeInvalidState, "reservation has not expired yet")
	}
	return nil
}

// Apply moves the reservation to status. Call the matching Can* check first.
func (r *Reservation) Apply(status ReservationStatus, now time.Time) {
	r.Status = status
	r.UpdatedAt = now
}

// Clone returns a copy safe to mutate.
func (r *Reservation) Clone() *Reservation {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}
