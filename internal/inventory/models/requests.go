package models

import (
	"strings"

	id "stash/pkg/domain"
	dErrors "stash/pkg/domain-errors"
)

// CreateItemRequest carries the client-supplied fields of a new item.
type CreateItemRequest struct {
	Capacity *int              `json:"capacity"`
	Metadata map[string]string `json:"metadata"`
	Tags     []string          `json:"tags"`
}

func (r *CreateItemRequest) Validate() error {
	if r.Capacity == nil {
		return dErrors.New(dErrors.CodeInvalidArgument, "capacity is required")
	}
	if *r.Capacity < 0 {
		return dErrors.New(dErrors.CodeInvalidArgument, "capacity must not be negative")
	}
	for k := range r.Metadata {
		if strings.TrimSpace(k) == "" {
			return dErrors.New(dErrors.CodeInvalidArgument, "metadata keys must not be empty")
		}
	}
	return nil
}

// CreateReservationRequest is the body of POST /items/{itemID}/reservations.
// Quantity defaults to 1 when omitted.
type CreateReservationRequest struct {
	Quantity *int `json:"quantity"`
}

func (r *CreateReservationRequest) QuantityOrDefault() int {
	if r.Quantity == nil {
		return 1
	}
	return *r.Quantity
}

// UpdateReservationRequest is the body of PUT /reservations/{reservationID}.
type UpdateReservationRequest struct {
	Status ReservationStatus `json:"status"`
}

func (r *UpdateReservationRequest) Validate() error {
	switch r.Status {
	case StatusCommitted, StatusCancelled:
		return nil
	case "":
		return dErrors.New(dErrors.CodeInvalidArgument, "status is required")
	default:
		return dErrors.New(dErrors.CodeInvalidArgument, "status must be committed or cancelled")
	}
}

// ReservationFilter scopes reservation listings. Zero values match everything.
type ReservationFilter struct {
	ItemID *id.ItemID
	Status ReservationStatus
}

// Matches reports whether r satisfies the filter.
func (f ReservationFilter) Matches(r *Reservation) bool {
	if f.ItemID != nil && r.ItemID != *f.ItemID {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	return true
}
