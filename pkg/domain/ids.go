// Package domain holds identifier types shared across modules.
//
// IDs are distinct named types over uuid.UUID so an ItemID can never be passed
// where a ReservationID is expected. Their string form is the canonical
// hyphenated UUID, which is safe to embed in URLs.
package domain

import (
	"github.com/google/uuid"

	dErrors "stash/pkg/domain-errors"
)

type (
	ItemID        uuid.UUID
	ReservationID uuid.UUID
)

// NewItemID returns a fresh random ItemID.
func NewItemID() ItemID { return ItemID(uuid.New()) }

// NewReservationID returns a fresh random ReservationID.
func NewReservationID() ReservationID { return ReservationID(uuid.New()) }

func (i ItemID) String() string { return uuid.UUID(i).String() }
func (i ItemID) IsNil() bool    { return uuid.UUID(i) == uuid.Nil }

func (i ItemID) MarshalText() ([]byte, error) { return uuid.UUID(i).MarshalText() }

func (i *ItemID) UnmarshalText(data []byte) error {
	parsed, err := ParseItemID(string(data))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}

func (r ReservationID) String() string { return uuid.UUID(r).String() }
func (r ReservationID) IsNil() bool    { return uuid.UUID(r) == uuid.Nil }

func (r ReservationID) MarshalText() ([]byte, error) { return uuid.UUID(r).MarshalText() }

func (r *ReservationID) UnmarshalText(data []byte) error {
	parsed, err := ParseReservationID(string(data))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseItemID validates an item identifier at a trust boundary.
func ParseItemID(s string) (ItemID, error) {
	u, err := parseUUID(s, "item_id")
	return ItemID(u), err
}

// ParseReservationID validates a reservation identifier at a trust boundary.
func ParseReservationID(s string) (ReservationID, error) {
	u, err := parseUUID(s, "reservation_id")
	return ReservationID(u), err
}

func parseUUID(s, field string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidArgument, field+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidArgument, "invalid "+field)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidArgument, field+" cannot be nil")
	}
	return u, nil
}
