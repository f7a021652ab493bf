// Package events publishes inventory lifecycle events.
//
// Events are emitted after a mutation has been persisted and its item lock
// released. Publishing is best effort: a failing sink is logged and never
// turns a successful mutation into an error.
package events

import (
	"context"
	"time"

	"stash/internal/inventory/models"
)

// Type names a lifecycle transition.
type Type string

const (
	ItemCreated          Type = "item.created"
	ReservationCreated   Type = "reservation.created"
	ReservationCommitted Type = "reservation.committed"
	ReservationCancelled Type = "reservation.cancelled"
	ReservationExpired   Type = "reservation.expired"
)

// Event is transport agnostic so sinks can fan out.
type Event struct {
	Type          Type      `json:"type"`
	ItemID        string    `json:"item_id"`
	ReservationID string    `json:"reservation_id,omitempty"`
	Quantity      int       `json:"quantity,omitempty"`
	Status        string    `json:"status,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	RequestID     string    `json:"request_id,omitempty"`
}

// Key partitions events by item so one item's events stay ordered.
func (e Event) Key() string {
	return e.ItemID
}

// Publisher delivers events to a sink.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// ForItem builds an item.created event.
func ForItem(item *models.Item, requestID string) Event {
	return Event{
		Type:      ItemCreated,
		ItemID:    item.ID.String(),
		Quantity:  item.Capacity,
		Timestamp: item.CreatedAt,
		RequestID: requestID,
	}
}

// ForReservation builds the event matching the reservation's current status.
func ForReservation(r *models.Reservation, requestID string) Event {
	return Event{
		Type:          reservationType(r.Status),
		ItemID:        r.ItemID.String(),
		ReservationID: r.ID.String(),
		Quantity:      r.Quantity,
		Status:        string(r.Status),
		Timestamp:     r.UpdatedAt,
		RequestID:     requestID,
	}
}

func reservationType(status models.ReservationStatus) Type {
	switch status {
	case models.StatusCommitted:
		return ReservationCommitted
	case models.StatusCancelled:
		return ReservationCancelled
	case models.StatusExpired:
		return ReservationExpired
	default:
		return ReservationCreated
	}
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
