package handler

import (
	"time"

	"stash/internal/inventory/models"
	id "stash/pkg/domain"
)

// ItemResponse is the JSON representation of an item.
type ItemResponse struct {
	ID           string            `json:"id"`
	Href         string            `json:"href"`
	Reservations string            `json:"reservations"`
	Metadata     map[string]string `json:"metadata"`
	Tags         []string          `json:"tags"`
	Capacity     int               `json:"capacity"`
	Available    int               `json:"available"`
	Committed    int               `json:"committed"`
	CreatedAt    time.Time         `json:"created_at"`
}

// ReservationResponse is the JSON representation of a reservation.
type ReservationResponse struct {
	ID        string    `json:"id"`
	Href      string    `json:"href"`
	ItemID    string    `json:"item_id"`
	Item      string    `json:"item"`
	Quantity  int       `json:"quantity"`
	Status    string    `json:"status"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func itemHref(itemID id.ItemID) string {
	return "/items/" + itemID.String()
}

func reservationHref(reservationID id.ReservationID) string {
	return "/reservations/" + reservationID.String()
}

func FromItem(item *models.Item) ItemResponse {
	metadata := item.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	tags := item.Tags
	if tags == nil {
		tags = []string{}
	}
	return ItemResponse{
		ID:           item.ID.String(),
		Href:         itemHref(item.ID),
		Reservations: itemHref(item.ID) + "/reservations",
		Metadata:     metadata,
		Tags:         tags,
		Capacity:     item.Capacity,
		Available:    item.Available,
		Committed:    item.Committed,
		CreatedAt:    item.CreatedAt.UTC(),
	}
}

func FromItems(items []*models.Item) []ItemResponse {
	out := make([]ItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, FromItem(item))
	}
	return out
}

func FromReservation(r *models.Reservation) ReservationResponse {
	return ReservationResponse{
		ID:        r.ID.String(),
		Href:      reservationHref(r.ID),
		ItemID:    r.ItemID.String(),
		Item:      itemHref(r.ItemID),
		Quantity:  r.Quantity,
		Status:    string(r.Status),
		ExpiresAt: r.ExpiresAt.UTC(),
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func FromReservations(rs []*models.Reservation) []ReservationResponse {
	out := make([]ReservationResponse, 0, len(rs))
	for _, r := range rs {
		out = append(out, FromReservation(r))
	}
	return out
}
