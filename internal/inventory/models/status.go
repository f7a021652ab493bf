package models

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	StatusPending   ReservationStatus = "pending"
	StatusCommitted ReservationStatus = "committed"
	StatusCancelled ReservationStatus = "cancelled"
	StatusExpired   ReservationStatus = "expired"
)

// IsValid reports whether s is a known status.
func (s ReservationStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusCommitted, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s ReservationStatus) IsTerminal() bool {
	return s == StatusCommitted || s == StatusCancelled || s == StatusExpired
}

// CanTransitionTo reports whether moving from s to target is allowed.
func (s ReservationStatus) CanTransitionTo(target ReservationStatus) bool {
	return s == StatusPending && target.IsTerminal()
}
