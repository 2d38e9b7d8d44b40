package utils

import (
	"github.com/google/uuid"

	"github.com/iliyamo/event-seat-inventory/internal/model"
)

// Bounds for the number of seats an event may be created with.
const (
	MinTotalSeats = 10
	MaxTotalSeats = 1000
)

// IsTotalSeatsValid reports whether n is within [MinTotalSeats, MaxTotalSeats].
func IsTotalSeatsValid(n int) bool {
	return n >= MinTotalSeats && n <= MaxTotalSeats
}

// IsUserIDValid reports whether id is a canonical RFC 4122 UUID
// (8-4-4-4-12 hex with an RFC 4122 variant and version 1 through 5).
func IsUserIDValid(id string) bool {
	if len(id) != 36 {
		return false
	}
	u, err := uuid.Parse(id)
	if err != nil {
		return false
	}
	if u.Variant() != uuid.RFC4122 {
		return false
	}
	v := u.Version()
	return v >= 1 && v <= 5
}

// IsSeatAvailable reports whether status allows a new hold.
func IsSeatAvailable(status model.SeatStatus) bool {
	return status == model.SeatAvailable
}

// IsSeatHeldByUser reports whether seat is currently held by userID.
func IsSeatHeldByUser(seat model.SeatInfo, userID string) bool {
	return seat.HeldBy(userID)
}

// IsSeatHeld reports whether status is held regardless of the holder.
func IsSeatHeld(status model.SeatStatus) bool {
	return status == model.SeatHeld
}
