package model

// SeatStatus is the lifecycle state of a seat within an event.  The
// string values are stored verbatim in Redis and must not change.
type SeatStatus string

const (
	SeatAvailable SeatStatus = "available"
	SeatHeld      SeatStatus = "held"
	SeatReserved  SeatStatus = "reserved"
)

// SeatInfo is the record stored for every seat in the event hash
// (event:{eventId}, field = seat label).  It is serialized as
// {"status":...,"userId":...} with userId null while the seat is
// available.  Status is empty when no record exists; UserID is the holder
// or owner and nil for available or missing seats.
type SeatInfo struct {
	Status SeatStatus `json:"status"`
	UserID *string    `json:"userId"`
}

// HeldBy reports whether the seat is held by userID.
func (s SeatInfo) HeldBy(userID string) bool {
	return s.Status == SeatHeld && s.UserID != nil && *s.UserID == userID
}

// OperationResult is returned by hold, reserve and refresh on success.
type OperationResult struct {
	Status string `json:"status"` // always "success"
	SeatID string `json:"seatId"`
	UserID string `json:"userId"`
}

// SeatView combines a seat record with the state of its hold marker.  It
// backs the single-seat lookup endpoint.
type SeatView struct {
	SeatID         string     `json:"seatId"`
	Status         SeatStatus `json:"status"`
	UserID         *string    `json:"userId"`
	HoldTTLSeconds int64      `json:"holdTtlSeconds"` // 0 when no hold marker exists
}
