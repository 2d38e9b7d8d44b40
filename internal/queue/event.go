// Package queue defines message payloads exchanged over the message broker
// and the background consumer that audits them.
package queue

import "time"

// Seat lifecycle event types.
const (
	SeatHeld          = "seat.held"
	SeatReserved      = "seat.reserved"
	SeatHoldRefreshed = "seat.hold_refreshed"
	SeatReleased      = "seat.released"
)

// DefaultQueueName is the durable queue seat events are published to.
const DefaultQueueName = "seat.events"

// SeatEvent is published after a seat transition has been committed.  It
// carries enough information for downstream consumers to log, notify or
// feed analytics without reading the store.
type SeatEvent struct {
	Type       string `json:"type"`
	EventID    string `json:"event_id"`
	SeatID     string `json:"seat_id"`
	UserID     string `json:"user_id,omitempty"` // empty for releases
	OccurredAt string `json:"occurred_at"`       // RFC 3339, UTC
}

// NewSeatEvent stamps a SeatEvent with the current UTC time.
func NewSeatEvent(typ, eventID, seatID, userID string) SeatEvent {
	return SeatEvent{
		Type:       typ,
		EventID:    eventID,
		SeatID:     seatID,
		UserID:     userID,
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	}
}
