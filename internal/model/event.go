package model

// EventCreated is returned when a new event and its seats have been
// initialized.
type EventCreated struct {
	ID         string `json:"id"`         // random UUID identifying the event
	TotalSeats int    `json:"totalSeats"` // number of seats, seat1..seatN
}
