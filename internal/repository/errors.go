// Package repository holds the seat lifecycle engine.  The sentinel errors
// below let handlers distinguish client mistakes and lost races from store
// failures.  Their messages are part of the HTTP contract and are returned
// to clients verbatim.
package repository

import "errors"

// ErrInvalidTotalSeats is returned when an event is created with a seat
// count outside [10, 1000].
var ErrInvalidTotalSeats = errors.New("Total seats must be between 10 and 1,000.")

// ErrInvalidUserID is returned before any store access when a userId is
// not an RFC 4122 UUID.
var ErrInvalidUserID = errors.New("Invalid userId format. Must be a valid UUID.")

// ErrSeatNotAvailableOrHeld is returned by HoldSeat when the seat is not
// available (held, reserved or unknown).
var ErrSeatNotAvailableOrHeld = errors.New("Seat not available or already held")

// ErrCannotReserveSeat is returned when the caller does not hold the seat.
var ErrCannotReserveSeat = errors.New("Cannot reserve seat: not held by user")

// ErrCannotRefreshHold is returned when the caller does not hold the seat.
var ErrCannotRefreshHold = errors.New("Cannot refresh hold: not held by user")

// ErrTransactionFailed signals that another writer modified the event
// between WATCH and EXEC.  The engine does not retry; callers decide.
var ErrTransactionFailed = errors.New("Transaction failed")

// ErrSeatNotFound is returned by SeatView when the event has no record for
// the seat.
var ErrSeatNotFound = errors.New("seat not found")
