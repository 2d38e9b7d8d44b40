package repository

import "fmt"

// Key layout shared with other deployments of the service; do not change.
const holdKeyPrefix = "hold:"

func eventKey(eventID string) string { return "event:" + eventID }

func availableSeatsKey(eventID string) string { return "event:" + eventID + ":available_seats" }

func holdKey(eventID, seatID string) string { return holdKeyPrefix + eventID + ":" + seatID }

func seatLabel(n int) string { return fmt.Sprintf("seat%d", n) }
