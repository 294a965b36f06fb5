package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	ErrSlotNotFound = errors.New("slot not found")

	ErrSlotUnavailable = errors.New("slot is not available")

	ErrNoBooking = errors.New("no booking references the slot")
)
