package model

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

var (
	ErrEventNotFound        = fmt.Errorf("event %w", ErrNotFound)
	ErrTicketNotFound       = fmt.Errorf("ticket type %w", ErrNotFound)
	ErrRegistrationNotFound = fmt.Errorf("active registration %w", ErrNotFound)
)

// ErrAlreadyRegistered is returned when the user already holds an active
// registration for the event.
var ErrAlreadyRegistered = errors.New("user already registered for this event")

// ErrEventFull is returned when the event or tier has no remaining capacity.
var ErrEventFull = errors.New("event is fully booked")

// ErrInsufficientCapacity is returned when a multi-ticket purchase asks
// for more tickets than remain.
var ErrInsufficientCapacity = errors.New("insufficient capacity")

var (
	ErrInvalidQuantity = errors.New("invalid quantity")
	ErrInvalidPrice    = errors.New("invalid price")
	ErrEventClosed     = errors.New("event is not open for registration")
	ErrValidation      = errors.New("validation failed")
)

// CapacityError reports how many tickets were actually available when a
// purchase was refused.
type CapacityError struct {
	TicketType string
	Requested  int
	Available  int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("insufficient capacity for %s: requested %d, only %d available",
		e.TicketType, e.Requested, e.Available)
}

func (e *CapacityError) Unwrap() error {
	return ErrInsufficientCapacity
}
