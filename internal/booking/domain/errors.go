package domain

import (
	"errors"
	"fmt"
)

var (
	ErrBookingNotFound   = errors.New("booking not found")
	ErrInvalidTransition = errors.New("invalid booking transition")
	ErrInvalidStatus     = errors.New("invalid booking status")
	ErrInvalidAction     = errors.New("invalid booking action")
	ErrInvalidBooking    = errors.New("invalid booking")
)

// TransitionError describes a rejected edge. It matches ErrInvalidTransition.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s", ErrInvalidTransition, e.From, e.To)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// IsStale reports whether err means the requested change has been
// superseded by the booking's current state. Stale failures are final.
func IsStale(err error) bool {
	return errors.Is(err, ErrInvalidTransition) || errors.Is(err, ErrBookingNotFound)
}
