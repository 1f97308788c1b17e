package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TransitionRequest is a conditional status update. It is applied only if
// the stored status is one of Sources.
type TransitionRequest struct {
	BookingID uuid.UUID
	To        Status
	Sources   []Status
	// ProviderID is recorded on accept.
	ProviderID *uuid.UUID
	// Reason is recorded on cancellation.
	Reason string
	At     time.Time
}

// Repository persists bookings. Implementations must apply Transition as a
// single conditional write and must not modify the record when the
// precondition fails.
type Repository interface {
	Create(ctx context.Context, b *Booking) error
	// FindByID returns ErrBookingNotFound when no booking has id.
	FindByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	// Transition returns the updated booking, ErrBookingNotFound, or a
	// *TransitionError carrying the stored status.
	Transition(ctx context.Context, req TransitionRequest) (*Booking, error)
}
