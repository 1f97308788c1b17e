package domain

import (
	"time"

	sharedDomain "github.com/felixgeelhaar/bookline/internal/shared/domain"
	"github.com/google/uuid"
)

const aggregateType = "Booking"

// BookingCreated is emitted when a customer requests a booking.
type BookingCreated struct {
	sharedDomain.BaseEvent
	BookingID   uuid.UUID  `json:"booking_id"`
	CustomerID  uuid.UUID  `json:"customer_id"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

// NewBookingCreated creates a BookingCreated event.
func NewBookingCreated(b *Booking) *BookingCreated {
	return &BookingCreated{
		BaseEvent:   sharedDomain.NewBaseEvent(b.ID(), aggregateType, "booking.created", b.CreatedAt()),
		BookingID:   b.ID(),
		CustomerID:  b.CustomerID(),
		ScheduledAt: b.ScheduledAt(),
	}
}

// BookingStatusChanged is emitted after a transition was applied. The
// routing key is booking.<status>.
type BookingStatusChanged struct {
	sharedDomain.BaseEvent
	BookingID  uuid.UUID  `json:"booking_id"`
	Status     Status     `json:"status"`
	ProviderID *uuid.UUID `json:"provider_id,omitempty"`
	Reason     string     `json:"reason,omitempty"`
}

// NewBookingStatusChanged creates an event for the booking's current status.
func NewBookingStatusChanged(b *Booking) *BookingStatusChanged {
	return &BookingStatusChanged{
		BaseEvent:  sharedDomain.NewBaseEvent(b.ID(), aggregateType, "booking."+string(b.Status()), b.UpdatedAt()),
		BookingID:  b.ID(),
		Status:     b.Status(),
		ProviderID: b.ProviderID(),
		Reason:     b.CancellationReason(),
	}
}
