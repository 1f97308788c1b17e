package domain

import (
	"fmt"
	"strings"
	"time"

	sharedDomain "github.com/felixgeelhaar/bookline/internal/shared/domain"
	"github.com/google/uuid"
)

// Booking is one customer-provider service engagement.
type Booking struct {
	sharedDomain.BaseAggregateRoot
	status             Status
	customerID         uuid.UUID
	providerID         *uuid.UUID
	serviceDuration    time.Duration
	scheduledAt        *time.Time
	cancellationReason string
	priceMinor         int64
	currency           string
}

// NewBookingParams describes a booking requested by a customer.
type NewBookingParams struct {
	CustomerID      uuid.UUID
	ServiceDuration time.Duration
	// ScheduledAt is nil for immediate bookings.
	ScheduledAt *time.Time
	PriceMinor  int64
	Currency    string
}

// NewBooking creates a booking awaiting a provider.
func NewBooking(p NewBookingParams, at time.Time) (*Booking, error) {
	if p.CustomerID == uuid.Nil {
		return nil, fmt.Errorf("%w: customer is required", ErrInvalidBooking)
	}
	if p.ServiceDuration <= 0 {
		return nil, fmt.Errorf("%w: service duration must be positive", ErrInvalidBooking)
	}
	if p.PriceMinor < 0 {
		return nil, fmt.Errorf("%w: price cannot be negative", ErrInvalidBooking)
	}
	currency := strings.ToUpper(strings.TrimSpace(p.Currency))
	if len(currency) != 3 {
		return nil, fmt.Errorf("%w: currency must be an ISO 4217 code", ErrInvalidBooking)
	}

	b := &Booking{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(uuid.New(), at),
		status:            StatusPendingAccept,
		customerID:        p.CustomerID,
		serviceDuration:   p.ServiceDuration,
		priceMinor:        p.PriceMinor,
		currency:          currency,
	}
	if p.ScheduledAt != nil {
		s := p.ScheduledAt.UTC()
		b.scheduledAt = &s
	}

	b.AddDomainEvent(NewBookingCreated(b))
	return b, nil
}

// Snapshot is the persisted form of a booking.
type Snapshot struct {
	ID                 uuid.UUID
	Status             Status
	CustomerID         uuid.UUID
	ProviderID         *uuid.UUID
	ServiceDuration    time.Duration
	ScheduledAt        *time.Time
	CancellationReason string
	PriceMinor         int64
	Currency           string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// RehydrateBooking rebuilds a booking from storage.
func RehydrateBooking(s Snapshot) *Booking {
	return &Booking{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(
			sharedDomain.RehydrateBaseEntity(s.ID, s.CreatedAt, s.UpdatedAt),
		),
		status:             s.Status,
		customerID:         s.CustomerID,
		providerID:         s.ProviderID,
		serviceDuration:    s.ServiceDuration,
		scheduledAt:        s.ScheduledAt,
		cancellationReason: s.CancellationReason,
		priceMinor:         s.PriceMinor,
		currency:           s.Currency,
	}
}

func (b *Booking) Status() Status                 { return b.status }
func (b *Booking) CustomerID() uuid.UUID          { return b.customerID }
func (b *Booking) ProviderID() *uuid.UUID         { return b.providerID }
func (b *Booking) ServiceDuration() time.Duration { return b.serviceDuration }
func (b *Booking) ScheduledAt() *time.Time        { return b.scheduledAt }
func (b *Booking) CancellationReason() string     { return b.cancellationReason }
func (b *Booking) PriceMinor() int64              { return b.priceMinor }
func (b *Booking) Currency() string               { return b.currency }

// IsImmediate reports whether the booking has no scheduled time.
func (b *Booking) IsImmediate() bool {
	return b.scheduledAt == nil
}

// Snapshot returns the persisted form of b.
func (b *Booking) Snapshot() Snapshot {
	return Snapshot{
		ID:                 b.ID(),
		Status:             b.status,
		CustomerID:         b.customerID,
		ProviderID:         b.providerID,
		ServiceDuration:    b.serviceDuration,
		ScheduledAt:        b.scheduledAt,
		CancellationReason: b.cancellationReason,
		PriceMinor:         b.priceMinor,
		Currency:           b.currency,
		CreatedAt:          b.CreatedAt(),
		UpdatedAt:          b.UpdatedAt(),
	}
}

// TransitionTo moves the booking along a legal edge. On an illegal edge
// the booking is left untouched.
func (b *Booking) TransitionTo(target Status, at time.Time) error {
	if !target.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, target)
	}
	if !b.status.CanTransitionTo(target) {
		return &TransitionError{From: b.status, To: target}
	}

	b.status = target
	b.Touch(at)
	b.AddDomainEvent(NewBookingStatusChanged(b))
	return nil
}

// AssignProvider records the provider who accepted.
func (b *Booking) AssignProvider(providerID uuid.UUID) {
	b.providerID = &providerID
}

// SetCancellationReason records why the booking was cancelled.
func (b *Booking) SetCancellationReason(reason string) {
	b.cancellationReason = strings.TrimSpace(reason)
}
