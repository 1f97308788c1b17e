package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Record is the platform fee a provider owes for one completed booking.
// DeadlineAt is fixed at creation from server time and never changes.
type Record struct {
	ID               uuid.UUID
	BookingID        uuid.UUID
	ProviderID       uuid.UUID
	AmountMinor      int64
	Currency         string
	Status           Status
	DeadlineAt       time.Time
	PaymentReference string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	PaidAt           *time.Time
	ExpiredAt        *time.Time
	// EnforcedAt is set once every enforcement step for an expired record
	// has completed. An expired record without it is half processed.
	EnforcedAt *time.Time
}

// NewRecord opens a pending commission for a booking completed at openedAt.
func NewRecord(bookingID, providerID uuid.UUID, amountMinor int64, currency string, openedAt time.Time, window time.Duration) (*Record, error) {
	if bookingID == uuid.Nil || providerID == uuid.Nil {
		return nil, fmt.Errorf("%w: booking and provider are required", ErrInvalidCommission)
	}
	if amountMinor < 0 {
		return nil, fmt.Errorf("%w: amount cannot be negative", ErrInvalidCommission)
	}
	if window <= 0 {
		return nil, fmt.Errorf("%w: payment window must be positive", ErrInvalidCommission)
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if len(currency) != 3 {
		return nil, fmt.Errorf("%w: currency must be an ISO 4217 code", ErrInvalidCommission)
	}

	at := openedAt.UTC()
	return &Record{
		ID:          uuid.New(),
		BookingID:   bookingID,
		ProviderID:  providerID,
		AmountMinor: amountMinor,
		Currency:    currency,
		Status:      StatusPending,
		DeadlineAt:  at.Add(window),
		CreatedAt:   at,
		UpdatedAt:   at,
	}, nil
}

// IsOverdue reports whether the deadline has passed at now while the
// obligation is still open.
func (r *Record) IsOverdue(now time.Time) bool {
	return r.Status.IsOpen() && r.DeadlineAt.Before(now)
}

// NeedsEnforcement reports whether a deadline run still has work to do for
// this record at now.
func (r *Record) NeedsEnforcement(now time.Time) bool {
	if !r.DeadlineAt.Before(now) {
		return false
	}
	return r.Status.IsOpen() || (r.Status == StatusExpired && r.EnforcedAt == nil)
}

// CommissionAmount applies a rate in basis points to a price in minor
// units, rounding half up.
func CommissionAmount(priceMinor int64, rateBasisPoints int) int64 {
	if priceMinor <= 0 || rateBasisPoints <= 0 {
		return 0
	}
	return (priceMinor*int64(rateBasisPoints) + 5000) / 10000
}
