package domain

import (
	"time"

	"github.com/google/uuid"
)

// AvailabilityStatus is the provider's presence state.
type AvailabilityStatus string

const (
	AvailabilityAvailable AvailabilityStatus = "available"
	AvailabilityBusy      AvailabilityStatus = "busy"
	AvailabilityOffline   AvailabilityStatus = "offline"
)

func (s AvailabilityStatus) IsValid() bool {
	switch s {
	case AvailabilityAvailable, AvailabilityBusy, AvailabilityOffline:
		return true
	}
	return false
}

// DeactivationReasonCommissionOverdue is set by the deadline enforcer. While
// present, both enabled flags stay false.
const DeactivationReasonCommissionOverdue = "commission_overdue"

// ProviderAvailability is the single source of truth for whether a provider
// can be offered bookings.
type ProviderAvailability struct {
	ProviderID         uuid.UUID
	Status             AvailabilityStatus
	BookingEnabled     bool
	ScheduleEnabled    bool
	DeactivationReason string
	DeactivatedAt      *time.Time
	UpdatedAt          time.Time
}

// NewProviderAvailability creates an enabled, offline provider.
func NewProviderAvailability(providerID uuid.UUID, at time.Time) *ProviderAvailability {
	return &ProviderAvailability{
		ProviderID:      providerID,
		Status:          AvailabilityOffline,
		BookingEnabled:  true,
		ScheduleEnabled: true,
		UpdatedAt:       at.UTC(),
	}
}

// CanReceiveBookings is the one derivation used by every reader.
func (a *ProviderAvailability) CanReceiveBookings() bool {
	return a.Status == AvailabilityAvailable && a.BookingEnabled && a.DeactivationReason == ""
}

// IsDeactivatedForCommission reports whether the enforcer has locked the
// provider out.
func (a *ProviderAvailability) IsDeactivatedForCommission() bool {
	return a.DeactivationReason == DeactivationReasonCommissionOverdue
}

// SetStatus changes presence. A deactivated provider keeps its flags off
// regardless of presence.
func (a *ProviderAvailability) SetStatus(status AvailabilityStatus, at time.Time) {
	a.Status = status
	a.UpdatedAt = at.UTC()
}
