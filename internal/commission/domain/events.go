package domain

import (
	"time"

	sharedDomain "github.com/felixgeelhaar/bookline/internal/shared/domain"
	"github.com/google/uuid"
)

const (
	commissionAggregate = "Commission"
	providerAggregate   = "Provider"
)

// CommissionOpened is emitted when a completed booking creates an obligation.
type CommissionOpened struct {
	sharedDomain.BaseEvent
	CommissionID uuid.UUID `json:"commission_id"`
	BookingID    uuid.UUID `json:"booking_id"`
	ProviderID   uuid.UUID `json:"provider_id"`
	AmountMinor  int64     `json:"amount_minor"`
	Currency     string    `json:"currency"`
	DeadlineAt   time.Time `json:"deadline_at"`
}

func NewCommissionOpened(r *Record) *CommissionOpened {
	return &CommissionOpened{
		BaseEvent:    sharedDomain.NewBaseEvent(r.ID, commissionAggregate, "commission.opened", r.CreatedAt),
		CommissionID: r.ID,
		BookingID:    r.BookingID,
		ProviderID:   r.ProviderID,
		AmountMinor:  r.AmountMinor,
		Currency:     r.Currency,
		DeadlineAt:   r.DeadlineAt,
	}
}

// CommissionExpired is emitted after the enforcer has expired a record.
type CommissionExpired struct {
	sharedDomain.BaseEvent
	CommissionID uuid.UUID `json:"commission_id"`
	BookingID    uuid.UUID `json:"booking_id"`
	ProviderID   uuid.UUID `json:"provider_id"`
	DeadlineAt   time.Time `json:"deadline_at"`
}

func NewCommissionExpired(r *Record, at time.Time) *CommissionExpired {
	return &CommissionExpired{
		BaseEvent:    sharedDomain.NewBaseEvent(r.ID, commissionAggregate, "commission.expired", at),
		CommissionID: r.ID,
		BookingID:    r.BookingID,
		ProviderID:   r.ProviderID,
		DeadlineAt:   r.DeadlineAt,
	}
}

// CommissionPaid is emitted once a payment is confirmed.
type CommissionPaid struct {
	sharedDomain.BaseEvent
	CommissionID     uuid.UUID `json:"commission_id"`
	ProviderID       uuid.UUID `json:"provider_id"`
	PaymentReference string    `json:"payment_reference,omitempty"`
}

func NewCommissionPaid(r *Record, at time.Time) *CommissionPaid {
	return &CommissionPaid{
		BaseEvent:        sharedDomain.NewBaseEvent(r.ID, commissionAggregate, "commission.paid", at),
		CommissionID:     r.ID,
		ProviderID:       r.ProviderID,
		PaymentReference: r.PaymentReference,
	}
}

// ProviderDeactivated is emitted when the enforcer locks a provider out.
type ProviderDeactivated struct {
	sharedDomain.BaseEvent
	ProviderID   uuid.UUID `json:"provider_id"`
	CommissionID uuid.UUID `json:"commission_id"`
	Reason       string    `json:"reason"`
}

func NewProviderDeactivated(providerID, commissionID uuid.UUID, at time.Time) *ProviderDeactivated {
	return &ProviderDeactivated{
		BaseEvent:    sharedDomain.NewBaseEvent(providerID, providerAggregate, "provider.deactivated", at),
		ProviderID:   providerID,
		CommissionID: commissionID,
		Reason:       DeactivationReasonCommissionOverdue,
	}
}

// ProviderReactivated is emitted after an out-of-band reactivation.
type ProviderReactivated struct {
	sharedDomain.BaseEvent
	ProviderID uuid.UUID `json:"provider_id"`
	Note       string    `json:"note,omitempty"`
}

func NewProviderReactivated(providerID uuid.UUID, note string, at time.Time) *ProviderReactivated {
	return &ProviderReactivated{
		BaseEvent:  sharedDomain.NewBaseEvent(providerID, providerAggregate, "provider.reactivated", at),
		ProviderID: providerID,
		Note:       note,
	}
}
