package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditType classifies an audit entry.
type AuditType string

const (
	AuditCommissionExpired   AuditType = "COMMISSION_EXPIRED"
	AuditCommissionPaid      AuditType = "COMMISSION_PAID"
	AuditProviderReactivated AuditType = "PROVIDER_REACTIVATED"
)

// AuditLogEntry is an append-only record of an enforcement or settlement
// decision. For commission entries the pair (CommissionID, Type) is unique
// and doubles as the idempotency witness.
type AuditLogEntry struct {
	ID           uuid.UUID
	Type         AuditType
	CommissionID *uuid.UUID
	BookingID    *uuid.UUID
	ProviderID   uuid.UUID
	DeadlineAt   *time.Time
	EnforcedAt   time.Time
	Actor        string
	Details      json.RawMessage
	CreatedAt    time.Time
}

func newEntry(t AuditType, providerID uuid.UUID, at time.Time, actor string, details map[string]any) *AuditLogEntry {
	raw, err := json.Marshal(details)
	if err != nil || details == nil {
		raw = json.RawMessage("{}")
	}
	at = at.UTC()
	return &AuditLogEntry{
		ID:         uuid.New(),
		Type:       t,
		ProviderID: providerID,
		EnforcedAt: at,
		Actor:      actor,
		Details:    raw,
		CreatedAt:  at,
	}
}

func (e *AuditLogEntry) forRecord(r *Record) *AuditLogEntry {
	commissionID, bookingID, deadline := r.ID, r.BookingID, r.DeadlineAt
	e.CommissionID = &commissionID
	e.BookingID = &bookingID
	e.DeadlineAt = &deadline
	return e
}

// NewExpiredEntry records that r was expired and its provider locked out.
func NewExpiredEntry(r *Record, at time.Time, actor string, details map[string]any) *AuditLogEntry {
	return newEntry(AuditCommissionExpired, r.ProviderID, at, actor, details).forRecord(r)
}

// NewPaidEntry records a confirmed payment of r.
func NewPaidEntry(r *Record, at time.Time, actor string, details map[string]any) *AuditLogEntry {
	return newEntry(AuditCommissionPaid, r.ProviderID, at, actor, details).forRecord(r)
}

// NewReactivatedEntry records an out-of-band reactivation.
func NewReactivatedEntry(providerID uuid.UUID, at time.Time, actor string, details map[string]any) *AuditLogEntry {
	return newEntry(AuditProviderReactivated, providerID, at, actor, details)
}
