package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RecordRepository persists commission records. Every status change is a
// single conditional write keyed on the current status.
type RecordRepository interface {
	// Create returns ErrCommissionExists if the booking already has one.
	Create(ctx context.Context, r *Record) error
	FindByID(ctx context.Context, id uuid.UUID) (*Record, error)
	// FindOverdue returns records with DeadlineAt before now that are
	// still open, or expired but not yet enforced, oldest deadline first.
	FindOverdue(ctx context.Context, now time.Time, limit int) ([]*Record, error)
	// Expire moves an open record to expired. changed is false when the
	// record was not open; current is the stored status either way.
	Expire(ctx context.Context, id uuid.UUID, at time.Time) (changed bool, current Status, err error)
	// MarkEnforced sets EnforcedAt if it is still unset.
	MarkEnforced(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	// SubmitPayment moves pending to awaiting_verification.
	SubmitPayment(ctx context.Context, id uuid.UUID, reference string, at time.Time) (*Record, error)
	// MarkPaid moves an open record to paid.
	MarkPaid(ctx context.Context, id uuid.UUID, at time.Time) (*Record, error)
	// CountBlocking counts the provider's records that keep it locked out:
	// open past the deadline, or expired and not fully enforced.
	CountBlocking(ctx context.Context, providerID uuid.UUID, now time.Time) (int, error)
	ListByProvider(ctx context.Context, providerID uuid.UUID) ([]*Record, error)
}

// AvailabilityRepository persists provider availability.
type AvailabilityRepository interface {
	Save(ctx context.Context, a *ProviderAvailability) error
	// FindByProviderID returns ErrAvailabilityNotFound when absent.
	FindByProviderID(ctx context.Context, providerID uuid.UUID) (*ProviderAvailability, error)
	// Deactivate disables the provider and records reason, replacing any
	// other reason already stored. It reports whether this call made the
	// change, so a provider already deactivated for reason reports false.
	Deactivate(ctx context.Context, providerID uuid.UUID, reason string, at time.Time) (bool, error)
	// Reactivate clears reason and restores both flags, leaving the
	// provider offline. It applies only while the stored reason is reason.
	Reactivate(ctx context.Context, providerID uuid.UUID, reason string, at time.Time) (bool, error)
}

// AuditLog is append-only.
type AuditLog interface {
	// Append reports false when an entry with the same commission and type
	// already exists.
	Append(ctx context.Context, e *AuditLogEntry) (bool, error)
	Exists(ctx context.Context, commissionID uuid.UUID, t AuditType) (bool, error)
	ListByProvider(ctx context.Context, providerID uuid.UUID) ([]*AuditLogEntry, error)
}
