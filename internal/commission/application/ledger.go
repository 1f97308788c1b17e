package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	bookingDomain "github.com/felixgeelhaar/bookline/internal/booking/domain"
	"github.com/felixgeelhaar/bookline/internal/commission/domain"
	sharedApplication "github.com/felixgeelhaar/bookline/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/bookline/internal/shared/domain"
	"github.com/felixgeelhaar/bookline/internal/shared/infrastructure/eventbus"
	"github.com/google/uuid"
)

// CommissionPolicy sets how much a provider owes and by when.
type CommissionPolicy struct {
	// Window is the time between completion and the payment deadline.
	Window time.Duration
	// RateBasisPoints is the platform fee as 1/100 of a percent of the price.
	RateBasisPoints int
}

// Ledger opens and settles commission records. Deadlines are always
// computed here from the server clock.
type Ledger struct {
	records   domain.RecordRepository
	audit     domain.AuditLog
	uow       sharedApplication.UnitOfWork
	policy    CommissionPolicy
	publisher eventbus.Publisher
	clock     sharedDomain.Clock
	logger    *slog.Logger
}

// NewLedger creates a ledger. uow and publisher may be nil.
func NewLedger(
	records domain.RecordRepository,
	audit domain.AuditLog,
	uow sharedApplication.UnitOfWork,
	policy CommissionPolicy,
	publisher eventbus.Publisher,
	clock sharedDomain.Clock,
	logger *slog.Logger,
) *Ledger {
	if uow == nil {
		uow = sharedApplication.NoopUnitOfWork{}
	}
	if clock == nil {
		clock = sharedDomain.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		records:   records,
		audit:     audit,
		uow:       uow,
		policy:    policy,
		publisher: publisher,
		clock:     clock,
		logger:    logger,
	}
}

// OpenForBooking creates the pending commission for a completed booking. It
// runs inside the caller's unit of work and returns the commission.opened
// event for the caller to write in that same unit of work. A second call
// for the same booking is a no-op.
func (l *Ledger) OpenForBooking(ctx context.Context, b *bookingDomain.Booking) ([]sharedDomain.DomainEvent, error) {
	if l.policy.Window <= 0 {
		return nil, fmt.Errorf("%w: payment window is not configured", domain.ErrInvalidCommission)
	}
	if b.ProviderID() == nil {
		return nil, fmt.Errorf("%w: completed booking %s has no provider", domain.ErrInvalidCommission, b.ID())
	}

	rec, err := domain.NewRecord(
		b.ID(),
		*b.ProviderID(),
		domain.CommissionAmount(b.PriceMinor(), l.policy.RateBasisPoints),
		b.Currency(),
		l.clock.Now(),
		l.policy.Window,
	)
	if err != nil {
		return nil, err
	}

	if err := l.records.Create(ctx, rec); err != nil {
		if errors.Is(err, domain.ErrCommissionExists) {
			return nil, nil
		}
		return nil, err
	}

	l.logger.Info("commission opened",
		"commission_id", rec.ID,
		"booking_id", rec.BookingID,
		"provider_id", rec.ProviderID,
		"deadline_at", rec.DeadlineAt,
	)
	return []sharedDomain.DomainEvent{domain.NewCommissionOpened(rec)}, nil
}

// Get returns a commission by id.
func (l *Ledger) Get(ctx context.Context, id uuid.UUID) (*domain.Record, error) {
	return l.records.FindByID(ctx, id)
}

// ListByProvider returns the provider's commissions, oldest first.
func (l *Ledger) ListByProvider(ctx context.Context, providerID uuid.UUID) ([]*domain.Record, error) {
	return l.records.ListByProvider(ctx, providerID)
}

// SubmitPayment records the provider's payment reference and moves the
// commission to awaiting_verification. The deadline is not extended.
func (l *Ledger) SubmitPayment(ctx context.Context, id uuid.UUID, reference string) (*domain.Record, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, fmt.Errorf("%w: payment reference is required", domain.ErrInvalidCommission)
	}
	rec, err := l.records.SubmitPayment(ctx, id, reference, l.clock.Now())
	if err != nil {
		return nil, err
	}
	l.logger.Info("commission payment submitted", "commission_id", id, "provider_id", rec.ProviderID)
	return rec, nil
}

// ConfirmPayment marks an open commission paid and audits the decision. A
// commission the enforcer has already expired cannot be paid.
func (l *Ledger) ConfirmPayment(ctx context.Context, id uuid.UUID, actor string) (*domain.Record, error) {
	if actor == "" {
		actor = sharedApplication.ActorSystem
	}
	now := l.clock.Now()

	var paid *domain.Record
	err := sharedApplication.WithUnitOfWork(ctx, l.uow, func(txCtx context.Context) error {
		rec, err := l.records.MarkPaid(txCtx, id, now)
		if err != nil {
			return err
		}
		entry := domain.NewPaidEntry(rec, now, actor, map[string]any{
			"payment_reference": rec.PaymentReference,
			"amount":            rec.AmountMinor,
			"currency":          rec.Currency,
		})
		if _, err := l.audit.Append(txCtx, entry); err != nil {
			return err
		}
		event := domain.NewCommissionPaid(rec, now)
		event.SetMetadata(sharedApplication.NewEventMetadata(actor))
		if err := eventbus.WriteEvents(txCtx, l.publisher, event); err != nil {
			return err
		}
		paid = rec
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.logger.Info("commission paid", "commission_id", id, "provider_id", paid.ProviderID, "actor", actor)
	return paid, nil
}
