package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/bookline/internal/commission/domain"
	sharedApplication "github.com/felixgeelhaar/bookline/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/bookline/internal/shared/domain"
	"github.com/felixgeelhaar/bookline/internal/shared/infrastructure/eventbus"
	"github.com/google/uuid"
)

// Reactivator lifts a commission lockout after the debt is settled out of
// band. It fails closed: any doubt about outstanding commissions keeps the
// provider locked out.
type Reactivator struct {
	records      domain.RecordRepository
	availability domain.AvailabilityRepository
	audit        domain.AuditLog
	uow          sharedApplication.UnitOfWork
	publisher    eventbus.Publisher
	clock        sharedDomain.Clock
	logger       *slog.Logger
}

// NewReactivator creates a reactivator. uow and publisher may be nil.
func NewReactivator(
	records domain.RecordRepository,
	availability domain.AvailabilityRepository,
	audit domain.AuditLog,
	uow sharedApplication.UnitOfWork,
	publisher eventbus.Publisher,
	clock sharedDomain.Clock,
	logger *slog.Logger,
) *Reactivator {
	if uow == nil {
		uow = sharedApplication.NoopUnitOfWork{}
	}
	if clock == nil {
		clock = sharedDomain.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reactivator{
		records:      records,
		availability: availability,
		audit:        audit,
		uow:          uow,
		publisher:    publisher,
		clock:        clock,
		logger:       logger,
	}
}

// ReactivateCommand identifies the provider and who is lifting the lockout.
type ReactivateCommand struct {
	ProviderID uuid.UUID
	Actor      string
	Note       string
}

// Reactivate clears the commission_overdue lockout. The provider comes back
// offline with both flags enabled and has to go available on its own.
func (r *Reactivator) Reactivate(ctx context.Context, cmd ReactivateCommand) (*domain.ProviderAvailability, error) {
	if cmd.Actor == "" {
		cmd.Actor = sharedApplication.ActorSystem
	}
	now := r.clock.Now()
	logger := r.logger.With("provider_id", cmd.ProviderID, "actor", cmd.Actor)

	var restored *domain.ProviderAvailability
	err := sharedApplication.WithUnitOfWork(ctx, r.uow, func(txCtx context.Context) error {
		avail, err := r.availability.FindByProviderID(txCtx, cmd.ProviderID)
		if err != nil {
			return err
		}
		if !avail.IsDeactivatedForCommission() {
			return domain.ErrProviderNotDeactivated
		}

		blocking, err := r.records.CountBlocking(txCtx, cmd.ProviderID, now)
		if err != nil {
			return fmt.Errorf("%w: outstanding commissions could not be checked: %v", domain.ErrReactivationBlocked, err)
		}
		if blocking > 0 {
			return fmt.Errorf("%w: %d overdue commission(s) outstanding", domain.ErrReactivationBlocked, blocking)
		}

		changed, err := r.availability.Reactivate(txCtx, cmd.ProviderID, domain.DeactivationReasonCommissionOverdue, now)
		if err != nil {
			return err
		}
		if !changed {
			return domain.ErrProviderNotDeactivated
		}

		entry := domain.NewReactivatedEntry(cmd.ProviderID, now, cmd.Actor, map[string]any{
			"previous_reason": domain.DeactivationReasonCommissionOverdue,
			"note":            cmd.Note,
		})
		if _, err := r.audit.Append(txCtx, entry); err != nil {
			return err
		}

		event := domain.NewProviderReactivated(cmd.ProviderID, cmd.Note, now)
		event.SetMetadata(sharedApplication.NewEventMetadata(cmd.Actor))
		if err := eventbus.WriteEvents(txCtx, r.publisher, event); err != nil {
			return err
		}

		restored, err = r.availability.FindByProviderID(txCtx, cmd.ProviderID)
		return err
	})
	if err != nil {
		logger.Warn("provider reactivation refused", "error", err)
		return nil, err
	}

	logger.Info("provider reactivated")
	return restored, nil
}
