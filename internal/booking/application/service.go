package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/bookline/internal/booking/domain"
	sharedApplication "github.com/felixgeelhaar/bookline/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/bookline/internal/shared/domain"
	"github.com/felixgeelhaar/bookline/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/bookline/pkg/observability"
	"github.com/google/uuid"
)

// CommissionOpener opens the provider's commission obligation for a
// booking that has just completed. It runs inside the completing unit of
// work and returns the events to write alongside the transition.
type CommissionOpener interface {
	OpenForBooking(ctx context.Context, b *domain.Booking) ([]sharedDomain.DomainEvent, error)
}

// Service applies booking lifecycle changes through the repository's
// conditional update. The store decides legality; the service never reads
// the status first and writes second.
type Service struct {
	repo      domain.Repository
	uow       sharedApplication.UnitOfWork
	opener    CommissionOpener
	publisher eventbus.Publisher
	clock     sharedDomain.Clock
	logger    *slog.Logger
	metrics   observability.Metrics
}

// NewService creates a booking service. opener and publisher may be nil.
func NewService(
	repo domain.Repository,
	uow sharedApplication.UnitOfWork,
	opener CommissionOpener,
	publisher eventbus.Publisher,
	clock sharedDomain.Clock,
	logger *slog.Logger,
) *Service {
	if uow == nil {
		uow = sharedApplication.NoopUnitOfWork{}
	}
	if clock == nil {
		clock = sharedDomain.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		uow:       uow,
		opener:    opener,
		publisher: publisher,
		clock:     clock,
		logger:    logger,
		metrics:   observability.NoopMetrics{},
	}
}

// WithMetrics sets the transition metrics sink.
func (s *Service) WithMetrics(m observability.Metrics) *Service {
	if m != nil {
		s.metrics = m
	}
	return s
}

// CreateBookingCommand carries a customer's booking request.
type CreateBookingCommand struct {
	CustomerID      uuid.UUID
	ServiceDuration time.Duration
	ScheduledAt     *time.Time
	PriceMinor      int64
	Currency        string
}

// Create stores a new booking in pending_accept.
func (s *Service) Create(ctx context.Context, cmd CreateBookingCommand) (*domain.Booking, error) {
	b, err := domain.NewBooking(domain.NewBookingParams{
		CustomerID:      cmd.CustomerID,
		ServiceDuration: cmd.ServiceDuration,
		ScheduledAt:     cmd.ScheduledAt,
		PriceMinor:      cmd.PriceMinor,
		Currency:        cmd.Currency,
	}, s.clock.Now())
	if err != nil {
		return nil, err
	}

	err = sharedApplication.WithUnitOfWork(ctx, s.uow, func(txCtx context.Context) error {
		if err := s.repo.Create(txCtx, b); err != nil {
			return fmt.Errorf("create booking: %w", err)
		}
		events := b.DomainEvents()
		sharedApplication.ApplyEventMetadata(events, sharedApplication.NewEventMetadata("customer:"+cmd.CustomerID.String()))
		return eventbus.WriteEvents(txCtx, s.publisher, events...)
	})
	if err != nil {
		return nil, err
	}
	b.ClearDomainEvents()

	s.logger.Info("booking created", "booking_id", b.ID(), "customer_id", cmd.CustomerID)
	return b, nil
}

// Get returns a booking by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	return s.repo.FindByID(ctx, id)
}

// Accept assigns the booking to providerID if it still awaits a provider.
func (s *Service) Accept(ctx context.Context, bookingID, providerID uuid.UUID) (*domain.Booking, error) {
	return s.Decide(ctx, domain.ActionAccept, bookingID, providerID, "")
}

// Reject cancels the booking with reason if it still awaits a provider.
func (s *Service) Reject(ctx context.Context, bookingID, providerID uuid.UUID, reason string) (*domain.Booking, error) {
	return s.Decide(ctx, domain.ActionReject, bookingID, providerID, reason)
}

// Decide applies a provider action. Replays and decisions that lost a race
// fail with ErrInvalidTransition.
func (s *Service) Decide(ctx context.Context, action domain.Action, bookingID, providerID uuid.UUID, reason string) (*domain.Booking, error) {
	if !action.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidAction, action)
	}
	if providerID == uuid.Nil {
		return nil, fmt.Errorf("%w: provider is required", domain.ErrInvalidAction)
	}

	req := domain.TransitionRequest{
		BookingID: bookingID,
		To:        action.Target(),
		Sources:   domain.ActionSources(action),
		At:        s.clock.Now(),
	}
	if action == domain.ActionAccept {
		req.ProviderID = &providerID
	} else {
		req.Reason = reason
	}

	return s.apply(ctx, req, "provider:"+providerID.String())
}

// Advance applies a system transition such as arrival, completion,
// cancellation or expiry.
func (s *Service) Advance(ctx context.Context, bookingID uuid.UUID, target domain.Status, reason string) (*domain.Booking, error) {
	if !target.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, target)
	}
	if target == domain.StatusTherapistAccepted {
		return nil, fmt.Errorf("%w: acceptance requires a provider decision", domain.ErrInvalidAction)
	}

	return s.apply(ctx, domain.TransitionRequest{
		BookingID: bookingID,
		To:        target,
		Sources:   domain.LegalSources(target),
		Reason:    reason,
		At:        s.clock.Now(),
	}, sharedApplication.ActorSystem)
}

func (s *Service) apply(ctx context.Context, req domain.TransitionRequest, actor string) (*domain.Booking, error) {
	var updated *domain.Booking

	// The status change, the commission it opens and their events commit
	// or roll back together.
	err := sharedApplication.WithUnitOfWork(ctx, s.uow, func(txCtx context.Context) error {
		b, err := s.repo.Transition(txCtx, req)
		if err != nil {
			return err
		}
		events := []sharedDomain.DomainEvent{domain.NewBookingStatusChanged(b)}
		if b.Status() == domain.StatusCompleted && s.opener != nil {
			opened, err := s.opener.OpenForBooking(txCtx, b)
			if err != nil {
				return fmt.Errorf("open commission: %w", err)
			}
			events = append(events, opened...)
		}
		sharedApplication.ApplyEventMetadata(events, sharedApplication.NewEventMetadata(actor))
		if err := eventbus.WriteEvents(txCtx, s.publisher, events...); err != nil {
			return err
		}
		updated = b
		return nil
	})
	if err != nil {
		if domain.IsStale(err) {
			s.metrics.Counter(observability.MetricBookingRejected, 1, observability.T("target", string(req.To)))
		}
		s.logger.Debug("booking transition rejected",
			"booking_id", req.BookingID,
			"target", req.To,
			"error", err,
		)
		return nil, err
	}

	s.metrics.Counter(observability.MetricBookingTransitions, 1, observability.T("target", string(updated.Status())))

	s.logger.Info("booking transitioned",
		"booking_id", updated.ID(),
		"status", updated.Status(),
		"actor", actor,
	)
	return updated, nil
}
