package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/bookline/internal/commission/domain"
	sharedApplication "github.com/felixgeelhaar/bookline/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/bookline/internal/shared/domain"
	"github.com/felixgeelhaar/bookline/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/bookline/pkg/observability"
	"github.com/google/uuid"
)

// DefaultBatchSize caps the records processed by one run.
const DefaultBatchSize = 100

// Outcome is the per-record result of a deadline run.
type Outcome string

const (
	OutcomeDeactivated        Outcome = "deactivated"
	OutcomeAlreadyDeactivated Outcome = "already_deactivated"
	OutcomeSkippedPaid        Outcome = "skipped_paid"
	OutcomeError              Outcome = "error"
)

// RecordResult describes what a run did to one commission.
type RecordResult struct {
	CommissionID uuid.UUID `json:"commissionId"`
	BookingID    uuid.UUID `json:"bookingId"`
	ProviderID   uuid.UUID `json:"providerId"`
	Outcome      Outcome   `json:"outcome"`
	Expired      bool      `json:"expired"`
	Error        string    `json:"error,omitempty"`
}

// RunSummary is the result of one deadline run.
type RunSummary struct {
	Success          bool           `json:"success"`
	ServerTime       time.Time      `json:"serverTime"`
	ExpiredCount     int            `json:"expiredCount"`
	DeactivatedCount int            `json:"deactivatedCount"`
	ErrorCount       int            `json:"errorCount"`
	UnprocessedCount int            `json:"unprocessedCount"`
	Results          []RecordResult `json:"results"`
	Error            string         `json:"error,omitempty"`
}

// DeadlineEnforcer expires overdue commissions and locks their providers
// out. Every write it makes is conditional, so concurrent or repeated runs
// converge on the same state and a run interrupted halfway is finished by
// the next one.
type DeadlineEnforcer struct {
	records      domain.RecordRepository
	availability domain.AvailabilityRepository
	audit        domain.AuditLog
	publisher    eventbus.Publisher
	clock        sharedDomain.Clock
	logger       *slog.Logger
	metrics      observability.Metrics
	batchSize    int
}

// EnforcerDeps are the collaborators of a DeadlineEnforcer. Publisher,
// Logger and Metrics are optional.
type EnforcerDeps struct {
	Records      domain.RecordRepository
	Availability domain.AvailabilityRepository
	Audit        domain.AuditLog
	Publisher    eventbus.Publisher
	Clock        sharedDomain.Clock
	Logger       *slog.Logger
	Metrics      observability.Metrics
	BatchSize    int
}

// NewDeadlineEnforcer creates an enforcer.
func NewDeadlineEnforcer(deps EnforcerDeps) *DeadlineEnforcer {
	e := &DeadlineEnforcer{
		records:      deps.Records,
		availability: deps.Availability,
		audit:        deps.Audit,
		publisher:    deps.Publisher,
		clock:        deps.Clock,
		logger:       deps.Logger,
		metrics:      deps.Metrics,
		batchSize:    deps.BatchSize,
	}
	if e.clock == nil {
		e.clock = sharedDomain.SystemClock{}
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.metrics == nil {
		e.metrics = observability.NoopMetrics{}
	}
	if e.batchSize <= 0 {
		e.batchSize = DefaultBatchSize
	}
	return e
}

// Run processes one batch of overdue commissions against the server clock.
// Per-record failures are reported in the summary and do not stop the run.
// A failure to read the batch fails the run. Cancellation stops it between
// records: the summary keeps Success false, counts the rest as unprocessed
// and is returned with an error wrapping the context's.
func (e *DeadlineEnforcer) Run(ctx context.Context) (*RunSummary, error) {
	timer := observability.StartTimer(e.metrics, observability.MetricEnforcerDuration)
	now := e.clock.Now().UTC()
	summary := &RunSummary{ServerTime: now, Results: []RecordResult{}}
	defer func() {
		e.metrics.Counter(observability.MetricEnforcerRuns, 1, observability.T("success", fmt.Sprint(summary.Success)))
		timer.Stop()
	}()

	due, err := e.records.FindOverdue(ctx, now, e.batchSize)
	if err != nil {
		summary.Error = err.Error()
		e.logger.Error("commission deadline run failed", "server_time", now, "error", err)
		return summary, fmt.Errorf("query overdue commissions: %w", err)
	}

	for i, rec := range due {
		if ctx.Err() != nil {
			summary.UnprocessedCount = len(due) - i
			break
		}
		res := e.process(ctx, rec, now)
		summary.Results = append(summary.Results, res)
		if res.Expired {
			summary.ExpiredCount++
		}
		switch res.Outcome {
		case OutcomeDeactivated:
			summary.DeactivatedCount++
		case OutcomeError:
			summary.ErrorCount++
		}
	}
	e.metrics.Counter(observability.MetricEnforcerExpired, int64(summary.ExpiredCount))
	e.metrics.Counter(observability.MetricEnforcerDeactivated, int64(summary.DeactivatedCount))
	e.metrics.Counter(observability.MetricEnforcerErrors, int64(summary.ErrorCount))

	if summary.UnprocessedCount > 0 {
		err := fmt.Errorf("run interrupted with %d of %d records unprocessed: %w", summary.UnprocessedCount, len(due), ctx.Err())
		summary.Error = err.Error()
		e.logger.Warn("commission deadline run interrupted",
			"server_time", now,
			"candidates", len(due),
			"unprocessed", summary.UnprocessedCount,
			"error", ctx.Err(),
		)
		return summary, err
	}
	summary.Success = true
	e.logger.Info("commission deadline run completed",
		"server_time", now,
		"candidates", len(due),
		"expired", summary.ExpiredCount,
		"deactivated", summary.DeactivatedCount,
		"errors", summary.ErrorCount,
	)
	return summary, nil
}

func (e *DeadlineEnforcer) process(ctx context.Context, rec *domain.Record, now time.Time) RecordResult {
	res := RecordResult{CommissionID: rec.ID, BookingID: rec.BookingID, ProviderID: rec.ProviderID}
	logger := e.logger.With("commission_id", rec.ID, "provider_id", rec.ProviderID)

	fail := func(step string, err error) RecordResult {
		res.Outcome = OutcomeError
		res.Error = fmt.Sprintf("%s: %v", step, err)
		logger.Warn("commission enforcement step failed", "step", step, "error", err)
		return res
	}

	changed, current, err := e.records.Expire(ctx, rec.ID, now)
	if err != nil {
		return fail("expire", err)
	}
	res.Expired = changed
	if !changed {
		switch current {
		case domain.StatusExpired:
			// Expired by an earlier or concurrent run; finish its remaining steps.
		case domain.StatusPaid:
			res.Outcome = OutcomeSkippedPaid
			logger.Info("commission paid before enforcement")
			return res
		default:
			return fail("expire", &domain.StatusTransitionError{Current: current, To: domain.StatusExpired})
		}
	}

	avail, err := e.availability.FindByProviderID(ctx, rec.ProviderID)
	if err != nil {
		return fail("load availability", err)
	}

	res.Outcome = OutcomeAlreadyDeactivated
	if !avail.IsDeactivatedForCommission() {
		deactivated, err := e.availability.Deactivate(ctx, rec.ProviderID, domain.DeactivationReasonCommissionOverdue, now)
		if err != nil {
			return fail("deactivate provider", err)
		}
		if deactivated {
			res.Outcome = OutcomeDeactivated
		}
	}

	exists, err := e.audit.Exists(ctx, rec.ID, domain.AuditCommissionExpired)
	if err != nil {
		return fail("check audit entry", err)
	}
	if !exists {
		entry := domain.NewExpiredEntry(rec, now, sharedApplication.ActorEnforcer, map[string]any{
			"outcome":     string(res.Outcome),
			"server_time": now,
			"amount":      rec.AmountMinor,
			"currency":    rec.Currency,
		})
		if _, err := e.audit.Append(ctx, entry); err != nil {
			return fail("append audit entry", err)
		}
	}

	if _, err := e.records.MarkEnforced(ctx, rec.ID, now); err != nil {
		return fail("mark enforced", err)
	}

	e.publish(ctx, rec, res, now)
	logger.Info("commission enforced", "outcome", res.Outcome, "expired", res.Expired)
	return res
}

func (e *DeadlineEnforcer) publish(ctx context.Context, rec *domain.Record, res RecordResult, now time.Time) {
	var events []sharedDomain.DomainEvent
	if res.Expired {
		events = append(events, domain.NewCommissionExpired(rec, now))
	}
	if res.Outcome == OutcomeDeactivated {
		events = append(events, domain.NewProviderDeactivated(rec.ProviderID, rec.ID, now))
	}
	if len(events) == 0 {
		return
	}
	sharedApplication.ApplyEventMetadata(events, sharedApplication.NewEventMetadata(sharedApplication.ActorEnforcer))
	eventbus.PublishEvents(ctx, e.publisher, e.logger, events...)
}
