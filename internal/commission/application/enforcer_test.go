package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/bookline/internal/commission/domain"
	"github.com/felixgeelhaar/bookline/internal/commission/infrastructure/persistence"
	sharedApplication "github.com/felixgeelhaar/bookline/internal/shared/application"
	"github.com/felixgeelhaar/bookline/internal/shared/infrastructure/eventbus"
	sharedPersistence "github.com/felixgeelhaar/bookline/internal/shared/infrastructure/persistence"
	"github.com/felixgeelhaar/bookline/internal/testutil"
	"github.com/felixgeelhaar/bookline/pkg/observability"
)

var t0 = time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)

type fixture struct {
	records      *persistence.SQLiteRecordRepository
	availability *persistence.SQLiteAvailabilityRepository
	audit        *persistence.SQLiteAuditLog
	uow          sharedApplication.UnitOfWork
	clock        *testutil.FakeClock
	pub          *eventbus.MemoryPublisher
	metrics      *observability.InMemoryMetrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.OpenRecordStore(t)
	return &fixture{
		records:      persistence.NewSQLiteRecordRepository(db, "commission_records"),
		availability: persistence.NewSQLiteAvailabilityRepository(db, "provider_availability"),
		audit:        persistence.NewSQLiteAuditLog(db, "audit_logs"),
		uow:          sharedPersistence.NewSQLiteUnitOfWork(db),
		clock:        testutil.NewFakeClock(t0),
		pub:          eventbus.NewMemoryPublisher(),
		metrics:      observability.NewInMemoryMetrics(),
	}
}

func (f *fixture) enforcer(records domain.RecordRepository, batch int) *DeadlineEnforcer {
	if records == nil {
		records = f.records
	}
	return NewDeadlineEnforcer(EnforcerDeps{
		Records:      records,
		Availability: f.availability,
		Audit:        f.audit,
		Publisher:    f.pub,
		Clock:        f.clock,
		Metrics:      f.metrics,
		BatchSize:    batch,
	})
}

// provider stores an available, enabled provider.
func (f *fixture) provider(t *testing.T) uuid.UUID {
	t.Helper()
	a := domain.NewProviderAvailability(uuid.New(), t0)
	a.Status = domain.AvailabilityAvailable
	require.NoError(t, f.availability.Save(context.Background(), a))
	return a.ProviderID
}

func (f *fixture) commission(t *testing.T, providerID uuid.UUID, window time.Duration) *domain.Record {
	t.Helper()
	r, err := domain.NewRecord(uuid.New(), providerID, 1500, "EUR", t0, window)
	require.NoError(t, err)
	require.NoError(t, f.records.Create(context.Background(), r))
	return r
}

func (f *fixture) auditTypes(t *testing.T, providerID uuid.UUID) []domain.AuditType {
	t.Helper()
	entries, err := f.audit.ListByProvider(context.Background(), providerID)
	require.NoError(t, err)
	types := make([]domain.AuditType, len(entries))
	for i, e := range entries {
		types[i] = e.Type
	}
	return types
}

func TestDeadlineEnforcer_ExpiresAndDeactivates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	providerID := f.provider(t)
	rec := f.commission(t, providerID, time.Hour)
	f.clock.Set(rec.DeadlineAt.Add(time.Second))

	summary, err := f.enforcer(nil, 0).Run(ctx)
	require.NoError(t, err)

	assert.True(t, summary.Success)
	assert.Equal(t, rec.DeadlineAt.Add(time.Second), summary.ServerTime)
	assert.Equal(t, 1, summary.ExpiredCount)
	assert.Equal(t, 1, summary.DeactivatedCount)
	assert.Equal(t, 0, summary.ErrorCount)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, RecordResult{
		CommissionID: rec.ID,
		BookingID:    rec.BookingID,
		ProviderID:   providerID,
		Outcome:      OutcomeDeactivated,
		Expired:      true,
	}, summary.Results[0])

	stored, err := f.records.FindByID(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusExpired, stored.Status)
	require.NotNil(t, stored.EnforcedAt)
	assert.Equal(t, summary.ServerTime, *stored.EnforcedAt)

	avail, err := f.availability.FindByProviderID(ctx, providerID)
	require.NoError(t, err)
	assert.True(t, avail.IsDeactivatedForCommission())
	assert.False(t, avail.BookingEnabled)
	assert.False(t, avail.ScheduleEnabled)
	assert.Equal(t, domain.AvailabilityBusy, avail.Status)
	assert.False(t, avail.CanReceiveBookings())

	entries, err := f.audit.ListByProvider(ctx, providerID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.AuditCommissionExpired, entries[0].Type)
	assert.Equal(t, "system:commission-enforcer", entries[0].Actor)
	require.NotNil(t, entries[0].CommissionID)
	assert.Equal(t, rec.ID, *entries[0].CommissionID)

	assert.Equal(t, []string{"commission.expired", "provider.deactivated"}, f.pub.RoutingKeys())
	assert.Equal(t, int64(1), f.metrics.CounterTotal(observability.MetricEnforcerExpired))
	assert.Equal(t, int64(1), f.metrics.CounterTotal(observability.MetricEnforcerDeactivated))
}

func TestDeadlineEnforcer_RepeatedRunsConverge(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p1, p2 := f.provider(t), f.provider(t)
	recs := []*domain.Record{
		f.commission(t, p1, time.Hour),
		f.commission(t, p1, 2*time.Hour),
		f.commission(t, p2, 3*time.Hour),
	}
	f.clock.Set(t0.Add(4 * time.Hour))
	enforcer := f.enforcer(nil, 0)

	first, err := enforcer.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, first.ExpiredCount)
	assert.Equal(t, 2, first.DeactivatedCount)
	assert.Equal(t, 0, first.ErrorCount)
	require.Len(t, first.Results, 3)
	assert.Equal(t, OutcomeDeactivated, first.Results[0].Outcome)
	assert.Equal(t, OutcomeAlreadyDeactivated, first.Results[1].Outcome)
	assert.Equal(t, OutcomeDeactivated, first.Results[2].Outcome)

	snapshot := make(map[uuid.UUID]time.Time)
	for _, r := range recs {
		stored, err := f.records.FindByID(ctx, r.ID)
		require.NoError(t, err)
		snapshot[r.ID] = stored.UpdatedAt
	}
	published := len(f.pub.RoutingKeys())

	for i := 0; i < 3; i++ {
		f.clock.Advance(time.Minute)
		again, err := enforcer.Run(ctx)
		require.NoError(t, err)
		assert.True(t, again.Success)
		assert.Empty(t, again.Results)
		assert.Zero(t, again.ExpiredCount)
		assert.Zero(t, again.DeactivatedCount)
	}

	for _, r := range recs {
		stored, err := f.records.FindByID(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, snapshot[r.ID], stored.UpdatedAt)
	}
	assert.Equal(t, []domain.AuditType{domain.AuditCommissionExpired, domain.AuditCommissionExpired}, f.auditTypes(t, p1))
	assert.Equal(t, []domain.AuditType{domain.AuditCommissionExpired}, f.auditTypes(t, p2))
	assert.Len(t, f.pub.RoutingKeys(), published)
}

func TestDeadlineEnforcer_UsesStrictDeadline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	providerID := f.provider(t)
	rec := f.commission(t, providerID, 24*time.Hour)
	enforcer := f.enforcer(nil, 0)

	f.clock.Set(rec.DeadlineAt)
	atDeadline, err := enforcer.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, atDeadline.Results)

	f.clock.Set(rec.DeadlineAt.Add(time.Second))
	afterDeadline, err := enforcer.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, afterDeadline.ExpiredCount)
	assert.Equal(t, 1, afterDeadline.DeactivatedCount)

	f.clock.Set(rec.DeadlineAt.Add(2 * time.Second))
	later, err := enforcer.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, later.Results)
	assert.Len(t, f.auditTypes(t, providerID), 1)
}

func TestDeadlineEnforcer_PendingVerificationStillExpires(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	providerID := f.provider(t)
	rec := f.commission(t, providerID, time.Hour)
	_, err := f.records.SubmitPayment(ctx, rec.ID, "TX-881", t0.Add(30*time.Minute))
	require.NoError(t, err)
	f.clock.Set(rec.DeadlineAt.Add(time.Minute))

	summary, err := f.enforcer(nil, 0).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ExpiredCount)
	assert.Equal(t, OutcomeDeactivated, summary.Results[0].Outcome)
}

func TestDeadlineEnforcer_PaidRecordsAreIgnored(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	providerID := f.provider(t)
	rec := f.commission(t, providerID, time.Hour)
	_, err := f.records.MarkPaid(ctx, rec.ID, t0.Add(time.Minute))
	require.NoError(t, err)
	f.clock.Set(rec.DeadlineAt.Add(time.Hour))

	summary, err := f.enforcer(nil, 0).Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, summary.Results)

	avail, err := f.availability.FindByProviderID(ctx, providerID)
	require.NoError(t, err)
	assert.True(t, avail.CanReceiveBookings())
}

func TestDeadlineEnforcer_MissingAvailabilityIsIsolated(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p1, p3 := f.provider(t), f.provider(t)
	orphan := uuid.New()
	f.commission(t, p1, time.Hour)
	missing := f.commission(t, orphan, 2*time.Hour)
	f.commission(t, p3, 3*time.Hour)
	f.clock.Set(t0.Add(4 * time.Hour))
	enforcer := f.enforcer(nil, 0)

	summary, err := enforcer.Run(ctx)
	require.NoError(t, err)
	assert.True(t, summary.Success)
	assert.Equal(t, 3, summary.ExpiredCount)
	assert.Equal(t, 2, summary.DeactivatedCount)
	assert.Equal(t, 1, summary.ErrorCount)
	require.Len(t, summary.Results, 3)
	assert.Equal(t, OutcomeError, summary.Results[1].Outcome)
	assert.Equal(t, missing.ID, summary.Results[1].CommissionID)
	assert.Contains(t, summary.Results[1].Error, "load availability")
	assert.Empty(t, f.auditTypes(t, orphan))

	// The half-processed record stays eligible until its provider exists.
	a := domain.NewProviderAvailability(orphan, t0)
	require.NoError(t, f.availability.Save(ctx, a))
	f.clock.Advance(time.Minute)

	healed, err := enforcer.Run(ctx)
	require.NoError(t, err)
	require.Len(t, healed.Results, 1)
	assert.Equal(t, missing.ID, healed.Results[0].CommissionID)
	assert.Equal(t, OutcomeDeactivated, healed.Results[0].Outcome)
	assert.False(t, healed.Results[0].Expired)
	assert.Equal(t, 0, healed.ExpiredCount)
	assert.Equal(t, []domain.AuditType{domain.AuditCommissionExpired}, f.auditTypes(t, orphan))

	stored, err := f.records.FindByID(ctx, missing.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.EnforcedAt)
}

func TestDeadlineEnforcer_OverridesOtherDeactivationReason(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := domain.NewProviderAvailability(uuid.New(), t0)
	a.BookingEnabled, a.ScheduleEnabled = false, false
	a.DeactivationReason = "manual_review"
	require.NoError(t, f.availability.Save(ctx, a))
	rec := f.commission(t, a.ProviderID, time.Hour)
	f.clock.Set(rec.DeadlineAt.Add(time.Second))

	summary, err := f.enforcer(nil, 0).Run(ctx)
	require.NoError(t, err)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, OutcomeDeactivated, summary.Results[0].Outcome)

	avail, err := f.availability.FindByProviderID(ctx, a.ProviderID)
	require.NoError(t, err)
	assert.True(t, avail.IsDeactivatedForCommission())
	assert.Contains(t, f.pub.RoutingKeys(), "provider.deactivated")
}

// payingRepository simulates a payment confirmed between the overdue query
// and the expiry write.
type payingRepository struct {
	domain.RecordRepository
}

func (r payingRepository) FindOverdue(ctx context.Context, now time.Time, limit int) ([]*domain.Record, error) {
	due, err := r.RecordRepository.FindOverdue(ctx, now, limit)
	if err != nil {
		return nil, err
	}
	for _, rec := range due {
		if _, err := r.MarkPaid(ctx, rec.ID, now); err != nil {
			return nil, err
		}
	}
	return due, nil
}

func TestDeadlineEnforcer_SkipsCommissionPaidMidRun(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	providerID := f.provider(t)
	rec := f.commission(t, providerID, time.Hour)
	f.clock.Set(rec.DeadlineAt.Add(time.Minute))

	summary, err := f.enforcer(payingRepository{f.records}, 0).Run(ctx)
	require.NoError(t, err)
	require.Len(t, summary.Results, 1)
	assert.Equal(t, OutcomeSkippedPaid, summary.Results[0].Outcome)
	assert.Zero(t, summary.ExpiredCount)
	assert.Zero(t, summary.ErrorCount)

	avail, err := f.availability.FindByProviderID(ctx, providerID)
	require.NoError(t, err)
	assert.False(t, avail.IsDeactivatedForCommission())
	assert.Empty(t, f.auditTypes(t, providerID))
	assert.Empty(t, f.pub.RoutingKeys())
}

type failingRepository struct {
	domain.RecordRepository
	err error
}

func (r failingRepository) FindOverdue(context.Context, time.Time, int) ([]*domain.Record, error) {
	return nil, r.err
}

func TestDeadlineEnforcer_QueryFailure(t *testing.T) {
	f := newFixture(t)
	storeErr := errors.New("connection refused")

	summary, err := f.enforcer(failingRepository{f.records, storeErr}, 0).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, storeErr)
	require.NotNil(t, summary)
	assert.False(t, summary.Success)
	assert.Equal(t, "connection refused", summary.Error)
	assert.Equal(t, int64(1), f.metrics.GetCounter(observability.MetricEnforcerRuns, observability.T("success", "false")))
}

func TestDeadlineEnforcer_PublishFailureIsNotAnError(t *testing.T) {
	f := newFixture(t)
	f.pub.FailWith(errors.New("broker down"))
	providerID := f.provider(t)
	rec := f.commission(t, providerID, time.Hour)
	f.clock.Set(rec.DeadlineAt.Add(time.Second))

	summary, err := f.enforcer(nil, 0).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.ErrorCount)
	assert.Equal(t, 1, summary.DeactivatedCount)
}

func TestDeadlineEnforcer_BatchSize(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	providerID := f.provider(t)
	for i := 1; i <= 3; i++ {
		f.commission(t, providerID, time.Duration(i)*time.Hour)
	}
	f.clock.Set(t0.Add(5 * time.Hour))
	enforcer := f.enforcer(nil, 2)

	first, err := enforcer.Run(ctx)
	require.NoError(t, err)
	assert.Len(t, first.Results, 2)

	second, err := enforcer.Run(ctx)
	require.NoError(t, err)
	require.Len(t, second.Results, 1)
	assert.Equal(t, OutcomeAlreadyDeactivated, second.Results[0].Outcome)

	third, err := enforcer.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, third.Results)
}

// cancellingRepository cancels the run once the first expiry is written.
type cancellingRepository struct {
	domain.RecordRepository
	cancel context.CancelFunc
}

func (r cancellingRepository) Expire(ctx context.Context, id uuid.UUID, at time.Time) (bool, domain.Status, error) {
	changed, current, err := r.RecordRepository.Expire(ctx, id, at)
	r.cancel()
	return changed, current, err
}

func TestDeadlineEnforcer_CancelledRunIsNotSuccessful(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f := newFixture(t)
	for i := 1; i <= 3; i++ {
		f.commission(t, f.provider(t), time.Duration(i)*time.Hour)
	}
	f.clock.Set(t0.Add(5 * time.Hour))

	summary, err := f.enforcer(cancellingRepository{f.records, cancel}, 0).Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, summary)
	assert.False(t, summary.Success)
	assert.Len(t, summary.Results, 1)
	assert.Equal(t, 2, summary.UnprocessedCount)
	assert.Equal(t, err.Error(), summary.Error)
	assert.Equal(t, int64(1), f.metrics.GetCounter(observability.MetricEnforcerRuns, observability.T("success", "false")))

	// The next run finishes what the interrupted one left.
	again, err := f.enforcer(nil, 0).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, again.Success)
	assert.Zero(t, again.UnprocessedCount)
	assert.Equal(t, 2, again.ExpiredCount)
}
