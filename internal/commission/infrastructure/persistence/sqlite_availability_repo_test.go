package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/bookline/internal/commission/domain"
	"github.com/felixgeelhaar/bookline/internal/testutil"
)

func TestSQLiteAvailabilityRepository_SaveAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteAvailabilityRepository(testutil.OpenRecordStore(t), "provider_availability")
	a := domain.NewProviderAvailability(uuid.New(), t0)
	a.Status = domain.AvailabilityAvailable

	require.NoError(t, repo.Save(ctx, a))

	found, err := repo.FindByProviderID(ctx, a.ProviderID)
	require.NoError(t, err)
	assert.Equal(t, a, found)
	assert.True(t, found.CanReceiveBookings())

	_, err = repo.FindByProviderID(ctx, uuid.New())
	assert.ErrorIs(t, err, domain.ErrAvailabilityNotFound)
}

func TestSQLiteAvailabilityRepository_DeactivateOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteAvailabilityRepository(testutil.OpenRecordStore(t), "provider_availability")
	a := domain.NewProviderAvailability(uuid.New(), t0)
	a.Status = domain.AvailabilityAvailable
	require.NoError(t, repo.Save(ctx, a))

	changed, err := repo.Deactivate(ctx, a.ProviderID, domain.DeactivationReasonCommissionOverdue, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.Deactivate(ctx, a.ProviderID, domain.DeactivationReasonCommissionOverdue, t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.False(t, changed)

	found, err := repo.FindByProviderID(ctx, a.ProviderID)
	require.NoError(t, err)
	assert.Equal(t, domain.AvailabilityBusy, found.Status)
	assert.False(t, found.BookingEnabled)
	assert.False(t, found.ScheduleEnabled)
	assert.True(t, found.IsDeactivatedForCommission())
	require.NotNil(t, found.DeactivatedAt)
	assert.Equal(t, t0.Add(time.Hour), *found.DeactivatedAt)
}

func TestSQLiteAvailabilityRepository_DeactivateReplacesOtherReason(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteAvailabilityRepository(testutil.OpenRecordStore(t), "provider_availability")
	deactivatedAt := t0
	a := domain.NewProviderAvailability(uuid.New(), t0)
	a.BookingEnabled, a.ScheduleEnabled = false, false
	a.DeactivationReason = "manual_review"
	a.DeactivatedAt = &deactivatedAt
	require.NoError(t, repo.Save(ctx, a))

	changed, err := repo.Deactivate(ctx, a.ProviderID, domain.DeactivationReasonCommissionOverdue, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, changed)

	found, err := repo.FindByProviderID(ctx, a.ProviderID)
	require.NoError(t, err)
	assert.True(t, found.IsDeactivatedForCommission())
	require.NotNil(t, found.DeactivatedAt)
	assert.Equal(t, t0.Add(time.Hour), *found.DeactivatedAt)

	changed, err = repo.Reactivate(ctx, a.ProviderID, domain.DeactivationReasonCommissionOverdue, t0.Add(2*time.Hour))
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestSQLiteAvailabilityRepository_SaveCannotLiftLockout(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteAvailabilityRepository(testutil.OpenRecordStore(t), "provider_availability")
	a := domain.NewProviderAvailability(uuid.New(), t0)
	require.NoError(t, repo.Save(ctx, a))
	_, err := repo.Deactivate(ctx, a.ProviderID, domain.DeactivationReasonCommissionOverdue, t0)
	require.NoError(t, err)

	// A stale client writes its presence with both flags on.
	presence := domain.NewProviderAvailability(a.ProviderID, t0.Add(time.Minute))
	presence.Status = domain.AvailabilityAvailable
	require.NoError(t, repo.Save(ctx, presence))

	found, err := repo.FindByProviderID(ctx, a.ProviderID)
	require.NoError(t, err)
	assert.Equal(t, domain.AvailabilityAvailable, found.Status)
	assert.False(t, found.BookingEnabled)
	assert.False(t, found.ScheduleEnabled)
	assert.False(t, found.CanReceiveBookings())
}

func TestSQLiteAvailabilityRepository_Reactivate(t *testing.T) {
	ctx := context.Background()
	repo := NewSQLiteAvailabilityRepository(testutil.OpenRecordStore(t), "provider_availability")
	a := domain.NewProviderAvailability(uuid.New(), t0)
	require.NoError(t, repo.Save(ctx, a))

	changed, err := repo.Reactivate(ctx, a.ProviderID, domain.DeactivationReasonCommissionOverdue, t0)
	require.NoError(t, err)
	assert.False(t, changed, "not deactivated")

	_, err = repo.Deactivate(ctx, a.ProviderID, domain.DeactivationReasonCommissionOverdue, t0)
	require.NoError(t, err)
	changed, err = repo.Reactivate(ctx, a.ProviderID, domain.DeactivationReasonCommissionOverdue, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, changed)

	found, err := repo.FindByProviderID(ctx, a.ProviderID)
	require.NoError(t, err)
	assert.Equal(t, domain.AvailabilityOffline, found.Status)
	assert.True(t, found.BookingEnabled)
	assert.True(t, found.ScheduleEnabled)
	assert.Empty(t, found.DeactivationReason)
	assert.Nil(t, found.DeactivatedAt)
}
