package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/bookline/internal/testutil"
	"github.com/felixgeelhaar/bookline/pkg/config"
)

func TestEnforcementScheduler_InvalidSchedule(t *testing.T) {
	job := NewEnforcementJob(nil, nil, nil, nil)
	_, err := NewEnforcementScheduler(job, "every so often", nil)
	assert.ErrorContains(t, err, "invalid enforcer schedule")
}

func TestEnforcementScheduler_RunNowTracksOutcome(t *testing.T) {
	dir := t.TempDir()
	seedStore(t, dir)
	clock := testutil.NewFakeClock(t0.Add(25 * time.Hour))

	job := newTestJob(clock, nil, enforcerConfig(dir), nil)
	s, err := NewEnforcementScheduler(job, "@every 5m", nil)
	require.NoError(t, err)
	assert.True(t, s.LastSuccess().IsZero())

	summary, err := s.RunNow(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ExpiredCount)
	assert.Equal(t, clock.Now(), s.LastSuccess())

	// A broken configuration keeps the last success and counts a failure.
	job.load = func() (*config.EnforcerConfig, error) {
		return nil, &config.MissingError{Keys: []string{config.EnvEnforcerDatabaseID}}
	}
	clock.Advance(time.Hour)
	_, err = s.RunNow(context.Background())
	require.Error(t, err)

	stats := s.Stats()
	assert.Equal(t, uint64(2), stats.Runs)
	assert.Equal(t, uint64(1), stats.Failures)
	assert.Equal(t, t0.Add(25*time.Hour), stats.LastSuccess)
	assert.Equal(t, clock.Now(), stats.LastRunAt)
	require.NotNil(t, stats.LastSummary)
	assert.False(t, stats.LastSummary.Success)
}

func TestEnforcementScheduler_FiresOnSchedule(t *testing.T) {
	dir := t.TempDir()
	seedStore(t, dir)
	job := newTestJob(testutil.NewFakeClock(t0.Add(25*time.Hour)), nil, enforcerConfig(dir), nil)

	s, err := NewEnforcementScheduler(job, "@every 1s", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)
	require.Eventually(t, func() bool { return s.Stats().Runs > 0 }, 5*time.Second, 50*time.Millisecond)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	s.Stop(stopCtx)
	assert.False(t, s.LastSuccess().IsZero())
}
