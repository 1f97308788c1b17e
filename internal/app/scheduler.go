package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	commissionApp "github.com/felixgeelhaar/bookline/internal/commission/application"
)

// EnforcementScheduler runs an enforcement job on a cron schedule. A run
// still in progress when the next tick fires makes that tick a no-op.
type EnforcementScheduler struct {
	job      *EnforcementJob
	cron     *cron.Cron
	schedule string
	logger   *slog.Logger

	mu          sync.Mutex
	ctx         context.Context
	lastRunAt   time.Time
	lastSuccess time.Time
	lastSummary *commissionApp.RunSummary
	runs        uint64
	failures    uint64
}

// SchedulerStats is a snapshot of scheduler activity.
type SchedulerStats struct {
	Runs        uint64
	Failures    uint64
	LastRunAt   time.Time
	LastSuccess time.Time
	LastSummary *commissionApp.RunSummary
}

// NewEnforcementScheduler parses schedule (standard five-field cron or a
// descriptor such as "@every 5m") and registers job on it.
func NewEnforcementScheduler(job *EnforcementJob, schedule string, logger *slog.Logger) (*EnforcementScheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cronLogger := &slogCronLogger{logger: logger.With("component", "cron")}
	s := &EnforcementScheduler{
		job:      job,
		schedule: schedule,
		logger:   logger,
		ctx:      context.Background(),
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
	}
	if _, err := s.cron.AddFunc(schedule, s.tick); err != nil {
		return nil, fmt.Errorf("invalid enforcer schedule %q: %w", schedule, err)
	}
	return s, nil
}

// Start begins firing on schedule. Runs use ctx until Stop.
func (s *EnforcementScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()
	s.cron.Start()
	s.logger.Info("enforcement scheduler started", "schedule", s.schedule)
}

// Stop halts the schedule and waits for a run in progress, bounded by ctx.
func (s *EnforcementScheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("enforcement run still in progress at shutdown")
	}
}

func (s *EnforcementScheduler) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	_, _ = s.RunNow(ctx)
}

// RunNow runs the job once outside the schedule and records the result.
func (s *EnforcementScheduler) RunNow(ctx context.Context) (*commissionApp.RunSummary, error) {
	summary, err := s.job.Run(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs++
	s.lastRunAt = s.job.clock.Now()
	s.lastSummary = summary
	if err != nil || summary == nil || !summary.Success {
		s.failures++
		s.logger.Error("scheduled enforcement failed", "error", err, "configuration_fault", IsConfigurationFault(err))
		return summary, err
	}
	s.lastSuccess = s.lastRunAt
	s.logger.Info("scheduled enforcement completed",
		"expired", summary.ExpiredCount,
		"deactivated", summary.DeactivatedCount,
		"errors", summary.ErrorCount,
	)
	return summary, nil
}

// LastSuccess returns when the last successful run finished, or the zero
// time if none has.
func (s *EnforcementScheduler) LastSuccess() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSuccess
}

// Stats returns a snapshot of scheduler activity.
func (s *EnforcementScheduler) Stats() SchedulerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SchedulerStats{
		Runs:        s.runs,
		Failures:    s.failures,
		LastRunAt:   s.lastRunAt,
		LastSuccess: s.lastSuccess,
		LastSummary: s.lastSummary,
	}
}

// slogCronLogger adapts slog to cron.Logger.
type slogCronLogger struct {
	logger *slog.Logger
}

func (l *slogCronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l *slogCronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
