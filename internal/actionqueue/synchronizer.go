package actionqueue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	sharedDomain "github.com/felixgeelhaar/bookline/internal/shared/domain"
	"github.com/felixgeelhaar/bookline/pkg/observability"
	"github.com/google/uuid"
)

// SynchronizerConfig holds configuration for the synchronizer.
type SynchronizerConfig struct {
	// Interval is the coarse timer between cycles.
	Interval time.Duration
	Policy   RetryPolicy
	// Concurrency bounds how many bookings one cycle synchronizes at once.
	Concurrency int
	// AttemptTimeout bounds one gateway call; zero leaves it to the gateway.
	AttemptTimeout time.Duration
	// OnQuarantine is called for every action that exhausts its retries. It
	// may be called from several goroutines.
	OnQuarantine func(QueuedAction)
}

// DefaultSynchronizerConfig returns sensible defaults.
func DefaultSynchronizerConfig() SynchronizerConfig {
	return SynchronizerConfig{
		Interval:    30 * time.Second,
		Policy:      DefaultRetryPolicy(),
		Concurrency: 4,
	}
}

// SyncReport describes one cycle.
type SyncReport struct {
	StartedAt   time.Time
	Claimed     int
	Applied     int
	Stale       int
	Retried     int
	Deferred    int
	Quarantined []QueuedAction
}

// Synchronizer drains the queue through a Gateway. Actions for the same
// booking are delivered one at a time in enqueue order; different bookings
// proceed concurrently. Cycles may overlap: a booking still in flight from
// an earlier cycle is left out of later claims, so a slow booking never
// holds up the others.
type Synchronizer struct {
	queue        *Queue
	gateway      Gateway
	config       SynchronizerConfig
	clock        sharedDomain.Clock
	connectivity Connectivity
	logger       *slog.Logger
	metrics      observability.Metrics

	trigger chan struct{}

	wg       sync.WaitGroup
	stopChan chan struct{}
	cancel   context.CancelFunc
	running  bool
	mu       sync.Mutex

	statsMu sync.Mutex
	stats   Stats
}

// NewSynchronizer wires a synchronizer to queue. clock defaults to the
// queue's clock and connectivity to always online. When connectivity can
// report restoration, a restore triggers a cycle.
func NewSynchronizer(
	queue *Queue,
	gateway Gateway,
	config SynchronizerConfig,
	clock sharedDomain.Clock,
	connectivity Connectivity,
	logger *slog.Logger,
	metrics observability.Metrics,
) *Synchronizer {
	defaults := DefaultSynchronizerConfig()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.Concurrency <= 0 {
		config.Concurrency = defaults.Concurrency
	}
	if clock == nil {
		clock = queue.clock
	}
	if connectivity == nil {
		connectivity = AlwaysOnline{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}

	s := &Synchronizer{
		queue:        queue,
		gateway:      gateway,
		config:       config,
		clock:        clock,
		connectivity: connectivity,
		logger:       logger,
		metrics:      metrics,
		trigger:      make(chan struct{}, 1),
		stopChan:     make(chan struct{}),
	}

	queue.setNotifier(s.Trigger)
	if r, ok := connectivity.(interface{ OnRestored(func()) }); ok {
		r.OnRestored(s.Trigger)
	}
	return s
}

// Start begins the cycle loop in a goroutine.
func (s *Synchronizer) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.stopChan = make(chan struct{})
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(runCtx)

	s.logger.Info("queue synchronizer started",
		"interval", s.config.Interval,
		"concurrency", s.config.Concurrency,
		"max_attempts", s.config.Policy.MaxAttempts,
	)
	return nil
}

// Stop ends the loop and interrupts a running cycle. Interrupted actions
// stay pending without using up a retry.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopChan)
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("queue synchronizer stopped")
}

// IsRunning returns true if the loop is running.
func (s *Synchronizer) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Trigger asks for a cycle soon. Triggers made while one is already
// pending coalesce.
func (s *Synchronizer) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

func (s *Synchronizer) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	// Anything left over from a previous process is due immediately.
	s.Trigger()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
		case <-s.trigger:
		}

		if !s.connectivity.Online() {
			s.logger.Debug("skipping sync cycle while offline")
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if _, err := s.SyncOnce(ctx); err != nil {
				s.logger.Error("sync cycle failed", "error", err)
			}
		}()
	}
}

// cycle collects per-item outcomes from concurrent groups.
type cycle struct {
	mu     sync.Mutex
	report SyncReport
}

func (c *cycle) add(fn func(r *SyncReport)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(&c.report)
}

// SyncOnce runs one cycle synchronously. It is safe to call while another
// cycle is still running; each booking is released as soon as its own group
// finishes.
func (s *Synchronizer) SyncOnce(ctx context.Context) (SyncReport, error) {
	timer := observability.StartTimer(s.metrics, observability.MetricSyncDuration)
	claimed, err := s.queue.claimDue(ctx)
	if err != nil {
		s.recordError(err)
		return SyncReport{}, fmt.Errorf("claim due actions: %w", err)
	}

	c := &cycle{report: SyncReport{StartedAt: s.clock.Now(), Claimed: len(claimed)}}

	var g errgroup.Group
	g.SetLimit(s.config.Concurrency)
	for _, group := range groupByBooking(claimed) {
		g.Go(func() error {
			defer func() {
				for _, a := range group {
					s.queue.release(a.ID)
				}
			}()
			s.syncGroup(ctx, group, c)
			return nil
		})
	}
	_ = g.Wait()

	report := c.report
	s.recordCycle(report)
	s.metrics.Counter(observability.MetricSyncCycles, 1)
	s.metrics.Counter(observability.MetricSyncApplied, int64(report.Applied))
	s.metrics.Counter(observability.MetricSyncStale, int64(report.Stale))
	s.metrics.Counter(observability.MetricSyncRetried, int64(report.Retried))
	s.metrics.Counter(observability.MetricSyncQuarantined, int64(len(report.Quarantined)))
	timer.Stop()
	if pending, err := s.queue.ListPending(ctx); err == nil {
		s.metrics.Gauge(observability.MetricQueuePending, float64(len(pending)))
	}

	if report.Claimed > 0 {
		s.logger.Info("sync cycle completed",
			"claimed", report.Claimed,
			"applied", report.Applied,
			"stale", report.Stale,
			"retried", report.Retried,
			"deferred", report.Deferred,
			"quarantined", len(report.Quarantined),
		)
	}
	return report, nil
}

// syncGroup delivers one booking's actions in order. The first action that
// does not finish stops the group so later actions never overtake it.
func (s *Synchronizer) syncGroup(ctx context.Context, group []*QueuedAction, c *cycle) {
	for i, a := range group {
		if ctx.Err() != nil || !s.deliver(ctx, a, c) {
			remaining := len(group) - i - 1
			if ctx.Err() != nil {
				remaining++
			}
			if remaining > 0 {
				c.add(func(r *SyncReport) { r.Deferred += remaining })
			}
			return
		}
	}
}

// deliver applies a and reports whether it left the queue.
func (s *Synchronizer) deliver(ctx context.Context, a *QueuedAction, c *cycle) bool {
	attemptCtx := ctx
	if s.config.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, s.config.AttemptTimeout)
		defer cancel()
	}

	logger := s.logger.With("action_id", a.ID, "booking_id", a.BookingID, "action", a.Action)
	err := s.gateway.Apply(attemptCtx, *a)

	switch {
	case err == nil:
		s.remove(ctx, a, logger)
		c.add(func(r *SyncReport) { r.Applied++ })
		logger.Info("queued action applied")
		return true

	case IsStale(err):
		s.remove(ctx, a, logger)
		c.add(func(r *SyncReport) { r.Stale++ })
		logger.Info("queued action superseded, dropped", "reason", err)
		return true

	case ctx.Err() != nil:
		// Interrupted by shutdown; the attempt does not count.
		return false
	}

	now := s.clock.Now()
	a.Retries++
	if s.config.Policy.Exhausted(a.Retries) {
		a.quarantine(now, err)
		if uerr := s.queue.storage.Update(ctx, a); uerr != nil {
			s.recordError(uerr)
			logger.Error("failed to quarantine action", "error", uerr)
			return false
		}
		c.add(func(r *SyncReport) { r.Quarantined = append(r.Quarantined, *a) })
		logger.Warn("queued action quarantined", "retries", a.Retries, "error", err)
		if s.config.OnQuarantine != nil {
			s.config.OnQuarantine(*a)
		}
		return false
	}

	delay := s.config.Policy.Delay(a.Retries)
	a.reschedule(now.Add(delay), err)
	if uerr := s.queue.storage.Update(ctx, a); uerr != nil {
		s.recordError(uerr)
		logger.Error("failed to reschedule action", "error", uerr)
		return false
	}
	c.add(func(r *SyncReport) { r.Retried++ })
	logger.Warn("queued action failed, will retry",
		"retries", a.Retries,
		"next_attempt_at", a.NextAttemptAt,
		"error", err,
	)
	return false
}

// remove deletes a finished action. If the delete fails the action is sent
// again later and comes back stale.
func (s *Synchronizer) remove(ctx context.Context, a *QueuedAction, logger *slog.Logger) {
	if _, err := s.queue.storage.Delete(ctx, a.ID); err != nil {
		s.recordError(err)
		logger.Error("failed to delete finished action", "error", err)
	}
}

func groupByBooking(actions []*QueuedAction) [][]*QueuedAction {
	index := make(map[uuid.UUID]int)
	var groups [][]*QueuedAction
	for _, a := range actions {
		i, ok := index[a.BookingID]
		if !ok {
			i = len(groups)
			index[a.BookingID] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], a)
	}
	return groups
}

// Stats returns synchronizer statistics.
type Stats struct {
	IsRunning   bool
	Cycles      uint64
	Applied     uint64
	Stale       uint64
	Retried     uint64
	Quarantined uint64
	InFlight    int
	LastError   string
	LastErrorAt *time.Time
	LastCycleAt *time.Time
}

// GetStats returns current synchronizer statistics.
func (s *Synchronizer) GetStats() Stats {
	s.statsMu.Lock()
	stats := s.stats
	s.statsMu.Unlock()

	stats.IsRunning = s.IsRunning()
	stats.InFlight = s.queue.InFlight()
	return stats
}

func (s *Synchronizer) recordCycle(r SyncReport) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	now := time.Now()
	s.stats.Cycles++
	s.stats.Applied += uint64(r.Applied)
	s.stats.Stale += uint64(r.Stale)
	s.stats.Retried += uint64(r.Retried)
	s.stats.Quarantined += uint64(len(r.Quarantined))
	s.stats.LastCycleAt = &now
}

func (s *Synchronizer) recordError(err error) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	now := time.Now()
	s.stats.LastError = err.Error()
	s.stats.LastErrorAt = &now
}
