package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/bookline/adapter/api"
	"github.com/felixgeelhaar/bookline/internal/actionqueue"
	sharedDomain "github.com/felixgeelhaar/bookline/internal/shared/domain"
	"github.com/felixgeelhaar/bookline/internal/shared/infrastructure/convert"
	"github.com/felixgeelhaar/bookline/pkg/config"
	"github.com/felixgeelhaar/bookline/pkg/observability"
	"github.com/google/uuid"
)

// Agent is the provider-side half of bookline: the durable action queue
// and the synchronizer that drains it to the API.
type Agent struct {
	Queue        *actionqueue.Queue
	Synchronizer *actionqueue.Synchronizer
	Connectivity *actionqueue.ConnectivityMonitor
	Gateway      *actionqueue.BreakerGateway
	Metrics      *observability.InMemoryMetrics
	ProviderID   uuid.UUID

	storage actionqueue.Storage
	logger  *slog.Logger
}

// NewAgent opens the queue store named by cfg.QueueStore and wires the
// synchronizer to the API at cfg.APIURL.
func NewAgent(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Agent, error) {
	client := api.NewClient(cfg.APIURL, cfg.GatewayTimeout)
	return NewAgentWithGateway(ctx, cfg, client, nil, logger)
}

// NewAgentWithGateway wires an agent to gateway. When gateway can ping it
// also drives connectivity detection. clock may be nil.
func NewAgentWithGateway(ctx context.Context, cfg *config.Config, gateway actionqueue.Gateway, clock sharedDomain.Clock, logger *slog.Logger) (*Agent, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = sharedDomain.SystemClock{}
	}

	var providerID uuid.UUID
	if cfg.ProviderID != "" {
		id, err := uuid.Parse(cfg.ProviderID)
		if err != nil {
			return nil, fmt.Errorf("%w: BOOKLINE_PROVIDER_ID is not a UUID: %v", config.ErrConfiguration, err)
		}
		providerID = id
	}

	storage, err := actionqueue.OpenStorage(ctx, cfg.QueueStore)
	if err != nil {
		return nil, fmt.Errorf("failed to open action queue: %w", err)
	}

	breakerCfg := actionqueue.DefaultBreakerConfig()
	if cfg.BreakerMaxFailures > 0 {
		breakerCfg.MaxFailures = convert.IntToUint32Clamped(cfg.BreakerMaxFailures)
	}
	if cfg.BreakerOpenTimeout > 0 {
		breakerCfg.OpenTimeout = cfg.BreakerOpenTimeout
	}
	breaker := actionqueue.NewBreakerGateway(gateway, breakerCfg, logger.With("component", "breaker"))

	monitor := actionqueue.NewConnectivityMonitor(breaker, cfg.ProbeInterval, logger.With("component", "connectivity"))
	queue := actionqueue.NewQueue(storage, clock, monitor, logger.With("component", "queue"))
	metrics := observability.NewInMemoryMetrics()

	syncLogger := logger.With("component", "synchronizer")
	synchronizer := actionqueue.NewSynchronizer(queue, breaker, actionqueue.SynchronizerConfig{
		Interval: cfg.SyncInterval,
		Policy: actionqueue.RetryPolicy{
			MaxAttempts: cfg.SyncMaxAttempts,
			Backoff:     cfg.SyncBackoff,
		},
		Concurrency:    cfg.SyncConcurrency,
		AttemptTimeout: cfg.GatewayTimeout,
		OnQuarantine: func(a actionqueue.QueuedAction) {
			syncLogger.Error("action quarantined, manual retry required",
				"action_id", a.ID,
				"booking_id", a.BookingID,
				"retries", a.Retries,
				"last_error", a.LastError,
			)
		},
	}, clock, monitor, syncLogger, metrics)

	return &Agent{
		Queue:        queue,
		Synchronizer: synchronizer,
		Connectivity: monitor,
		Gateway:      breaker,
		Metrics:      metrics,
		ProviderID:   providerID,
		storage:      storage,
		logger:       logger,
	}, nil
}

// Start begins connectivity probing and background synchronization.
func (a *Agent) Start(ctx context.Context) error {
	a.Connectivity.Start(ctx)
	if err := a.Synchronizer.Start(ctx); err != nil {
		a.Connectivity.Stop()
		return err
	}
	a.logger.Info("provider agent started", "provider_id", a.ProviderID)
	return nil
}

// Stop halts background work. The queue stays open.
func (a *Agent) Stop() {
	a.Synchronizer.Stop()
	a.Connectivity.Stop()
}

// Close stops the agent and closes the queue store.
func (a *Agent) Close() error {
	a.Stop()
	return a.storage.Close()
}
