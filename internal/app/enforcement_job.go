package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	commissionApp "github.com/felixgeelhaar/bookline/internal/commission/application"
	sharedDomain "github.com/felixgeelhaar/bookline/internal/shared/domain"
	"github.com/felixgeelhaar/bookline/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/bookline/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/bookline/pkg/config"
	"github.com/felixgeelhaar/bookline/pkg/observability"
)

const enforcementOperation = "commission_deadlines"

// EnforcementJob runs the commission deadline enforcer against the store
// named by the enforcer configuration. Nothing is cached between runs: the
// configuration is read and the store opened on every invocation.
type EnforcementJob struct {
	publisher eventbus.Publisher
	clock     sharedDomain.Clock
	logger    *slog.Logger
	metrics   observability.Metrics
	load      func() (*config.EnforcerConfig, error)
}

// NewEnforcementJob creates a job. Every argument may be nil.
func NewEnforcementJob(publisher eventbus.Publisher, clock sharedDomain.Clock, logger *slog.Logger, metrics observability.Metrics) *EnforcementJob {
	if clock == nil {
		clock = sharedDomain.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &EnforcementJob{
		publisher: publisher,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
		load:      config.LoadEnforcer,
	}
}

// Run executes one enforcement pass, timed under the operation metrics. A
// configuration fault returns an unsuccessful summary and an error matching
// config.ErrConfiguration before anything is read or written.
func (j *EnforcementJob) Run(ctx context.Context) (*commissionApp.RunSummary, error) {
	return observability.TimeOperation(ctx, nil, j.metrics, enforcementOperation, j.run)
}

func (j *EnforcementJob) run(ctx context.Context) (*commissionApp.RunSummary, error) {
	logger := observability.LogOperation(j.logger, enforcementOperation)

	cfg, tables, dbCfg, err := j.configure()
	if err != nil {
		logger.Error("enforcement refused to start", "error", err)
		return j.failed(err), err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	conn, err := database.NewConnection(ctx, dbCfg)
	if err != nil {
		err = sharedDomain.Unavailable("open record store", err)
		logger.Error("enforcement could not reach the record store", "error", err)
		return j.failed(err), err
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			logger.Warn("error closing record store", "error", cerr)
		}
	}()

	factory, err := NewRepositoryFactory(conn, tables)
	if err != nil {
		return j.failed(err), err
	}
	repos, err := factory.All()
	if err != nil {
		return j.failed(err), err
	}

	enforcer := commissionApp.NewDeadlineEnforcer(commissionApp.EnforcerDeps{
		Records:      repos.Records,
		Availability: repos.Availability,
		Audit:        repos.Audit,
		Publisher:    j.publisher,
		Clock:        j.clock,
		Logger:       logger,
		Metrics:      j.metrics,
		BatchSize:    cfg.BatchSize,
	})
	return enforcer.Run(ctx)
}

func (j *EnforcementJob) configure() (*config.EnforcerConfig, database.Tables, database.Config, error) {
	cfg, err := j.load()
	if err != nil {
		return nil, database.Tables{}, database.Config{}, err
	}

	tables := database.Tables{
		Bookings:     cfg.BookingCollection,
		Commissions:  cfg.CommissionCollection,
		Availability: cfg.AvailabilityCollection,
		Audit:        cfg.AuditCollection,
	}
	if err := tables.Validate(); err != nil {
		return nil, database.Tables{}, database.Config{}, fmt.Errorf("%w: %v", config.ErrConfiguration, err)
	}

	dbCfg, err := database.ConfigFromEndpoint(cfg.StoreEndpoint, cfg.StoreCredentials, cfg.DatabaseID)
	if err != nil {
		return nil, database.Tables{}, database.Config{}, fmt.Errorf("%w: %v", config.ErrConfiguration, err)
	}
	return cfg, tables, dbCfg, nil
}

func (j *EnforcementJob) failed(err error) *commissionApp.RunSummary {
	return &commissionApp.RunSummary{
		Success:    false,
		ServerTime: j.clock.Now().UTC(),
		Results:    []commissionApp.RecordResult{},
		Error:      err.Error(),
	}
}

// IsConfigurationFault reports whether a run failed before starting
// because of missing or malformed configuration.
func IsConfigurationFault(err error) bool {
	return errors.Is(err, config.ErrConfiguration)
}
