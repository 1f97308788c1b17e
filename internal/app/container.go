package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	bookingApp "github.com/felixgeelhaar/bookline/internal/booking/application"
	commissionApp "github.com/felixgeelhaar/bookline/internal/commission/application"
	sharedDomain "github.com/felixgeelhaar/bookline/internal/shared/domain"
	"github.com/felixgeelhaar/bookline/internal/shared/infrastructure/database"
	_ "github.com/felixgeelhaar/bookline/internal/shared/infrastructure/database/postgres" // Register PostgreSQL driver
	_ "github.com/felixgeelhaar/bookline/internal/shared/infrastructure/database/sqlite"   // Register SQLite driver
	"github.com/felixgeelhaar/bookline/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/bookline/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/bookline/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/bookline/pkg/config"
	"github.com/felixgeelhaar/bookline/pkg/observability"
)

// Container holds the server-side dependencies shared by the API, the
// worker and the local CLI.
type Container struct {
	Config  *config.Config
	Logger  *slog.Logger
	Clock   sharedDomain.Clock
	Metrics *observability.InMemoryMetrics
	Health  *observability.HealthRegistry

	// Database
	DBConn   database.Connection
	DBDriver database.Driver

	// Redis is optional and only probed for health.
	RedisClient *redis.Client

	Repos *Repositories

	// Services publish into the outbox; the relay forwards it to Broker.
	OutboxRepo     outbox.Repository
	EventPublisher eventbus.Publisher
	Broker         eventbus.Publisher
	Relay          *outbox.Processor

	Bookings    *bookingApp.Service
	Ledger      *commissionApp.Ledger
	Reactivator *commissionApp.Reactivator
}

// Option customizes a Container.
type Option func(*Container)

// WithClock replaces the system clock.
func WithClock(clock sharedDomain.Clock) Option {
	return func(c *Container) { c.Clock = clock }
}

// WithBroker replaces the broker the outbox relay publishes to.
func WithBroker(p eventbus.Publisher) Option {
	return func(c *Container) { c.Broker = p }
}

// NewContainer opens the record store, applies migrations and wires the
// booking and commission services. It refuses to start without a
// commission payment window.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*Container, error) {
	if logger == nil {
		logger = slog.Default()
	}
	window, err := cfg.RequirePaymentWindow()
	if err != nil {
		return nil, err
	}

	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Clock:   sharedDomain.SystemClock{},
		Metrics: observability.NewInMemoryMetrics(),
		Health:  observability.NewHealthRegistry(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	factory, err := NewRepositoryFactory(c.DBConn, database.DefaultTables())
	if err != nil {
		c.Close()
		return nil, err
	}
	if c.Repos, err = factory.All(); err != nil {
		c.Close()
		return nil, err
	}
	if c.OutboxRepo, err = c.outboxRepository(); err != nil {
		c.Close()
		return nil, err
	}

	c.connectRedis(ctx)
	if err := c.connectBroker(); err != nil {
		c.Close()
		return nil, err
	}

	c.EventPublisher = outbox.NewPublisher(c.OutboxRepo, c.Clock)
	c.Relay = outbox.NewProcessor(c.OutboxRepo, c.Broker, outbox.DefaultProcessorConfig(), c.Clock, logger.With("component", "outbox"))

	c.Ledger = commissionApp.NewLedger(
		c.Repos.Records,
		c.Repos.Audit,
		c.Repos.UnitOfWork,
		commissionApp.CommissionPolicy{Window: window, RateBasisPoints: cfg.CommissionRateBPS},
		c.EventPublisher,
		c.Clock,
		logger.With("component", "ledger"),
	)
	c.Bookings = bookingApp.NewService(
		c.Repos.Bookings,
		c.Repos.UnitOfWork,
		c.Ledger,
		c.EventPublisher,
		c.Clock,
		logger.With("component", "bookings"),
	).WithMetrics(c.Metrics)
	c.Reactivator = commissionApp.NewReactivator(
		c.Repos.Records,
		c.Repos.Availability,
		c.Repos.Audit,
		c.Repos.UnitOfWork,
		c.EventPublisher,
		c.Clock,
		logger.With("component", "reactivation"),
	)

	c.Health.Register("database", observability.DatabaseHealthChecker(c.DBConn.Ping))
	return c, nil
}

func (c *Container) connect(ctx context.Context) error {
	dbCfg := database.Config{
		URL:        c.Config.DatabaseURL,
		SQLitePath: c.Config.SQLitePath,
	}
	switch {
	case c.Config.IsSQLite():
		dbCfg.Driver = database.DriverSQLite
	case c.Config.IsPostgres():
		dbCfg.Driver = database.DriverPostgres
	}

	conn, err := database.NewConnection(ctx, dbCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	c.DBConn = conn
	c.DBDriver = conn.Driver()

	switch c.DBDriver {
	case database.DriverSQLite:
		db := conn.(interface{ DB() *sql.DB }).DB()
		err = migrations.RunSQLiteMigrations(ctx, db)
	case database.DriverPostgres:
		pool := conn.(interface{ Pool() *pgxpool.Pool }).Pool()
		err = migrations.RunPostgresMigrations(ctx, pool)
	}
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	c.Logger.Info("connected to record store", "driver", c.DBDriver)
	return nil
}

func (c *Container) outboxRepository() (outbox.Repository, error) {
	switch c.DBDriver {
	case database.DriverSQLite:
		return outbox.NewSQLiteRepository(c.DBConn.(interface{ DB() *sql.DB }).DB()), nil
	case database.DriverPostgres:
		return outbox.NewPostgresRepository(c.DBConn.(interface{ Pool() *pgxpool.Pool }).Pool()), nil
	default:
		return nil, fmt.Errorf("unsupported driver: %s", c.DBDriver)
	}
}

// connectRedis attaches Redis when configured and reachable. It is never
// required by the record store, so a failure only loses the health check.
func (c *Container) connectRedis(ctx context.Context) {
	if c.Config.RedisURL == "" || c.Config.IsLocalMode() {
		return
	}
	opt, err := redis.ParseURL(c.Config.RedisURL)
	if err != nil {
		c.Logger.Warn("invalid Redis URL, skipping", "error", err)
		return
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		c.Logger.Warn("Redis not available", "error", err)
		return
	}
	c.RedisClient = client
	c.Health.Register("redis", observability.RedisHealthChecker(func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}))
	c.Logger.Info("connected to Redis")
}

func (c *Container) connectBroker() error {
	if c.Broker != nil {
		return nil
	}
	if c.Config.RabbitMQURL == "" {
		c.Logger.Info("no RabbitMQ configured, lifecycle events stay in the outbox")
		c.Broker = eventbus.NewNoopPublisher(c.Logger)
		return nil
	}

	publisher, err := eventbus.NewRabbitMQPublisher(c.Config.RabbitMQURL, c.Logger)
	if err != nil {
		if !c.Config.IsDevelopment() {
			return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		c.Logger.Warn("RabbitMQ not available, using noop publisher", "error", err)
		c.Broker = eventbus.NewNoopPublisher(c.Logger)
		return nil
	}
	c.Broker = publisher
	c.Health.Register("rabbitmq", observability.RabbitMQHealthChecker(publisher.Check))
	return nil
}

// Close releases every resource the container opened.
func (c *Container) Close() {
	if c.Relay != nil {
		c.Relay.Stop()
	}

	if c.Broker != nil {
		if err := c.Broker.Close(); err != nil {
			c.Logger.Warn("error closing event broker", "error", err)
		}
	}

	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Logger.Warn("error closing Redis connection", "error", err)
		}
	}

	if c.DBConn != nil {
		if err := c.DBConn.Close(); err != nil {
			c.Logger.Warn("error closing database connection", "error", err)
		} else {
			c.Logger.Info("database connection closed", "driver", c.DBDriver)
		}
	}
}
