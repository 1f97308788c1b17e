package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	// Application
	AppEnv   string
	LogLevel string

	// Database
	DatabaseDriver string
	DatabaseURL    string
	SQLitePath     string
	LocalMode      bool

	// Redis
	RedisURL string

	// RabbitMQ
	RabbitMQURL string

	// HTTP
	APIAddr          string
	WorkerHealthAddr string

	// Commission. CommissionPaymentWindow has no default; it is checked by
	// RequirePaymentWindow wherever commissions are opened.
	CommissionPaymentWindow time.Duration
	CommissionRateBPS       int

	// Action queue (provider agent)
	QueueStore         string
	APIURL             string
	ProviderID         string
	SyncInterval       time.Duration
	SyncMaxAttempts    int
	SyncBackoff        []time.Duration
	SyncConcurrency    int
	ProbeInterval      time.Duration
	BreakerMaxFailures int
	BreakerOpenTimeout time.Duration
	GatewayTimeout     time.Duration

	// Enforcer worker
	EnforcerSchedule string
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	databaseURL := getEnv("DATABASE_URL", "")
	localMode := getBoolEnv("BOOKLINE_LOCAL_MODE", databaseURL == "")
	driver := getEnv("DATABASE_DRIVER", "auto")
	if localMode {
		driver = "sqlite"
	}

	window, err := getPositiveDurationEnv("COMMISSION_PAYMENT_WINDOW")
	if err != nil {
		return nil, err
	}
	backoff, err := getDurationListEnv("SYNC_BACKOFF", []time.Duration{5 * time.Second, 30 * time.Second, 2 * time.Minute})
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		DatabaseDriver: driver,
		DatabaseURL:    databaseURL,
		SQLitePath:     getEnv("SQLITE_PATH", ""),
		LocalMode:      localMode,

		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RabbitMQURL: getEnv("RABBITMQ_URL", ""),

		APIAddr:          getEnv("API_ADDR", "0.0.0.0:8080"),
		WorkerHealthAddr: getEnv("WORKER_HEALTH_ADDR", "0.0.0.0:8081"),

		CommissionPaymentWindow: window,
		CommissionRateBPS:       getIntEnv("COMMISSION_RATE_BPS", 1500),

		QueueStore:         getEnv("QUEUE_STORE", defaultQueueStore()),
		APIURL:             getEnv("BOOKLINE_API_URL", "http://localhost:8080"),
		ProviderID:         getEnv("BOOKLINE_PROVIDER_ID", ""),
		SyncInterval:       getDurationEnv("SYNC_INTERVAL", 30*time.Second),
		SyncMaxAttempts:    getIntEnv("SYNC_MAX_ATTEMPTS", 3),
		SyncBackoff:        backoff,
		SyncConcurrency:    getIntEnv("SYNC_CONCURRENCY", 4),
		ProbeInterval:      getDurationEnv("CONNECTIVITY_PROBE_INTERVAL", 15*time.Second),
		BreakerMaxFailures: getIntEnv("BREAKER_MAX_FAILURES", 5),
		BreakerOpenTimeout: getDurationEnv("BREAKER_OPEN_TIMEOUT", 30*time.Second),
		GatewayTimeout:     getDurationEnv("GATEWAY_TIMEOUT", 10*time.Second),

		EnforcerSchedule: getEnv("ENFORCER_SCHEDULE", "@every 5m"),
	}

	if cfg.CommissionRateBPS < 0 || cfg.CommissionRateBPS > 10000 {
		return nil, fmt.Errorf("%w: COMMISSION_RATE_BPS must be within 0..10000, got %d", ErrConfiguration, cfg.CommissionRateBPS)
	}

	return cfg, nil
}

// RequirePaymentWindow returns the commission payment window or a
// MissingError when it is not configured.
func (c *Config) RequirePaymentWindow() (time.Duration, error) {
	if c.CommissionPaymentWindow <= 0 {
		return 0, &MissingError{Keys: []string{"COMMISSION_PAYMENT_WINDOW"}}
	}
	return c.CommissionPaymentWindow, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// IsLocalMode returns true when the record store is a local SQLite file.
func (c *Config) IsLocalMode() bool {
	return c.LocalMode
}

// IsSQLite returns true if the record store driver is SQLite.
func (c *Config) IsSQLite() bool {
	return c.DatabaseDriver == "sqlite" || c.LocalMode
}

// IsPostgres returns true if the record store driver is PostgreSQL.
func (c *Config) IsPostgres() bool {
	if c.LocalMode {
		return false
	}
	if c.DatabaseDriver == "postgres" {
		return true
	}
	return c.DatabaseDriver == "auto" && c.DatabaseURL != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getPositiveDurationEnv parses key when present. Unset yields zero; a
// malformed or non-positive value is a configuration fault.
func getPositiveDurationEnv(key string) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive duration, got %q", ErrConfiguration, key, value)
	}
	return d, nil
}

func getDurationListEnv(key string, defaultValue []time.Duration) ([]time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	var out []time.Duration
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		d, err := time.ParseDuration(part)
		if err != nil {
			return nil, fmt.Errorf("%w: %s contains invalid duration %q", ErrConfiguration, key, part)
		}
		out = append(out, d)
	}
	return out, nil
}

func defaultQueueStore() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".bookline/queue.db"
	}
	return home + "/.bookline/queue.db"
}
