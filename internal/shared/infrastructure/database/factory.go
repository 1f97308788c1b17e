package database

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/felixgeelhaar/bookline/internal/shared/infrastructure/security"
)

// Config holds database configuration.
type Config struct {
	// Driver is detected from URL when empty.
	Driver Driver

	// URL is the PostgreSQL connection string.
	URL string

	// SQLitePath is the database file used with DriverSQLite.
	SQLitePath string

	// MaxConns caps the PostgreSQL pool.
	MaxConns int
}

// Connection is an open record store. Drivers expose their native handle
// through Pool() or DB().
type Connection interface {
	Ping(ctx context.Context) error
	Close() error
	Driver() Driver
}

// ErrDriverNotRegistered is returned when a driver package was not linked in.
var ErrDriverNotRegistered = errors.New("database driver not registered")

type connector func(ctx context.Context, cfg Config) (Connection, error)

var connectors = map[Driver]connector{}

// RegisterDriver registers the connection factory for d. Driver packages
// call it from init.
func RegisterDriver(d Driver, fn func(ctx context.Context, cfg Config) (Connection, error)) {
	connectors[d] = fn
}

// NewConnection opens a connection for cfg.
func NewConnection(ctx context.Context, cfg Config) (Connection, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DetectDriver(cfg.URL)
	}
	if driver == DriverSQLite && cfg.SQLitePath == "" && cfg.URL != "" {
		cfg.SQLitePath = SQLitePathFromURL(cfg.URL)
	}

	open, ok := connectors[driver]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrDriverNotRegistered, driver)
	}
	cfg.Driver = driver
	return open(ctx, cfg)
}

// ConfigFromEndpoint assembles a Config from a store endpoint, credentials
// and database identifier. A sqlite:// endpoint names a directory holding
// <databaseID>.db; any other endpoint is a PostgreSQL host[:port], with or
// without scheme, and credentials in user:password form.
func ConfigFromEndpoint(endpoint, credentials, databaseID string) (Config, error) {
	if databaseID == "" || strings.ContainsAny(databaseID, `/\`) {
		return Config{}, fmt.Errorf("invalid database id %q", databaseID)
	}

	if strings.HasPrefix(endpoint, "sqlite://") {
		path, err := security.ConfinePath(SQLitePathFromURL(endpoint), databaseID+".db")
		if err != nil {
			return Config{}, fmt.Errorf("invalid store endpoint %q: %w", endpoint, err)
		}
		return Config{Driver: DriverSQLite, SQLitePath: path}, nil
	}

	host := strings.TrimPrefix(strings.TrimPrefix(endpoint, "postgresql://"), "postgres://")
	host = strings.TrimSuffix(host, "/")
	if host == "" {
		return Config{}, fmt.Errorf("invalid store endpoint %q", endpoint)
	}

	user, password, _ := strings.Cut(credentials, ":")
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(user, password),
		Host:   host,
		Path:   "/" + databaseID,
	}
	return Config{Driver: DriverPostgres, URL: u.String()}, nil
}

// DefaultSQLitePath returns the default local database path.
func DefaultSQLitePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return filepath.Join(homeDir, ".bookline", "bookline.db")
}

// EnsureDirectory creates the parent directory of path.
func EnsureDirectory(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
