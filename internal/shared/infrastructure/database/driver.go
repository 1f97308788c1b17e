package database

import (
	"fmt"
	"strings"
)

// Driver represents a record store backend.
type Driver string

const (
	// DriverPostgres is the shared server-side store.
	DriverPostgres Driver = "postgres"
	// DriverSQLite is the single-node local store.
	DriverSQLite Driver = "sqlite"
)

func (d Driver) String() string {
	return string(d)
}

// IsValid reports whether d is a known backend.
func (d Driver) IsValid() bool {
	return d == DriverPostgres || d == DriverSQLite
}

// DetectDriver infers the backend from a connection string. An empty URL
// selects SQLite so that local mode needs no configuration.
func DetectDriver(url string) Driver {
	switch {
	case url == "":
		return DriverSQLite
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return DriverPostgres
	case strings.HasPrefix(url, "sqlite://"),
		strings.HasPrefix(url, "file:"),
		strings.HasSuffix(url, ".db"),
		strings.HasSuffix(url, ".sqlite"),
		strings.HasSuffix(url, ".sqlite3"):
		return DriverSQLite
	default:
		return DriverPostgres
	}
}

// ParseDriver converts an explicit driver name.
func ParseDriver(s string) (Driver, error) {
	switch d := Driver(strings.ToLower(strings.TrimSpace(s))); d {
	case DriverPostgres, DriverSQLite:
		return d, nil
	case "postgresql":
		return DriverPostgres, nil
	default:
		return "", fmt.Errorf("unsupported database driver: %q", s)
	}
}

// SQLitePathFromURL strips the sqlite:// scheme, if any.
func SQLitePathFromURL(url string) string {
	return strings.TrimPrefix(url, "sqlite://")
}
