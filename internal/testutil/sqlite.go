package testutil

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/bookline/internal/shared/infrastructure/migrations"

	_ "modernc.org/sqlite"
)

// OpenRecordStore returns an in-memory SQLite database with the record
// store schema applied. It is closed when the test ends.
func OpenRecordStore(t testing.TB) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	// One connection keeps the in-memory database alive and shared.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, migrations.RunSQLiteMigrations(context.Background(), db))
	return db
}
