package migrations

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func openMemory(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func tableNames(t *testing.T, db *sql.DB) []string {
	t.Helper()
	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	require.NoError(t, err)
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		names = append(names, name)
	}
	require.NoError(t, rows.Err())
	return names
}

func TestRunSQLiteMigrations(t *testing.T) {
	db := openMemory(t)
	ctx := context.Background()

	require.NoError(t, RunSQLiteMigrations(ctx, db))
	require.NoError(t, RunSQLiteMigrations(ctx, db), "migrations must be re-runnable")

	assert.Equal(t, []string{"audit_logs", "bookings", "commission_records", "outbox", "provider_availability"}, tableNames(t, db))
}

func TestRunQueueMigrations(t *testing.T) {
	db := openMemory(t)

	require.NoError(t, RunQueueMigrations(context.Background(), db))

	assert.Equal(t, []string{"queued_actions"}, tableNames(t, db))
}

func TestAuditUniquePerCommissionAndType(t *testing.T) {
	db := openMemory(t)
	require.NoError(t, RunSQLiteMigrations(context.Background(), db))

	insert := `INSERT INTO audit_logs (id, type, commission_id, provider_id, enforced_at, actor, created_at)
		VALUES (?, 'COMMISSION_EXPIRED', 'c1', 'p1', 'now', 'system', 'now')`
	_, err := db.Exec(insert, "a1")
	require.NoError(t, err)
	_, err = db.Exec(insert, "a2")
	assert.Error(t, err)
}
