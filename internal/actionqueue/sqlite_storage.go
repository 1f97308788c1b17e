package actionqueue

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	bookingDomain "github.com/felixgeelhaar/bookline/internal/booking/domain"
	"github.com/felixgeelhaar/bookline/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/bookline/internal/shared/infrastructure/database/sqlite"
	"github.com/felixgeelhaar/bookline/internal/shared/infrastructure/migrations"
	sharedPersistence "github.com/felixgeelhaar/bookline/internal/shared/infrastructure/persistence"
	"github.com/felixgeelhaar/bookline/internal/shared/infrastructure/security"
	"github.com/google/uuid"
)

const actionColumns = `id, action, booking_id, provider_id, reason, retries, state,
	enqueued_at, next_attempt_at, last_error, quarantined_at`

// SQLiteStorage keeps the queue in a local SQLite file. The seq column
// preserves enqueue order across restarts.
type SQLiteStorage struct {
	db    *sql.DB
	owned bool
}

// NewSQLiteStorage uses an open database that already has the queue schema.
func NewSQLiteStorage(db *sql.DB) *SQLiteStorage {
	return &SQLiteStorage{db: db}
}

// OpenSQLiteStorage opens (or creates) the queue file at path and applies
// the queue schema.
func OpenSQLiteStorage(ctx context.Context, path string) (*SQLiteStorage, error) {
	if path != ":memory:" {
		clean, err := security.CleanPath(path)
		if err != nil {
			return nil, err
		}
		path = clean
		if err := database.EnsureDirectory(path); err != nil {
			return nil, fmt.Errorf("create queue directory: %w", err)
		}
	}
	db, err := sqlite.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	if err := migrations.RunQueueMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStorage{db: db, owned: true}, nil
}

func (s *SQLiteStorage) Insert(ctx context.Context, a *QueuedAction) (bool, error) {
	query := fmt.Sprintf(`INSERT INTO queued_actions (%s)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`, actionColumns)
	res, err := s.db.ExecContext(ctx, query,
		a.ID,
		string(a.Action),
		a.BookingID.String(),
		a.ProviderID.String(),
		sharedPersistence.NullString(a.Reason),
		a.Retries,
		string(a.State),
		sharedPersistence.FormatTime(a.EnqueuedAt),
		sharedPersistence.FormatTime(a.NextAttemptAt),
		sharedPersistence.NullString(a.LastError),
		sharedPersistence.FormatNullTime(a.QuarantinedAt),
	)
	if err != nil {
		return false, fmt.Errorf("insert queued action: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert queued action: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStorage) Get(ctx context.Context, id string) (*QueuedAction, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM queued_actions WHERE id = ?`, actionColumns), id)
	a, err := scanAction(row)
	if database.IsNoRows(err) {
		return nil, ErrActionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get queued action: %w", err)
	}
	return a, nil
}

func (s *SQLiteStorage) List(ctx context.Context, state State) ([]*QueuedAction, error) {
	return s.query(ctx, "list queued actions",
		fmt.Sprintf(`SELECT %s FROM queued_actions WHERE state = ? ORDER BY seq`, actionColumns),
		string(state))
}

func (s *SQLiteStorage) Due(ctx context.Context, now time.Time) ([]*QueuedAction, error) {
	return s.query(ctx, "list due actions",
		fmt.Sprintf(`SELECT %s FROM queued_actions
			WHERE state = ? AND next_attempt_at <= ? ORDER BY seq`, actionColumns),
		string(StatePending), sharedPersistence.FormatTime(now))
}

func (s *SQLiteStorage) Update(ctx context.Context, a *QueuedAction) error {
	res, err := s.db.ExecContext(ctx, `UPDATE queued_actions
		SET retries = ?, state = ?, next_attempt_at = ?, last_error = ?, quarantined_at = ?
		WHERE id = ?`,
		a.Retries,
		string(a.State),
		sharedPersistence.FormatTime(a.NextAttemptAt),
		sharedPersistence.NullString(a.LastError),
		sharedPersistence.FormatNullTime(a.QuarantinedAt),
		a.ID,
	)
	if err != nil {
		return fmt.Errorf("update queued action: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update queued action: %w", err)
	}
	if n == 0 {
		return ErrActionNotFound
	}
	return nil
}

func (s *SQLiteStorage) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM queued_actions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete queued action: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete queued action: %w", err)
	}
	return n > 0, nil
}

// Close closes the database if this storage opened it.
func (s *SQLiteStorage) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStorage) query(ctx context.Context, op, query string, args ...any) ([]*QueuedAction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []*QueuedAction
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return out, nil
}

func scanAction(row interface{ Scan(dest ...any) error }) (*QueuedAction, error) {
	var (
		a                                QueuedAction
		action, bookingID, providerID    string
		state, enqueuedAt, nextAttemptAt string
		reason, lastError, quarantinedAt sql.NullString
	)
	if err := row.Scan(&a.ID, &action, &bookingID, &providerID, &reason, &a.Retries, &state,
		&enqueuedAt, &nextAttemptAt, &lastError, &quarantinedAt); err != nil {
		return nil, err
	}

	var err error
	if a.BookingID, err = uuid.Parse(bookingID); err != nil {
		return nil, fmt.Errorf("parse booking id: %w", err)
	}
	if a.ProviderID, err = uuid.Parse(providerID); err != nil {
		return nil, fmt.Errorf("parse provider id: %w", err)
	}
	if a.EnqueuedAt, err = sharedPersistence.ParseTime(enqueuedAt); err != nil {
		return nil, fmt.Errorf("parse enqueued_at: %w", err)
	}
	if a.NextAttemptAt, err = sharedPersistence.ParseTime(nextAttemptAt); err != nil {
		return nil, fmt.Errorf("parse next_attempt_at: %w", err)
	}
	if a.QuarantinedAt, err = sharedPersistence.ParseNullTime(quarantinedAt); err != nil {
		return nil, fmt.Errorf("parse quarantined_at: %w", err)
	}
	a.Action = bookingDomain.Action(action)
	a.State = State(state)
	a.Reason = reason.String
	a.LastError = lastError.String
	return &a, nil
}
