package outbox

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sharedPersistence "github.com/felixgeelhaar/bookline/internal/shared/infrastructure/persistence"
	"github.com/google/uuid"
)

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite outbox repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const sqliteOutboxColumns = `id, event_id, aggregate_type, aggregate_id, routing_key, payload, created_at,
	published_at, next_retry_at, retry_count, last_error, dead_lettered_at, dead_letter_reason`

// Save stores a new outbox message.
func (r *SQLiteRepository) Save(ctx context.Context, msg *Message) error {
	exec := sharedPersistence.SQLiteExecutor(ctx, r.db)
	res, err := exec.ExecContext(ctx, `
		INSERT INTO outbox (event_id, aggregate_type, aggregate_id, routing_key, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (event_id) DO NOTHING`,
		msg.EventID.String(),
		msg.AggregateType,
		msg.AggregateID.String(),
		msg.RoutingKey,
		string(msg.Payload),
		sharedPersistence.FormatTime(msg.CreatedAt),
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 1 {
		if id, err := res.LastInsertId(); err == nil {
			msg.ID = id
		}
	}
	return nil
}

// GetUnpublished returns due messages in insertion order.
func (r *SQLiteRepository) GetUnpublished(ctx context.Context, now time.Time, limit int) ([]*Message, error) {
	exec := sharedPersistence.SQLiteExecutor(ctx, r.db)
	rows, err := exec.QueryContext(ctx, `
		SELECT `+sqliteOutboxColumns+`
		FROM outbox
		WHERE published_at IS NULL
		  AND dead_lettered_at IS NULL
		  AND (next_retry_at IS NULL OR next_retry_at <= ?)
		ORDER BY id
		LIMIT ?`,
		sharedPersistence.FormatTime(now), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		msg, err := scanSQLiteMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// MarkPublished marks a message as relayed.
func (r *SQLiteRepository) MarkPublished(ctx context.Context, id int64, at time.Time) error {
	return r.update(ctx, `UPDATE outbox SET published_at = ? WHERE id = ?`,
		sharedPersistence.FormatTime(at), id)
}

// MarkFailed records a relay failure.
func (r *SQLiteRepository) MarkFailed(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error {
	return r.update(ctx, `
		UPDATE outbox
		SET retry_count = retry_count + 1, last_error = ?, next_retry_at = ?
		WHERE id = ?`,
		errMsg, sharedPersistence.FormatTime(nextRetryAt), id)
}

// MarkDead stops retrying a message.
func (r *SQLiteRepository) MarkDead(ctx context.Context, id int64, reason string, at time.Time) error {
	return r.update(ctx, `
		UPDATE outbox
		SET retry_count = retry_count + 1, dead_lettered_at = ?, dead_letter_reason = ?, last_error = ?
		WHERE id = ?`,
		sharedPersistence.FormatTime(at), reason, reason, id)
}

// DeleteOld removes relayed messages published before cutoff.
func (r *SQLiteRepository) DeleteOld(ctx context.Context, cutoff time.Time) (int64, error) {
	exec := sharedPersistence.SQLiteExecutor(ctx, r.db)
	res, err := exec.ExecContext(ctx,
		`DELETE FROM outbox WHERE published_at IS NOT NULL AND published_at < ?`,
		sharedPersistence.FormatTime(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) update(ctx context.Context, query string, args ...any) error {
	exec := sharedPersistence.SQLiteExecutor(ctx, r.db)
	res, err := exec.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("outbox message %d not found", args[len(args)-1])
	}
	return nil
}

func scanSQLiteMessage(rows *sql.Rows) (*Message, error) {
	var (
		msg                             Message
		eventID, aggregateID, createdAt string
		payload                         string
		aggregateType                   sql.NullString
		publishedAt, nextRetryAt        sql.NullString
		lastError, deadAt, deadReason   sql.NullString
	)
	if err := rows.Scan(
		&msg.ID, &eventID, &aggregateType, &aggregateID, &msg.RoutingKey, &payload, &createdAt,
		&publishedAt, &nextRetryAt, &msg.RetryCount, &lastError, &deadAt, &deadReason,
	); err != nil {
		return nil, err
	}

	var err error
	if msg.EventID, err = uuid.Parse(eventID); err != nil {
		return nil, fmt.Errorf("parse event id: %w", err)
	}
	msg.AggregateID, _ = uuid.Parse(aggregateID)
	msg.AggregateType = aggregateType.String
	msg.Payload = json.RawMessage(payload)
	msg.LastError = lastError.String
	msg.DeadLetterReason = deadReason.String

	if msg.CreatedAt, err = sharedPersistence.ParseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if msg.PublishedAt, err = sharedPersistence.ParseNullTime(publishedAt); err != nil {
		return nil, fmt.Errorf("parse published_at: %w", err)
	}
	if msg.NextRetryAt, err = sharedPersistence.ParseNullTime(nextRetryAt); err != nil {
		return nil, fmt.Errorf("parse next_retry_at: %w", err)
	}
	if msg.DeadLetteredAt, err = sharedPersistence.ParseNullTime(deadAt); err != nil {
		return nil, fmt.Errorf("parse dead_lettered_at: %w", err)
	}
	return &msg, nil
}
