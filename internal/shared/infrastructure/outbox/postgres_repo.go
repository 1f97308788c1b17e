package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	sharedPersistence "github.com/felixgeelhaar/bookline/internal/shared/infrastructure/persistence"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL outbox repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Save stores a new outbox message.
func (r *PostgresRepository) Save(ctx context.Context, msg *Message) error {
	query := `
		INSERT INTO outbox (event_id, aggregate_type, aggregate_id, routing_key, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (event_id) DO NOTHING
		RETURNING id
	`
	err := sharedPersistence.Executor(ctx, r.pool).QueryRow(ctx, query,
		msg.EventID,
		msg.AggregateType,
		msg.AggregateID,
		msg.RoutingKey,
		[]byte(msg.Payload),
		msg.CreatedAt,
	).Scan(&msg.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	return err
}

// GetUnpublished returns due messages in insertion order.
func (r *PostgresRepository) GetUnpublished(ctx context.Context, now time.Time, limit int) ([]*Message, error) {
	query := `
		SELECT id, event_id, aggregate_type, aggregate_id, routing_key, payload, created_at,
		       published_at, next_retry_at, retry_count, COALESCE(last_error, ''),
		       dead_lettered_at, COALESCE(dead_letter_reason, '')
		FROM outbox
		WHERE published_at IS NULL
		  AND dead_lettered_at IS NULL
		  AND (next_retry_at IS NULL OR next_retry_at <= $1)
		ORDER BY id
		LIMIT $2
	`
	rows, err := sharedPersistence.Executor(ctx, r.pool).Query(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		var msg Message
		var payload []byte
		if err := rows.Scan(
			&msg.ID, &msg.EventID, &msg.AggregateType, &msg.AggregateID, &msg.RoutingKey, &payload, &msg.CreatedAt,
			&msg.PublishedAt, &msg.NextRetryAt, &msg.RetryCount, &msg.LastError,
			&msg.DeadLetteredAt, &msg.DeadLetterReason,
		); err != nil {
			return nil, err
		}
		msg.Payload = payload
		msg.CreatedAt = msg.CreatedAt.UTC()
		msg.PublishedAt = sharedPersistence.UTCPtr(msg.PublishedAt)
		msg.NextRetryAt = sharedPersistence.UTCPtr(msg.NextRetryAt)
		msg.DeadLetteredAt = sharedPersistence.UTCPtr(msg.DeadLetteredAt)
		messages = append(messages, &msg)
	}
	return messages, rows.Err()
}

// MarkPublished marks a message as relayed.
func (r *PostgresRepository) MarkPublished(ctx context.Context, id int64, at time.Time) error {
	return r.update(ctx, id, `UPDATE outbox SET published_at = $2 WHERE id = $1`, at)
}

// MarkFailed records a relay failure.
func (r *PostgresRepository) MarkFailed(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error {
	return r.update(ctx, id, `
		UPDATE outbox
		SET retry_count = retry_count + 1, last_error = $2, next_retry_at = $3
		WHERE id = $1`, errMsg, nextRetryAt)
}

// MarkDead stops retrying a message.
func (r *PostgresRepository) MarkDead(ctx context.Context, id int64, reason string, at time.Time) error {
	return r.update(ctx, id, `
		UPDATE outbox
		SET retry_count = retry_count + 1, dead_lettered_at = $2, dead_letter_reason = $3, last_error = $3
		WHERE id = $1`, at, reason)
}

// DeleteOld removes relayed messages published before cutoff.
func (r *PostgresRepository) DeleteOld(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := sharedPersistence.Executor(ctx, r.pool).Exec(ctx,
		`DELETE FROM outbox WHERE published_at IS NOT NULL AND published_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *PostgresRepository) update(ctx context.Context, id int64, query string, args ...any) error {
	tag, err := sharedPersistence.Executor(ctx, r.pool).Exec(ctx, query, append([]any{id}, args...)...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("outbox message %d not found", id)
	}
	return nil
}
