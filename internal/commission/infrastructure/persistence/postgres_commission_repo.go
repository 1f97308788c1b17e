package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/bookline/internal/commission/domain"
	sharedDomain "github.com/felixgeelhaar/bookline/internal/shared/domain"
	"github.com/felixgeelhaar/bookline/internal/shared/infrastructure/database"
	sharedPersistence "github.com/felixgeelhaar/bookline/internal/shared/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

// PostgresRecordRepository implements domain.RecordRepository using PostgreSQL.
type PostgresRecordRepository struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgresRecordRepository creates a repository over table.
func NewPostgresRecordRepository(pool *pgxpool.Pool, table string) *PostgresRecordRepository {
	return &PostgresRecordRepository{pool: pool, table: table}
}

func openStatuses() any {
	return pq.Array([]string{string(domain.StatusPending), string(domain.StatusAwaitingVerification)})
}

func (r *PostgresRecordRepository) Create(ctx context.Context, rec *domain.Record) error {
	var reference *string
	if rec.PaymentReference != "" {
		reference = &rec.PaymentReference
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (booking_id) DO NOTHING`, r.table, recordColumns)
	tag, err := sharedPersistence.Executor(ctx, r.pool).Exec(ctx, query,
		rec.ID, rec.BookingID, rec.ProviderID, rec.AmountMinor, rec.Currency, string(rec.Status),
		rec.DeadlineAt, reference, rec.CreatedAt, rec.UpdatedAt, rec.PaidAt, rec.ExpiredAt, rec.EnforcedAt,
	)
	if err != nil {
		return sharedDomain.Unavailable("create commission", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrCommissionExists
	}
	return nil
}

func (r *PostgresRecordRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Record, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, recordColumns, r.table)
	rec, err := scanPostgresRecord(sharedPersistence.Executor(ctx, r.pool).QueryRow(ctx, query, id))
	if database.IsNoRows(err) {
		return nil, domain.ErrCommissionNotFound
	}
	if err != nil {
		return nil, sharedDomain.Unavailable("find commission", err)
	}
	return rec, nil
}

func (r *PostgresRecordRepository) FindOverdue(ctx context.Context, now time.Time, limit int) ([]*domain.Record, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s
		WHERE deadline_at < $1
		  AND (status = ANY($2) OR (status = $3 AND enforced_at IS NULL))
		ORDER BY deadline_at ASC, id ASC
		LIMIT $4`, recordColumns, r.table)
	rows, err := sharedPersistence.Executor(ctx, r.pool).Query(ctx, query, now.UTC(), openStatuses(), string(domain.StatusExpired), limit)
	if err != nil {
		return nil, sharedDomain.Unavailable("find overdue commissions", err)
	}
	return collectPostgresRecords(rows, "find overdue commissions")
}

func (r *PostgresRecordRepository) ListByProvider(ctx context.Context, providerID uuid.UUID) ([]*domain.Record, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE provider_id = $1 ORDER BY created_at ASC`, recordColumns, r.table)
	rows, err := sharedPersistence.Executor(ctx, r.pool).Query(ctx, query, providerID)
	if err != nil {
		return nil, sharedDomain.Unavailable("list commissions", err)
	}
	return collectPostgresRecords(rows, "list commissions")
}

func (r *PostgresRecordRepository) Expire(ctx context.Context, id uuid.UUID, at time.Time) (bool, domain.Status, error) {
	query := fmt.Sprintf(`UPDATE %s SET status = $2, expired_at = $3, updated_at = $3
		WHERE id = $1 AND status = ANY($4)`, r.table)
	exec := sharedPersistence.Executor(ctx, r.pool)
	tag, err := exec.Exec(ctx, query, id, string(domain.StatusExpired), at.UTC(), openStatuses())
	if err != nil {
		return false, "", sharedDomain.Unavailable("expire commission", err)
	}
	if tag.RowsAffected() > 0 {
		return true, domain.StatusExpired, nil
	}
	current, err := r.currentStatus(ctx, exec, id)
	return false, current, err
}

func (r *PostgresRecordRepository) MarkEnforced(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	query := fmt.Sprintf(`UPDATE %s SET enforced_at = $2, updated_at = $2
		WHERE id = $1 AND status = $3 AND enforced_at IS NULL`, r.table)
	tag, err := sharedPersistence.Executor(ctx, r.pool).Exec(ctx, query, id, at.UTC(), string(domain.StatusExpired))
	if err != nil {
		return false, sharedDomain.Unavailable("mark commission enforced", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresRecordRepository) SubmitPayment(ctx context.Context, id uuid.UUID, reference string, at time.Time) (*domain.Record, error) {
	var ref *string
	if reference != "" {
		ref = &reference
	}
	query := fmt.Sprintf(`UPDATE %s SET status = $2, payment_reference = $3, updated_at = $4
		WHERE id = $1 AND status = $5`, r.table)
	return r.conditionalUpdate(ctx, id, domain.StatusAwaitingVerification, "submit commission payment", query,
		id, string(domain.StatusAwaitingVerification), ref, at.UTC(), string(domain.StatusPending))
}

func (r *PostgresRecordRepository) MarkPaid(ctx context.Context, id uuid.UUID, at time.Time) (*domain.Record, error) {
	query := fmt.Sprintf(`UPDATE %s SET status = $2, paid_at = $3, updated_at = $3
		WHERE id = $1 AND status = ANY($4)`, r.table)
	return r.conditionalUpdate(ctx, id, domain.StatusPaid, "mark commission paid", query,
		id, string(domain.StatusPaid), at.UTC(), openStatuses())
}

func (r *PostgresRecordRepository) CountBlocking(ctx context.Context, providerID uuid.UUID, now time.Time) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s
		WHERE provider_id = $1
		  AND ((status = ANY($2) AND deadline_at < $3) OR (status = $4 AND enforced_at IS NULL))`, r.table)
	var n int
	err := sharedPersistence.Executor(ctx, r.pool).QueryRow(ctx, query,
		providerID, openStatuses(), now.UTC(), string(domain.StatusExpired)).Scan(&n)
	if err != nil {
		return 0, sharedDomain.Unavailable("count blocking commissions", err)
	}
	return n, nil
}

func (r *PostgresRecordRepository) conditionalUpdate(ctx context.Context, id uuid.UUID, to domain.Status, op, query string, args ...any) (*domain.Record, error) {
	exec := sharedPersistence.Executor(ctx, r.pool)
	tag, err := exec.Exec(ctx, query, args...)
	if err != nil {
		return nil, sharedDomain.Unavailable(op, err)
	}
	if tag.RowsAffected() == 0 {
		current, err := r.currentStatus(ctx, exec, id)
		if err != nil {
			return nil, err
		}
		return nil, &domain.StatusTransitionError{Current: current, To: to}
	}
	return r.FindByID(ctx, id)
}

func (r *PostgresRecordRepository) currentStatus(ctx context.Context, exec sharedPersistence.DBExecutor, id uuid.UUID) (domain.Status, error) {
	var current string
	err := exec.QueryRow(ctx, fmt.Sprintf(`SELECT status FROM %s WHERE id = $1`, r.table), id).Scan(&current)
	if database.IsNoRows(err) {
		return "", domain.ErrCommissionNotFound
	}
	if err != nil {
		return "", sharedDomain.Unavailable("read commission status", err)
	}
	return domain.Status(current), nil
}

func collectPostgresRecords(rows pgx.Rows, op string) ([]*domain.Record, error) {
	defer rows.Close()
	var out []*domain.Record
	for rows.Next() {
		rec, err := scanPostgresRecord(rows)
		if err != nil {
			return nil, sharedDomain.Unavailable(op, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, sharedDomain.Unavailable(op, err)
	}
	return out, nil
}

func scanPostgresRecord(row pgx.Row) (*domain.Record, error) {
	var (
		rec       domain.Record
		status    string
		reference *string
	)
	if err := row.Scan(&rec.ID, &rec.BookingID, &rec.ProviderID, &rec.AmountMinor, &rec.Currency, &status,
		&rec.DeadlineAt, &reference, &rec.CreatedAt, &rec.UpdatedAt, &rec.PaidAt, &rec.ExpiredAt, &rec.EnforcedAt); err != nil {
		return nil, err
	}
	rec.Status = domain.Status(status)
	if reference != nil {
		rec.PaymentReference = *reference
	}
	rec.DeadlineAt = rec.DeadlineAt.UTC()
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	rec.PaidAt = sharedPersistence.UTCPtr(rec.PaidAt)
	rec.ExpiredAt = sharedPersistence.UTCPtr(rec.ExpiredAt)
	rec.EnforcedAt = sharedPersistence.UTCPtr(rec.EnforcedAt)
	return &rec, nil
}
