package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/felixgeelhaar/bookline/internal/commission/domain"
	sharedDomain "github.com/felixgeelhaar/bookline/internal/shared/domain"
	"github.com/felixgeelhaar/bookline/internal/shared/infrastructure/database"
	sharedPersistence "github.com/felixgeelhaar/bookline/internal/shared/infrastructure/persistence"
	"github.com/google/uuid"
)

const recordColumns = `id, booking_id, provider_id, amount_minor, currency, status, deadline_at,
	payment_reference, created_at, updated_at, paid_at, expired_at, enforced_at`

// SQLiteRecordRepository implements domain.RecordRepository using SQLite.
type SQLiteRecordRepository struct {
	db    *sql.DB
	table string
}

// NewSQLiteRecordRepository creates a repository over table.
func NewSQLiteRecordRepository(db *sql.DB, table string) *SQLiteRecordRepository {
	return &SQLiteRecordRepository{db: db, table: table}
}

func (r *SQLiteRecordRepository) Create(ctx context.Context, rec *domain.Record) error {
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (booking_id) DO NOTHING`, r.table, recordColumns)
	res, err := sharedPersistence.SQLiteExecutor(ctx, r.db).ExecContext(ctx, query,
		rec.ID.String(),
		rec.BookingID.String(),
		rec.ProviderID.String(),
		rec.AmountMinor,
		rec.Currency,
		string(rec.Status),
		sharedPersistence.FormatTime(rec.DeadlineAt),
		sharedPersistence.NullString(rec.PaymentReference),
		sharedPersistence.FormatTime(rec.CreatedAt),
		sharedPersistence.FormatTime(rec.UpdatedAt),
		sharedPersistence.FormatNullTime(rec.PaidAt),
		sharedPersistence.FormatNullTime(rec.ExpiredAt),
		sharedPersistence.FormatNullTime(rec.EnforcedAt),
	)
	if err != nil {
		return sharedDomain.Unavailable("create commission", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return sharedDomain.Unavailable("create commission", err)
	} else if n == 0 {
		return domain.ErrCommissionExists
	}
	return nil
}

func (r *SQLiteRecordRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Record, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, recordColumns, r.table)
	rec, err := scanSQLiteRecord(sharedPersistence.SQLiteExecutor(ctx, r.db).QueryRowContext(ctx, query, id.String()))
	if database.IsNoRows(err) {
		return nil, domain.ErrCommissionNotFound
	}
	if err != nil {
		return nil, sharedDomain.Unavailable("find commission", err)
	}
	return rec, nil
}

func (r *SQLiteRecordRepository) FindOverdue(ctx context.Context, now time.Time, limit int) ([]*domain.Record, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s
		WHERE deadline_at < ?
		  AND (status IN (?, ?) OR (status = ? AND enforced_at IS NULL))
		ORDER BY deadline_at ASC, id ASC
		LIMIT ?`, recordColumns, r.table)
	rows, err := sharedPersistence.SQLiteExecutor(ctx, r.db).QueryContext(ctx, query,
		sharedPersistence.FormatTime(now),
		string(domain.StatusPending),
		string(domain.StatusAwaitingVerification),
		string(domain.StatusExpired),
		limit,
	)
	if err != nil {
		return nil, sharedDomain.Unavailable("find overdue commissions", err)
	}
	return collectSQLiteRecords(rows, "find overdue commissions")
}

func (r *SQLiteRecordRepository) ListByProvider(ctx context.Context, providerID uuid.UUID) ([]*domain.Record, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE provider_id = ? ORDER BY created_at ASC`, recordColumns, r.table)
	rows, err := sharedPersistence.SQLiteExecutor(ctx, r.db).QueryContext(ctx, query, providerID.String())
	if err != nil {
		return nil, sharedDomain.Unavailable("list commissions", err)
	}
	return collectSQLiteRecords(rows, "list commissions")
}

func (r *SQLiteRecordRepository) Expire(ctx context.Context, id uuid.UUID, at time.Time) (bool, domain.Status, error) {
	ts := sharedPersistence.FormatTime(at)
	query := fmt.Sprintf(`UPDATE %s SET status = ?, expired_at = ?, updated_at = ?
		WHERE id = ? AND status IN (?, ?)`, r.table)

	exec := sharedPersistence.SQLiteExecutor(ctx, r.db)
	changed, err := execConditional(ctx, exec, "expire commission", query,
		string(domain.StatusExpired), ts, ts, id.String(),
		string(domain.StatusPending), string(domain.StatusAwaitingVerification))
	if err != nil {
		return false, "", err
	}
	if changed {
		return true, domain.StatusExpired, nil
	}
	current, err := r.currentStatus(ctx, exec, id)
	return false, current, err
}

func (r *SQLiteRecordRepository) MarkEnforced(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	query := fmt.Sprintf(`UPDATE %s SET enforced_at = ?, updated_at = ?
		WHERE id = ? AND status = ? AND enforced_at IS NULL`, r.table)
	ts := sharedPersistence.FormatTime(at)
	return execConditional(ctx, sharedPersistence.SQLiteExecutor(ctx, r.db), "mark commission enforced", query,
		ts, ts, id.String(), string(domain.StatusExpired))
}

func (r *SQLiteRecordRepository) SubmitPayment(ctx context.Context, id uuid.UUID, reference string, at time.Time) (*domain.Record, error) {
	query := fmt.Sprintf(`UPDATE %s SET status = ?, payment_reference = ?, updated_at = ?
		WHERE id = ? AND status = ?`, r.table)
	return r.conditionalUpdate(ctx, id, domain.StatusAwaitingVerification, "submit commission payment", query,
		string(domain.StatusAwaitingVerification), sharedPersistence.NullString(reference), sharedPersistence.FormatTime(at),
		id.String(), string(domain.StatusPending))
}

func (r *SQLiteRecordRepository) MarkPaid(ctx context.Context, id uuid.UUID, at time.Time) (*domain.Record, error) {
	ts := sharedPersistence.FormatTime(at)
	query := fmt.Sprintf(`UPDATE %s SET status = ?, paid_at = ?, updated_at = ?
		WHERE id = ? AND status IN (?, ?)`, r.table)
	return r.conditionalUpdate(ctx, id, domain.StatusPaid, "mark commission paid", query,
		string(domain.StatusPaid), ts, ts, id.String(),
		string(domain.StatusPending), string(domain.StatusAwaitingVerification))
}

func (r *SQLiteRecordRepository) CountBlocking(ctx context.Context, providerID uuid.UUID, now time.Time) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s
		WHERE provider_id = ?
		  AND ((status IN (?, ?) AND deadline_at < ?) OR (status = ? AND enforced_at IS NULL))`, r.table)
	var n int
	err := sharedPersistence.SQLiteExecutor(ctx, r.db).QueryRowContext(ctx, query,
		providerID.String(),
		string(domain.StatusPending),
		string(domain.StatusAwaitingVerification),
		sharedPersistence.FormatTime(now),
		string(domain.StatusExpired),
	).Scan(&n)
	if err != nil {
		return 0, sharedDomain.Unavailable("count blocking commissions", err)
	}
	return n, nil
}

func (r *SQLiteRecordRepository) conditionalUpdate(ctx context.Context, id uuid.UUID, to domain.Status, op, query string, args ...any) (*domain.Record, error) {
	exec := sharedPersistence.SQLiteExecutor(ctx, r.db)
	changed, err := execConditional(ctx, exec, op, query, args...)
	if err != nil {
		return nil, err
	}
	if !changed {
		current, err := r.currentStatus(ctx, exec, id)
		if err != nil {
			return nil, err
		}
		return nil, &domain.StatusTransitionError{Current: current, To: to}
	}
	return r.FindByID(ctx, id)
}

func (r *SQLiteRecordRepository) currentStatus(ctx context.Context, exec sharedPersistence.SQLiteQuerier, id uuid.UUID) (domain.Status, error) {
	var current string
	err := exec.QueryRowContext(ctx, fmt.Sprintf(`SELECT status FROM %s WHERE id = ?`, r.table), id.String()).Scan(&current)
	if database.IsNoRows(err) {
		return "", domain.ErrCommissionNotFound
	}
	if err != nil {
		return "", sharedDomain.Unavailable("read commission status", err)
	}
	return domain.Status(current), nil
}

func execConditional(ctx context.Context, exec sharedPersistence.SQLiteQuerier, op, query string, args ...any) (bool, error) {
	res, err := exec.ExecContext(ctx, query, args...)
	if err != nil {
		return false, sharedDomain.Unavailable(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, sharedDomain.Unavailable(op, err)
	}
	return n > 0, nil
}

func collectSQLiteRecords(rows *sql.Rows, op string) ([]*domain.Record, error) {
	defer rows.Close()
	var out []*domain.Record
	for rows.Next() {
		rec, err := scanSQLiteRecord(rows)
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

func scanSQLiteRecord(row interface{ Scan(dest ...any) error }) (*domain.Record, error) {
	var (
		id, bookingID, providerID, currency, status, deadline, createdAt, updatedAt string
		reference, paidAt, expiredAt, enforcedAt                                    sql.NullString
		amount                                                                      int64
	)
	if err := row.Scan(&id, &bookingID, &providerID, &amount, &currency, &status, &deadline,
		&reference, &createdAt, &updatedAt, &paidAt, &expiredAt, &enforcedAt); err != nil {
		return nil, err
	}

	rec := &domain.Record{
		AmountMinor:      amount,
		Currency:         currency,
		Status:           domain.Status(status),
		PaymentReference: reference.String,
	}
	var err error
	if rec.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if rec.BookingID, err = uuid.Parse(bookingID); err != nil {
		return nil, err
	}
	if rec.ProviderID, err = uuid.Parse(providerID); err != nil {
		return nil, err
	}
	if rec.DeadlineAt, err = sharedPersistence.ParseTime(deadline); err != nil {
		return nil, err
	}
	if rec.CreatedAt, err = sharedPersistence.ParseTime(createdAt); err != nil {
		return nil, err
	}
	if rec.UpdatedAt, err = sharedPersistence.ParseTime(updatedAt); err != nil {
		return nil, err
	}
	if rec.PaidAt, err = sharedPersistence.ParseNullTime(paidAt); err != nil {
		return nil, err
	}
	if rec.ExpiredAt, err = sharedPersistence.ParseNullTime(expiredAt); err != nil {
		return nil, err
	}
	if rec.EnforcedAt, err = sharedPersistence.ParseNullTime(enforcedAt); err != nil {
		return nil, err
	}
	return rec, nil
}
