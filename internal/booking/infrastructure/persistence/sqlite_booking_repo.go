package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/felixgeelhaar/bookline/internal/booking/domain"
	sharedDomain "github.com/felixgeelhaar/bookline/internal/shared/domain"
	"github.com/felixgeelhaar/bookline/internal/shared/infrastructure/database"
	sharedPersistence "github.com/felixgeelhaar/bookline/internal/shared/infrastructure/persistence"
	"github.com/google/uuid"
)

const bookingColumns = `id, status, customer_id, provider_id, service_duration_minutes, scheduled_at,
	cancellation_reason, price_minor, currency, created_at, updated_at`

// SQLiteBookingRepository implements domain.Repository using SQLite.
type SQLiteBookingRepository struct {
	db    *sql.DB
	table string
}

// NewSQLiteBookingRepository creates a repository over table.
func NewSQLiteBookingRepository(db *sql.DB, table string) *SQLiteBookingRepository {
	return &SQLiteBookingRepository{db: db, table: table}
}

func (r *SQLiteBookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	s := b.Snapshot()
	var providerID sql.NullString
	if s.ProviderID != nil {
		providerID = sql.NullString{String: s.ProviderID.String(), Valid: true}
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, r.table, bookingColumns)
	_, err := sharedPersistence.SQLiteExecutor(ctx, r.db).ExecContext(ctx, query,
		s.ID.String(),
		string(s.Status),
		s.CustomerID.String(),
		providerID,
		int64(s.ServiceDuration/time.Minute),
		sharedPersistence.FormatNullTime(s.ScheduledAt),
		sharedPersistence.NullString(s.CancellationReason),
		s.PriceMinor,
		s.Currency,
		sharedPersistence.FormatTime(s.CreatedAt),
		sharedPersistence.FormatTime(s.UpdatedAt),
	)
	if err != nil {
		return sharedDomain.Unavailable("create booking", err)
	}
	return nil
}

func (r *SQLiteBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, bookingColumns, r.table)
	row := sharedPersistence.SQLiteExecutor(ctx, r.db).QueryRowContext(ctx, query, id.String())

	b, err := scanSQLiteBooking(row)
	if database.IsNoRows(err) {
		return nil, domain.ErrBookingNotFound
	}
	if err != nil {
		return nil, sharedDomain.Unavailable("find booking", err)
	}
	return b, nil
}

func (r *SQLiteBookingRepository) Transition(ctx context.Context, req domain.TransitionRequest) (*domain.Booking, error) {
	if len(req.Sources) == 0 {
		return nil, &domain.TransitionError{To: req.To}
	}

	var providerID, reason sql.NullString
	if req.ProviderID != nil {
		providerID = sql.NullString{String: req.ProviderID.String(), Valid: true}
	}
	if req.Reason != "" {
		reason = sql.NullString{String: req.Reason, Valid: true}
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(req.Sources)), ", ")
	query := fmt.Sprintf(`UPDATE %s SET
			status = ?,
			updated_at = ?,
			provider_id = COALESCE(?, provider_id),
			cancellation_reason = COALESCE(?, cancellation_reason)
		WHERE id = ? AND status IN (%s)`, r.table, placeholders)

	args := []any{
		string(req.To),
		sharedPersistence.FormatTime(req.At),
		providerID,
		reason,
		req.BookingID.String(),
	}
	for _, s := range req.Sources {
		args = append(args, string(s))
	}

	exec := sharedPersistence.SQLiteExecutor(ctx, r.db)
	res, err := exec.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, sharedDomain.Unavailable("transition booking", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, sharedDomain.Unavailable("transition booking", err)
	}
	if affected == 0 {
		return nil, r.rejection(ctx, exec, req)
	}
	return r.FindByID(ctx, req.BookingID)
}

// rejection explains a conditional update that matched no row.
func (r *SQLiteBookingRepository) rejection(ctx context.Context, exec sharedPersistence.SQLiteQuerier, req domain.TransitionRequest) error {
	var current string
	err := exec.QueryRowContext(ctx, fmt.Sprintf(`SELECT status FROM %s WHERE id = ?`, r.table), req.BookingID.String()).Scan(&current)
	if database.IsNoRows(err) {
		return domain.ErrBookingNotFound
	}
	if err != nil {
		return sharedDomain.Unavailable("read booking status", err)
	}
	return &domain.TransitionError{From: domain.Status(current), To: req.To}
}

func scanSQLiteBooking(row interface{ Scan(dest ...any) error }) (*domain.Booking, error) {
	var (
		id, status, customerID, currency, createdAt, updatedAt string
		providerID, scheduledAt, reason                        sql.NullString
		durationMinutes, priceMinor                            int64
	)
	if err := row.Scan(&id, &status, &customerID, &providerID, &durationMinutes, &scheduledAt,
		&reason, &priceMinor, &currency, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	s := domain.Snapshot{
		Status:             domain.Status(status),
		ServiceDuration:    time.Duration(durationMinutes) * time.Minute,
		CancellationReason: reason.String,
		PriceMinor:         priceMinor,
		Currency:           currency,
	}

	var err error
	if s.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if s.CustomerID, err = uuid.Parse(customerID); err != nil {
		return nil, err
	}
	if providerID.Valid {
		pid, err := uuid.Parse(providerID.String)
		if err != nil {
			return nil, err
		}
		s.ProviderID = &pid
	}
	if s.ScheduledAt, err = sharedPersistence.ParseNullTime(scheduledAt); err != nil {
		return nil, err
	}
	if s.CreatedAt, err = sharedPersistence.ParseTime(createdAt); err != nil {
		return nil, err
	}
	if s.UpdatedAt, err = sharedPersistence.ParseTime(updatedAt); err != nil {
		return nil, err
	}
	return domain.RehydrateBooking(s), nil
}
