package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/bookline/internal/booking/domain"
	sharedDomain "github.com/felixgeelhaar/bookline/internal/shared/domain"
	"github.com/felixgeelhaar/bookline/internal/shared/infrastructure/database"
	sharedPersistence "github.com/felixgeelhaar/bookline/internal/shared/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

// PostgresBookingRepository implements domain.Repository using PostgreSQL.
type PostgresBookingRepository struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgresBookingRepository creates a repository over table.
func NewPostgresBookingRepository(pool *pgxpool.Pool, table string) *PostgresBookingRepository {
	return &PostgresBookingRepository{pool: pool, table: table}
}

func (r *PostgresBookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	s := b.Snapshot()
	var reason *string
	if s.CancellationReason != "" {
		reason = &s.CancellationReason
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`, r.table, bookingColumns)
	_, err := sharedPersistence.Executor(ctx, r.pool).Exec(ctx, query,
		s.ID,
		string(s.Status),
		s.CustomerID,
		s.ProviderID,
		int64(s.ServiceDuration/time.Minute),
		s.ScheduledAt,
		reason,
		s.PriceMinor,
		s.Currency,
		s.CreatedAt,
		s.UpdatedAt,
	)
	if err != nil {
		return sharedDomain.Unavailable("create booking", err)
	}
	return nil
}

func (r *PostgresBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, bookingColumns, r.table)
	row := sharedPersistence.Executor(ctx, r.pool).QueryRow(ctx, query, id)

	var (
		s               domain.Snapshot
		status          string
		durationMinutes int64
		reason          *string
	)
	err := row.Scan(&s.ID, &status, &s.CustomerID, &s.ProviderID, &durationMinutes, &s.ScheduledAt,
		&reason, &s.PriceMinor, &s.Currency, &s.CreatedAt, &s.UpdatedAt)
	if database.IsNoRows(err) {
		return nil, domain.ErrBookingNotFound
	}
	if err != nil {
		return nil, sharedDomain.Unavailable("find booking", err)
	}

	s.Status = domain.Status(status)
	s.ServiceDuration = time.Duration(durationMinutes) * time.Minute
	if reason != nil {
		s.CancellationReason = *reason
	}
	s.ScheduledAt = sharedPersistence.UTCPtr(s.ScheduledAt)
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return domain.RehydrateBooking(s), nil
}

// Transition applies the request as one conditional UPDATE.
func (r *PostgresBookingRepository) Transition(ctx context.Context, req domain.TransitionRequest) (*domain.Booking, error) {
	sources := make([]string, len(req.Sources))
	for i, s := range req.Sources {
		sources[i] = string(s)
	}
	var reason *string
	if req.Reason != "" {
		reason = &req.Reason
	}

	query := fmt.Sprintf(`UPDATE %s SET
			status = $2,
			updated_at = $3,
			provider_id = COALESCE($4, provider_id),
			cancellation_reason = COALESCE($5, cancellation_reason)
		WHERE id = $1 AND status = ANY($6)`, r.table)

	exec := sharedPersistence.Executor(ctx, r.pool)
	tag, err := exec.Exec(ctx, query, req.BookingID, string(req.To), req.At.UTC(), req.ProviderID, reason, pq.Array(sources))
	if err != nil {
		return nil, sharedDomain.Unavailable("transition booking", err)
	}
	if tag.RowsAffected() == 0 {
		var current string
		err := exec.QueryRow(ctx, fmt.Sprintf(`SELECT status FROM %s WHERE id = $1`, r.table), req.BookingID).Scan(&current)
		if database.IsNoRows(err) {
			return nil, domain.ErrBookingNotFound
		}
		if err != nil {
			return nil, sharedDomain.Unavailable("read booking status", err)
		}
		return nil, &domain.TransitionError{From: domain.Status(current), To: req.To}
	}
	return r.FindByID(ctx, req.BookingID)
}
