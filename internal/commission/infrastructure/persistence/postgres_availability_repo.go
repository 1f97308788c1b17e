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
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresAvailabilityRepository implements domain.AvailabilityRepository using PostgreSQL.
type PostgresAvailabilityRepository struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgresAvailabilityRepository creates a repository over table.
func NewPostgresAvailabilityRepository(pool *pgxpool.Pool, table string) *PostgresAvailabilityRepository {
	return &PostgresAvailabilityRepository{pool: pool, table: table}
}

func (r *PostgresAvailabilityRepository) Save(ctx context.Context, a *domain.ProviderAvailability) error {
	var reason *string
	if a.DeactivationReason != "" {
		reason = &a.DeactivationReason
	}
	query := fmt.Sprintf(`INSERT INTO %[1]s (%[2]s) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (provider_id) DO UPDATE SET
			status = excluded.status,
			booking_enabled = %[1]s.deactivation_reason IS NULL AND excluded.booking_enabled,
			schedule_enabled = %[1]s.deactivation_reason IS NULL AND excluded.schedule_enabled,
			updated_at = excluded.updated_at`, r.table, availabilityColumns)
	_, err := sharedPersistence.Executor(ctx, r.pool).Exec(ctx, query,
		a.ProviderID, string(a.Status), a.BookingEnabled, a.ScheduleEnabled, reason, a.DeactivatedAt, a.UpdatedAt.UTC())
	if err != nil {
		return sharedDomain.Unavailable("save availability", err)
	}
	return nil
}

func (r *PostgresAvailabilityRepository) FindByProviderID(ctx context.Context, providerID uuid.UUID) (*domain.ProviderAvailability, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE provider_id = $1`, availabilityColumns, r.table)
	var (
		a      domain.ProviderAvailability
		status string
		reason *string
	)
	err := sharedPersistence.Executor(ctx, r.pool).QueryRow(ctx, query, providerID).Scan(
		&a.ProviderID, &status, &a.BookingEnabled, &a.ScheduleEnabled, &reason, &a.DeactivatedAt, &a.UpdatedAt)
	if database.IsNoRows(err) {
		return nil, domain.ErrAvailabilityNotFound
	}
	if err != nil {
		return nil, sharedDomain.Unavailable("find availability", err)
	}
	a.Status = domain.AvailabilityStatus(status)
	if reason != nil {
		a.DeactivationReason = *reason
	}
	a.DeactivatedAt = sharedPersistence.UTCPtr(a.DeactivatedAt)
	a.UpdatedAt = a.UpdatedAt.UTC()
	return &a, nil
}

func (r *PostgresAvailabilityRepository) Deactivate(ctx context.Context, providerID uuid.UUID, reason string, at time.Time) (bool, error) {
	query := fmt.Sprintf(`UPDATE %s SET
			status = $2, booking_enabled = FALSE, schedule_enabled = FALSE,
			deactivation_reason = $3, deactivated_at = $4, updated_at = $4
		WHERE provider_id = $1 AND deactivation_reason IS DISTINCT FROM $3`, r.table)
	tag, err := sharedPersistence.Executor(ctx, r.pool).Exec(ctx, query,
		providerID, string(domain.AvailabilityBusy), reason, at.UTC())
	if err != nil {
		return false, sharedDomain.Unavailable("deactivate provider", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PostgresAvailabilityRepository) Reactivate(ctx context.Context, providerID uuid.UUID, reason string, at time.Time) (bool, error) {
	query := fmt.Sprintf(`UPDATE %s SET
			status = $2, booking_enabled = TRUE, schedule_enabled = TRUE,
			deactivation_reason = NULL, deactivated_at = NULL, updated_at = $3
		WHERE provider_id = $1 AND deactivation_reason = $4`, r.table)
	tag, err := sharedPersistence.Executor(ctx, r.pool).Exec(ctx, query,
		providerID, string(domain.AvailabilityOffline), at.UTC(), reason)
	if err != nil {
		return false, sharedDomain.Unavailable("reactivate provider", err)
	}
	return tag.RowsAffected() > 0, nil
}
