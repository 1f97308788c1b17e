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

const availabilityColumns = `provider_id, status, booking_enabled, schedule_enabled,
	deactivation_reason, deactivated_at, updated_at`

// SQLiteAvailabilityRepository implements domain.AvailabilityRepository using SQLite.
type SQLiteAvailabilityRepository struct {
	db    *sql.DB
	table string
}

// NewSQLiteAvailabilityRepository creates a repository over table.
func NewSQLiteAvailabilityRepository(db *sql.DB, table string) *SQLiteAvailabilityRepository {
	return &SQLiteAvailabilityRepository{db: db, table: table}
}

// Save upserts presence and flags. The deactivation columns of an existing
// row are kept so a presence update cannot lift an enforcer lockout.
func (r *SQLiteAvailabilityRepository) Save(ctx context.Context, a *domain.ProviderAvailability) error {
	query := fmt.Sprintf(`INSERT INTO %[1]s (%[2]s) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (provider_id) DO UPDATE SET
			status = excluded.status,
			booking_enabled = CASE WHEN %[1]s.deactivation_reason IS NULL THEN excluded.booking_enabled ELSE 0 END,
			schedule_enabled = CASE WHEN %[1]s.deactivation_reason IS NULL THEN excluded.schedule_enabled ELSE 0 END,
			updated_at = excluded.updated_at`, r.table, availabilityColumns)
	_, err := sharedPersistence.SQLiteExecutor(ctx, r.db).ExecContext(ctx, query,
		a.ProviderID.String(),
		string(a.Status),
		sharedPersistence.BoolToInt(a.BookingEnabled),
		sharedPersistence.BoolToInt(a.ScheduleEnabled),
		sharedPersistence.NullString(a.DeactivationReason),
		sharedPersistence.FormatNullTime(a.DeactivatedAt),
		sharedPersistence.FormatTime(a.UpdatedAt),
	)
	if err != nil {
		return sharedDomain.Unavailable("save availability", err)
	}
	return nil
}

func (r *SQLiteAvailabilityRepository) FindByProviderID(ctx context.Context, providerID uuid.UUID) (*domain.ProviderAvailability, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE provider_id = ?`, availabilityColumns, r.table)
	row := sharedPersistence.SQLiteExecutor(ctx, r.db).QueryRowContext(ctx, query, providerID.String())

	var (
		id, status, updatedAt string
		booking, schedule     int
		reason, deactivatedAt sql.NullString
	)
	err := row.Scan(&id, &status, &booking, &schedule, &reason, &deactivatedAt, &updatedAt)
	if database.IsNoRows(err) {
		return nil, domain.ErrAvailabilityNotFound
	}
	if err != nil {
		return nil, sharedDomain.Unavailable("find availability", err)
	}

	a := &domain.ProviderAvailability{
		Status:             domain.AvailabilityStatus(status),
		BookingEnabled:     booking != 0,
		ScheduleEnabled:    schedule != 0,
		DeactivationReason: reason.String,
	}
	if a.ProviderID, err = uuid.Parse(id); err != nil {
		return nil, sharedDomain.Unavailable("find availability", err)
	}
	if a.DeactivatedAt, err = sharedPersistence.ParseNullTime(deactivatedAt); err != nil {
		return nil, sharedDomain.Unavailable("find availability", err)
	}
	if a.UpdatedAt, err = sharedPersistence.ParseTime(updatedAt); err != nil {
		return nil, sharedDomain.Unavailable("find availability", err)
	}
	return a, nil
}

func (r *SQLiteAvailabilityRepository) Deactivate(ctx context.Context, providerID uuid.UUID, reason string, at time.Time) (bool, error) {
	ts := sharedPersistence.FormatTime(at)
	query := fmt.Sprintf(`UPDATE %s SET
			status = ?, booking_enabled = 0, schedule_enabled = 0,
			deactivation_reason = ?, deactivated_at = ?, updated_at = ?
		WHERE provider_id = ? AND (deactivation_reason IS NULL OR deactivation_reason <> ?)`, r.table)
	return execConditional(ctx, sharedPersistence.SQLiteExecutor(ctx, r.db), "deactivate provider", query,
		string(domain.AvailabilityBusy), reason, ts, ts, providerID.String(), reason)
}

func (r *SQLiteAvailabilityRepository) Reactivate(ctx context.Context, providerID uuid.UUID, reason string, at time.Time) (bool, error) {
	query := fmt.Sprintf(`UPDATE %s SET
			status = ?, booking_enabled = 1, schedule_enabled = 1,
			deactivation_reason = NULL, deactivated_at = NULL, updated_at = ?
		WHERE provider_id = ? AND deactivation_reason = ?`, r.table)
	return execConditional(ctx, sharedPersistence.SQLiteExecutor(ctx, r.db), "reactivate provider", query,
		string(domain.AvailabilityOffline), sharedPersistence.FormatTime(at), providerID.String(), reason)
}
