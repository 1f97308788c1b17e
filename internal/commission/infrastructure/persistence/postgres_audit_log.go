package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/bookline/internal/commission/domain"
	sharedDomain "github.com/felixgeelhaar/bookline/internal/shared/domain"
	sharedPersistence "github.com/felixgeelhaar/bookline/internal/shared/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresAuditLog implements domain.AuditLog using PostgreSQL.
type PostgresAuditLog struct {
	pool  *pgxpool.Pool
	table string
}

// NewPostgresAuditLog creates an audit log over table.
func NewPostgresAuditLog(pool *pgxpool.Pool, table string) *PostgresAuditLog {
	return &PostgresAuditLog{pool: pool, table: table}
}

func (l *PostgresAuditLog) Append(ctx context.Context, e *domain.AuditLogEntry) (bool, error) {
	details := e.Details
	if len(details) == 0 {
		details = json.RawMessage("{}")
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT DO NOTHING`, l.table, auditColumns)
	tag, err := sharedPersistence.Executor(ctx, l.pool).Exec(ctx, query,
		e.ID, string(e.Type), e.CommissionID, e.BookingID, e.ProviderID, e.DeadlineAt,
		e.EnforcedAt.UTC(), e.Actor, []byte(details), e.CreatedAt.UTC())
	if err != nil {
		return false, sharedDomain.Unavailable("append audit entry", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (l *PostgresAuditLog) Exists(ctx context.Context, commissionID uuid.UUID, t domain.AuditType) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE commission_id = $1 AND type = $2)`, l.table)
	var found bool
	if err := sharedPersistence.Executor(ctx, l.pool).QueryRow(ctx, query, commissionID, string(t)).Scan(&found); err != nil {
		return false, sharedDomain.Unavailable("check audit entry", err)
	}
	return found, nil
}

func (l *PostgresAuditLog) ListByProvider(ctx context.Context, providerID uuid.UUID) ([]*domain.AuditLogEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE provider_id = $1 ORDER BY created_at ASC, id ASC`, auditColumns, l.table)
	rows, err := sharedPersistence.Executor(ctx, l.pool).Query(ctx, query, providerID)
	if err != nil {
		return nil, sharedDomain.Unavailable("list audit entries", err)
	}
	defer rows.Close()

	var out []*domain.AuditLogEntry
	for rows.Next() {
		var (
			e       domain.AuditLogEntry
			typ     string
			details []byte
		)
		if err := rows.Scan(&e.ID, &typ, &e.CommissionID, &e.BookingID, &e.ProviderID, &e.DeadlineAt,
			&e.EnforcedAt, &e.Actor, &details, &e.CreatedAt); err != nil {
			return nil, sharedDomain.Unavailable("list audit entries", err)
		}
		e.Type = domain.AuditType(typ)
		e.Details = json.RawMessage(details)
		e.DeadlineAt = sharedPersistence.UTCPtr(e.DeadlineAt)
		e.EnforcedAt = e.EnforcedAt.UTC()
		e.CreatedAt = e.CreatedAt.UTC()
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, sharedDomain.Unavailable("list audit entries", err)
	}
	return out, nil
}
