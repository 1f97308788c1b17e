package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/bookline/internal/commission/domain"
	sharedDomain "github.com/felixgeelhaar/bookline/internal/shared/domain"
	sharedPersistence "github.com/felixgeelhaar/bookline/internal/shared/infrastructure/persistence"
	"github.com/google/uuid"
)

const auditColumns = `id, type, commission_id, booking_id, provider_id, deadline_at,
	enforced_at, actor, details, created_at`

// SQLiteAuditLog implements domain.AuditLog using SQLite.
type SQLiteAuditLog struct {
	db    *sql.DB
	table string
}

// NewSQLiteAuditLog creates an audit log over table.
func NewSQLiteAuditLog(db *sql.DB, table string) *SQLiteAuditLog {
	return &SQLiteAuditLog{db: db, table: table}
}

func (l *SQLiteAuditLog) Append(ctx context.Context, e *domain.AuditLogEntry) (bool, error) {
	details := e.Details
	if len(details) == 0 {
		details = json.RawMessage("{}")
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`, l.table, auditColumns)
	return execConditional(ctx, sharedPersistence.SQLiteExecutor(ctx, l.db), "append audit entry", query,
		e.ID.String(),
		string(e.Type),
		nullUUID(e.CommissionID),
		nullUUID(e.BookingID),
		e.ProviderID.String(),
		sharedPersistence.FormatNullTime(e.DeadlineAt),
		sharedPersistence.FormatTime(e.EnforcedAt),
		e.Actor,
		string(details),
		sharedPersistence.FormatTime(e.CreatedAt),
	)
}

func (l *SQLiteAuditLog) Exists(ctx context.Context, commissionID uuid.UUID, t domain.AuditType) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE commission_id = ? AND type = ?)`, l.table)
	var found int
	err := sharedPersistence.SQLiteExecutor(ctx, l.db).QueryRowContext(ctx, query, commissionID.String(), string(t)).Scan(&found)
	if err != nil {
		return false, sharedDomain.Unavailable("check audit entry", err)
	}
	return found != 0, nil
}

func (l *SQLiteAuditLog) ListByProvider(ctx context.Context, providerID uuid.UUID) ([]*domain.AuditLogEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE provider_id = ? ORDER BY created_at ASC, id ASC`, auditColumns, l.table)
	rows, err := sharedPersistence.SQLiteExecutor(ctx, l.db).QueryContext(ctx, query, providerID.String())
	if err != nil {
		return nil, sharedDomain.Unavailable("list audit entries", err)
	}
	defer rows.Close()

	var out []*domain.AuditLogEntry
	for rows.Next() {
		e, err := scanSQLiteAuditEntry(rows)
		if err != nil {
			return nil, sharedDomain.Unavailable("list audit entries", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, sharedDomain.Unavailable("list audit entries", err)
	}
	return out, nil
}

func scanSQLiteAuditEntry(row interface{ Scan(dest ...any) error }) (*domain.AuditLogEntry, error) {
	var (
		id, typ, providerID, enforcedAt, actor, details, createdAt string
		commissionID, bookingID, deadlineAt                       sql.NullString
	)
	if err := row.Scan(&id, &typ, &commissionID, &bookingID, &providerID, &deadlineAt,
		&enforcedAt, &actor, &details, &createdAt); err != nil {
		return nil, err
	}

	e := &domain.AuditLogEntry{
		Type:    domain.AuditType(typ),
		Actor:   actor,
		Details: json.RawMessage(details),
	}
	var err error
	if e.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if e.ProviderID, err = uuid.Parse(providerID); err != nil {
		return nil, err
	}
	if e.CommissionID, err = parseNullUUID(commissionID); err != nil {
		return nil, err
	}
	if e.BookingID, err = parseNullUUID(bookingID); err != nil {
		return nil, err
	}
	if e.DeadlineAt, err = sharedPersistence.ParseNullTime(deadlineAt); err != nil {
		return nil, err
	}
	if e.EnforcedAt, err = sharedPersistence.ParseTime(enforcedAt); err != nil {
		return nil, err
	}
	if e.CreatedAt, err = sharedPersistence.ParseTime(createdAt); err != nil {
		return nil, err
	}
	return e, nil
}

func nullUUID(id *uuid.UUID) sql.NullString {
	if id == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: id.String(), Valid: true}
}

func parseNullUUID(ns sql.NullString) (*uuid.UUID, error) {
	if !ns.Valid {
		return nil, nil
	}
	id, err := uuid.Parse(ns.String)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
