package persistence

import (
	"database/sql"
	"time"
)

// SQLiteTimeLayout is fixed width so that TEXT columns order and compare
// the same way as the instants they hold.
const SQLiteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// FormatTime encodes t for a SQLite TEXT column.
func FormatTime(t time.Time) string {
	return t.UTC().Format(SQLiteTimeLayout)
}

// ParseTime decodes a SQLite TEXT timestamp.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(SQLiteTimeLayout, s)
	if err != nil {
		return time.Parse(time.RFC3339Nano, s)
	}
	return t, nil
}

// FormatNullTime encodes an optional timestamp.
func FormatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: FormatTime(*t), Valid: true}
}

// ParseNullTime decodes an optional timestamp.
func ParseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := ParseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// NullString maps an empty string to NULL.
func NullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// UTCPtr normalizes an optional timestamp read from PostgreSQL.
func UTCPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// BoolToInt encodes a boolean for SQLite.
func BoolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
