package persistence

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatTime_OrdersLexically(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	earlier := FormatTime(base)
	later := FormatTime(base.Add(500 * time.Millisecond))

	assert.Len(t, earlier, len(later))
	assert.Less(t, earlier, later)
}

func TestParseTime_RoundTrip(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 123, time.FixedZone("CET", 3600))

	parsed, err := ParseTime(FormatTime(at))
	require.NoError(t, err)
	assert.True(t, at.Equal(parsed))
	assert.Equal(t, time.UTC, parsed.Location())
}

func TestNullTime(t *testing.T) {
	assert.False(t, FormatNullTime(nil).Valid)

	got, err := ParseNullTime(sql.NullString{})
	require.NoError(t, err)
	assert.Nil(t, got)

	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	got, err = ParseNullTime(FormatNullTime(&at))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, at.Equal(*got))
}
