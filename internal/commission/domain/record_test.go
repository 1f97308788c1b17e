package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)

func TestNewRecord(t *testing.T) {
	bookingID, providerID := uuid.New(), uuid.New()

	r, err := NewRecord(bookingID, providerID, 1500, "eur", t0.In(time.FixedZone("CET", 3600)), 72*time.Hour)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, r.ID)
	assert.Equal(t, StatusPending, r.Status)
	assert.Equal(t, "EUR", r.Currency)
	assert.Equal(t, t0, r.CreatedAt)
	assert.Equal(t, t0.Add(72*time.Hour), r.DeadlineAt)
	assert.Equal(t, time.UTC, r.DeadlineAt.Location())
	assert.Nil(t, r.EnforcedAt)
}

func TestNewRecord_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		booking  uuid.UUID
		provider uuid.UUID
		amount   int64
		currency string
		window   time.Duration
	}{
		{"no booking", uuid.Nil, uuid.New(), 1, "EUR", time.Hour},
		{"no provider", uuid.New(), uuid.Nil, 1, "EUR", time.Hour},
		{"negative amount", uuid.New(), uuid.New(), -1, "EUR", time.Hour},
		{"zero window", uuid.New(), uuid.New(), 1, "EUR", 0},
		{"bad currency", uuid.New(), uuid.New(), 1, "EURO", time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRecord(tt.booking, tt.provider, tt.amount, tt.currency, t0, tt.window)
			assert.ErrorIs(t, err, ErrInvalidCommission)
		})
	}
}

func TestRecord_NeedsEnforcement(t *testing.T) {
	r, err := NewRecord(uuid.New(), uuid.New(), 100, "EUR", t0, time.Hour)
	require.NoError(t, err)
	deadline := r.DeadlineAt

	assert.False(t, r.NeedsEnforcement(deadline), "deadline itself is not past")
	assert.True(t, r.NeedsEnforcement(deadline.Add(time.Second)))
	assert.True(t, r.IsOverdue(deadline.Add(time.Second)))

	r.Status = StatusAwaitingVerification
	assert.True(t, r.NeedsEnforcement(deadline.Add(time.Second)))

	r.Status = StatusExpired
	assert.True(t, r.NeedsEnforcement(deadline.Add(time.Second)), "half processed")
	assert.False(t, r.IsOverdue(deadline.Add(time.Second)))

	enforced := deadline.Add(time.Second)
	r.EnforcedAt = &enforced
	assert.False(t, r.NeedsEnforcement(deadline.Add(time.Hour)))

	r.Status = StatusPaid
	r.EnforcedAt = nil
	assert.False(t, r.NeedsEnforcement(deadline.Add(time.Hour)))
}

func TestCommissionAmount(t *testing.T) {
	assert.Equal(t, int64(1500), CommissionAmount(10000, 1500))
	assert.Equal(t, int64(2), CommissionAmount(15, 1500), "2.25 rounds down")
	assert.Equal(t, int64(1), CommissionAmount(10, 500), "0.5 rounds up")
	assert.Equal(t, int64(0), CommissionAmount(0, 1500))
	assert.Equal(t, int64(0), CommissionAmount(10000, 0))
}

func TestStatus(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusAwaitingVerification, StatusPaid, StatusExpired} {
		parsed, err := ParseStatus(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
		assert.NotEqual(t, s.IsOpen(), s.IsTerminal())
	}

	_, err := ParseStatus("overdue")
	assert.ErrorIs(t, err, ErrInvalidCommission)
	assert.ElementsMatch(t, []Status{StatusPending, StatusAwaitingVerification}, OpenStatuses())
}

func TestStatusTransitionError(t *testing.T) {
	err := error(&StatusTransitionError{Current: StatusPaid, To: StatusExpired})
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
	assert.Contains(t, err.Error(), "paid -> expired")
}
