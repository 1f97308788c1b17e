package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderAvailability_CanReceiveBookings(t *testing.T) {
	now := time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		mutate func(a *ProviderAvailability)
		want   bool
	}{
		{"available and enabled", func(a *ProviderAvailability) { a.Status = AvailabilityAvailable }, true},
		{"offline", func(a *ProviderAvailability) {}, false},
		{"busy", func(a *ProviderAvailability) { a.Status = AvailabilityBusy }, false},
		{"booking disabled", func(a *ProviderAvailability) {
			a.Status = AvailabilityAvailable
			a.BookingEnabled = false
		}, false},
		{"deactivated but flags left on", func(a *ProviderAvailability) {
			a.Status = AvailabilityAvailable
			a.DeactivationReason = DeactivationReasonCommissionOverdue
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewProviderAvailability(uuid.New(), now)
			tt.mutate(a)
			assert.Equal(t, tt.want, a.CanReceiveBookings())
		})
	}
}

func TestProviderAvailability_SetStatusKeepsLockout(t *testing.T) {
	now := time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)
	a := NewProviderAvailability(uuid.New(), now)
	a.DeactivationReason = DeactivationReasonCommissionOverdue
	a.BookingEnabled = false

	a.SetStatus(AvailabilityAvailable, now.Add(time.Minute))

	assert.True(t, a.IsDeactivatedForCommission())
	assert.False(t, a.CanReceiveBookings())
	assert.Equal(t, now.Add(time.Minute), a.UpdatedAt)
}

func TestAuditEntries(t *testing.T) {
	now := time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)
	r, err := NewRecord(uuid.New(), uuid.New(), 100, "EUR", now.Add(-48*time.Hour), 24*time.Hour)
	require.NoError(t, err)

	e := NewExpiredEntry(r, now, "system:commission-enforcer", map[string]any{"outcome": "deactivated"})
	assert.Equal(t, AuditCommissionExpired, e.Type)
	require.NotNil(t, e.CommissionID)
	assert.Equal(t, r.ID, *e.CommissionID)
	assert.Equal(t, r.BookingID, *e.BookingID)
	assert.Equal(t, r.DeadlineAt, *e.DeadlineAt)
	assert.Equal(t, now, e.EnforcedAt)

	var details map[string]string
	require.NoError(t, json.Unmarshal(e.Details, &details))
	assert.Equal(t, "deactivated", details["outcome"])

	re := NewReactivatedEntry(r.ProviderID, now, "support:alice", nil)
	assert.Equal(t, AuditProviderReactivated, re.Type)
	assert.Nil(t, re.CommissionID)
	assert.JSONEq(t, `{}`, string(re.Details))
}
