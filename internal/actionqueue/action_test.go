package actionqueue

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bookingDomain "github.com/felixgeelhaar/bookline/internal/booking/domain"
)

var t0 = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func TestNewQueuedAction(t *testing.T) {
	bookingID, providerID := uuid.New(), uuid.New()
	at := t0.Add(1234567 * time.Nanosecond)

	a, err := NewQueuedAction(bookingDomain.ActionReject, bookingID, providerID, "  too far  ", at)
	require.NoError(t, err)

	assert.Equal(t, "reject_"+bookingID.String()+"_1780315200001", a.ID)
	assert.Equal(t, "too far", a.Reason)
	assert.Equal(t, StatePending, a.State)
	assert.Equal(t, 0, a.Retries)
	assert.Equal(t, t0.Add(time.Millisecond), a.EnqueuedAt)
	assert.Equal(t, a.EnqueuedAt, a.NextAttemptAt)
	assert.True(t, a.IsDue(a.EnqueuedAt))
	assert.False(t, a.IsDue(a.EnqueuedAt.Add(-time.Millisecond)))
}

func TestNewQueuedAction_AcceptDropsReason(t *testing.T) {
	a, err := NewQueuedAction(bookingDomain.ActionAccept, uuid.New(), uuid.New(), "ignored", t0)
	require.NoError(t, err)
	assert.Empty(t, a.Reason)
}

func TestNewQueuedAction_Invalid(t *testing.T) {
	tests := []struct {
		name       string
		action     bookingDomain.Action
		bookingID  uuid.UUID
		providerID uuid.UUID
	}{
		{"unknown action", bookingDomain.Action("snooze"), uuid.New(), uuid.New()},
		{"missing booking", bookingDomain.ActionAccept, uuid.Nil, uuid.New()},
		{"missing provider", bookingDomain.ActionAccept, uuid.New(), uuid.Nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewQueuedAction(tt.action, tt.bookingID, tt.providerID, "", t0)
			assert.ErrorIs(t, err, ErrInvalidAction)
		})
	}
}

func TestQueuedAction_Lifecycle(t *testing.T) {
	a, err := NewQueuedAction(bookingDomain.ActionAccept, uuid.New(), uuid.New(), "", t0)
	require.NoError(t, err)

	a.Retries = 3
	a.quarantine(t0.Add(time.Minute), assert.AnError)
	assert.Equal(t, StateQuarantined, a.State)
	require.NotNil(t, a.QuarantinedAt)
	assert.Equal(t, assert.AnError.Error(), a.LastError)
	assert.False(t, a.IsDue(t0.Add(time.Hour)))

	a.requeue(t0.Add(2 * time.Minute))
	assert.Equal(t, StatePending, a.State)
	assert.Zero(t, a.Retries)
	assert.Nil(t, a.QuarantinedAt)
	assert.True(t, a.IsDue(t0.Add(2*time.Minute)))
}

func TestRetryPolicy(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 3, Backoff: []time.Duration{time.Second, 10 * time.Second}}

	assert.False(t, p.Exhausted(0))
	assert.False(t, p.Exhausted(2))
	assert.True(t, p.Exhausted(3))
	assert.True(t, p.Exhausted(4))

	assert.Equal(t, time.Duration(0), p.Delay(0))
	assert.Equal(t, time.Second, p.Delay(1))
	assert.Equal(t, 10*time.Second, p.Delay(2))
	assert.Equal(t, 10*time.Second, p.Delay(7))

	assert.True(t, RetryPolicy{}.Exhausted(0))
	assert.Equal(t, time.Duration(0), RetryPolicy{MaxAttempts: 1}.Delay(1))
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, 5*time.Second, p.Delay(1))
	assert.Equal(t, 2*time.Minute, p.Delay(3))
}
