package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)

func newTestBooking(t *testing.T) *Booking {
	t.Helper()
	b, err := NewBooking(NewBookingParams{
		CustomerID:      uuid.New(),
		ServiceDuration: 90 * time.Minute,
		PriceMinor:      12000,
		Currency:        "eur",
	}, t0)
	require.NoError(t, err)
	return b
}

func TestNewBooking(t *testing.T) {
	b := newTestBooking(t)

	assert.Equal(t, StatusPendingAccept, b.Status())
	assert.Nil(t, b.ProviderID())
	assert.True(t, b.IsImmediate())
	assert.Equal(t, "EUR", b.Currency())
	assert.Equal(t, t0, b.CreatedAt())

	events := b.DomainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "booking.created", events[0].RoutingKey())
}

func TestNewBooking_Validation(t *testing.T) {
	valid := NewBookingParams{CustomerID: uuid.New(), ServiceDuration: time.Hour, Currency: "EUR"}

	tests := []struct {
		name   string
		mutate func(*NewBookingParams)
	}{
		{"missing customer", func(p *NewBookingParams) { p.CustomerID = uuid.Nil }},
		{"zero duration", func(p *NewBookingParams) { p.ServiceDuration = 0 }},
		{"negative price", func(p *NewBookingParams) { p.PriceMinor = -1 }},
		{"bad currency", func(p *NewBookingParams) { p.Currency = "euro" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := valid
			tt.mutate(&p)
			_, err := NewBooking(p, t0)
			assert.ErrorIs(t, err, ErrInvalidBooking)
		})
	}
}

func TestBooking_TransitionTo(t *testing.T) {
	b := newTestBooking(t)
	b.ClearDomainEvents()

	require.NoError(t, b.TransitionTo(StatusTherapistAccepted, t0.Add(time.Minute)))

	assert.Equal(t, StatusTherapistAccepted, b.Status())
	assert.Equal(t, t0.Add(time.Minute), b.UpdatedAt())
	require.Len(t, b.DomainEvents(), 1)
	assert.Equal(t, "booking.therapist_accepted", b.DomainEvents()[0].RoutingKey())
}

func TestBooking_IllegalTransitionLeavesBookingUntouched(t *testing.T) {
	b := newTestBooking(t)
	b.ClearDomainEvents()

	err := b.TransitionTo(StatusCompleted, t0.Add(time.Hour))

	var te *TransitionError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, StatusPendingAccept, te.From)
	assert.Equal(t, StatusCompleted, te.To)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StatusPendingAccept, b.Status())
	assert.Equal(t, t0, b.UpdatedAt())
	assert.Empty(t, b.DomainEvents())
}

func TestBooking_TerminalIsImmutable(t *testing.T) {
	b := newTestBooking(t)
	require.NoError(t, b.TransitionTo(StatusExpired, t0))

	for _, target := range AllStatuses() {
		assert.ErrorIs(t, b.TransitionTo(target, t0.Add(time.Hour)), ErrInvalidTransition)
	}
}

func TestRehydrateBooking_RoundTripsSnapshot(t *testing.T) {
	provider := uuid.New()
	scheduled := t0.Add(24 * time.Hour)
	snap := Snapshot{
		ID:                 uuid.New(),
		Status:             StatusCancelled,
		CustomerID:         uuid.New(),
		ProviderID:         &provider,
		ServiceDuration:    time.Hour,
		ScheduledAt:        &scheduled,
		CancellationReason: "provider unavailable",
		PriceMinor:         5000,
		Currency:           "GBP",
		CreatedAt:          t0,
		UpdatedAt:          t0.Add(time.Minute),
	}

	b := RehydrateBooking(snap)

	assert.Equal(t, snap, b.Snapshot())
	assert.False(t, b.IsImmediate())
	assert.Empty(t, b.DomainEvents())
}
