package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_CanTransitionTo(t *testing.T) {
	legal := map[Status][]Status{
		StatusPendingAccept:     {StatusTherapistAccepted, StatusWaitingOthers, StatusCancelled, StatusExpired},
		StatusWaitingOthers:     {StatusTherapistAccepted, StatusCancelled, StatusExpired},
		StatusTherapistAccepted: {StatusUserConfirmed, StatusCancelled},
		StatusUserConfirmed:     {StatusOnTheWay, StatusCancelled},
		StatusOnTheWay:          {StatusCompleted, StatusCancelled},
	}

	for _, from := range AllStatuses() {
		for _, to := range AllStatuses() {
			want := false
			for _, allowed := range legal[from] {
				if allowed == to {
					want = true
				}
			}
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestStatus_NothingReentersPendingAccept(t *testing.T) {
	assert.Empty(t, LegalSources(StatusPendingAccept))
}

func TestStatus_TerminalStatesHaveNoEdges(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusCancelled, StatusExpired} {
		assert.True(t, s.IsTerminal())
		assert.Empty(t, s.AllowedTargets())
	}
	assert.False(t, StatusOnTheWay.IsTerminal())
}

func TestStatus_CancelledReachableFromEveryNonTerminal(t *testing.T) {
	for _, s := range AllStatuses() {
		if s.IsTerminal() {
			continue
		}
		assert.True(t, s.CanTransitionTo(StatusCancelled), s)
	}
}

func TestLegalSources(t *testing.T) {
	assert.Equal(t, []Status{StatusPendingAccept, StatusWaitingOthers}, LegalSources(StatusTherapistAccepted))
	assert.Equal(t, []Status{StatusOnTheWay}, LegalSources(StatusCompleted))
	assert.Len(t, LegalSources(StatusCancelled), 5)
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("on_the_way")
	require.NoError(t, err)
	assert.Equal(t, StatusOnTheWay, s)

	_, err = ParseStatus("arrived")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestActions(t *testing.T) {
	assert.Equal(t, StatusTherapistAccepted, ActionAccept.Target())
	assert.Equal(t, StatusCancelled, ActionReject.Target())

	for _, a := range []Action{ActionAccept, ActionReject} {
		assert.Equal(t, []Status{StatusPendingAccept, StatusWaitingOthers}, ActionSources(a))
		for _, src := range ActionSources(a) {
			assert.True(t, src.CanTransitionTo(a.Target()))
		}
	}

	assert.Nil(t, ActionSources(Action("snooze")))
	_, err := ParseAction("snooze")
	assert.ErrorIs(t, err, ErrInvalidAction)
}

func TestIsStale(t *testing.T) {
	assert.True(t, IsStale(&TransitionError{From: StatusCancelled, To: StatusTherapistAccepted}))
	assert.True(t, IsStale(ErrBookingNotFound))
	assert.False(t, IsStale(ErrInvalidStatus))
	assert.False(t, IsStale(nil))
}
