// Package actionqueue keeps provider decisions durable while the provider's
// client is offline and replays them against the booking service.
package actionqueue

import (
	"errors"
	"fmt"
	"strings"
	"time"

	bookingDomain "github.com/felixgeelhaar/bookline/internal/booking/domain"
	"github.com/google/uuid"
)

var (
	ErrInvalidAction  = errors.New("invalid queued action")
	ErrActionNotFound = errors.New("queued action not found")
)

// State is where a queued action sits in its local lifecycle.
type State string

const (
	StatePending     State = "pending"
	StateQuarantined State = "quarantined"
)

// QueuedAction is a provider decision waiting to reach the server.
type QueuedAction struct {
	ID            string               `json:"id"`
	Action        bookingDomain.Action `json:"action"`
	BookingID     uuid.UUID            `json:"booking_id"`
	ProviderID    uuid.UUID            `json:"provider_id"`
	Reason        string               `json:"reason,omitempty"`
	Retries       int                  `json:"retries"`
	State         State                `json:"state"`
	EnqueuedAt    time.Time            `json:"enqueued_at"`
	NextAttemptAt time.Time            `json:"next_attempt_at"`
	LastError     string               `json:"last_error,omitempty"`
	QuarantinedAt *time.Time           `json:"quarantined_at,omitempty"`
}

// ActionID builds the deterministic id <action>_<bookingID>_<unix-millis>.
func ActionID(action bookingDomain.Action, bookingID uuid.UUID, at time.Time) string {
	return fmt.Sprintf("%s_%s_%d", action, bookingID, at.UnixMilli())
}

// NewQueuedAction validates a decision and stamps it pending at now.
func NewQueuedAction(action bookingDomain.Action, bookingID, providerID uuid.UUID, reason string, now time.Time) (*QueuedAction, error) {
	if !action.IsValid() {
		return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidAction, action)
	}
	if bookingID == uuid.Nil {
		return nil, fmt.Errorf("%w: booking id is required", ErrInvalidAction)
	}
	if providerID == uuid.Nil {
		return nil, fmt.Errorf("%w: provider id is required", ErrInvalidAction)
	}
	reason = strings.TrimSpace(reason)
	if action == bookingDomain.ActionAccept {
		reason = ""
	}

	now = now.UTC().Truncate(time.Millisecond)
	return &QueuedAction{
		ID:            ActionID(action, bookingID, now),
		Action:        action,
		BookingID:     bookingID,
		ProviderID:    providerID,
		Reason:        reason,
		State:         StatePending,
		EnqueuedAt:    now,
		NextAttemptAt: now,
	}, nil
}

// IsDue reports whether a pending action may be attempted at now.
func (a *QueuedAction) IsDue(now time.Time) bool {
	return a.State == StatePending && !a.NextAttemptAt.After(now)
}

// quarantine parks the action for manual attention.
func (a *QueuedAction) quarantine(at time.Time, cause error) {
	at = at.UTC()
	a.State = StateQuarantined
	a.QuarantinedAt = &at
	a.LastError = cause.Error()
}

// reschedule records a transient failure.
func (a *QueuedAction) reschedule(next time.Time, cause error) {
	a.NextAttemptAt = next.UTC()
	a.LastError = cause.Error()
}

// requeue returns a quarantined action to the pending set with a fresh
// retry budget.
func (a *QueuedAction) requeue(now time.Time) {
	a.State = StatePending
	a.Retries = 0
	a.QuarantinedAt = nil
	a.NextAttemptAt = now.UTC()
}
