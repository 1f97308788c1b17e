package domain

import (
	"fmt"
	"slices"
)

// Status is the lifecycle state of a booking.
type Status string

const (
	StatusPendingAccept     Status = "pending_accept"
	StatusWaitingOthers     Status = "waiting_others"
	StatusTherapistAccepted Status = "therapist_accepted"
	StatusUserConfirmed     Status = "user_confirmed"
	StatusOnTheWay          Status = "on_the_way"
	StatusCompleted         Status = "completed"
	StatusCancelled         Status = "cancelled"
	StatusExpired           Status = "expired"
)

// transitions is the complete legal edge set. Terminal states have no entry.
var transitions = map[Status][]Status{
	StatusPendingAccept:     {StatusTherapistAccepted, StatusWaitingOthers, StatusCancelled, StatusExpired},
	StatusWaitingOthers:     {StatusTherapistAccepted, StatusCancelled, StatusExpired},
	StatusTherapistAccepted: {StatusUserConfirmed, StatusCancelled},
	StatusUserConfirmed:     {StatusOnTheWay, StatusCancelled},
	StatusOnTheWay:          {StatusCompleted, StatusCancelled},
}

// AllStatuses lists every status in lifecycle order.
func AllStatuses() []Status {
	return []Status{
		StatusPendingAccept,
		StatusWaitingOthers,
		StatusTherapistAccepted,
		StatusUserConfirmed,
		StatusOnTheWay,
		StatusCompleted,
		StatusCancelled,
		StatusExpired,
	}
}

// ParseStatus converts a stored or requested value into a Status.
func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if !status.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
	return status, nil
}

func (s Status) String() string {
	return string(s)
}

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	return slices.Contains(AllStatuses(), s)
}

// IsTerminal reports whether s has no outgoing edges.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusExpired
}

// CanTransitionTo reports whether s → target is a legal edge.
func (s Status) CanTransitionTo(target Status) bool {
	return slices.Contains(transitions[s], target)
}

// AllowedTargets returns the statuses reachable in one step from s.
func (s Status) AllowedTargets() []Status {
	return slices.Clone(transitions[s])
}

// LegalSources returns every status from which target may be entered.
// Stores use it as the precondition of the conditional update.
func LegalSources(target Status) []Status {
	var sources []Status
	for _, from := range AllStatuses() {
		if from.CanTransitionTo(target) {
			sources = append(sources, from)
		}
	}
	return sources
}
