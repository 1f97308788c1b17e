package domain

import "fmt"

// Action is a provider decision on a booking that is awaiting one.
type Action string

const (
	ActionAccept Action = "accept"
	ActionReject Action = "reject"
)

// ParseAction converts a requested action name.
func ParseAction(s string) (Action, error) {
	a := Action(s)
	if !a.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidAction, s)
	}
	return a, nil
}

func (a Action) String() string {
	return string(a)
}

// IsValid reports whether a is accept or reject.
func (a Action) IsValid() bool {
	return a == ActionAccept || a == ActionReject
}

// Target is the status a successful action moves the booking to.
func (a Action) Target() Status {
	if a == ActionAccept {
		return StatusTherapistAccepted
	}
	return StatusCancelled
}

// ActionSources returns the statuses in which a provider may still decide.
// A reject after another provider accepted is stale even though
// therapist_accepted → cancelled is itself a legal edge.
func ActionSources(a Action) []Status {
	if !a.IsValid() {
		return nil
	}
	return []Status{StatusPendingAccept, StatusWaitingOthers}
}
