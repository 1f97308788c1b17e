package domain

import "fmt"

// Status is the state of a commission obligation.
type Status string

const (
	StatusPending              Status = "pending"
	StatusAwaitingVerification Status = "awaiting_verification"
	StatusPaid                 Status = "paid"
	StatusExpired              Status = "expired"
)

// OpenStatuses are the states in which the obligation is still unsettled.
func OpenStatuses() []Status {
	return []Status{StatusPending, StatusAwaitingVerification}
}

// ParseStatus converts s to a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(s)
	if !st.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCommission, s)
	}
	return st, nil
}

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusAwaitingVerification, StatusPaid, StatusExpired:
		return true
	}
	return false
}

// IsOpen reports whether the obligation can still be paid or expired.
func (s Status) IsOpen() bool {
	return s == StatusPending || s == StatusAwaitingVerification
}

// IsTerminal reports whether the obligation is settled one way or the other.
func (s Status) IsTerminal() bool {
	return s == StatusPaid || s == StatusExpired
}

func (s Status) String() string { return string(s) }
