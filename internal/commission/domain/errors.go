package domain

import (
	"errors"
	"fmt"
)

var (
	ErrCommissionNotFound      = errors.New("commission not found")
	ErrCommissionExists        = errors.New("commission already exists for booking")
	ErrInvalidCommission       = errors.New("invalid commission")
	ErrInvalidStatusTransition = errors.New("invalid commission status transition")
	ErrAvailabilityNotFound    = errors.New("provider availability not found")
	ErrProviderNotDeactivated  = errors.New("provider is not deactivated for an overdue commission")
	ErrReactivationBlocked     = errors.New("provider reactivation blocked by unsettled commissions")
)

// StatusTransitionError reports a conditional commission update that did not
// apply because the stored status is Current. It matches
// ErrInvalidStatusTransition.
type StatusTransitionError struct {
	Current Status
	To      Status
}

func (e *StatusTransitionError) Error() string {
	return fmt.Sprintf("%s: %s -> %s", ErrInvalidStatusTransition, e.Current, e.To)
}

func (e *StatusTransitionError) Unwrap() error {
	return ErrInvalidStatusTransition
}
