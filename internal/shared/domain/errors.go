package domain

import (
	"errors"
	"fmt"
)

// ErrStoreUnavailable marks a network or record store fault that is worth
// retrying. It never describes a business rule violation.
var ErrStoreUnavailable = errors.New("record store unavailable")

// Unavailable wraps err so that errors.Is(err, ErrStoreUnavailable) holds.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
