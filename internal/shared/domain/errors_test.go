package domain_test

import (
	"errors"
	"testing"

	"github.com/felixgeelhaar/bookline/internal/shared/domain"
	"github.com/stretchr/testify/assert"
)

func TestUnavailable(t *testing.T) {
	cause := errors.New("connection refused")

	err := domain.Unavailable("update booking", cause)

	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "update booking")
	assert.NoError(t, domain.Unavailable("noop", nil))
}
