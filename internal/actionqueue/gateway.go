package actionqueue

import (
	"context"
	"errors"

	bookingDomain "github.com/felixgeelhaar/bookline/internal/booking/domain"
	"github.com/google/uuid"
)

// ErrCircuitOpen is returned while the gateway breaker rejects calls. It is
// a transient failure.
var ErrCircuitOpen = errors.New("booking gateway circuit open")

// Gateway applies one queued action on the server. It must return an error
// matching bookingDomain.ErrInvalidTransition or ErrBookingNotFound when the
// action has been superseded; every other error is treated as transient.
type Gateway interface {
	Apply(ctx context.Context, a QueuedAction) error
}

// GatewayFunc adapts a function to Gateway.
type GatewayFunc func(ctx context.Context, a QueuedAction) error

func (f GatewayFunc) Apply(ctx context.Context, a QueuedAction) error {
	return f(ctx, a)
}

// Pinger checks that the server is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Decider is the booking operation a provider decision maps to.
type Decider interface {
	Decide(ctx context.Context, action bookingDomain.Action, bookingID, providerID uuid.UUID, reason string) (*bookingDomain.Booking, error)
}

// DeciderGateway applies actions in process, directly against the booking
// service.
func DeciderGateway(d Decider) Gateway {
	return GatewayFunc(func(ctx context.Context, a QueuedAction) error {
		_, err := d.Decide(ctx, a.Action, a.BookingID, a.ProviderID, a.Reason)
		return err
	})
}

// IsStale reports whether err means the action can never succeed.
func IsStale(err error) bool {
	return bookingDomain.IsStale(err)
}
