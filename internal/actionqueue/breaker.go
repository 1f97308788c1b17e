package actionqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerConfig configures the circuit breaker around a gateway.
type BreakerConfig struct {
	Name string
	// MaxFailures consecutive transient failures open the circuit.
	MaxFailures uint32
	// OpenTimeout is how long the circuit stays open before probing.
	OpenTimeout time.Duration
	// HalfOpenRequests are let through while probing.
	HalfOpenRequests uint32
}

// DefaultBreakerConfig returns the agent defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		Name:             "booking-gateway",
		MaxFailures:      5,
		OpenTimeout:      30 * time.Second,
		HalfOpenRequests: 1,
	}
}

// BreakerGateway stops calling a failing server for a while. Stale
// rejections are answers from a healthy server and never trip it.
type BreakerGateway struct {
	next    Gateway
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// NewBreakerGateway wraps next.
func NewBreakerGateway(next Gateway, cfg BreakerConfig, logger *slog.Logger) *BreakerGateway {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = DefaultBreakerConfig().MaxFailures
	}
	if cfg.HalfOpenRequests == 0 {
		cfg.HalfOpenRequests = 1
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || IsStale(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}

	return &BreakerGateway{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[struct{}](settings),
	}
}

func (g *BreakerGateway) Apply(ctx context.Context, a QueuedAction) error {
	_, err := g.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, g.next.Apply(ctx, a)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}
	return err
}

// Ping forwards to the wrapped gateway when it can ping. Probes bypass the
// breaker so that connectivity can be detected while it is open.
func (g *BreakerGateway) Ping(ctx context.Context) error {
	if p, ok := g.next.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// State returns the breaker state name.
func (g *BreakerGateway) State() string {
	return g.breaker.State().String()
}
