package outbox

import (
	"context"
	"fmt"

	sharedDomain "github.com/felixgeelhaar/bookline/internal/shared/domain"
)

// Publisher implements eventbus.Publisher by writing to the outbox. The
// Processor relays the stored messages to the broker.
type Publisher struct {
	repo  Repository
	clock sharedDomain.Clock
}

// NewPublisher creates an outbox-backed publisher.
func NewPublisher(repo Repository, clock sharedDomain.Clock) *Publisher {
	if clock == nil {
		clock = sharedDomain.SystemClock{}
	}
	return &Publisher{repo: repo, clock: clock}
}

func (p *Publisher) Publish(ctx context.Context, routingKey string, payload []byte) error {
	if err := p.repo.Save(ctx, NewMessage(routingKey, payload, p.clock.Now())); err != nil {
		return fmt.Errorf("save outbox message %s: %w", routingKey, err)
	}
	return nil
}

// Close is a no-op; the repository's connection is owned elsewhere.
func (p *Publisher) Close() error {
	return nil
}
