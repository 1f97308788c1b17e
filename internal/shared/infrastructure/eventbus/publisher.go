package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/bookline/internal/shared/domain"
	"github.com/google/uuid"
)

// Publisher sends serialized events to a message broker.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload []byte) error
	Close() error
}

// Envelope is the wire shape of a lifecycle event.
type Envelope struct {
	EventID       uuid.UUID            `json:"event_id"`
	RoutingKey    string               `json:"routing_key"`
	AggregateType string               `json:"aggregate_type"`
	AggregateID   uuid.UUID            `json:"aggregate_id"`
	OccurredAt    time.Time            `json:"occurred_at"`
	Metadata      domain.EventMetadata `json:"metadata"`
	Payload       json.RawMessage      `json:"payload"`
}

// NewEnvelope serializes event. The event's exported fields form the payload.
func NewEnvelope(event domain.DomainEvent) (*Envelope, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", event.RoutingKey(), err)
	}
	return &Envelope{
		EventID:       event.EventID(),
		RoutingKey:    event.RoutingKey(),
		AggregateType: event.AggregateType(),
		AggregateID:   event.AggregateID(),
		OccurredAt:    event.OccurredAt(),
		Metadata:      event.Metadata(),
		Payload:       payload,
	}, nil
}

// WriteEvents publishes events in order and stops at the first failure.
// Called with a unit of work's context, an outbox-backed publisher joins
// that transaction, so a failed write rolls the state change back too.
func WriteEvents(ctx context.Context, pub Publisher, events ...domain.DomainEvent) error {
	if pub == nil {
		return nil
	}
	for _, event := range events {
		body, err := encode(event)
		if err != nil {
			return err
		}
		if err := pub.Publish(ctx, event.RoutingKey(), body); err != nil {
			return fmt.Errorf("write event %s: %w", event.RoutingKey(), err)
		}
	}
	return nil
}

// PublishEvents publishes each event and logs failures. It is for
// notifications sent after the records they describe are committed, so a
// broker outage never fails the caller.
func PublishEvents(ctx context.Context, pub Publisher, logger *slog.Logger, events ...domain.DomainEvent) int {
	if pub == nil {
		return 0
	}
	if logger == nil {
		logger = slog.Default()
	}

	published := 0
	for _, event := range events {
		body, err := encode(event)
		if err != nil {
			logger.Error("failed to encode event", "routing_key", event.RoutingKey(), "error", err)
			continue
		}
		if err := pub.Publish(ctx, event.RoutingKey(), body); err != nil {
			logger.Warn("event not published",
				"routing_key", event.RoutingKey(),
				"aggregate_id", event.AggregateID(),
				"error", err,
			)
			continue
		}
		published++
	}
	return published
}

func encode(event domain.DomainEvent) ([]byte, error) {
	envelope, err := NewEnvelope(event)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope %s: %w", event.RoutingKey(), err)
	}
	return body, nil
}
