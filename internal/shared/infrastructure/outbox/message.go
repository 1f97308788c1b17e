package outbox

import (
	"encoding/json"
	"time"

	"github.com/felixgeelhaar/bookline/internal/shared/infrastructure/eventbus"
	"github.com/google/uuid"
)

// Message is a published event waiting to be relayed to the broker.
type Message struct {
	ID               int64
	EventID          uuid.UUID
	AggregateType    string
	AggregateID      uuid.UUID
	RoutingKey       string
	Payload          json.RawMessage
	CreatedAt        time.Time
	PublishedAt      *time.Time
	NextRetryAt      *time.Time
	RetryCount       int
	LastError        string
	DeadLetteredAt   *time.Time
	DeadLetterReason string
}

// NewMessage wraps a serialized event. Envelope headers are copied out of
// payload when it is an eventbus.Envelope; anything else gets a fresh id.
func NewMessage(routingKey string, payload []byte, at time.Time) *Message {
	msg := &Message{
		EventID:    uuid.New(),
		RoutingKey: routingKey,
		Payload:    append(json.RawMessage(nil), payload...),
		CreatedAt:  at.UTC(),
	}

	var env eventbus.Envelope
	if err := json.Unmarshal(payload, &env); err == nil && env.EventID != uuid.Nil {
		msg.EventID = env.EventID
		msg.AggregateType = env.AggregateType
		msg.AggregateID = env.AggregateID
	}
	return msg
}

// IsPublished returns true if the message has been relayed.
func (m *Message) IsPublished() bool {
	return m.PublishedAt != nil
}

// IsDead returns true if the message was given up on.
func (m *Message) IsDead() bool {
	return m.DeadLetteredAt != nil
}
