package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/bookline/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type providerDeactivated struct {
	domain.BaseEvent
	ProviderID uuid.UUID `json:"provider_id"`
	Reason     string    `json:"reason"`
}

func newProviderDeactivated(id uuid.UUID) *providerDeactivated {
	return &providerDeactivated{
		BaseEvent:  domain.NewBaseEvent(id, "ProviderAvailability", "provider.deactivated", time.Now()),
		ProviderID: id,
		Reason:     "commission_overdue",
	}
}

func TestNewEnvelope(t *testing.T) {
	id := uuid.New()
	event := newProviderDeactivated(id)
	event.SetMetadata(domain.EventMetadata{Actor: "system:commission-enforcer"})

	envelope, err := NewEnvelope(event)
	require.NoError(t, err)

	assert.Equal(t, event.EventID(), envelope.EventID)
	assert.Equal(t, "provider.deactivated", envelope.RoutingKey)
	assert.Equal(t, id, envelope.AggregateID)
	assert.Equal(t, "system:commission-enforcer", envelope.Metadata.Actor)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(envelope.Payload, &payload))
	assert.Equal(t, "commission_overdue", payload["reason"])
	assert.Equal(t, id.String(), payload["provider_id"])
}

func TestPublishEvents(t *testing.T) {
	pub := NewMemoryPublisher()
	first := newProviderDeactivated(uuid.New())
	second := newProviderDeactivated(uuid.New())

	n := PublishEvents(context.Background(), pub, nil, first, second)

	assert.Equal(t, 2, n)
	envelopes := pub.Envelopes()
	require.Len(t, envelopes, 2)
	assert.Equal(t, first.EventID(), envelopes[0].EventID)
	assert.Equal(t, []string{"provider.deactivated", "provider.deactivated"}, pub.RoutingKeys())
}

func TestPublishEvents_FailuresAreSwallowed(t *testing.T) {
	pub := NewMemoryPublisher()
	pub.FailWith(errors.New("broker unreachable"))

	n := PublishEvents(context.Background(), pub, nil, newProviderDeactivated(uuid.New()))

	assert.Zero(t, n)
	assert.Empty(t, pub.Envelopes())
}

func TestPublishEvents_NilPublisher(t *testing.T) {
	assert.Zero(t, PublishEvents(context.Background(), nil, nil, newProviderDeactivated(uuid.New())))
}

func TestWriteEvents_StopsAtFirstFailure(t *testing.T) {
	pub := NewMemoryPublisher()
	first := newProviderDeactivated(uuid.New())
	require.NoError(t, WriteEvents(context.Background(), pub, first))
	assert.Equal(t, []string{"provider.deactivated"}, pub.RoutingKeys())

	brokerDown := errors.New("outbox unavailable")
	pub.FailWith(brokerDown)
	err := WriteEvents(context.Background(), pub, newProviderDeactivated(uuid.New()), newProviderDeactivated(uuid.New()))
	assert.ErrorIs(t, err, brokerDown)
	assert.ErrorContains(t, err, "provider.deactivated")

	assert.NoError(t, WriteEvents(context.Background(), nil, first))
}
