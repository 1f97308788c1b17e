package application

import (
	"testing"
	"time"

	"github.com/felixgeelhaar/bookline/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEventMetadata(t *testing.T) {
	t.Run("creates metadata with actor", func(t *testing.T) {
		metadata := NewEventMetadata(ActorEnforcer)

		assert.Equal(t, ActorEnforcer, metadata.Actor)
		assert.NotEqual(t, uuid.Nil, metadata.CorrelationID)
	})

	t.Run("generates unique correlation IDs", func(t *testing.T) {
		metadata1 := NewEventMetadata(ActorSystem)
		metadata2 := NewEventMetadata(ActorSystem)

		assert.NotEqual(t, metadata1.CorrelationID, metadata2.CorrelationID)
	})
}

type testEvent struct {
	domain.BaseEvent
}

func TestApplyEventMetadata(t *testing.T) {
	first := &testEvent{BaseEvent: domain.NewBaseEvent(uuid.New(), "Booking", "booking.cancelled", time.Now())}
	second := &testEvent{BaseEvent: domain.NewBaseEvent(uuid.New(), "Booking", "booking.completed", time.Now())}
	metadata := NewEventMetadata("provider:42")

	ApplyEventMetadata([]domain.DomainEvent{first, second}, metadata)

	require.Equal(t, metadata, first.Metadata())
	assert.Equal(t, metadata, second.Metadata())
}

func TestApplyEventMetadata_SkipsValueEvents(t *testing.T) {
	// A value-typed event has no addressable setter and is left untouched.
	event := testEvent{BaseEvent: domain.NewBaseEvent(uuid.New(), "Booking", "booking.expired", time.Now())}

	ApplyEventMetadata([]domain.DomainEvent{event}, NewEventMetadata(ActorSystem))

	assert.Equal(t, domain.EventMetadata{}, event.Metadata())
}
