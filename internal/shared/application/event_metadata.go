package application

import (
	"github.com/felixgeelhaar/bookline/internal/shared/domain"
	"github.com/google/uuid"
)

// Actors recorded on events and audit entries.
const (
	ActorEnforcer = "system:commission-enforcer"
	ActorSystem   = "system"
)

type metadataSetter interface {
	SetMetadata(metadata domain.EventMetadata)
}

// NewEventMetadata creates command-scoped metadata for domain events.
func NewEventMetadata(actor string) domain.EventMetadata {
	return domain.EventMetadata{
		CorrelationID: uuid.New(),
		Actor:         actor,
	}
}

// ApplyEventMetadata sets metadata on all events that support it.
func ApplyEventMetadata(events []domain.DomainEvent, metadata domain.EventMetadata) {
	for _, event := range events {
		if setter, ok := event.(metadataSetter); ok {
			setter.SetMetadata(metadata)
		}
	}
}
