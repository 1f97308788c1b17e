package actionqueue

import (
	"context"
	"strings"
	"time"
)

// Storage persists queued actions on the provider's device. Every method
// is durable when it returns; nothing about dispatch is stored.
type Storage interface {
	// Insert stores a new action and reports false if the id already exists.
	Insert(ctx context.Context, a *QueuedAction) (bool, error)
	// Get returns ErrActionNotFound when the id is unknown.
	Get(ctx context.Context, id string) (*QueuedAction, error)
	// List returns the actions in state, in enqueue order.
	List(ctx context.Context, state State) ([]*QueuedAction, error)
	// Due returns pending actions whose next attempt is not after now, in
	// enqueue order.
	Due(ctx context.Context, now time.Time) ([]*QueuedAction, error)
	// Update overwrites the mutable fields of an existing action.
	Update(ctx context.Context, a *QueuedAction) error
	// Delete reports false when the id was already gone.
	Delete(ctx context.Context, id string) (bool, error)
	Close() error
}

// OpenStorage picks the backend from location: a redis:// or rediss:// URL
// selects Redis, anything else is a SQLite file path.
func OpenStorage(ctx context.Context, location string) (Storage, error) {
	if strings.HasPrefix(location, "redis://") || strings.HasPrefix(location, "rediss://") {
		return OpenRedisStorage(ctx, location)
	}
	return OpenSQLiteStorage(ctx, location)
}
