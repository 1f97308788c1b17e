package outbox

import (
	"context"
	"time"
)

// Repository defines the interface for outbox persistence.
type Repository interface {
	// Save stores a new message. Saving an event id twice is a no-op.
	Save(ctx context.Context, msg *Message) error

	// GetUnpublished returns messages that are neither published nor dead
	// and whose retry time has come, oldest first.
	GetUnpublished(ctx context.Context, now time.Time, limit int) ([]*Message, error)

	// MarkPublished marks a message as relayed.
	MarkPublished(ctx context.Context, id int64, at time.Time) error

	// MarkFailed records a relay failure and the next attempt time.
	MarkFailed(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error

	// MarkDead stops retrying a message.
	MarkDead(ctx context.Context, id int64, reason string, at time.Time) error

	// DeleteOld removes published messages published before cutoff.
	DeleteOld(ctx context.Context, cutoff time.Time) (int64, error)
}
