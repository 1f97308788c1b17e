package actionqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	bookingDomain "github.com/felixgeelhaar/bookline/internal/booking/domain"
	sharedDomain "github.com/felixgeelhaar/bookline/internal/shared/domain"
	"github.com/google/uuid"
)

// Queue records provider decisions locally. Enqueue never touches the
// network; the Synchronizer delivers what is stored.
//
// The in-flight set lives only in process memory: after a restart nothing
// is in flight and every stored pending action is eligible again.
type Queue struct {
	storage      Storage
	clock        sharedDomain.Clock
	connectivity Connectivity
	logger       *slog.Logger

	mu sync.Mutex
	// inFlight maps claimed action ids to their booking; busy counts
	// claimed actions per booking.
	inFlight map[string]uuid.UUID
	busy     map[uuid.UUID]int
	notify   func()
}

// NewQueue creates a queue over storage. connectivity may be nil, in which
// case the server is assumed reachable.
func NewQueue(storage Storage, clock sharedDomain.Clock, connectivity Connectivity, logger *slog.Logger) *Queue {
	if clock == nil {
		clock = sharedDomain.SystemClock{}
	}
	if connectivity == nil {
		connectivity = AlwaysOnline{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		storage:      storage,
		clock:        clock,
		connectivity: connectivity,
		logger:       logger,
		inFlight:     make(map[string]uuid.UUID),
		busy:         make(map[uuid.UUID]int),
	}
}

// setNotifier installs the post-enqueue trigger.
func (q *Queue) setNotifier(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.notify = fn
}

// Enqueue stores a decision and returns its id. Enqueueing the same
// decision within the same millisecond returns the existing id.
func (q *Queue) Enqueue(ctx context.Context, action bookingDomain.Action, bookingID, providerID uuid.UUID, reason string) (string, error) {
	a, err := NewQueuedAction(action, bookingID, providerID, reason, q.clock.Now())
	if err != nil {
		return "", err
	}

	created, err := q.storage.Insert(ctx, a)
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", a.ID, err)
	}
	if created {
		q.logger.Info("action queued",
			"action_id", a.ID,
			"action", a.Action,
			"booking_id", a.BookingID,
		)
	}

	q.mu.Lock()
	notify := q.notify
	q.mu.Unlock()
	if notify != nil && q.connectivity.Online() {
		notify()
	}
	return a.ID, nil
}

// ListPending returns a snapshot of actions waiting for delivery.
func (q *Queue) ListPending(ctx context.Context) ([]*QueuedAction, error) {
	return q.storage.List(ctx, StatePending)
}

// ListQuarantined returns actions that exhausted their retries.
func (q *Queue) ListQuarantined(ctx context.Context) ([]*QueuedAction, error) {
	return q.storage.List(ctx, StateQuarantined)
}

// Get returns one stored action.
func (q *Queue) Get(ctx context.Context, id string) (*QueuedAction, error) {
	return q.storage.Get(ctx, id)
}

// Cancel removes a pending action that is not being delivered. It returns
// false for an action that is in flight, already synced or quarantined.
func (q *Queue) Cancel(ctx context.Context, id string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, busy := q.inFlight[id]; busy {
		return false, nil
	}
	a, err := q.storage.Get(ctx, id)
	if errors.Is(err, ErrActionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if a.State != StatePending {
		return false, nil
	}

	deleted, err := q.storage.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if deleted {
		q.logger.Info("queued action cancelled", "action_id", id)
	}
	return deleted, nil
}

// Requeue moves a quarantined action back to pending with a fresh retry
// budget. It returns false when the action is not quarantined.
func (q *Queue) Requeue(ctx context.Context, id string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	a, err := q.storage.Get(ctx, id)
	if errors.Is(err, ErrActionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if a.State != StateQuarantined {
		return false, nil
	}

	a.requeue(q.clock.Now())
	if err := q.storage.Update(ctx, a); err != nil {
		return false, err
	}
	q.logger.Info("quarantined action requeued", "action_id", id)
	return true, nil
}

// claimDue returns due pending actions and marks them in flight. A booking
// with any action still in flight is skipped entirely, so a later action
// never starts while an earlier one for the same booking is undecided.
func (q *Queue) claimDue(ctx context.Context) ([]*QueuedAction, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	due, err := q.storage.Due(ctx, q.clock.Now())
	if err != nil {
		return nil, err
	}
	blocked := make(map[uuid.UUID]bool, len(q.busy))
	for bookingID := range q.busy {
		blocked[bookingID] = true
	}

	claimed := due[:0]
	for _, a := range due {
		if _, busy := q.inFlight[a.ID]; busy || blocked[a.BookingID] {
			continue
		}
		q.inFlight[a.ID] = a.BookingID
		q.busy[a.BookingID]++
		claimed = append(claimed, a)
	}
	return claimed, nil
}

// release clears the in-flight mark.
func (q *Queue) release(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	bookingID, ok := q.inFlight[id]
	if !ok {
		return
	}
	delete(q.inFlight, id)
	q.busy[bookingID]--
	if q.busy[bookingID] <= 0 {
		delete(q.busy, bookingID)
	}
}

// InFlight returns the number of actions currently being delivered.
func (q *Queue) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.inFlight)
}
