package queue

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/bookline/adapter/cli"
	"github.com/felixgeelhaar/bookline/internal/actionqueue"
	bookingDomain "github.com/felixgeelhaar/bookline/internal/booking/domain"
)

// recordingGateway applies everything unless failing is set.
type recordingGateway struct {
	mu      sync.Mutex
	applied []actionqueue.QueuedAction
	failing error
}

func (g *recordingGateway) Apply(_ context.Context, a actionqueue.QueuedAction) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failing != nil {
		return g.failing
	}
	g.applied = append(g.applied, a)
	return nil
}

// setupQueueApp wires a file-backed queue and a synchronizer that
// quarantines on the first failure.
func setupQueueApp(t *testing.T) (*cli.App, *recordingGateway) {
	t.Helper()
	ctx := context.Background()

	storage, err := actionqueue.OpenStorage(ctx, filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close() })

	gw := &recordingGateway{}
	q := actionqueue.NewQueue(storage, nil, actionqueue.AlwaysOnline{}, nil)
	s := actionqueue.NewSynchronizer(q, gw, actionqueue.SynchronizerConfig{
		Policy: actionqueue.RetryPolicy{MaxAttempts: 1},
	}, nil, actionqueue.AlwaysOnline{}, nil, nil)

	app := cli.NewApp()
	app.SetAgent(q, s, nil, uuid.New())
	cli.SetApp(app)
	t.Cleanup(func() { cli.SetApp(nil) })
	return app, gw
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	Cmd.SetOut(&out)
	Cmd.SetErr(&out)
	Cmd.SetArgs(args)
	showQuarantined = false
	reason = ""
	err := Cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestEnqueueAndSync(t *testing.T) {
	app, gw := setupQueueApp(t)
	bookingID := uuid.New()

	out, err := run(t, "enqueue", "reject", bookingID.String(), "--reason", "too far")
	require.NoError(t, err)
	assert.Contains(t, out, "Queued: reject_"+bookingID.String())

	out, err = run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Queued actions (1)")
	assert.Contains(t, out, bookingID.String())

	out, err = run(t, "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "Applied: 1")

	require.Len(t, gw.applied, 1)
	assert.Equal(t, bookingDomain.ActionReject, gw.applied[0].Action)
	assert.Equal(t, "too far", gw.applied[0].Reason)
	assert.Equal(t, app.ProviderID, gw.applied[0].ProviderID)

	out, err = run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Queue is empty.")
}

func TestEnqueue_InvalidInput(t *testing.T) {
	setupQueueApp(t)

	_, err := run(t, "enqueue", "maybe", uuid.NewString())
	assert.Error(t, err)

	_, err = run(t, "enqueue", "accept", "not-a-uuid")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid booking ID")
}

func TestCancel(t *testing.T) {
	app, _ := setupQueueApp(t)
	ctx := context.Background()

	id, err := app.Queue.Enqueue(ctx, bookingDomain.ActionAccept, uuid.New(), app.ProviderID, "")
	require.NoError(t, err)

	out, err := run(t, "cancel", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Cancelled: "+id)

	_, err = run(t, "cancel", id)
	assert.Error(t, err)
}

func TestQuarantineAndRetry(t *testing.T) {
	app, gw := setupQueueApp(t)
	ctx := context.Background()
	gw.failing = errors.New("dial tcp: connection refused")

	id, err := app.Queue.Enqueue(ctx, bookingDomain.ActionAccept, uuid.New(), app.ProviderID, "")
	require.NoError(t, err)

	out, err := run(t, "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "Quarantined: "+id)

	out, err = run(t, "list", "--quarantined")
	require.NoError(t, err)
	assert.Contains(t, out, "[!] accept")
	assert.Contains(t, out, "connection refused")

	// Pending actions cannot be retried, quarantined ones can.
	out, err = run(t, "retry", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Requeued: "+id)
	_, err = run(t, "retry", id)
	assert.Error(t, err)

	gw.mu.Lock()
	gw.failing = nil
	gw.mu.Unlock()
	out, err = run(t, "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "Applied: 1")
}

func TestCommandsRequireQueue(t *testing.T) {
	cli.SetApp(cli.NewApp())
	defer cli.SetApp(nil)

	for _, args := range [][]string{
		{"enqueue", "accept", uuid.NewString()},
		{"list"},
		{"cancel", "x"},
		{"retry", "x"},
		{"sync"},
	} {
		_, err := run(t, args...)
		require.Error(t, err, args[0])
		assert.Contains(t, err.Error(), "not initialized")
	}
}
