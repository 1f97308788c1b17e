package app

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/bookline/adapter/api"
	bookingApp "github.com/felixgeelhaar/bookline/internal/booking/application"
	bookingDomain "github.com/felixgeelhaar/bookline/internal/booking/domain"
	"github.com/felixgeelhaar/bookline/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/bookline/internal/testutil"
	"github.com/felixgeelhaar/bookline/pkg/config"
)

type agentFixture struct {
	container  *Container
	srv        *httptest.Server
	providerID uuid.UUID
}

// newAgentFixture serves the API from a local container and returns an
// agent config pointed at it.
func newAgentFixture(t *testing.T) (*agentFixture, *config.Config) {
	t.Helper()
	c := newTestContainer(t, testutil.NewFakeClock(t0), eventbus.NewMemoryPublisher())

	handler := api.NewHandler(api.HandlerConfig{
		Bookings:    c.Bookings,
		Commissions: c.Ledger,
		Providers:   c.Reactivator,
		Enforcement: NewEnforcementJob(nil, c.Clock, nil, nil),
	})
	server := api.NewServer(api.DefaultServerConfig(), handler, c.Health, nil)
	srv := httptest.NewServer(server.Handler())
	t.Cleanup(srv.Close)

	f := &agentFixture{container: c, srv: srv, providerID: uuid.New()}
	cfg := &config.Config{
		QueueStore:         filepath.Join(t.TempDir(), "queue.db"),
		APIURL:             srv.URL,
		ProviderID:         f.providerID.String(),
		SyncInterval:       time.Hour,
		SyncMaxAttempts:    3,
		SyncBackoff:        []time.Duration{time.Second},
		SyncConcurrency:    2,
		ProbeInterval:      time.Hour,
		BreakerMaxFailures: 3,
		BreakerOpenTimeout: time.Second,
		GatewayTimeout:     5 * time.Second,
	}
	return f, cfg
}

func (f *agentFixture) pendingBooking(t *testing.T) uuid.UUID {
	t.Helper()
	b, err := f.container.Bookings.Create(context.Background(), bookingApp.CreateBookingCommand{
		CustomerID:      uuid.New(),
		ServiceDuration: time.Hour,
		PriceMinor:      8000,
		Currency:        "EUR",
	})
	require.NoError(t, err)
	return b.ID()
}

func (f *agentFixture) status(t *testing.T, id uuid.UUID) bookingDomain.Status {
	t.Helper()
	b, err := f.container.Bookings.Get(context.Background(), id)
	require.NoError(t, err)
	return b.Status()
}

func TestAgent_SyncAppliesQueuedActions(t *testing.T) {
	ctx := context.Background()
	f, cfg := newAgentFixture(t)

	agent, err := NewAgent(ctx, cfg, nil)
	require.NoError(t, err)
	defer agent.Close()
	assert.Equal(t, f.providerID, agent.ProviderID)

	bookingID := f.pendingBooking(t)
	_, err = agent.Queue.Enqueue(ctx, bookingDomain.ActionAccept, bookingID, agent.ProviderID, "")
	require.NoError(t, err)

	// Offline until probed, so enqueueing alone reaches nothing.
	assert.Equal(t, bookingDomain.StatusPendingAccept, f.status(t, bookingID))

	report, err := agent.Synchronizer.SyncOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Applied)
	assert.Equal(t, bookingDomain.StatusTherapistAccepted, f.status(t, bookingID))

	// A second provider's reject lost the race and is dropped as stale.
	_, err = agent.Queue.Enqueue(ctx, bookingDomain.ActionReject, bookingID, uuid.New(), "too far")
	require.NoError(t, err)
	report, err = agent.Synchronizer.SyncOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Stale)

	pending, err := agent.Queue.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Equal(t, bookingDomain.StatusTherapistAccepted, f.status(t, bookingID))
}

func TestAgent_StartDrainsOnceOnline(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f, cfg := newAgentFixture(t)

	agent, err := NewAgent(ctx, cfg, nil)
	require.NoError(t, err)
	defer agent.Close()

	bookingID := f.pendingBooking(t)
	_, err = agent.Queue.Enqueue(ctx, bookingDomain.ActionAccept, bookingID, agent.ProviderID, "")
	require.NoError(t, err)

	require.NoError(t, agent.Start(ctx))
	require.Eventually(t, func() bool {
		b, err := f.container.Bookings.Get(ctx, bookingID)
		return err == nil && b.Status() == bookingDomain.StatusTherapistAccepted
	}, 5*time.Second, 20*time.Millisecond)
	assert.True(t, agent.Connectivity.Online())
}

func TestNewAgent_RejectsBadProviderID(t *testing.T) {
	cfg := &config.Config{
		QueueStore: filepath.Join(t.TempDir(), "queue.db"),
		APIURL:     "http://127.0.0.1:1",
		ProviderID: "therapist-42",
	}
	agent, err := NewAgent(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Nil(t, agent)
	assert.True(t, errors.Is(err, config.ErrConfiguration))
}
