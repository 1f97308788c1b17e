package provider

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/bookline/adapter/cli"
	internalApp "github.com/felixgeelhaar/bookline/internal/app"
	"github.com/felixgeelhaar/bookline/internal/commission/domain"
	"github.com/felixgeelhaar/bookline/pkg/config"
)

func setupTestContainer(t *testing.T) *internalApp.Container {
	t.Helper()
	cfg := &config.Config{
		AppEnv:                  "test",
		LocalMode:               true,
		DatabaseDriver:          "sqlite",
		SQLitePath:              filepath.Join(t.TempDir(), "test.db"),
		CommissionPaymentWindow: 24 * time.Hour,
	}
	container, err := internalApp.NewContainer(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(container.Close)

	app := cli.NewApp()
	app.SetServices(container.Bookings, container.Ledger, container.Reactivator)
	cli.SetApp(app)
	t.Cleanup(func() { cli.SetApp(nil) })
	return container
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	Cmd.SetOut(&out)
	Cmd.SetErr(&out)
	Cmd.SetArgs(args)
	actor, note = "operator:cli", ""
	err := Cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestReactivateCmd(t *testing.T) {
	c := setupTestContainer(t)
	ctx := context.Background()

	a := domain.NewProviderAvailability(uuid.New(), time.Now())
	a.Status = domain.AvailabilityAvailable
	require.NoError(t, c.Repos.Availability.Save(ctx, a))

	_, err := run(t, "reactivate", a.ProviderID.String())
	assert.ErrorIs(t, err, domain.ErrProviderNotDeactivated)

	changed, err := c.Repos.Availability.Deactivate(ctx, a.ProviderID, domain.DeactivationReasonCommissionOverdue, time.Now())
	require.NoError(t, err)
	require.True(t, changed)

	out, err := run(t, "reactivate", a.ProviderID.String(), "--note", "paid by transfer")
	require.NoError(t, err)
	assert.Contains(t, out, "Provider reactivated: "+a.ProviderID.String())
	assert.Contains(t, out, "offline")

	got, err := c.Repos.Availability.FindByProviderID(ctx, a.ProviderID)
	require.NoError(t, err)
	assert.False(t, got.IsDeactivatedForCommission())
	assert.True(t, got.BookingEnabled)

	entries, err := c.Repos.Audit.ListByProvider(ctx, a.ProviderID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "operator:cli", entries[0].Actor)
}

func TestReactivateCmd_InvalidInput(t *testing.T) {
	setupTestContainer(t)

	_, err := run(t, "reactivate", "nope")
	assert.ErrorContains(t, err, "invalid provider ID")

	_, err = run(t, "reactivate", uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrAvailabilityNotFound)
}
