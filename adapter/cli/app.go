package cli

import (
	"context"

	"github.com/felixgeelhaar/bookline/internal/actionqueue"
	bookingApp "github.com/felixgeelhaar/bookline/internal/booking/application"
	commissionApp "github.com/felixgeelhaar/bookline/internal/commission/application"
	"github.com/google/uuid"
)

// AgentRunner runs the provider agent in the background.
type AgentRunner interface {
	Start(ctx context.Context) error
	Stop()
}

// EnforcementRunner runs one commission deadline pass.
type EnforcementRunner interface {
	Run(ctx context.Context) (*commissionApp.RunSummary, error)
}

// App holds the CLI application dependencies. Either half may be missing:
// a provider machine has no record store and an operator has no queue.
type App struct {
	// Provider agent
	Queue        *actionqueue.Queue
	Synchronizer *actionqueue.Synchronizer
	Agent        AgentRunner
	ProviderID   uuid.UUID

	// Record store
	Bookings    *bookingApp.Service
	Ledger      *commissionApp.Ledger
	Reactivator *commissionApp.Reactivator

	Enforcement EnforcementRunner
}

// NewApp creates an empty CLI application.
func NewApp() *App {
	return &App{}
}

// SetAgent wires the provider half.
func (a *App) SetAgent(queue *actionqueue.Queue, sync *actionqueue.Synchronizer, runner AgentRunner, providerID uuid.UUID) {
	a.Queue = queue
	a.Synchronizer = sync
	a.Agent = runner
	a.ProviderID = providerID
}

// SetServices wires the record store half.
func (a *App) SetServices(bookings *bookingApp.Service, ledger *commissionApp.Ledger, reactivator *commissionApp.Reactivator) {
	a.Bookings = bookings
	a.Ledger = ledger
	a.Reactivator = reactivator
}

// SetEnforcement updates the enforcement runner.
func (a *App) SetEnforcement(r EnforcementRunner) {
	a.Enforcement = r
}

// app is the global CLI application instance
var app *App

// SetApp sets the global CLI application instance.
func SetApp(a *App) {
	app = a
}

// GetApp returns the global CLI application instance.
func GetApp() *App {
	return app
}
