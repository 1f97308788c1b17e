package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/bookline/adapter/cli"
	"github.com/felixgeelhaar/bookline/adapter/cli/commission"
	"github.com/felixgeelhaar/bookline/adapter/cli/provider"
	"github.com/felixgeelhaar/bookline/adapter/cli/queue"
	"github.com/felixgeelhaar/bookline/internal/app"
	"github.com/felixgeelhaar/bookline/pkg/config"
	"github.com/felixgeelhaar/bookline/pkg/observability"
)

func main() {
	// Setup logger
	logger := observability.LoggerFromEnv("cli")
	if os.Getenv("BOOKLINE_LOG_LEVEL") == "" {
		logCfg := observability.DefaultLogConfig()
		logCfg.Level = observability.LogLevelWarn
		logCfg.Component = "cli"
		logger = observability.NewLogger(logCfg)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		cancel()
	}()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if cfg.IsDevelopment() {
		logCfg := observability.DefaultLogConfig()
		logCfg.Level = observability.LogLevelInfo
		logCfg.Output = os.Stderr
		logCfg.Component = "cli"
		logger = observability.NewLogger(logCfg)
	}
	cli.SetLogger(logger)

	cliApp := cli.NewApp()

	// The record store half needs a payment window; without one the CLI
	// still works as a provider agent.
	container, err := app.NewContainer(ctx, cfg, logger)
	switch {
	case err == nil:
		defer container.Close()
		cliApp.SetServices(container.Bookings, container.Ledger, container.Reactivator)
		cliApp.SetEnforcement(app.NewEnforcementJob(container.Broker, container.Clock, logger, container.Metrics))
	case errors.Is(err, config.ErrConfiguration):
		logger.Debug("record store not configured", "error", err)
		cliApp.SetEnforcement(app.NewEnforcementJob(nil, nil, logger, nil))
	default:
		logger.Error("failed to initialize container", "error", err)
		os.Exit(1)
	}

	if cfg.ProviderID != "" {
		agent, err := app.NewAgent(ctx, cfg, logger)
		if err != nil {
			logger.Error("failed to initialize provider agent", "error", err)
			os.Exit(1)
		}
		defer agent.Close()
		cliApp.SetAgent(agent.Queue, agent.Synchronizer, agent, agent.ProviderID)
	}

	// Set the CLI app
	cli.SetApp(cliApp)

	// Register commands
	cli.AddCommand(queue.Cmd)
	cli.AddCommand(commission.Cmd)
	cli.AddCommand(provider.Cmd)

	// Execute CLI
	cli.Execute(ctx)
}
