package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/felixgeelhaar/bookline/internal/app"
	"github.com/felixgeelhaar/bookline/pkg/config"
	"github.com/felixgeelhaar/bookline/pkg/observability"
)

const (
	outboxCleanupInterval = time.Hour
	statsInterval         = time.Minute
	// enforcerMaxAge is how stale the last successful run may be before
	// the worker reports itself degraded.
	enforcerMaxAge = 30 * time.Minute
)

func main() {
	// Setup logger
	logger := observability.LoggerFromEnv("worker")

	logger.Info("starting bookline worker")

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
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
		logCfg.Level = observability.LogLevelDebug
		logCfg.Output = os.Stdout
		logCfg.Component = "worker"
		logger = observability.NewLogger(logCfg)
	}

	// Refuse to boot with a broken enforcer configuration. Each run reads
	// it again, so this only catches what is wrong right now.
	if _, err := config.LoadEnforcer(); err != nil {
		logger.Error("enforcer configuration invalid", "error", err)
		os.Exit(1)
	}

	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize container", "error", err)
		os.Exit(1)
	}
	defer container.Close()

	// Outbox relay
	if err := container.Relay.Start(ctx); err != nil {
		logger.Error("failed to start outbox relay", "error", err)
		os.Exit(1)
	}

	// Commission deadline enforcement
	job := app.NewEnforcementJob(container.Broker, container.Clock, logger.With("component", "enforcer"), container.Metrics)
	scheduler, err := app.NewEnforcementScheduler(job, cfg.EnforcerSchedule, logger)
	if err != nil {
		logger.Error("failed to schedule enforcement", "error", err)
		os.Exit(1)
	}
	scheduler.Start(ctx)

	container.Health.Register("enforcer", observability.FreshnessHealthChecker(
		"commission enforcer", scheduler.LastSuccess, enforcerMaxAge, enforcerMaxAge, container.Clock.Now,
	))

	cleanupTicker := time.NewTicker(outboxCleanupInterval)
	defer cleanupTicker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-cleanupTicker.C:
				deleted, err := container.Relay.Cleanup(ctx)
				if err != nil {
					logger.Error("outbox cleanup failed", "error", err)
					continue
				}
				if deleted > 0 {
					logger.Info("outbox cleanup completed", "deleted", deleted)
				}
			}
		}
	}()

	if cfg.WorkerHealthAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			relay := container.Relay.GetStats()
			enforcer := scheduler.Stats()
			response := map[string]any{
				"status": "ok",
				"outbox": map[string]any{
					"running":           relay.IsRunning,
					"published":         relay.PublishedCount,
					"failed":            relay.FailedCount,
					"dead":              relay.DeadCount,
					"last_processed_at": relay.LastProcessedAt,
					"last_error":        relay.LastError,
				},
				"enforcer": map[string]any{
					"runs":         enforcer.Runs,
					"failures":     enforcer.Failures,
					"last_run_at":  enforcer.LastRunAt,
					"last_success": enforcer.LastSuccess,
				},
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(response)
		})

		mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
			checkCtx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			overall := container.Health.GetOverallHealth(checkCtx)
			w.Header().Set("Content-Type", "application/json")
			if overall.Status == observability.HealthStatusUnhealthy {
				w.WriteHeader(http.StatusServiceUnavailable)
			}
			_ = json.NewEncoder(w).Encode(overall)
		})

		healthSrv := &http.Server{
			Addr:              cfg.WorkerHealthAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			logger.Info("health server starting", "addr", cfg.WorkerHealthAddr)
			if err := healthSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("health server error", "error", err)
			}
		}()

		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := healthSrv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("health server shutdown error", "error", err)
			}
		}()
	}

	statsTicker := time.NewTicker(statsInterval)
	defer statsTicker.Stop()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-statsTicker.C:
				stats := container.Relay.GetStats()
				logger.Info("outbox stats",
					"running", stats.IsRunning,
					"published", stats.PublishedCount,
					"failed", stats.FailedCount,
					"dead", stats.DeadCount,
					"lag_seconds", stats.LagSeconds,
					"oldest_message_at", stats.OldestMessageAt,
					"last_error", stats.LastError,
				)
				enforcer := scheduler.Stats()
				logger.Info("enforcer stats",
					"runs", enforcer.Runs,
					"failures", enforcer.Failures,
					"last_success", enforcer.LastSuccess,
				)
			}
		}
	}()

	// Wait for shutdown
	<-ctx.Done()
	logger.Info("shutting down worker")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Minute)
	defer stopCancel()
	scheduler.Stop(stopCtx)
	container.Relay.Stop()
	logger.Info("worker stopped")

	fmt.Println("Goodbye!")
}
