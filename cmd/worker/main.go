// Command worker executes research workflows and their stage activities
// from the Temporal task queue.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/helixir/research-agent-service/internal/app"
	"github.com/helixir/research-agent-service/internal/config"
	"github.com/helixir/research-agent-service/internal/events"
	"github.com/helixir/research-agent-service/internal/observability"
	"github.com/helixir/research-agent-service/internal/temporal"
	"github.com/helixir/research-agent-service/internal/temporal/activities"
	"github.com/helixir/research-agent-service/internal/temporal/workflows"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := observability.NewLogger(app.LoggingConfig(cfg.Logging)).With().Str("component", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics("research")

	storage, err := app.OpenStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer storage.Close()

	publisher, err := app.NewPublisher(cfg.Kafka, logger, metrics)
	if err != nil {
		return err
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close event publisher")
		}
	}()

	ag, err := app.NewAgents(cfg, logger, metrics)
	if err != nil {
		return err
	}

	tc, err := temporal.NewClient(app.TemporalClientConfig(cfg.Temporal, logger))
	if err != nil {
		return fmt.Errorf("connect to temporal: %w", err)
	}
	defer tc.Close()

	manager, err := temporal.NewWorkerManager(tc, temporal.DefaultWorkerConfig(cfg.Temporal.TaskQueue), logger)
	if err != nil {
		return fmt.Errorf("create worker manager: %w", err)
	}
	workflows.Register(manager,
		activities.NewStageActivities(ag),
		activities.NewPersistenceActivities(storage.Repo),
		activities.NewEventActivities(publisher, events.NewEmitter(events.EmitterConfig{})),
	)

	// Stage and model metrics are recorded on the worker, not the server.
	metricsSrv := app.NewMetricsServer(cfg)
	metricsErr := make(chan error, 1)
	app.ServeBackground(metricsSrv, logger, metricsErr)
	defer app.Shutdown(metricsSrv, cfg.Server.ShutdownTimeout, logger)
	go func() {
		logger.Error().Err(<-metricsErr).Msg("metrics endpoint stopped")
	}()

	logger.Info().
		Str("task_queue", cfg.Temporal.TaskQueue).
		Str("namespace", cfg.Temporal.Namespace).
		Msg("worker polling")
	if err := manager.Start(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("worker: %w", err)
	}
	logger.Info().Msg("worker stopped")
	return nil
}
