// Command server serves the research HTTP API. With Temporal enabled it
// dispatches runs to workers; otherwise it runs the pipeline in-process.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/research-agent-service/internal/agents"
	"github.com/helixir/research-agent-service/internal/app"
	"github.com/helixir/research-agent-service/internal/config"
	"github.com/helixir/research-agent-service/internal/events"
	"github.com/helixir/research-agent-service/internal/observability"
	httpserver "github.com/helixir/research-agent-service/internal/server/http"
	"github.com/helixir/research-agent-service/internal/temporal"
	"github.com/helixir/research-agent-service/internal/temporal/workflows"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := observability.NewLogger(app.LoggingConfig(cfg.Logging)).With().Str("component", "server").Logger()

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

	deps := httpserver.Dependencies{
		Repo:      storage.Repo,
		Publisher: publisher,
		Emitter:   events.NewEmitter(events.EmitterConfig{}),
		Metrics:   metrics,
	}
	if storage.DB != nil {
		deps.DB = storage.DB
	}

	closeRunner, err := wireRunner(cfg, logger, metrics, &deps)
	if err != nil {
		return err
	}
	defer closeRunner()

	api := httpserver.NewServer(httpserver.Config{
		Address:         cfg.Server.HTTPAddress(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     2 * time.Minute,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, deps, logger)
	metricsSrv := app.NewMetricsServer(cfg)

	errCh := make(chan error, 2)
	go func() {
		if err := api.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	app.ServeBackground(metricsSrv, logger, errCh)

	logger.Info().
		Str("http_address", cfg.Server.HTTPAddress()).
		Bool("temporal", cfg.Temporal.Enabled).
		Bool("metrics", metricsSrv != nil).
		Msg("research-agent-service is ready")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := api.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown failed")
	}
	app.Shutdown(metricsSrv, cfg.Server.ShutdownTimeout, logger)
	return nil
}

// wireRunner fills in how POST /research executes: a Temporal workflow
// client, or an in-process pipeline when Temporal is disabled.
func wireRunner(cfg *config.Config, logger zerolog.Logger, metrics *observability.Metrics, deps *httpserver.Dependencies) (func(), error) {
	if !cfg.Temporal.Enabled {
		ag, err := app.NewAgents(cfg, logger, metrics)
		if err != nil {
			return nil, err
		}
		deps.Pipeline = agents.NewPipeline(ag,
			agents.WithPipelineLogger(logger),
			agents.WithPipelineMetrics(metrics),
		)
		logger.Info().Msg("temporal disabled, running research in-process")
		return func() {}, nil
	}

	clientCfg := app.TemporalClientConfig(cfg.Temporal, logger)
	c, err := temporal.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to temporal: %w", err)
	}
	wc := temporal.NewResearchWorkflowClient(c, clientCfg)
	deps.Workflow = wc
	deps.WorkflowFunc = workflows.ResearchWorkflow
	logger.Info().
		Str("host_port", cfg.Temporal.HostPort).
		Str("namespace", cfg.Temporal.Namespace).
		Bool("tls", cfg.Temporal.TLS.Enabled).
		Msg("temporal client connected")
	return wc.Close, nil
}
