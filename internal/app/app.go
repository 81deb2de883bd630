// Package app builds the long-lived dependencies shared by the research
// binaries from configuration: the model, the search gatherer, the agents,
// the state store, the event publisher and the metrics endpoint.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/helixir/research-agent-service/internal/agents"
	"github.com/helixir/research-agent-service/internal/config"
	"github.com/helixir/research-agent-service/internal/database"
	"github.com/helixir/research-agent-service/internal/events"
	"github.com/helixir/research-agent-service/internal/llm"
	"github.com/helixir/research-agent-service/internal/observability"
	"github.com/helixir/research-agent-service/internal/repository"
	"github.com/helixir/research-agent-service/internal/searchsources"
	"github.com/helixir/research-agent-service/internal/temporal"
)

// LoggingConfig maps the logging section onto the observability settings.
func LoggingConfig(cfg config.LoggingConfig) observability.LoggingConfig {
	return observability.LoggingConfig{
		Level:      cfg.Level,
		Format:     cfg.Format,
		Output:     cfg.Output,
		AddSource:  cfg.AddSource,
		TimeFormat: cfg.TimeFormat,
	}
}

// FactoryConfig maps the llm section onto llm.FactoryConfig.
func FactoryConfig(cfg config.LLMConfig) llm.FactoryConfig {
	return llm.FactoryConfig{
		Provider:    cfg.Provider,
		Temperature: cfg.Temperature,
		Timeout:     cfg.Timeout,
		MaxRetries:  cfg.MaxRetries,
		Ollama: llm.OllamaConfig{
			Model:   cfg.Ollama.Model,
			BaseURL: cfg.Ollama.BaseURL,
		},
		OpenAI: llm.OpenAIConfig{
			APIKey:  cfg.OpenAI.APIKey,
			Model:   cfg.OpenAI.Model,
			BaseURL: cfg.OpenAI.BaseURL,
		},
		Anthropic: llm.AnthropicConfig{
			APIKey:  cfg.Anthropic.APIKey,
			Model:   cfg.Anthropic.Model,
			BaseURL: cfg.Anthropic.BaseURL,
		},
	}
}

// NewModel creates the configured provider wrapped with logging, metrics and
// the per-call timeout.
func NewModel(cfg config.LLMConfig, logger zerolog.Logger, metrics *observability.Metrics) (llm.Model, error) {
	model, err := llm.NewModel(FactoryConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("create model: %w", err)
	}
	return llm.NewInstrumented(model,
		llm.WithTimeout(cfg.Timeout),
		llm.WithLogger(logger),
		llm.WithMetrics(metrics),
	), nil
}

// NewAgents builds the four pipeline stages over the configured model and
// search backends.
func NewAgents(cfg *config.Config, logger zerolog.Logger, metrics *observability.Metrics) (*agents.Agents, error) {
	model, err := NewModel(cfg.LLM, logger, metrics)
	if err != nil {
		return nil, err
	}
	gatherer, err := searchsources.NewGathererFromConfig(cfg.Search, logger, metrics)
	if err != nil {
		return nil, fmt.Errorf("create search gatherer: %w", err)
	}

	logger.Info().
		Str("provider", model.Provider()).
		Str("model", model.Name()).
		Str("web_backend", cfg.Search.WebBackend).
		Msg("research agents configured")

	return agents.New(model, gatherer,
		agents.WithLimits(agents.Limits{
			WebMaxResults:  cfg.Search.WebMaxResults,
			WebKeep:        cfg.Search.WebKeep,
			WikiMaxResults: cfg.Search.WikiMaxResults,
		}),
		agents.WithLogger(logger),
		agents.WithMetrics(metrics),
	), nil
}

// Storage is the state repository together with the connections behind it.
type Storage struct {
	Repo repository.StateRepository

	// DB is nil when PostgreSQL is disabled.
	DB *database.DB

	// Redis is nil when the cache is disabled.
	Redis *redis.Client
}

// Close releases the connections.
func (s *Storage) Close() {
	if s.Redis != nil {
		_ = s.Redis.Close()
	}
	if s.DB != nil {
		s.DB.Close()
	}
}

// OpenStorage selects PostgreSQL when the database is enabled and the state
// directory otherwise. With Redis enabled the store is wrapped in a
// read-through cache.
func OpenStorage(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Storage, error) {
	s := &Storage{}

	if cfg.Database.Enabled {
		db, err := database.New(ctx, &cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		s.DB = db
		logger.Info().Msg("database connection established")

		if cfg.Database.MigrationAutoRun {
			if err := migrateUp(db, cfg.Database.MigrationPath, logger); err != nil {
				s.Close()
				return nil, err
			}
		}
		s.Repo = repository.NewPgStateRepository(db, logger)
	} else {
		repo, err := repository.NewFileStateRepository(cfg.Storage.StateDir, logger)
		if err != nil {
			return nil, fmt.Errorf("open state directory: %w", err)
		}
		s.Repo = repo
		logger.Info().Str("dir", cfg.Storage.StateDir).Msg("using file state store")
	}

	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			s.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		s.Redis = client
		s.Repo = repository.NewCachedStateRepository(s.Repo, repository.NewRedisStateCache(client, cfg.Redis.CacheTTL), logger)
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("state cache enabled")
	}

	return s, nil
}

func migrateUp(db *database.DB, path string, logger zerolog.Logger) (err error) {
	migrator, err := database.NewMigrator(db, path, logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close migrator")
		}
	}()

	if err := migrator.Up(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// TemporalClientConfig maps the temporal section onto the client settings,
// with SDK logs routed through logger.
func TemporalClientConfig(cfg config.TemporalConfig, logger zerolog.Logger) temporal.ClientConfig {
	out := temporal.ClientConfig{
		HostPort:  cfg.HostPort,
		Namespace: cfg.Namespace,
		TaskQueue: cfg.TaskQueue,
		Logger:    observability.NewTemporalLogger(logger),
	}
	if cfg.TLS.Enabled {
		out.TLS = &temporal.TLSConfig{
			Enabled:    true,
			CertPath:   cfg.TLS.CertPath,
			KeyPath:    cfg.TLS.KeyPath,
			CACertPath: cfg.TLS.CACertPath,
			ServerName: cfg.TLS.ServerName,
		}
	}
	return out
}

// NewPublisher returns the Kafka publisher when enabled and a no-op one
// otherwise.
func NewPublisher(cfg config.KafkaConfig, logger zerolog.Logger, metrics *observability.Metrics) (events.Publisher, error) {
	pub, err := events.NewPublisher(cfg,
		events.WithLogger(logger),
		events.WithMetrics(metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("create event publisher: %w", err)
	}
	if cfg.Enabled {
		logger.Info().Strs("brokers", cfg.Brokers).Str("topic", cfg.Topic).Msg("kafka event publisher enabled")
	}
	return pub, nil
}

// NewMetricsServer exposes the default Prometheus registry on the metrics
// port. It returns nil when metrics are disabled.
func NewMetricsServer(cfg *config.Config) *http.Server {
	if !cfg.Metrics.Enabled {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, promhttp.Handler())
	return &http.Server{
		Addr:              cfg.Server.MetricsAddress(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      30 * time.Second,
	}
}

// ServeBackground runs srv until it is shut down. Errors other than
// http.ErrServerClosed are sent on errCh, which must have room for them.
func ServeBackground(srv *http.Server, logger zerolog.Logger, errCh chan<- error) {
	if srv == nil {
		return
	}
	go func() {
		logger.Info().Str("address", srv.Addr).Msg("metrics server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()
}

// Shutdown stops srv within timeout, logging instead of failing.
func Shutdown(srv *http.Server, timeout time.Duration, logger zerolog.Logger) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Str("address", srv.Addr).Msg("shutdown failed")
	}
}
