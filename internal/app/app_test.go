package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixir/research-agent-service/internal/config"
	"github.com/helixir/research-agent-service/internal/domain"
	"github.com/helixir/research-agent-service/internal/events"
	"github.com/helixir/research-agent-service/internal/observability"
	"github.com/helixir/research-agent-service/internal/repository"
)

func TestFactoryConfig(t *testing.T) {
	cfg := config.LLMConfig{
		Provider:    config.ProviderOpenAI,
		Timeout:     30 * time.Second,
		MaxRetries:  2,
		Temperature: 0.3,
		OpenAI:      config.OpenAIConfig{APIKey: "sk-test", Model: "gpt-4o-mini", BaseURL: "http://localhost:1234/v1"},
		Ollama:      config.OllamaConfig{Model: "llama3.2", BaseURL: "http://localhost:11434"},
	}

	fc := FactoryConfig(cfg)
	assert.Equal(t, "openai", fc.Provider)
	assert.Equal(t, 30*time.Second, fc.Timeout)
	assert.Equal(t, 2, fc.MaxRetries)
	assert.InDelta(t, 0.3, fc.Temperature, 1e-9)
	assert.Equal(t, "sk-test", fc.OpenAI.APIKey)
	assert.Equal(t, "http://localhost:1234/v1", fc.OpenAI.BaseURL)
	assert.Equal(t, "llama3.2", fc.Ollama.Model)
}

func TestNewModel(t *testing.T) {
	metrics := observability.NewMetrics("app_test_model")

	model, err := NewModel(config.LLMConfig{
		Provider: config.ProviderOpenAI,
		Timeout:  time.Second,
		OpenAI:   config.OpenAIConfig{APIKey: "sk-test", Model: "gpt-4o-mini"},
	}, zerolog.Nop(), metrics)
	require.NoError(t, err)
	assert.Equal(t, "openai", model.Provider())
	assert.Equal(t, "gpt-4o-mini", model.Name())

	_, err = NewModel(config.LLMConfig{Provider: "carrier-pigeon"}, zerolog.Nop(), metrics)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported LLM provider")
}

func TestLoggingConfig(t *testing.T) {
	lc := LoggingConfig(config.LoggingConfig{Level: "debug", Format: "console", Output: "stderr", AddSource: true})
	assert.Equal(t, "debug", lc.Level)
	assert.Equal(t, "console", lc.Format)
	assert.Equal(t, "stderr", lc.Output)
	assert.True(t, lc.AddSource)
}

func TestOpenStorage_File(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageConfig{StateDir: t.TempDir()}}

	s, err := OpenStorage(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(s.Close)

	assert.Nil(t, s.DB)
	assert.Nil(t, s.Redis)
	assert.IsType(t, &repository.FileStateRepository{}, s.Repo)

	state := domain.NewWorkflowState("tidal energy")
	require.NoError(t, s.Repo.Save(context.Background(), state))
	got, err := s.Repo.Get(context.Background(), state.ID)
	require.NoError(t, err)
	assert.Equal(t, state.Query, got.Query)
}

func TestOpenStorage_FileWithRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &config.Config{
		Storage: config.StorageConfig{StateDir: t.TempDir()},
		Redis:   config.RedisConfig{Enabled: true, Addr: mr.Addr(), CacheTTL: time.Minute},
	}

	s, err := OpenStorage(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(s.Close)

	require.NotNil(t, s.Redis)
	assert.IsType(t, &repository.CachedStateRepository{}, s.Repo)

	state := domain.NewWorkflowState("tidal energy")
	require.NoError(t, s.Repo.Save(context.Background(), state))
	assert.True(t, mr.Exists(repository.StateCacheKey(state.ID)))
}

func TestOpenStorage_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := &config.Config{
		Storage: config.StorageConfig{StateDir: t.TempDir()},
		Redis:   config.RedisConfig{Enabled: true, Addr: addr},
	}

	_, err := OpenStorage(context.Background(), cfg, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect to redis")
}

func TestNewPublisher(t *testing.T) {
	pub, err := NewPublisher(config.KafkaConfig{}, zerolog.Nop(), nil)
	require.NoError(t, err)
	assert.IsType(t, events.NoopPublisher{}, pub)

	_, err = NewPublisher(config.KafkaConfig{Enabled: true, Topic: "t"}, zerolog.Nop(), nil)
	require.Error(t, err)
}

func TestTemporalClientConfig(t *testing.T) {
	cfg := config.TemporalConfig{
		Enabled:   true,
		HostPort:  "temporal:7233",
		Namespace: "research",
		TaskQueue: "research-agent-tasks",
	}

	plain := TemporalClientConfig(cfg, zerolog.Nop())
	assert.Equal(t, "temporal:7233", plain.HostPort)
	assert.Equal(t, "research", plain.Namespace)
	assert.Equal(t, "research-agent-tasks", plain.TaskQueue)
	assert.NotNil(t, plain.Logger)
	assert.Nil(t, plain.TLS)

	cfg.TLS = config.TemporalTLSConfig{Enabled: true, CACertPath: "/etc/temporal/ca.pem", ServerName: "temporal.internal"}
	secured := TemporalClientConfig(cfg, zerolog.Nop())
	require.NotNil(t, secured.TLS)
	assert.True(t, secured.TLS.Enabled)
	assert.Equal(t, "/etc/temporal/ca.pem", secured.TLS.CACertPath)
	assert.Equal(t, "temporal.internal", secured.TLS.ServerName)
}

func TestNewMetricsServer(t *testing.T) {
	cfg := &config.Config{
		Server:  config.ServerConfig{Host: "127.0.0.1", MetricsPort: 9191, ReadTimeout: time.Second},
		Metrics: config.MetricsConfig{Enabled: false, Path: "/metrics"},
	}
	assert.Nil(t, NewMetricsServer(cfg))
	ServeBackground(nil, zerolog.Nop(), nil)
	Shutdown(nil, time.Second, zerolog.Nop())

	cfg.Metrics.Enabled = true
	srv := NewMetricsServer(cfg)
	require.NotNil(t, srv)
	assert.Equal(t, "127.0.0.1:9191", srv.Addr)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")

	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/other", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
