// Package config loads service settings from defaults, an optional
// config.yaml and RESEARCH_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Postgres sslmode values.
const (
	SSLModeDisable    = "disable"
	SSLModeRequire    = "require"
	SSLModeVerifyCA   = "verify-ca"
	SSLModeVerifyFull = "verify-full"
)

const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

const (
	WebBackendDuckDuckGo = "duckduckgo"
	WebBackendBrave      = "brave"
)

const envPrefix = "RESEARCH"

// Config is the root of the settings tree. Every binary loads the whole
// tree and reads the sections it needs.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Temporal TemporalConfig `mapstructure:"temporal"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Search   SearchConfig   `mapstructure:"search"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Storage  StorageConfig  `mapstructure:"storage"`
}

type ServerConfig struct {
	Host        string `mapstructure:"host"`
	HTTPPort    int    `mapstructure:"http_port"`
	MetricsPort int    `mapstructure:"metrics_port"`

	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout must outlast an in-process run, which blocks the
	// POST until the report is written.
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig configures the pgx pool behind the research_runs table.
type DatabaseConfig struct {
	// Enabled selects Postgres; otherwise runs are kept as JSON files.
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"-"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"ssl_mode"`

	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`

	MigrationPath    string `mapstructure:"migration_path"`
	MigrationAutoRun bool   `mapstructure:"migration_auto_run"`
}

// RedisConfig configures the read-through state cache.
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"-"`
	DB       int           `mapstructure:"db"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// TemporalConfig configures workflow dispatch. With Enabled false the HTTP
// server runs the pipeline in-process.
type TemporalConfig struct {
	Enabled   bool              `mapstructure:"enabled"`
	HostPort  string            `mapstructure:"host_port"`
	Namespace string            `mapstructure:"namespace"`
	TaskQueue string            `mapstructure:"task_queue"`
	TLS       TemporalTLSConfig `mapstructure:"tls"`
}

// TemporalTLSConfig holds client TLS settings. Paths point at PEM files.
type TemporalTLSConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	CertPath   string `mapstructure:"cert_path"`
	KeyPath    string `mapstructure:"key_path"`
	CACertPath string `mapstructure:"ca_cert_path"`
	ServerName string `mapstructure:"server_name"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
	// Format is json or console.
	Format string `mapstructure:"format"`
	// Output is stdout, stderr or a file path.
	Output     string `mapstructure:"output"`
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// LLMConfig selects the model every stage talks to.
type LLMConfig struct {
	Provider    string        `mapstructure:"provider"`
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
	RetryDelay  time.Duration `mapstructure:"retry_delay"`
	Temperature float64       `mapstructure:"temperature"`

	Ollama    OllamaConfig    `mapstructure:"ollama"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
}

type OllamaConfig struct {
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

type OpenAIConfig struct {
	APIKey string `mapstructure:"-"`
	Model  string `mapstructure:"model"`
	// BaseURL may point at any OpenAI-compatible endpoint.
	BaseURL string `mapstructure:"base_url"`
}

type AnthropicConfig struct {
	APIKey  string `mapstructure:"-"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

// SearchConfig configures the researcher's two lookups: a general web
// search and an encyclopedia search.
type SearchConfig struct {
	WebBackend string `mapstructure:"web_backend"`
	// WebMaxResults are requested; the first WebKeep become sources.
	WebMaxResults  int    `mapstructure:"web_max_results"`
	WebKeep        int    `mapstructure:"web_keep"`
	WikiMaxResults int    `mapstructure:"wiki_max_results"`
	UserAgent      string `mapstructure:"user_agent"`

	DuckDuckGo BackendConfig   `mapstructure:"duckduckgo"`
	Brave      BackendConfig   `mapstructure:"brave"`
	Wikipedia  WikipediaConfig `mapstructure:"wikipedia"`
}

// BackendConfig is shared by every search backend.
type BackendConfig struct {
	APIKey  string        `mapstructure:"-"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is in requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// MaxRetries applies to 429 and 5xx answers.
	MaxRetries int `mapstructure:"max_retries"`
}

type WikipediaConfig struct {
	BackendConfig `mapstructure:",squash"`
	// Language picks the edition, e.g. "en" for en.wikipedia.org.
	Language string `mapstructure:"language"`
}

// KafkaConfig configures the lifecycle event publisher.
type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	BatchSize    int           `mapstructure:"batch_size"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

type StorageConfig struct {
	// StateDir receives the CLI's research_*.json documents.
	StateDir string `mapstructure:"state_dir"`
}

// DSN renders the pgx connection URL.
func (c *DatabaseConfig) DSN() string {
	q := url.Values{"sslmode": {c.SSLMode}}
	if secs := int(c.ConnectTimeout.Seconds()); secs > 0 {
		q.Set("connect_timeout", strconv.Itoa(secs))
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Name,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func (c *ServerConfig) HTTPAddress() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.HTTPPort))
}

func (c *ServerConfig) MetricsAddress() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.MetricsPort))
}

// Load builds the config from defaults, then config.yaml if one is found,
// then the environment, and validates the result.
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, dir := range []string{".", "./config", "/etc/research-agent-service"} {
		v.AddConfigPath(dir)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// loadSecrets fills the mapstructure:"-" fields. Secrets are never read
// from config files.
func loadSecrets(cfg *Config) {
	for name, dst := range map[string]*string{
		"DATABASE_PASSWORD":     &cfg.Database.Password,
		"REDIS_PASSWORD":        &cfg.Redis.Password,
		"LLM_OPENAI_API_KEY":    &cfg.LLM.OpenAI.APIKey,
		"LLM_ANTHROPIC_API_KEY": &cfg.LLM.Anthropic.APIKey,
		"SEARCH_BRAVE_API_KEY":  &cfg.Search.Brave.APIKey,
	} {
		*dst = os.Getenv(envPrefix + "_" + name)
	}
}

var defaults = map[string]any{
	"server.host":             "0.0.0.0",
	"server.http_port":        8080,
	"server.metrics_port":     9091,
	"server.read_timeout":     "30s",
	"server.write_timeout":    "10m",
	"server.shutdown_timeout": "30s",

	"database.enabled":             true,
	"database.host":                "localhost",
	"database.port":                5432,
	"database.user":                "research",
	"database.name":                "research_agent_service",
	"database.ssl_mode":            SSLModeRequire,
	"database.max_conns":           20,
	"database.min_conns":           2,
	"database.max_conn_lifetime":   "1h",
	"database.max_conn_idle_time":  "30m",
	"database.health_check_period": "30s",
	"database.connect_timeout":     "10s",
	"database.migration_path":      "migrations",
	"database.migration_auto_run":  false,

	"redis.enabled":   false,
	"redis.addr":      "localhost:6379",
	"redis.db":        0,
	"redis.cache_ttl": "1h",

	"temporal.enabled":          true,
	"temporal.host_port":        "localhost:7233",
	"temporal.namespace":        "research",
	"temporal.task_queue":       "research-agent-tasks",
	"temporal.tls.enabled":      false,
	"temporal.tls.cert_path":    "",
	"temporal.tls.key_path":     "",
	"temporal.tls.ca_cert_path": "",
	"temporal.tls.server_name":  "",

	"logging.level":       "info",
	"logging.format":      "json",
	"logging.output":      "stdout",
	"logging.add_source":  false,
	"logging.time_format": time.RFC3339,

	"metrics.enabled": true,
	"metrics.path":    "/metrics",

	"llm.provider":           ProviderOllama,
	"llm.timeout":            "120s",
	"llm.max_retries":        0,
	"llm.retry_delay":        "2s",
	"llm.temperature":        0.7,
	"llm.ollama.model":       "llama3.2",
	"llm.ollama.base_url":    "http://localhost:11434",
	"llm.openai.model":       "gpt-4o-mini",
	"llm.openai.base_url":    "https://api.openai.com/v1",
	"llm.anthropic.model":    "claude-3-5-haiku-latest",
	"llm.anthropic.base_url": "https://api.anthropic.com",

	"search.web_backend":            WebBackendDuckDuckGo,
	"search.web_max_results":        10,
	"search.web_keep":               7,
	"search.wiki_max_results":       3,
	"search.user_agent":             "research-agent-service/1.0",
	"search.duckduckgo.base_url":    "https://html.duckduckgo.com/html/",
	"search.duckduckgo.timeout":     "15s",
	"search.duckduckgo.rate_limit":  1.0,
	"search.duckduckgo.max_retries": 0,
	"search.brave.base_url":         "https://api.search.brave.com/res/v1",
	"search.brave.timeout":          "15s",
	"search.brave.rate_limit":       1.0,
	"search.brave.max_retries":      0,
	"search.wikipedia.base_url":     "",
	"search.wikipedia.language":     "en",
	"search.wikipedia.timeout":      "15s",
	"search.wikipedia.rate_limit":   5.0,
	"search.wikipedia.max_retries":  0,

	"kafka.enabled":       false,
	"kafka.brokers":       []string{"localhost:9092"},
	"kafka.topic":         "events.research_agent_service",
	"kafka.batch_size":    100,
	"kafka.batch_timeout": "10ms",

	"storage.state_dir": ".",
}

// Validate returns the first problem found, checking sections in order.
func (c *Config) Validate() error {
	for _, check := range []func() error{
		c.validateServer,
		c.validateDatabase,
		c.validateRedis,
		c.validateTemporal,
		c.validateLogging,
		c.validateLLM,
		c.validateSearch,
	} {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func validPort(p int) bool { return p > 0 && p <= 65535 }

func (c *Config) validateServer() error {
	if !validPort(c.Server.HTTPPort) {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}
	if !validPort(c.Server.MetricsPort) {
		return fmt.Errorf("invalid metrics port: %d", c.Server.MetricsPort)
	}
	return nil
}

func (c *Config) validateDatabase() error {
	db := c.Database
	switch {
	case !db.Enabled:
		return nil
	case db.Host == "":
		return errors.New("database host is required")
	case !validPort(db.Port):
		return fmt.Errorf("invalid database port: %d", db.Port)
	case db.Name == "":
		return errors.New("database name is required")
	case db.MaxConns < db.MinConns:
		return fmt.Errorf("max_conns (%d) must be >= min_conns (%d)", db.MaxConns, db.MinConns)
	}
	return nil
}

func (c *Config) validateRedis() error {
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return errors.New("redis addr is required when redis is enabled")
	}
	return nil
}

func (c *Config) validateTemporal() error {
	tls := c.Temporal.TLS
	if c.Temporal.Enabled && tls.Enabled && (tls.CertPath == "") != (tls.KeyPath == "") {
		return errors.New("temporal tls needs both cert_path and key_path, or neither")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "error", "fatal", "panic":
		return nil
	}
	return fmt.Errorf("invalid log level: %s", c.Logging.Level)
}

func (c *Config) validateLLM() error {
	llm := c.LLM
	if llm.Temperature < 0 || llm.Temperature > 2 {
		return errors.New("LLM temperature must be between 0 and 2")
	}
	if llm.MaxRetries < 0 {
		return errors.New("LLM max_retries must not be negative")
	}

	var missing string
	switch strings.ToLower(llm.Provider) {
	case ProviderOllama:
		if llm.Ollama.Model == "" {
			missing = "llm.ollama.model"
		}
	case ProviderOpenAI:
		if llm.OpenAI.APIKey == "" {
			missing = envPrefix + "_LLM_OPENAI_API_KEY to be set"
		}
	case ProviderAnthropic:
		if llm.Anthropic.APIKey == "" {
			missing = envPrefix + "_LLM_ANTHROPIC_API_KEY to be set"
		}
	default:
		return fmt.Errorf("unsupported LLM provider: %s", llm.Provider)
	}
	if missing != "" {
		return fmt.Errorf("LLM provider %q requires %s", llm.Provider, missing)
	}
	return nil
}

func (c *Config) validateSearch() error {
	s := c.Search
	switch strings.ToLower(s.WebBackend) {
	case WebBackendDuckDuckGo:
	case WebBackendBrave:
		if s.Brave.APIKey == "" {
			return fmt.Errorf("web backend %q requires %s_SEARCH_BRAVE_API_KEY to be set", s.WebBackend, envPrefix)
		}
	default:
		return fmt.Errorf("unsupported web backend: %s", s.WebBackend)
	}

	switch {
	case s.WebMaxResults <= 0:
		return errors.New("search web_max_results must be positive")
	case s.WikiMaxResults <= 0:
		return errors.New("search wiki_max_results must be positive")
	case s.WebKeep <= 0 || s.WebKeep > s.WebMaxResults:
		return fmt.Errorf("search web_keep must be between 1 and web_max_results (%d)", s.WebMaxResults)
	}
	return nil
}
