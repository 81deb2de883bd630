package searchsources

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/helixir/research-agent-service/internal/config"
	"github.com/helixir/research-agent-service/internal/observability"
)

// NewWebSearcher builds the configured general web backend.
func NewWebSearcher(cfg config.SearchConfig, metrics *observability.Metrics) (Searcher, error) {
	switch strings.ToLower(cfg.WebBackend) {
	case "", config.WebBackendDuckDuckGo:
		b := cfg.DuckDuckGo
		return NewDuckDuckGo(DuckDuckGoConfig{BaseURL: b.BaseURL}, NewHTTPClient(HTTPClientConfig{
			Backend:    duckDuckGoName,
			Timeout:    b.Timeout,
			RateLimit:  b.RateLimit,
			MaxRetries: b.MaxRetries,
			UserAgent:  cfg.UserAgent,
			Metrics:    metrics,
		})), nil
	case config.WebBackendBrave:
		b := cfg.Brave
		if b.APIKey == "" {
			return nil, fmt.Errorf("brave backend requires an API key")
		}
		return NewBrave(BraveConfig{BaseURL: b.BaseURL}, NewHTTPClient(HTTPClientConfig{
			Backend:      braveName,
			Timeout:      b.Timeout,
			RateLimit:    b.RateLimit,
			MaxRetries:   b.MaxRetries,
			UserAgent:    cfg.UserAgent,
			APIKey:       b.APIKey,
			APIKeyHeader: braveAPIKeyHeader,
			Metrics:      metrics,
		})), nil
	default:
		return nil, fmt.Errorf("unsupported web backend: %s", cfg.WebBackend)
	}
}

// NewWikipediaSearcher builds the encyclopedic backend.
func NewWikipediaSearcher(cfg config.SearchConfig, metrics *observability.Metrics) Searcher {
	w := cfg.Wikipedia
	rateLimit := w.RateLimit
	if rateLimit == 0 {
		rateLimit = 5
	}
	return NewWikipedia(WikipediaConfig{Language: w.Language, BaseURL: w.BaseURL}, NewHTTPClient(HTTPClientConfig{
		Backend:    wikipediaName,
		Timeout:    w.Timeout,
		RateLimit:  rateLimit,
		BurstSize:  int(rateLimit),
		MaxRetries: w.MaxRetries,
		UserAgent:  cfg.UserAgent,
		Metrics:    metrics,
	}))
}

// NewGathererFromConfig wires both backends into a Gatherer.
func NewGathererFromConfig(cfg config.SearchConfig, logger zerolog.Logger, metrics *observability.Metrics) (*Gatherer, error) {
	web, err := NewWebSearcher(cfg, metrics)
	if err != nil {
		return nil, err
	}
	return NewGatherer(web, NewWikipediaSearcher(cfg, metrics),
		WithGathererLogger(logger.With().Str("component", "searchsources").Logger()),
		WithGathererMetrics(metrics),
	), nil
}
