package searchsources

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/helixir/research-agent-service/internal/domain"
	"github.com/helixir/research-agent-service/internal/observability"
)

// Gatherer fronts one general web backend and one encyclopedic backend.
// Backend failures are logged and reported as empty results; a Gatherer
// never returns an error.
type Gatherer struct {
	web     Searcher
	wiki    Searcher
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// GathererOption configures a Gatherer.
type GathererOption func(*Gatherer)

// WithGathererLogger sets the logger.
func WithGathererLogger(logger zerolog.Logger) GathererOption {
	return func(g *Gatherer) {
		g.logger = logger
	}
}

// WithGathererMetrics sets the metrics recorder.
func WithGathererMetrics(metrics *observability.Metrics) GathererOption {
	return func(g *Gatherer) {
		g.metrics = metrics
	}
}

// NewGatherer creates a Gatherer. Either backend may be nil, in which case
// its searches return nothing.
func NewGatherer(web, wiki Searcher, opts ...GathererOption) *Gatherer {
	g := &Gatherer{
		web:    web,
		wiki:   wiki,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SearchWeb returns up to maxResults filtered web sources.
func (g *Gatherer) SearchWeb(ctx context.Context, query string, maxResults int) []domain.Source {
	return g.search(ctx, g.web, query, maxResults)
}

// SearchWikipedia returns up to maxResults encyclopedia sources.
func (g *Gatherer) SearchWikipedia(ctx context.Context, query string, maxResults int) []domain.Source {
	return g.search(ctx, g.wiki, query, maxResults)
}

func (g *Gatherer) search(ctx context.Context, s Searcher, query string, maxResults int) []domain.Source {
	if s == nil {
		return nil
	}

	backend := s.Name()
	logger := observability.WithSearchContext(observability.WithRequestContext(g.logger, ctx), backend, query)
	if g.metrics != nil {
		g.metrics.RecordSearchStarted(backend)
	}

	start := time.Now()
	results, err := s.Search(ctx, query, maxResults)
	elapsed := time.Since(start)
	if err != nil {
		logger.Error().Err(err).Dur("duration", elapsed).Msg("search backend failed")
		if g.metrics != nil {
			g.metrics.RecordSearchFailed(backend, elapsed.Seconds())
		}
		return nil
	}

	if len(results) > maxResults {
		results = results[:maxResults]
	}
	sources := make([]domain.Source, 0, len(results))
	for _, r := range results {
		// Priors are fixed by source type regardless of what the backend set.
		r.SourceType = s.SourceType()
		r.ReliabilityScore = r.SourceType.DefaultReliability()
		sources = append(sources, r)
	}

	logger.Info().Int("results", len(sources)).Dur("duration", elapsed).Msg("search completed")
	if g.metrics != nil {
		g.metrics.RecordSearchCompleted(backend, len(sources), elapsed.Seconds())
		if len(sources) > 0 {
			g.metrics.RecordSourcesDiscovered(string(s.SourceType()), len(sources))
		}
	}
	return sources
}
