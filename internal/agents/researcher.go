package agents

import (
	"context"
	"fmt"

	"github.com/helixir/research-agent-service/internal/domain"
)

// research gathers sources from both backends. Wikipedia results come first,
// followed by at most WebKeep web results. The history line reports the web
// count before that cap. Each pass replaces the sources of the last one,
// and a pass that finds nothing leaves none.
func (a *Agents) research(ctx context.Context, state *domain.WorkflowState) error {
	state.Begin(StageResearcher, domain.ExecutionRunning)
	logger := a.stageLogger(ctx, state, StageResearcher)

	if a.gatherer == nil {
		return fmt.Errorf("no source gatherer configured")
	}

	webHits := a.gatherer.SearchWeb(ctx, state.Query, a.limits.WebMaxResults)
	wikiHits := a.gatherer.SearchWikipedia(ctx, state.Query, a.limits.WikiMaxResults)

	if len(webHits) == 0 && len(wikiHits) == 0 {
		logger.Error().Msg("no search results found")
		state.Sources = []domain.Source{}
		state.Fail("Search failed - no results found")
		return nil
	}

	kept := webHits
	if len(kept) > a.limits.WebKeep {
		kept = kept[:a.limits.WebKeep]
	}

	sources := make([]domain.Source, 0, len(wikiHits)+len(kept))
	for _, hit := range wikiHits {
		sources = append(sources, domain.NewSource(domain.SourceTypeWikipedia, hit.Title, hit.Content, hit.URL))
	}
	for _, hit := range kept {
		sources = append(sources, domain.NewSource(domain.SourceTypeWeb, hit.Title, hit.Content, hit.URL))
	}

	state.Sources = sources
	state.AddHistory(StageResearcher, "search",
		fmt.Sprintf("Found %d sources (%d Wikipedia, %d web)", len(sources), len(wikiHits), len(webHits)))

	logger.Info().
		Int("sources", len(sources)).
		Int("wikipedia", len(wikiHits)).
		Int("web", len(webHits)).
		Msg("researcher gathered sources")
	return nil
}
