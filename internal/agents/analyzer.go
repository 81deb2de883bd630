package agents

import (
	"context"
	"fmt"

	"github.com/helixir/research-agent-service/internal/domain"
	"github.com/helixir/research-agent-service/internal/llm"
)

// analyze asks the model whether each source is relevant and, for those that
// are, extracts key findings. Sources are processed in order, one at a time.
func (a *Agents) analyze(ctx context.Context, state *domain.WorkflowState) error {
	state.Begin(StageAnalyzer, domain.ExecutionRunning)
	logger := a.stageLogger(ctx, state, StageAnalyzer)

	if len(state.Sources) == 0 {
		logger.Warn().Msg("no sources to analyze")
		state.AddHistory(StageAnalyzer, "analyze", "No sources to analyze")
		return nil
	}
	if a.model == nil {
		return fmt.Errorf("no model configured")
	}

	findings := make([]domain.Finding, 0, len(state.Sources))
	filtered := 0
	for _, src := range state.Sources {
		answer, err := a.model.Invoke(llm.WithOperation(ctx, llm.OperationRelevance), relevancePrompt(state.Query, src))
		if err != nil {
			return err
		}
		if isIrrelevant(answer) {
			logger.Warn().Str("title", src.Title).Msg("filtering irrelevant source")
			filtered++
			continue
		}

		analysis, err := a.model.Invoke(llm.WithOperation(ctx, llm.OperationSummarize), summaryPrompt(state.Query, src))
		if err != nil {
			return err
		}

		findings = append(findings, domain.Finding{
			Topic:       state.Query,
			FindingText: analysis,
			Sources:     []domain.Source{src},
			Verified:    false,
		})
	}

	if a.metrics != nil {
		a.metrics.RecordSourcesFiltered(filtered)
		a.metrics.RecordFindingsExtracted(len(findings))
	}

	if len(findings) == 0 {
		logger.Error().Int("filtered", filtered).Msg("no relevant findings after filtering")
		state.Fail("All sources were deemed irrelevant to the query")
		return nil
	}

	state.Findings = findings
	state.AddHistory(StageAnalyzer, "analyze",
		fmt.Sprintf("Analyzed %d relevant sources and extracted findings", len(findings)))

	logger.Info().Int("findings", len(findings)).Int("filtered", filtered).Msg("analyzer extracted findings")
	return nil
}
