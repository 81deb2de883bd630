package agents

import (
	"context"
	"fmt"

	"github.com/helixir/research-agent-service/internal/domain"
	"github.com/helixir/research-agent-service/internal/llm"
	"github.com/helixir/research-agent-service/internal/searchsources"
)

// critique reviews the findings with a single model call and marks every
// finding verified. With no findings it only records itself as the current
// agent.
func (a *Agents) critique(ctx context.Context, state *domain.WorkflowState) error {
	state.Begin(StageCritic, "")
	logger := a.stageLogger(ctx, state, StageCritic)

	if len(state.Findings) == 0 {
		logger.Warn().Msg("no findings to critique")
		return nil
	}
	if a.model == nil {
		return fmt.Errorf("no model configured")
	}

	state.VerificationStatus = domain.VerificationInProgress
	state.Touch()

	// Advisory only: the ranking is logged and counted but not stored.
	validated := searchsources.ValidateSources(state.AllFindingSources())
	trusted := 0
	for _, src := range validated {
		ok := src.ReliabilityScore >= searchsources.TrustedScore
		if ok {
			trusted++
		}
		if a.metrics != nil {
			a.metrics.RecordSourceValidated(ok)
		}
	}
	logger.Debug().Int("sources", len(validated)).Int("trusted", trusted).Msg("validated finding sources")

	criticism, err := a.model.Invoke(llm.WithOperation(ctx, llm.OperationCritique), critiquePrompt(state.Query, state.Findings))
	if err != nil {
		return err
	}

	state.Criticism = criticism
	state.VerificationStatus = domain.VerificationCompleted
	for i := range state.Findings {
		state.Findings[i].Verified = true
	}
	state.AddHistory(StageCritic, "validate", "Validated findings and sources")

	logger.Info().Int("findings", len(state.Findings)).Msg("critic validated findings")
	return nil
}
