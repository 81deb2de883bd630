package agents

import (
	"context"
	"fmt"

	"github.com/helixir/research-agent-service/internal/domain"
	"github.com/helixir/research-agent-service/internal/llm"
)

// NoFindingsReport is the report written when there is nothing to report.
const NoFindingsReport = "No findings to report"

// write compiles the final report. Without findings it skips the model and
// leaves the execution status alone: a healthy run gets the placeholder
// report, a run that already failed keeps an empty one.
func (a *Agents) write(ctx context.Context, state *domain.WorkflowState) error {
	state.Begin(StageWriter, "")
	logger := a.stageLogger(ctx, state, StageWriter)

	if len(state.Findings) == 0 {
		logger.Warn().Bool("failed_upstream", state.HasFailed()).Msg("no findings to report")
		if !state.HasFailed() {
			state.Report = NoFindingsReport
			state.Touch()
		}
		return nil
	}
	if a.model == nil {
		return fmt.Errorf("no model configured")
	}

	prompt := reportPrompt(state.Query, findingsDigest(state.Findings), state.Criticism)
	report, err := a.model.Invoke(llm.WithOperation(ctx, llm.OperationReport), prompt)
	if err != nil {
		return err
	}

	state.Report = report
	state.ReportMetadata = &domain.ReportMetadata{
		Query:                 state.Query,
		SourceCount:           len(state.Sources),
		FindingCount:          len(state.Findings),
		VerificationCompleted: state.VerificationStatus == domain.VerificationCompleted,
	}
	state.SetStatus(domain.ExecutionCompleted)
	state.AddHistory(StageWriter, "report", "Compiled final research report")

	logger.Info().Int("report_chars", len(report)).Msg("writer compiled final report")
	return nil
}
