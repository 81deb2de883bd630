package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/helixir/research-agent-service/internal/agents"
	"github.com/helixir/research-agent-service/internal/domain"
	"github.com/helixir/research-agent-service/internal/report"
)

var (
	accent  = lipgloss.Color("#1f77b4")
	success = lipgloss.Color("#8BC34A")
	warning = lipgloss.Color("#FFC107")
	danger  = lipgloss.Color("#e53935")
	muted   = lipgloss.Color("#808080")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(accent)
	headerStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
	labelStyle   = lipgloss.NewStyle().Bold(true).Width(14)
	successStyle = lipgloss.NewStyle().Foreground(success)
	warningStyle = lipgloss.NewStyle().Foreground(warning)
	errorStyle   = lipgloss.NewStyle().Bold(true).Foreground(danger)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(accent).
			Padding(0, 1)
)

// stageLabels are the display names of the pipeline stages.
var stageLabels = map[string]string{
	agents.StageResearcher: "Researcher",
	agents.StageAnalyzer:   "Analyzer",
	agents.StageCritic:     "Critic",
	agents.StageWriter:     "Writer",
}

func stageLabel(name string) string {
	if l, ok := stageLabels[name]; ok {
		return l
	}
	return name
}

// progressLine formats one pipeline observer event.
func progressLine(ev agents.StageEvent) string {
	step := mutedStyle.Render(fmt.Sprintf("[%d/%d]", ev.Index+1, ev.Total))
	label := stageLabel(ev.Stage)

	if ev.Phase == agents.PhaseStarted {
		return fmt.Sprintf("%s %s ...", step, label)
	}

	status := successStyle.Render("done")
	if ev.State != nil && ev.State.HasFailed() {
		status = errorStyle.Render("error")
	}
	line := fmt.Sprintf("%s %s %s %s", step, label, status, mutedStyle.Render(ev.Duration.Round(10*time.Millisecond).String()))
	if ev.State != nil && len(ev.State.History) > 0 {
		last := ev.State.History[len(ev.State.History)-1]
		if last.Agent == ev.Stage {
			line += mutedStyle.Render(" " + last.Result)
		}
	}
	return line
}

func statusStyle(status domain.ExecutionStatus) lipgloss.Style {
	switch status {
	case domain.ExecutionCompleted:
		return successStyle
	case domain.ExecutionError:
		return errorStyle
	default:
		return warningStyle
	}
}

// summaryView is the boxed overview of a run.
func summaryView(state *domain.WorkflowState) string {
	counts := state.CountSources()
	rows := []string{
		labelStyle.Render("Query") + state.Query,
		labelStyle.Render("Run") + state.ID.String(),
		labelStyle.Render("Status") + statusStyle(state.ExecutionStatus).Render(string(state.ExecutionStatus)),
		labelStyle.Render("Verification") + strings.ToUpper(string(state.VerificationStatus)),
		labelStyle.Render("Sources") + fmt.Sprintf("%d (%d wikipedia, %d web)",
			len(state.Sources), counts[domain.SourceTypeWikipedia], counts[domain.SourceTypeWeb]),
		labelStyle.Render("Findings") + fmt.Sprintf("%d", len(state.Findings)),
	}
	if state.ErrorMessage != "" {
		rows = append(rows, labelStyle.Render("Error")+errorStyle.Render(state.ErrorMessage))
	}
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))
}

// sourcesView lists every source with its type and reliability.
func sourcesView(state *domain.WorkflowState) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Sources"))
	b.WriteString("\n")
	if len(state.Sources) == 0 {
		b.WriteString(warningStyle.Render("No sources retrieved, search may have failed"))
		b.WriteString("\n")
		return b.String()
	}
	for i, s := range state.Sources {
		fmt.Fprintf(&b, "%2d. %s %s\n", i+1, s.Title,
			mutedStyle.Render(fmt.Sprintf("[%s, %.0f%%]", s.SourceType, s.ReliabilityScore*100)))
		if s.URL != "" {
			fmt.Fprintf(&b, "    %s\n", mutedStyle.Render(s.URL))
		}
	}
	return b.String()
}

// findingsView lists the analyzed findings.
func findingsView(state *domain.WorkflowState) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Findings"))
	b.WriteString("\n")
	if len(state.Findings) == 0 {
		b.WriteString(mutedStyle.Render("No findings analyzed yet"))
		b.WriteString("\n")
		return b.String()
	}
	for i, f := range state.Findings {
		mark := errorStyle.Render("unverified")
		if f.Verified {
			mark = successStyle.Render("verified")
		}
		fmt.Fprintf(&b, "%d. %s %s\n", i+1, f.FirstSourceTitle(), mark)
		fmt.Fprintf(&b, "   %s\n", f.FindingText)
	}
	return b.String()
}

// validationView prints the critic's assessment and contradictions.
func validationView(state *domain.WorkflowState) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("Validation"))
	b.WriteString("\n")
	if state.Criticism == "" {
		b.WriteString(mutedStyle.Render("No criticism available"))
	} else {
		b.WriteString(state.Criticism)
	}
	b.WriteString("\n")
	if n := len(state.ContradictionsFound); n > 0 {
		b.WriteString(warningStyle.Render(fmt.Sprintf("Contradictions found: %d", n)))
		b.WriteString("\n")
		for _, c := range state.ContradictionsFound {
			fmt.Fprintf(&b, "  - %s\n", c)
		}
	}
	return b.String()
}

// historyView prints the run log.
func historyView(state *domain.WorkflowState) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("History"))
	b.WriteString("\n")
	if len(state.History) == 0 {
		b.WriteString(mutedStyle.Render("No history"))
		b.WriteString("\n")
		return b.String()
	}
	for _, h := range state.History {
		fmt.Fprintf(&b, "%s %s %s: %s\n",
			mutedStyle.Render(h.Timestamp.Local().Format("15:04:05")),
			titleStyle.Render(stageLabel(h.Agent)),
			h.Action,
			h.Result,
		)
	}
	return b.String()
}

// renderReport renders Markdown for the terminal.
func renderReport(md string, width int, style string) (string, error) {
	out, err := report.RenderTerminal(md, width, style)
	if err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return out, nil
}
