package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/helixir/research-agent-service/internal/domain"
	"github.com/helixir/research-agent-service/internal/statefile"
)

// Sections accepted by show --section.
const (
	sectionAll        = "all"
	sectionReport     = "report"
	sectionSources    = "sources"
	sectionFindings   = "findings"
	sectionValidation = "validation"
	sectionHistory    = "history"
)

var showFlags struct {
	section string
	style   string
	width   int
}

var showCmd = &cobra.Command{
	Use:   "show <state.json>",
	Short: "Print a saved state document",
	Long: `Print a state document written by "research run" or fetched from the
API. Documents written by older versions are upgraded on load.

Sections: all, report, sources, findings, validation, history.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		state, err := statefile.Load(args[0])
		if err != nil {
			return fmt.Errorf("load state: %w", err)
		}
		return printState(cmd.OutOrStdout(), state, showFlags.section, showFlags.width, showFlags.style)
	},
}

func init() {
	showCmd.Flags().StringVarP(&showFlags.section, "section", "s", sectionAll, "Section to print")
	showCmd.Flags().StringVar(&showFlags.style, "style", "auto", "Report style: auto, dark, light or notty")
	showCmd.Flags().IntVar(&showFlags.width, "width", 100, "Report wrap width")
}

// printState writes the summary and the requested sections of state.
func printState(w io.Writer, state *domain.WorkflowState, section string, width int, style string) error {
	section = strings.ToLower(strings.TrimSpace(section))
	if section == "" {
		section = sectionAll
	}

	switch section {
	case sectionAll, sectionReport, sectionSources, sectionFindings, sectionValidation, sectionHistory:
	default:
		return fmt.Errorf("unknown section %q", section)
	}

	fmt.Fprintln(w, summaryView(state))

	show := func(name string) bool { return section == sectionAll || section == name }

	if show(sectionSources) {
		fmt.Fprintln(w, sourcesView(state))
	}
	if show(sectionFindings) {
		fmt.Fprintln(w, findingsView(state))
	}
	if show(sectionValidation) {
		fmt.Fprintln(w, validationView(state))
	}
	if show(sectionHistory) {
		fmt.Fprintln(w, historyView(state))
	}
	if show(sectionReport) {
		if strings.TrimSpace(state.Report) == "" {
			fmt.Fprintln(w, mutedStyle.Render("No report generated yet"))
			return nil
		}
		rendered, err := renderReport(state.Report, width, style)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, rendered)
	}
	return nil
}
