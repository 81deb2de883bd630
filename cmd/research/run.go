package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/helixir/research-agent-service/internal/agents"
	"github.com/helixir/research-agent-service/internal/app"
	"github.com/helixir/research-agent-service/internal/config"
	"github.com/helixir/research-agent-service/internal/domain"
	"github.com/helixir/research-agent-service/internal/observability"
	"github.com/helixir/research-agent-service/internal/statefile"
)

var runFlags struct {
	out         string
	model       string
	temperature float64
	style       string
	width       int
	quiet       bool
}

var runCmd = &cobra.Command{
	Use:   "run <query>",
	Short: "Research a query and save the state document",
	Long: `Research a query with the configured model and search backends.

Progress is printed as each agent finishes. The final report is rendered
in the terminal and the full state is saved as JSON, by default to
research_<timestamp>.json in the configured state directory.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResearch,
}

func init() {
	runCmd.Flags().StringVarP(&runFlags.out, "out", "o", "", "Path of the state document to write")
	runCmd.Flags().StringVar(&runFlags.model, "model", "", "Override the model name for the configured provider")
	runCmd.Flags().Float64Var(&runFlags.temperature, "temperature", -1, "Override the sampling temperature (0-2)")
	runCmd.Flags().StringVar(&runFlags.style, "style", "auto", "Report style: auto, dark, light or notty")
	runCmd.Flags().IntVar(&runFlags.width, "width", 100, "Report wrap width")
	runCmd.Flags().BoolVarP(&runFlags.quiet, "quiet", "q", false, "Do not print the report")
}

func runResearch(cmd *cobra.Command, args []string) error {
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return fmt.Errorf("query is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := applyModelOverrides(&cfg.LLM, runFlags.model, runFlags.temperature); err != nil {
		return err
	}

	// Logs go to stderr so they never interleave with the rendered report.
	// Stage progress is printed directly, so info logs stay off by default.
	logCfg := app.LoggingConfig(cfg.Logging)
	logCfg.Output = "stderr"
	logCfg.Format = "console"
	if strings.EqualFold(cfg.Logging.Level, "info") {
		logCfg.Level = "warn"
	}
	logger := observability.NewLogger(logCfg).With().Str("component", "cli").Logger()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics("research_cli")
	ag, err := app.NewAgents(cfg, logger, metrics)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, titleStyle.Render("Researching: "+query))

	pipeline := agents.NewPipeline(ag,
		agents.WithPipelineLogger(logger),
		agents.WithStageObserver(func(_ context.Context, ev agents.StageEvent) {
			fmt.Fprintln(out, progressLine(ev))
		}),
	)

	state, runErr := pipeline.Execute(ctx, query)
	if runErr != nil {
		state.Fail("Research cancelled")
		fmt.Fprintln(out, errorStyle.Render("Research cancelled: "+runErr.Error()))
	}

	path := runFlags.out
	if path == "" {
		path = defaultStatePath(cfg.Storage.StateDir, domain.Now())
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	if err := statefile.Save(path, state); err != nil {
		return fmt.Errorf("save state: %w", err)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, summaryView(state))

	if !runFlags.quiet && state.Report != "" {
		rendered, err := renderReport(state.Report, runFlags.width, runFlags.style)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, rendered)
	}

	fmt.Fprintln(out, mutedStyle.Render("Saved to "+path))
	if runErr != nil {
		return runErr
	}
	return nil
}

// applyModelOverrides applies --model and --temperature to the active
// provider's settings. A negative temperature means unset.
func applyModelOverrides(cfg *config.LLMConfig, model string, temperature float64) error {
	if temperature >= 0 {
		if temperature > 2 {
			return fmt.Errorf("temperature must be between 0 and 2")
		}
		cfg.Temperature = temperature
	}
	if model == "" {
		return nil
	}
	switch strings.ToLower(cfg.Provider) {
	case config.ProviderOllama:
		cfg.Ollama.Model = model
	case config.ProviderOpenAI:
		cfg.OpenAI.Model = model
	case config.ProviderAnthropic:
		cfg.Anthropic.Model = model
	default:
		return fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
	return nil
}

// defaultStatePath names the state document after the local time of the run.
func defaultStatePath(dir string, now time.Time) string {
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, fmt.Sprintf("research_%s.json", now.Local().Format("20060102_150405")))
}
