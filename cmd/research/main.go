// Package main provides the research command line tool. It runs the
// four-stage research pipeline locally and inspects saved state files.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "research",
	Short: "Multi-agent research assistant",
	Long: `Run a research query through the researcher, analyzer, critic and
writer agents, then inspect the saved results.

Available subcommands:
  run  - Research a query and save the state document
  show - Print a saved state document`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(runCmd, showCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
