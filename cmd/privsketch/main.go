// Package main provides the entry point for the privsketch CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dpsketch/privsketch/cmd/privsketch/commands"
	"github.com/dpsketch/privsketch/pkg/version"
)

var (
	verbose bool
	quiet   bool
)

func main() {
	version.InitBinaryVersion()

	rootCmd := &cobra.Command{
		Use:   "privsketch",
		Short: "PrivSketch - private distinct-count aggregation",
		Long: `PrivSketch estimates per-category distinct-user counts over a stream of
(user-id, category) events while hiding each user's true category behind a
local differential-privacy mechanism.

Commands:
  ingest    Load a CSV into a fresh sketch and report its footprint
  estimate  Print the unbiased estimate for one category
  compare   Print DP-estimated frequencies next to the ground truth
  serve     Serve readouts and Prometheus metrics over HTTP`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress output")

	rootCmd.AddCommand(commands.NewIngestCommand())
	rootCmd.AddCommand(commands.NewEstimateCommand())
	rootCmd.AddCommand(commands.NewCompareCommand())
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintf(os.Stdout, "privsketch %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.Date)
		},
	}
}
