package commands

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dpsketch/privsketch/pkg/config"
)

// EstimateCommand holds the flags for the estimate command.
type EstimateCommand struct {
	configPath     string
	idColumn       string
	categoryColumn string
}

// NewEstimateCommand creates and configures the estimate command.
func NewEstimateCommand() *cobra.Command {
	ec := &EstimateCommand{}

	cobraCmd := &cobra.Command{
		Use:   "estimate <csv-file> <category>",
		Short: "Print the unbiased distinct-user estimate for one category",
		Long: "Ingests <csv-file> into a fresh sketch, then prints the DP-corrected " +
			"distinct-user estimate for <category>.",
		Args: cobra.ExactArgs(2),
		RunE: ec.Run,
	}

	cobraCmd.Flags().StringVar(&ec.configPath, "config", "", "Path to a YAML config file")
	cobraCmd.Flags().StringVar(&ec.idColumn, "id-column", "caseid", "CSV column holding the user id")
	cobraCmd.Flags().StringVar(&ec.categoryColumn, "category-column", "category", "CSV column holding the reported category")

	return cobraCmd
}

// Run executes the estimate command.
func (ec *EstimateCommand) Run(cobraCmd *cobra.Command, args []string) error {
	csvPath, category := args[0], args[1]

	cfg, err := config.LoadConfig(ec.configPath)
	if err != nil {
		return err
	}

	events, universe, err := readEvents(csvPath, ec.idColumn, ec.categoryColumn)
	if err != nil {
		return err
	}

	sk, err := buildSketch(cfg, universe)
	if err != nil {
		return err
	}

	if err := ingestAll(sk, events); err != nil {
		return err
	}

	estimate, err := sk.Estimate(category)
	if err != nil {
		return err
	}

	out := cobraCmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %s (%.2f)\n", category, humanize.Comma(int64(estimate)), estimate)

	return nil
}
