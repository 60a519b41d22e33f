package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dpsketch/privsketch/pkg/config"
)

// IngestCommand holds the flags for the ingest command.
type IngestCommand struct {
	configPath     string
	idColumn       string
	categoryColumn string
}

// NewIngestCommand creates and configures the ingest command.
func NewIngestCommand() *cobra.Command {
	ic := &IngestCommand{}

	cobraCmd := &cobra.Command{
		Use:   "ingest <csv-file>",
		Short: "Ingest a CSV of (user id, category) events into a fresh sketch",
		Long: "Loads a CSV of (user id, category) rows, randomizes each row through the " +
			"configured DP mechanism, and records the result into a per-category sketch. " +
			"Since the sketch is not persisted, this command reports summary statistics only.",
		Args: cobra.ExactArgs(1),
		RunE: ic.Run,
	}

	cobraCmd.Flags().StringVar(&ic.configPath, "config", "", "Path to a YAML config file")
	cobraCmd.Flags().StringVar(&ic.idColumn, "id-column", "caseid", "CSV column holding the user id")
	cobraCmd.Flags().StringVar(&ic.categoryColumn, "category-column", "category", "CSV column holding the reported category")

	return cobraCmd
}

// Run executes the ingest command.
func (ic *IngestCommand) Run(cobraCmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(ic.configPath)
	if err != nil {
		return err
	}

	events, universe, err := readEvents(args[0], ic.idColumn, ic.categoryColumn)
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

	out := cobraCmd.OutOrStdout()
	fmt.Fprintf(out, "ingested %d events across %d categories\n", len(events), len(universe))
	fmt.Fprintf(out, "sketch footprint: %.0f bytes\n", sk.SizeBytes())

	return nil
}
