package commands

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/dpsketch/privsketch/pkg/alg/stats"
	"github.com/dpsketch/privsketch/pkg/config"
	"github.com/dpsketch/privsketch/pkg/privsketch"
)

// CompareCommand holds the flags for the compare command.
type CompareCommand struct {
	configPath     string
	idColumn       string
	categoryColumn string
	realFreqPath   string
	unionWith      string
}

// NewCompareCommand creates and configures the compare command.
func NewCompareCommand() *cobra.Command {
	cc := &CompareCommand{}

	cobraCmd := &cobra.Command{
		Use:   "compare <csv-file>",
		Short: "Print DP-estimated category frequencies next to the ground truth",
		Long: "Ingests <csv-file> into a fresh sketch and prints a table of category, " +
			"ground-truth frequency (with --real-freq), DP-estimated frequency, and " +
			"sketch footprint, mirroring the reference implementation's compare() output.",
		Args: cobra.ExactArgs(1),
		RunE: cc.Run,
	}

	cobraCmd.Flags().StringVar(&cc.configPath, "config", "", "Path to a YAML config file")
	cobraCmd.Flags().StringVar(&cc.idColumn, "id-column", "caseid", "CSV column holding the user id")
	cobraCmd.Flags().StringVar(&cc.categoryColumn, "category-column", "category", "CSV column holding the reported category")
	cobraCmd.Flags().StringVar(&cc.realFreqPath, "real-freq", "", "Optional CSV of (category,count) ground-truth frequencies")
	cobraCmd.Flags().StringVar(&cc.unionWith, "union-with", "", "Second CSV to ingest independently, then union with the first sketch")

	return cobraCmd
}

// Run executes the compare command.
func (cc *CompareCommand) Run(cobraCmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(cc.configPath)
	if err != nil {
		return err
	}

	events, universe, err := readEvents(args[0], cc.idColumn, cc.categoryColumn)
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

	sk, err = cc.applyUnion(cfg, sk, universe)
	if err != nil {
		return err
	}

	realFreq, err := cc.loadRealFreq()
	if err != nil {
		return err
	}

	return cc.render(cobraCmd, sk, realFreq)
}

// applyUnion ingests --union-with (if set) into an independent sketch over
// the same universe and merges it into sk.
func (cc *CompareCommand) applyUnion(cfg *config.Config, sk *privsketch.Sketch, universe []string) (*privsketch.Sketch, error) {
	if cc.unionWith == "" {
		return sk, nil
	}

	otherEvents, _, err := readEvents(cc.unionWith, cc.idColumn, cc.categoryColumn)
	if err != nil {
		return nil, err
	}

	other, err := buildSketch(cfg, universe)
	if err != nil {
		return nil, err
	}

	if err := ingestAll(other, otherEvents); err != nil {
		return nil, err
	}

	merged, err := sk.Union(other)
	if err != nil {
		return nil, fmt.Errorf("union with %s: %w", cc.unionWith, err)
	}

	return merged, nil
}

func (cc *CompareCommand) loadRealFreq() (map[string]int64, error) {
	if cc.realFreqPath == "" {
		return nil, nil
	}

	f, err := os.Open(cc.realFreqPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cc.realFreqPath, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)

	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("read header of %s: %w", cc.realFreqPath, err)
	}

	freq := make(map[string]int64)

	for {
		record, readErr := reader.Read()
		if readErr == io.EOF {
			break
		}

		if readErr != nil {
			return nil, fmt.Errorf("read row of %s: %w", cc.realFreqPath, readErr)
		}

		var count int64
		if _, err := fmt.Sscanf(record[1], "%d", &count); err != nil {
			return nil, fmt.Errorf("parse count for %q: %w", record[0], err)
		}

		freq[record[0]] = count
	}

	return freq, nil
}

// maxRelErrPct bounds the displayed relative-error percentage: a category
// whose ground truth is near zero can otherwise blow the column up to an
// unreadable number of digits for one noisy row.
const maxRelErrPct = 999.0

func (cc *CompareCommand) render(cobraCmd *cobra.Command, sk *privsketch.Sketch, realFreq map[string]int64) error {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(cobraCmd.OutOrStdout())
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Format.Header = text.FormatDefault
	tbl.Style().Format.Footer = text.FormatDefault
	tbl.AppendHeader(table.Row{"category", "real freq", "dp estimate", "rel err %", "sketch size"})

	var estimates, errors []float64

	for _, category := range sk.Categories() {
		estimate, err := sk.Estimate(category)
		if err != nil {
			return err
		}

		estimates = append(estimates, estimate)

		real := "n/a"
		relErr := "n/a"

		if realFreq != nil {
			count := float64(realFreq[category])
			real = humanize.Comma(realFreq[category])
			errors = append(errors, estimate-count)

			if count != 0 {
				pct := stats.Clamp((estimate-count)/count*100, -maxRelErrPct, maxRelErrPct)
				relErr = fmt.Sprintf("%.1f", pct)
			}
		}

		tbl.AppendRow(table.Row{
			category,
			real,
			humanize.Comma(int64(estimate)),
			relErr,
			humanize.Bytes(uint64(sk.SizeBytes())),
		})
	}

	if len(errors) > 0 {
		mean, stddev := stats.MeanStdDev(errors)
		tbl.AppendFooter(table.Row{"error (est - real)", "", fmt.Sprintf("mean %.1f", mean), fmt.Sprintf("stddev %.1f", stddev), ""})

		median := stats.Median(errors)
		p95 := stats.Percentile(errors, stats.PercentileP95)
		tbl.AppendFooter(table.Row{"", "", fmt.Sprintf("median %.1f", median), fmt.Sprintf("p95 %.1f", p95), ""})
	}

	if len(estimates) > 0 {
		total := stats.Sum(estimates)
		lo := stats.Min(estimates)
		hi := stats.Max(estimates)
		tbl.AppendFooter(table.Row{"totals", "", humanize.Comma(int64(total)), fmt.Sprintf("min %.0f / max %.0f", lo, hi), ""})
	}

	tbl.Render()

	return nil
}
