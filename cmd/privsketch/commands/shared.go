// Package commands provides CLI command implementations for privsketch.
package commands

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/dpsketch/privsketch/pkg/config"
	"github.com/dpsketch/privsketch/pkg/dp"
	"github.com/dpsketch/privsketch/pkg/hash"
	"github.com/dpsketch/privsketch/pkg/observability"
	"github.com/dpsketch/privsketch/pkg/privsketch"
	"github.com/dpsketch/privsketch/pkg/randsrc"
	"github.com/dpsketch/privsketch/pkg/safeconv"
)

// ErrColumnNotFound is returned when a requested CSV column header is absent.
var ErrColumnNotFound = errors.New("commands: column not found in CSV header")

// eventRow is a single (user id, category) event read from an input CSV.
type eventRow struct {
	userID   string
	category string
}

// readEvents reads idColumn and categoryColumn from the CSV at path,
// returning every row alongside the set of distinct categories observed.
func readEvents(path, idColumn, categoryColumn string) ([]eventRow, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("read header of %s: %w", path, err)
	}

	idIdx, err := columnIndex(header, idColumn)
	if err != nil {
		return nil, nil, err
	}

	catIdx, err := columnIndex(header, categoryColumn)
	if err != nil {
		return nil, nil, err
	}

	var events []eventRow

	seen := make(map[string]bool)

	var universe []string

	for {
		record, readErr := reader.Read()
		if readErr == io.EOF {
			break
		}

		if readErr != nil {
			return nil, nil, fmt.Errorf("read row of %s: %w", path, readErr)
		}

		category := record[catIdx]

		events = append(events, eventRow{userID: record[idIdx], category: category})

		if !seen[category] {
			seen[category] = true

			universe = append(universe, category)
		}
	}

	sort.Strings(universe)

	return events, universe, nil
}

func columnIndex(header []string, name string) (int, error) {
	for i, col := range header {
		if col == name {
			return i, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
}

// buildSketch constructs a mechanism and PrivSketch over universe from cfg,
// seeded by the current time for a fresh random source each run.
func buildSketch(cfg *config.Config, universe []string) (*privsketch.Sketch, error) {
	mechanism, err := buildMechanism(cfg.Privacy, len(universe))
	if err != nil {
		return nil, err
	}

	rng := randsrc.NewSplitmix64(uint64(time.Now().UnixNano()))

	if cfg.Sketch.Backend == "hll" {
		return privsketch.NewHLL(universe, mechanism, rng)
	}

	h := hash.NewMurmur32(0)

	return privsketch.NewPCSA(universe, mechanism, rng, h,
		safeconv.MustIntToUint(cfg.Sketch.NumMaps), safeconv.MustIntToUint(cfg.Sketch.Length), cfg.Sketch.Perturbation)
}

func buildMechanism(cfg config.PrivacyConfig, dimension int) (dp.Mechanism, error) {
	if cfg.Variant == "rrt" {
		return dp.NewRRT(cfg.Epsilon, dimension)
	}

	return dp.NewGRR(cfg.Epsilon, dimension)
}

// ingestAll feeds every event into sk, returning the first ingest error.
func ingestAll(sk *privsketch.Sketch, events []eventRow) error {
	for _, ev := range events {
		if err := sk.Ingest([]byte(ev.userID), ev.category); err != nil {
			return fmt.Errorf("ingest %q/%q: %w", ev.userID, ev.category, err)
		}
	}

	return nil
}

// ingestAllTimed behaves like ingestAll, but reports one RecordIngest call
// per category, timing that category's share of the batch.
func ingestAllTimed(ctx context.Context, sk *privsketch.Sketch, events []eventRow, im *observability.IngestMetrics) error {
	durations := make(map[string]time.Duration)

	for _, ev := range events {
		start := time.Now()

		if err := sk.Ingest([]byte(ev.userID), ev.category); err != nil {
			im.RecordIngest(ctx, ev.category, "error", durations[ev.category]+time.Since(start))

			return fmt.Errorf("ingest %q/%q: %w", ev.userID, ev.category, err)
		}

		durations[ev.category] += time.Since(start)
	}

	for category, elapsed := range durations {
		im.RecordIngest(ctx, category, "ok", elapsed)
	}

	return nil
}
