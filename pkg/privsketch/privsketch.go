// Package privsketch composes a DP mechanism with a per-category
// distinct-count sketch into a private aggregation pipeline: ingest
// randomizes each (user, category) report before recording it, and
// estimate inverts the mechanism's bias back into an unbiased count.
package privsketch

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dpsketch/privsketch/pkg/alg/mapx"
	"github.com/dpsketch/privsketch/pkg/dp"
	"github.com/dpsketch/privsketch/pkg/hash"
	"github.com/dpsketch/privsketch/pkg/pcsa"
	"github.com/dpsketch/privsketch/pkg/privsketch/hllbackend"
	"github.com/dpsketch/privsketch/pkg/randsrc"
)

var (
	// ErrInvalidParameter is returned for a malformed universe, or a nil
	// mechanism, sketch factory, or random source.
	ErrInvalidParameter = errors.New("privsketch: invalid parameter")

	// ErrUnknownValue is returned when Ingest or Estimate is given a
	// category outside the configured universe.
	ErrUnknownValue = errors.New("privsketch: category not a member of the universe")

	// ErrIncompatibleSketches is returned when Union is given a Sketch
	// with a different universe, or category backends Union does not
	// know how to merge.
	ErrIncompatibleSketches = errors.New("privsketch: incompatible sketches")
)

// Cardinality is the narrow capability a per-category sketch backend must
// satisfy. PrivSketch's ingest/estimate logic depends only on this
// interface, never on a concrete sketch type — pkg/pcsa.Sketch and
// pkg/privsketch/hllbackend.Sketch both implement it.
type Cardinality interface {
	Add(key []byte)
	Count() float64
	SizeBytes() float64
}

// Sketch is a private per-category distinct-count aggregator.
type Sketch struct {
	mu        sync.RWMutex
	universe  []string
	index     map[string]int
	mechanism dp.Mechanism
	rng       randsrc.Source
	newSketch func() Cardinality
	sketches  map[string]Cardinality
}

// New constructs a Sketch over universe (the finite, deduplicated set of
// reportable categories). mechanism must have been constructed with
// dimension == len(universe). newSketch produces a fresh Cardinality
// backend for each category.
func New(universe []string, mechanism dp.Mechanism, newSketch func() Cardinality, rng randsrc.Source) (*Sketch, error) {
	if len(universe) < 2 {
		return nil, fmt.Errorf("%w: universe must have at least 2 categories", ErrInvalidParameter)
	}

	if mechanism == nil {
		return nil, fmt.Errorf("%w: mechanism must not be nil", ErrInvalidParameter)
	}

	if newSketch == nil {
		return nil, fmt.Errorf("%w: newSketch factory must not be nil", ErrInvalidParameter)
	}

	if rng == nil {
		return nil, fmt.Errorf("%w: random source must not be nil", ErrInvalidParameter)
	}

	deduped := mapx.Unique(universe)
	if len(deduped) != len(universe) {
		return nil, fmt.Errorf("%w: universe contains a duplicate category", ErrInvalidParameter)
	}

	index := make(map[string]int, len(deduped))
	sketches := make(map[string]Cardinality, len(deduped))

	for i, category := range deduped {
		index[category] = i
		sketches[category] = newSketch()
	}

	return &Sketch{
		universe:  mapx.CloneSlice(deduped),
		index:     index,
		mechanism: mechanism,
		rng:       rng,
		newSketch: newSketch,
		sketches:  sketches,
	}, nil
}

// NewPCSA is a convenience constructor wiring the default PCSA backend:
// every category gets its own pcsa.Sketch sized (nmap, length, r) and
// keyed by h.
func NewPCSA(universe []string, mechanism dp.Mechanism, rng randsrc.Source, h hash.Source, nmap, length uint, r float64) (*Sketch, error) {
	factory := func() Cardinality {
		sk, err := pcsa.New(h, nmap, length, r)
		if err != nil {
			panic(err)
		}

		return sk
	}

	return New(universe, mechanism, factory, rng)
}

// NewHLL is a convenience constructor wiring pkg/privsketch/hllbackend as
// every category's sketch, demonstrating the Cardinality capability's
// substitutability.
func NewHLL(universe []string, mechanism dp.Mechanism, rng randsrc.Source) (*Sketch, error) {
	factory := func() Cardinality { return hllbackend.New() }

	return New(universe, mechanism, factory, rng)
}

// Ingest randomizes category through the configured DP mechanism and
// records userID's membership in the reported category's sketch.
func (s *Sketch) Ingest(userID []byte, category string) error {
	idx, ok := s.index[category]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownValue, category)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	reported, err := s.mechanism.Randomize(idx, s.rng)
	if err != nil {
		return err
	}

	s.sketches[s.universe[reported]].Add(userID)

	return nil
}

// Estimate returns the unbiased estimated distinct-user count for
// category.
func (s *Sketch) Estimate(category string) (float64, error) {
	if _, ok := s.index[category]; !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownValue, category)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	observed := s.sketches[category].Count()
	total := s.totalLocked()

	return s.mechanism.Invert(observed, total), nil
}

func (s *Sketch) totalLocked() float64 {
	total := 0.0
	for _, category := range s.universe {
		total += s.sketches[category].Count()
	}

	return total
}

// Categories returns the universe in sorted order.
func (s *Sketch) Categories() []string {
	return mapx.SortedKeys(s.index)
}

// SizeBytes reports the combined footprint of every category's sketch.
func (s *Sketch) SizeBytes() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0.0
	for _, sk := range s.sketches {
		total += sk.SizeBytes()
	}

	return total
}

// Union merges two Sketches sharing the same universe into a new Sketch
// whose per-category backend is the union of each operand's. Categories
// whose backend does not support merging with the other operand's
// concrete type return ErrIncompatibleSketches.
func (s *Sketch) Union(other *Sketch) (*Sketch, error) {
	if !equalUniverse(s.universe, other.universe) {
		return nil, ErrIncompatibleSketches
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	other.mu.RLock()
	defer other.mu.RUnlock()

	merged := make(map[string]Cardinality, len(s.universe))

	for _, category := range s.universe {
		combined, err := unionCardinality(s.sketches[category], other.sketches[category])
		if err != nil {
			return nil, err
		}

		merged[category] = combined
	}

	return &Sketch{
		universe:  mapx.CloneSlice(s.universe),
		index:     mapx.Clone(s.index),
		mechanism: s.mechanism,
		rng:       s.rng,
		newSketch: s.newSketch,
		sketches:  merged,
	}, nil
}

func equalUniverse(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

func unionCardinality(a, b Cardinality) (Cardinality, error) {
	switch av := a.(type) {
	case *pcsa.Sketch:
		bv, ok := b.(*pcsa.Sketch)
		if !ok {
			return nil, ErrIncompatibleSketches
		}

		return pcsa.Union(av, bv)
	case *hllbackend.Sketch:
		bv, ok := b.(*hllbackend.Sketch)
		if !ok {
			return nil, ErrIncompatibleSketches
		}

		return hllbackend.Union(av, bv)
	default:
		return nil, fmt.Errorf("%w: unsupported sketch backend %T", ErrIncompatibleSketches, a)
	}
}
