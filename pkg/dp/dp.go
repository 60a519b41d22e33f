// Package dp implements the local-DP randomized-response mechanisms used
// to obscure which category a caller truly reports before it reaches a
// PCSA sketch: RRT (forced response, may echo the true category through
// its random branch) and GRR (general randomized response, excludes the
// true category from its random branch by construction).
package dp

import (
	"errors"
	"fmt"
	"math"

	"github.com/dpsketch/privsketch/pkg/randsrc"
)

var (
	// ErrInvalidParameter is returned for a negative epsilon or a
	// dimension smaller than 2 (randomized response needs at least two
	// candidates to randomize over).
	ErrInvalidParameter = errors.New("dp: invalid parameter")

	// ErrUnknownValue is returned when Randomize is given a value
	// outside [0, dimension).
	ErrUnknownValue = errors.New("dp: value is not a member of the universe")

	// ErrZeroEpsilonNoPrivacy is a non-fatal construction warning: the
	// mechanism is mathematically valid at epsilon == 0 but provides no
	// privacy (every report is drawn uniformly at random, independent of
	// the true value). Surfaced via Warnings, not returned as an error,
	// so callers can log it without having construction fail.
	ErrZeroEpsilonNoPrivacy = errors.New("dp: epsilon is zero, mechanism provides no privacy")
)

// Mechanism is the capability PrivSketch depends on: randomize a true
// category into a reported one, and invert the resulting bias back into
// an unbiased cardinality estimate.
type Mechanism interface {
	// Randomize returns a reported value in [0, dimension) for trueValue.
	Randomize(trueValue int, rng randsrc.Source) (int, error)
	// Invert recovers an unbiased estimate of the true count for a
	// category given its observed (biased) count and the total number
	// of reports across all categories.
	Invert(observedCount, total float64) float64
	// Probabilities returns (probability of reporting truthfully,
	// probability mass assigned to each other candidate).
	Probabilities() (trueProb, otherProb float64)
	// Warnings returns non-fatal issues detected at construction.
	Warnings() []error
}

func validate(epsilon float64, dimension int) ([]error, error) {
	if epsilon < 0 {
		return nil, fmt.Errorf("%w: epsilon must be >= 0, got %f", ErrInvalidParameter, epsilon)
	}

	if dimension < 2 {
		return nil, fmt.Errorf("%w: dimension must be >= 2, got %d", ErrInvalidParameter, dimension)
	}

	var warnings []error
	if epsilon == 0 {
		warnings = append(warnings, ErrZeroEpsilonNoPrivacy)
	}

	return warnings, nil
}

// RRT is the "forced" randomized-response mechanism: with probability p1
// the true category is reported; otherwise a category is drawn uniformly
// at random from the whole universe, which may coincidentally reproduce
// the true category.
type RRT struct {
	epsilon   float64
	dimension int
	p1        float64
	p2        float64
	warnings  []error
}

// NewRRT constructs an RRT mechanism over a universe of dimension
// categories at privacy budget epsilon.
func NewRRT(epsilon float64, dimension int) (*RRT, error) {
	warnings, err := validate(epsilon, dimension)
	if err != nil {
		return nil, err
	}

	expEps := math.Exp(epsilon)
	dim := float64(dimension)

	return &RRT{
		epsilon:   epsilon,
		dimension: dimension,
		p1:        (expEps - 1) / (expEps + dim - 1),
		p2:        1 / dim,
		warnings:  warnings,
	}, nil
}

// Probabilities implements Mechanism.
func (m *RRT) Probabilities() (float64, float64) { return m.p1, m.p2 }

// Warnings implements Mechanism.
func (m *RRT) Warnings() []error { return m.warnings }

// Randomize implements Mechanism.
func (m *RRT) Randomize(trueValue int, rng randsrc.Source) (int, error) {
	if trueValue < 0 || trueValue >= m.dimension {
		return 0, fmt.Errorf("%w: %d", ErrUnknownValue, trueValue)
	}

	if rng.Float64() < m.p1 {
		return trueValue, nil
	}

	return rng.Intn(m.dimension), nil
}

// Invert implements Mechanism. Each report of category c arises either
// because the respondent's true category was c and the truthful branch
// fired, or because the random branch fired and happened to land on c
// regardless of the true category. Subtracting the random branch's
// expected contribution and rescaling by p1 recovers the true count.
// The result is clamped at 0, then truncated toward zero: counts are
// integers.
func (m *RRT) Invert(observedCount, total float64) float64 {
	estimate := (observedCount - total*(1-m.p1)*m.p2) / m.p1

	return clampTruncate(estimate)
}

// GRR is the "general" randomized-response mechanism: with probability
// p1 the true category is reported; otherwise a category is drawn
// uniformly from the other dimension-1 categories, excluding the true
// one by construction.
type GRR struct {
	epsilon   float64
	dimension int
	p1        float64
	p2        float64
	warnings  []error
}

// NewGRR constructs a GRR mechanism over a universe of dimension
// categories at privacy budget epsilon.
func NewGRR(epsilon float64, dimension int) (*GRR, error) {
	warnings, err := validate(epsilon, dimension)
	if err != nil {
		return nil, err
	}

	expEps := math.Exp(epsilon)
	dim := float64(dimension)
	p1 := expEps / (expEps + dim - 1)

	return &GRR{
		epsilon:   epsilon,
		dimension: dimension,
		p1:        p1,
		p2:        (1 - p1) / (dim - 1),
		warnings:  warnings,
	}, nil
}

// Probabilities implements Mechanism.
func (m *GRR) Probabilities() (float64, float64) { return m.p1, m.p2 }

// Warnings implements Mechanism.
func (m *GRR) Warnings() []error { return m.warnings }

// Randomize implements Mechanism. The random branch draws from the
// dimension-1 candidates other than trueValue: it can never reproduce
// the true value, unlike RRT's random branch.
func (m *GRR) Randomize(trueValue int, rng randsrc.Source) (int, error) {
	if trueValue < 0 || trueValue >= m.dimension {
		return 0, fmt.Errorf("%w: %d", ErrUnknownValue, trueValue)
	}

	if rng.Float64() < m.p1 {
		return trueValue, nil
	}

	idx := rng.Intn(m.dimension - 1)
	if idx >= trueValue {
		idx++
	}

	return idx, nil
}

// Invert implements Mechanism. Every non-c true category contributes p2
// to category c's observed count; subtracting that baseline and rescaling
// by the gap between p1 and p2 recovers the true count. The result is
// clamped at 0, then truncated toward zero: counts are integers.
func (m *GRR) Invert(observedCount, total float64) float64 {
	estimate := (observedCount - total*m.p2) / (m.p1 - m.p2)

	return clampTruncate(estimate)
}

// clampTruncate floors a negative estimate to 0, then truncates toward
// zero: cardinality estimates are integer-valued.
func clampTruncate(estimate float64) float64 {
	if estimate < 0 {
		return 0
	}

	return math.Trunc(estimate)
}
