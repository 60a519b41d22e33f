package dp_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpsketch/privsketch/pkg/dp"
	"github.com/dpsketch/privsketch/pkg/randsrc"
)

func TestNewRRT_ValidatesParameters(t *testing.T) {
	t.Parallel()

	_, err := dp.NewRRT(-1, 5)
	assert.ErrorIs(t, err, dp.ErrInvalidParameter)

	_, err = dp.NewRRT(1, 1)
	assert.ErrorIs(t, err, dp.ErrInvalidParameter)
}

func TestNewGRR_ValidatesParameters(t *testing.T) {
	t.Parallel()

	_, err := dp.NewGRR(-1, 5)
	assert.ErrorIs(t, err, dp.ErrInvalidParameter)

	_, err = dp.NewGRR(1, 1)
	assert.ErrorIs(t, err, dp.ErrInvalidParameter)
}

func TestNewRRT_WarnsOnZeroEpsilon(t *testing.T) {
	t.Parallel()

	m, err := dp.NewRRT(0, 5)
	require.NoError(t, err)
	require.Len(t, m.Warnings(), 1)
	assert.ErrorIs(t, m.Warnings()[0], dp.ErrZeroEpsilonNoPrivacy)
}

func TestNewGRR_NoWarningWhenEpsilonPositive(t *testing.T) {
	t.Parallel()

	m, err := dp.NewGRR(1, 5)
	require.NoError(t, err)
	assert.Empty(t, m.Warnings())
}

func TestRRT_RandomizeRejectsUnknownValue(t *testing.T) {
	t.Parallel()

	m, err := dp.NewRRT(1, 5)
	require.NoError(t, err)

	_, err = m.Randomize(5, randsrc.NewSplitmix64(1))
	assert.ErrorIs(t, err, dp.ErrUnknownValue)

	_, err = m.Randomize(-1, randsrc.NewSplitmix64(1))
	assert.ErrorIs(t, err, dp.ErrUnknownValue)
}

// randomBranchOnly wraps a Source so that every Float64 draw lands above
// any p1 < 0.999999, forcing Randomize onto its random branch.
type randomBranchOnly struct{ randsrc.Source }

func (randomBranchOnly) Float64() float64 { return 0.999999 }

func TestGRR_RandomizeNeverReproducesTrueValueOutsideTruthfulBranch(t *testing.T) {
	t.Parallel()

	m, err := dp.NewGRR(0.01, 4)
	require.NoError(t, err)

	p1, _ := m.Probabilities()
	rng := randomBranchOnly{randsrc.NewSplitmix64(99)}

	sawOther := false

	for i := range 5000 {
		trueValue := i % 4
		reported, rErr := m.Randomize(trueValue, rng)
		require.NoError(t, rErr)
		assert.NotEqual(t, trueValue, reported, "random branch reproduced the true value")

		if reported != trueValue {
			sawOther = true
		}
	}

	assert.True(t, sawOther, "expected at least one randomized report to diverge from truth")
	assert.Less(t, p1, 1.0)
}

func TestRRT_RandomizeCanReproduceTrueValueViaRandomBranch(t *testing.T) {
	t.Parallel()

	// epsilon == 0 forces every report through the random branch; with a
	// small dimension the true value will still appear among them.
	m, err := dp.NewRRT(0, 2)
	require.NoError(t, err)

	rng := randsrc.NewSplitmix64(5)
	sawTrue := false

	for range 2000 {
		reported, rErr := m.Randomize(0, rng)
		require.NoError(t, rErr)

		if reported == 0 {
			sawTrue = true

			break
		}
	}

	assert.True(t, sawTrue)
}

func TestRRT_InvertRecoversTrueCountApproximately(t *testing.T) {
	t.Parallel()

	const dimension = 5
	const total = 100000.0
	const trueCount = 20000.0

	m, err := dp.NewRRT(2, dimension)
	require.NoError(t, err)

	p1, p2 := m.Probabilities()
	observed := trueCount*p1 + total*(1-p1)*p2

	got := m.Invert(observed, total)
	assert.InEpsilon(t, trueCount, got, 0.01)
}

func TestGRR_InvertRecoversTrueCountApproximately(t *testing.T) {
	t.Parallel()

	const dimension = 5
	const total = 100000.0
	const trueCount = 20000.0

	m, err := dp.NewGRR(2, dimension)
	require.NoError(t, err)

	p1, p2 := m.Probabilities()
	observed := trueCount*p1 + (total-trueCount)*p2

	got := m.Invert(observed, total)
	assert.InEpsilon(t, trueCount, got, 0.01)
}

func TestInvert_NeverReturnsNegative(t *testing.T) {
	t.Parallel()

	rrt, err := dp.NewRRT(2, 5)
	require.NoError(t, err)
	assert.Equal(t, 0.0, rrt.Invert(0, 100))

	grr, err := dp.NewGRR(2, 5)
	require.NoError(t, err)
	assert.Equal(t, 0.0, grr.Invert(0, 100))
}

func TestRRT_ImplementsMechanism(t *testing.T) {
	t.Parallel()

	var _ dp.Mechanism = (*dp.RRT)(nil)
}

func TestGRR_ImplementsMechanism(t *testing.T) {
	t.Parallel()

	var _ dp.Mechanism = (*dp.GRR)(nil)
}
