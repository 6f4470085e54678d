package optimizer

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func seeded(seed int64) DiversifyOptions {
	return DiversifyOptions{Rand: rand.New(rand.NewSource(seed)), Logger: quietLogger()}
}

func TestDiversify_SizeBounds(t *testing.T) {
	_, set := createTestSet(t)

	assert.Empty(t, Diversify(set, 0, seeded(1)))
	assert.Empty(t, Diversify(set, -3, seeded(1)))
	assert.Len(t, Diversify(set, 1, seeded(1)), 1)

	for _, n := range []int{set.Len(), set.Len() + 5} {
		selected := Diversify(set, n, seeded(1))
		require.Len(t, selected, set.Len())
		seen := make(map[int]bool)
		for _, row := range selected {
			assert.False(t, seen[row], "row %d selected twice", row)
			assert.GreaterOrEqual(t, row, 0)
			assert.Less(t, row, set.Len())
			seen[row] = true
		}
	}
}

func TestDiversify_Deterministic(t *testing.T) {
	_, set := createTestSet(t)

	for _, strategy := range []SelectionStrategy{MinAbsCovariance{}, MinSignedCovariance{}} {
		opts := seeded(99)
		opts.Strategy = strategy
		first := Diversify(set, 4, opts)

		opts = seeded(99)
		opts.Strategy = strategy
		second := Diversify(set, 4, opts)

		assert.Equal(t, first, second, strategy.Name())
	}
}

func TestDiversify_GreedyStepFollowsCovariance(t *testing.T) {
	_, set := createTestSet(t)
	cov, err := set.Covariance()
	require.NoError(t, err)

	selected := Diversify(set, 3, seeded(5))
	require.Len(t, selected, 3)

	// second pick minimizes |cov| with the first among the remaining rows
	start := selected[0]
	best := -1.0
	for r := 0; r < set.Len(); r++ {
		if r == start {
			continue
		}
		if v := abs(cov.At(r, start)); best < 0 || v < best {
			best = v
		}
	}
	assert.NotEqual(t, start, selected[1])
	assert.InDelta(t, best, abs(cov.At(selected[1], start)), 1e-9)
}

func TestDiversify_StartMaxVariance(t *testing.T) {
	_, set := createTestSet(t)
	selected := Diversify(set, 2, DiversifyOptions{Start: StartMaxVariance, Logger: quietLogger()})
	require.NotEmpty(t, selected)
	assert.Equal(t, floats.MaxIdx(set.DiagonalVariance()), selected[0])
}

func TestSelectionStrategies(t *testing.T) {
	cumulative := []float64{-1.0, 0.5, -0.2, 0.2}

	tests := []struct {
		name     string
		strategy SelectionStrategy
		selected []bool
		want     int
	}{
		{"min abs", MinAbsCovariance{}, []bool{false, false, false, false}, 2},
		{"min abs skips selected", MinAbsCovariance{}, []bool{false, false, true, false}, 3},
		{"min signed", MinSignedCovariance{}, []bool{false, false, false, false}, 0},
		{"min signed skips selected", MinSignedCovariance{}, []bool{true, false, false, false}, 2},
		{"nothing left", MinAbsCovariance{}, []bool{true, true, true, true}, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.strategy.Next(cumulative, tt.selected))
		})
	}

	assert.Equal(t, 0, MinAbsCovariance{}.Next([]float64{0.3, -0.3, 0.3}, make([]bool, 3)), "ties go to the lowest row")
	assert.Equal(t, "min_signed", StrategyByName("min_signed").Name())
	assert.Equal(t, "min_abs", StrategyByName("").Name())
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
