package optimizer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestBuildCovariance(t *testing.T) {
	pool := createTestPool(t)
	cov := BuildCovariance(pool, DetectSport(pool))
	require.Equal(t, pool.Len(), cov.SymmetricDim())

	stats := pool.Stats()
	entities := pool.Entities()
	for i := range entities {
		assert.InDelta(t, stats[i].VarianceOrZero(), cov.At(i, i), 1e-9)
	}

	// captain and flex rows of one player are perfectly correlated
	sd0 := math.Sqrt(stats[0].VarianceOrZero())
	sd1 := math.Sqrt(stats[1].VarianceOrZero())
	require.Equal(t, entities[0].PlayerID, entities[1].PlayerID)
	assert.InDelta(t, sd0*sd1, cov.At(0, 1), 1e-9)

	// QB and WR on the same team stack
	allen, diggs := 1, 2
	require.Equal(t, "QB", entities[allen].Position)
	require.Equal(t, "WR", entities[diggs].Position)
	want := 0.5 * math.Sqrt(stats[allen].VarianceOrZero()*stats[diggs].VarianceOrZero())
	assert.InDelta(t, want, cov.At(allen, diggs), 1e-9)

	assert.True(t, mat.EqualApprox(cov, cov.T(), 1e-12))
}

func TestBuildCovariance_MissingVariance(t *testing.T) {
	rows := createShowdownRows()
	for i := range rows {
		rows[i].Variance = nil
	}
	constraints, err := GetConstraintsForContest(ContestShowdown)
	require.NoError(t, err)
	pool, err := NewEntityPool(rows, constraints)
	require.NoError(t, err)

	cov := BuildCovariance(pool, SportNFL)
	assert.Zero(t, mat.Sum(cov))
}

func TestDetectSport(t *testing.T) {
	pool := createTestPool(t)
	assert.Equal(t, SportNFL, DetectSport(pool))
}

func TestPairCorrelation(t *testing.T) {
	tests := []struct {
		name       string
		samePlayer bool
		sameTeam   bool
		pos1, pos2 string
		sport      string
		want       float64
	}{
		{"same player", true, true, "QB", "QB", SportNFL, 1},
		{"qb wr stack", false, true, "QB", "WR", SportNFL, 0.5},
		{"rb pair", false, true, "RB", "RB", SportNFL, -0.3},
		{"unknown teammate positions", false, true, "LS", "P", SportNFL, 0.1},
		{"opposing qb and wr", false, false, "WR", "QB", SportNFL, 0.25},
		{"rb against defense", false, false, "RB", "DST", SportNFL, -0.3},
		{"nba opponents", false, false, "PG", "C", SportNBA, 0.15},
		{"nhl goalie against skater", false, false, "G", "W", SportNHL, -0.2},
		{"nhl line mates", false, true, "C", "W", SportNHL, 0.45},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, pairCorrelation(tt.samePlayer, tt.sameTeam, tt.pos1, tt.pos2, tt.sport), 1e-12)
		})
	}
}

func TestAlignCovariance(t *testing.T) {
	rows := createShowdownRows()
	n := len(rows)
	values := make([][]float64, n)
	for i := range values {
		values[i] = make([]float64, n)
		for j := range values[i] {
			values[i][j] = float64(rows[i].PlayerID*100 + rows[j].PlayerID)
		}
	}

	constraints, err := GetConstraintsForContest(ContestShowdown)
	require.NoError(t, err)
	pool, err := NewEntityPool(rows, constraints)
	require.NoError(t, err)
	pool = pool.Exclude([]int64{3})

	cov, err := AlignCovariance(rows, values, pool)
	require.NoError(t, err)
	r, c := cov.Dims()
	require.Equal(t, pool.Len(), r)
	require.Equal(t, pool.Len(), c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			assert.Equal(t, float64(pool.Entity(i).PlayerID*100+pool.Entity(j).PlayerID), cov.At(i, j))
		}
	}

	_, err = AlignCovariance(rows, values[:3], pool)
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	values[2] = values[2][:4]
	_, err = AlignCovariance(rows, values, pool)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}
