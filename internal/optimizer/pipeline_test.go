package optimizer

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestBuildExposureReport(t *testing.T) {
	_, set := createTestSet(t)
	rows := []int{0, 1, 2, 3}

	report, err := BuildExposureReport(set, rows)
	require.NoError(t, err)
	assert.Equal(t, 4, report.TotalLineups)

	spots := 0
	for _, e := range report.EntityExposures {
		assert.InDelta(t, float64(e.Count)/4*100, e.Percentage, 1e-9)
		spots += e.Count
	}
	assert.Equal(t, 4*set.RosterSize(), spots)
	for i := 1; i < len(report.EntityExposures); i++ {
		assert.GreaterOrEqual(t, report.EntityExposures[i-1].Count, report.EntityExposures[i].Count)
	}

	require.Len(t, report.TeamExposures, 2)
	teamShare := 0.0
	for _, te := range report.TeamExposures {
		teamShare += te.Percentage
	}
	assert.InDelta(t, 100, teamShare, 1e-9)

	overlap, err := set.Overlap(rows...)
	require.NoError(t, err)
	assert.Greater(t, report.MeanOverlap, 0.0)
	assert.Less(t, report.MeanOverlap, float64(set.RosterSize()))
	assert.InDelta(t, (mat.Sum(overlap)-4*float64(set.RosterSize()))/12, report.MeanOverlap, 1e-9)

	assert.Greater(t, report.MeanProjection, 0.0)
	assert.GreaterOrEqual(t, report.StdDevProjection, 0.0)
	assert.Greater(t, report.PortfolioVariance, 0.0)

	single, err := BuildExposureReport(set, []int{5})
	require.NoError(t, err)
	assert.Zero(t, single.StdDevProjection)
	assert.Zero(t, single.MeanOverlap)

	_, err = BuildExposureReport(set, []int{42})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestBuildPortfolio(t *testing.T) {
	pool := createTestPool(t)

	portfolio, err := BuildPortfolio(testContext(t), pool, nil, PortfolioOptions{
		Search:    SearchOptions{Workers: 2},
		Size:      3,
		Diversify: DiversifyOptions{Rand: rand.New(rand.NewSource(11))},
		Logger:    quietLogger(),
	})
	require.NoError(t, err)

	assert.Equal(t, 10, portfolio.ValidLineups)
	assert.Equal(t, 10, portfolio.EligibleLineups)
	require.Len(t, portfolio.Selected, 3)
	require.Len(t, portfolio.Stats, 3)
	assert.Equal(t, 3, portfolio.Exposure.TotalLineups)

	full := portfolio.Set.Stats()
	byRow := make(map[int]LineupStats, len(full))
	for _, st := range full {
		byRow[st.Row] = st
	}
	for i, st := range portfolio.Stats {
		assert.Equal(t, portfolio.Selected[i], st.Row, "stats follow selection order")
		assert.Equal(t, byRow[st.Row].Descriptor, st.Descriptor)
		assert.InDelta(t, byRow[st.Row].Variance, st.Variance, 1e-9)
	}
}

func TestBuildPortfolio_SalaryFloor(t *testing.T) {
	pool := createTestPool(t)
	cov := identityCovariance(pool.Len())

	portfolio, err := BuildPortfolio(testContext(t), pool, cov, PortfolioOptions{
		MinSalary: 49000,
		Size:      20,
		Diversify: DiversifyOptions{Start: StartMaxVariance},
		Logger:    quietLogger(),
	})
	require.NoError(t, err)

	assert.Equal(t, 10, portfolio.ValidLineups)
	assert.LessOrEqual(t, portfolio.EligibleLineups, portfolio.ValidLineups)
	assert.Len(t, portfolio.Selected, portfolio.EligibleLineups)
	for _, st := range portfolio.Stats {
		assert.GreaterOrEqual(t, st.Salary, 49000)
	}
}

func TestBuildPortfolio_NoLineups(t *testing.T) {
	pool := createTestPool(t).Exclude([]int64{1, 4})

	portfolio, err := BuildPortfolio(testContext(t), pool, nil, PortfolioOptions{Size: 5, Logger: quietLogger()})
	require.NoError(t, err)
	assert.Zero(t, portfolio.ValidLineups)
	assert.Empty(t, portfolio.Selected)
	assert.Empty(t, portfolio.Stats)
	assert.Zero(t, portfolio.Exposure.TotalLineups)
}

func TestBuildPortfolio_Cancelled(t *testing.T) {
	pool := createTestPool(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := BuildPortfolio(ctx, pool, nil, PortfolioOptions{Size: 5, Logger: quietLogger()})
	assert.Error(t, err)
}
