package optimizer

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stitts-dev/dfs-coverage/internal/types"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// createShowdownRows builds a two-team showdown slate: seven flex players and
// captain rows for players 1 and 4. Exactly ten lineups fit under the cap.
func createShowdownRows() []types.Draftable {
	flex := []struct {
		id         int64
		name, team string
		position   string
		salary     int
		projection float64
	}{
		{1, "Allen", "BUF", "QB", 9000, 22.5},
		{2, "Diggs", "BUF", "WR", 8000, 17.0},
		{3, "Cook", "BUF", "RB", 7000, 12.4},
		{4, "Mahomes", "KC", "QB", 8500, 21.0},
		{5, "Kelce", "KC", "TE", 7500, 15.2},
		{6, "Pacheco", "KC", "RB", 6000, 11.1},
		{7, "Butker", "KC", "K", 5000, 8.3},
	}

	rows := make([]types.Draftable, 0, len(flex)+2)
	for _, p := range flex {
		rows = append(rows, types.Draftable{
			PlayerID:     p.id,
			Name:         p.name,
			Team:         p.team,
			Position:     p.position,
			RosterSlotID: 512,
			Salary:       p.salary,
			Projection:   types.Float(p.projection),
			Variance:     types.Float(p.projection * 2),
		})
		if p.id == 1 || p.id == 4 {
			rows = append(rows, types.Draftable{
				PlayerID:     p.id,
				Name:         p.name,
				Team:         p.team,
				Position:     p.position,
				RosterSlotID: 511,
				Salary:       p.salary * 3 / 2,
				Projection:   types.Float(p.projection * CaptainMultiplier),
				Variance:     types.Float(p.projection * 2 * CaptainMultiplier * CaptainMultiplier),
			})
		}
	}
	return rows
}

func createTestPool(t *testing.T) *EntityPool {
	t.Helper()
	constraints, err := GetConstraintsForContest(ContestShowdown)
	require.NoError(t, err)
	pool, err := NewEntityPool(createShowdownRows(), constraints)
	require.NoError(t, err)
	return pool
}

func identityCovariance(n int) *mat.Dense {
	cov := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		cov.Set(i, i, 1)
	}
	return cov
}

func createTestSet(t *testing.T) (*EntityPool, *LineupSet) {
	t.Helper()
	pool := createTestPool(t)
	result, err := LineupSearch(testContext(t), pool, SearchOptions{Workers: 2, Logger: quietLogger()})
	require.NoError(t, err)
	set, err := NewLineupSet(pool, result.Lineups, BuildCovariance(pool, SportNFL))
	require.NoError(t, err)
	return pool, set
}

func quietLogger() *logrus.Entry {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(log)
}
