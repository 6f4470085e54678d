package optimizer

import (
	"sort"

	"github.com/stitts-dev/dfs-coverage/internal/types"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// BuildExposureReport summarizes how the given rows of set use entities and
// teams, and how their outcomes spread.
func BuildExposureReport(set *LineupSet, rows []int) (types.ExposureReport, error) {
	report := types.ExposureReport{
		TotalLineups:    len(rows),
		EntityExposures: []types.EntityExposure{},
		TeamExposures:   []types.TeamExposure{},
	}
	if len(rows) == 0 {
		return report, nil
	}
	if err := set.checkRows(rows); err != nil {
		return report, err
	}

	entityCount := make(map[int]int)
	teamCount := make(map[string]int)
	projections := make([]float64, len(rows))
	for i, r := range rows {
		for _, c := range set.members[r] {
			entityCount[c]++
			teamCount[set.entities[c].Team]++
			projections[i] += set.stats[c].ProjectionOrZero()
		}
	}

	total := float64(len(rows))
	for c, count := range entityCount {
		e := set.entities[c]
		report.EntityExposures = append(report.EntityExposures, types.EntityExposure{
			PlayerID:   e.PlayerID,
			Name:       e.Name,
			Slot:       e.Slot,
			Count:      count,
			Percentage: float64(count) / total * 100,
		})
	}
	sort.Slice(report.EntityExposures, func(a, b int) bool {
		ea, eb := report.EntityExposures[a], report.EntityExposures[b]
		if ea.Count != eb.Count {
			return ea.Count > eb.Count
		}
		if ea.PlayerID != eb.PlayerID {
			return ea.PlayerID < eb.PlayerID
		}
		return ea.Slot < eb.Slot
	})

	spots := total * float64(set.RosterSize())
	for team, count := range teamCount {
		report.TeamExposures = append(report.TeamExposures, types.TeamExposure{
			Team:       team,
			Count:      count,
			Percentage: float64(count) / spots * 100,
		})
	}
	sort.Slice(report.TeamExposures, func(a, b int) bool {
		return report.TeamExposures[a].Team < report.TeamExposures[b].Team
	})

	if len(rows) == 1 {
		report.MeanProjection = projections[0]
	} else {
		report.MeanProjection, report.StdDevProjection = stat.MeanStdDev(projections, nil)
	}

	overlap, err := set.Overlap(rows...)
	if err != nil {
		return report, err
	}
	report.MeanOverlap = meanOffDiagonal(overlap)

	cov, err := set.Covariance(rows...)
	if err != nil {
		return report, err
	}
	report.PortfolioVariance = mat.Sum(cov)

	return report, nil
}

func meanOffDiagonal(m *mat.Dense) float64 {
	n, _ := m.Dims()
	if n < 2 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j {
				sum += m.At(i, j)
			}
		}
	}
	return sum / float64(n*(n-1))
}
