package optimizer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stitts-dev/dfs-coverage/internal/types"
	"github.com/stitts-dev/dfs-coverage/pkg/logger"
	"gonum.org/v1/gonum/mat"
)

// PortfolioOptions configures BuildPortfolio
type PortfolioOptions struct {
	Search    SearchOptions
	MinSalary int
	Size      int
	Diversify DiversifyOptions
	Logger    *logrus.Entry
}

// Portfolio is a diversified selection over the eligible lineups of a pool
type Portfolio struct {
	// Set holds the lineups that passed search and the salary floor
	Set             *LineupSet
	Selected        []int
	Stats           []LineupStats // selected rows, in selection order
	Exposure        types.ExposureReport
	ValidLineups    int
	EligibleLineups int
	Elapsed         time.Duration
}

// BuildPortfolio runs search, builds the lineup set, applies the salary
// floor and diversifies. A nil cov is replaced by the BuildCovariance prior.
func BuildPortfolio(ctx context.Context, pool *EntityPool, cov mat.Matrix, opts PortfolioOptions) (*Portfolio, error) {
	start := time.Now()
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger().WithField("component", "portfolio")
	}
	if opts.Search.Logger == nil {
		opts.Search.Logger = log
	}
	if opts.Diversify.Logger == nil {
		opts.Diversify.Logger = log
	}

	if cov == nil {
		sport := DetectSport(pool)
		log.WithField("sport", sport).Info("No covariance supplied, using position correlation prior")
		cov = BuildCovariance(pool, sport)
	}

	result, err := LineupSearch(ctx, pool, opts.Search)
	if err != nil {
		return nil, err
	}

	set, err := NewLineupSet(pool, result.Lineups, cov)
	if err != nil {
		return nil, fmt.Errorf("failed to build lineup set: %w", err)
	}
	valid := set.Len()

	if opts.MinSalary > 0 {
		set, err = set.FilterBy(SalaryAtLeast(opts.MinSalary))
		if err != nil {
			return nil, fmt.Errorf("failed to apply salary floor: %w", err)
		}
	}

	selected := Diversify(set, opts.Size, opts.Diversify)
	stats, err := selectionStats(set, selected)
	if err != nil {
		return nil, err
	}
	exposure, err := BuildExposureReport(set, selected)
	if err != nil {
		return nil, fmt.Errorf("failed to build exposure report: %w", err)
	}

	portfolio := &Portfolio{
		Set:             set,
		Selected:        selected,
		Stats:           stats,
		Exposure:        exposure,
		ValidLineups:    valid,
		EligibleLineups: set.Len(),
		Elapsed:         time.Since(start),
	}

	log.WithFields(logrus.Fields{
		"valid_lineups":    portfolio.ValidLineups,
		"eligible_lineups": portfolio.EligibleLineups,
		"selected":         len(selected),
		"elapsed_ms":       portfolio.Elapsed.Milliseconds(),
	}).Info("Portfolio built")

	return portfolio, nil
}

// selectionStats returns stats for the selected rows in selection order,
// with Row pointing into set
func selectionStats(set *LineupSet, selected []int) ([]LineupStats, error) {
	subset, err := set.Filter(selected)
	if err != nil {
		return nil, fmt.Errorf("failed to filter selection: %w", err)
	}
	stats := subset.Stats()
	sort.Slice(stats, func(a, b int) bool { return stats[a].Row < stats[b].Row })
	for i := range stats {
		stats[i].Row = selected[stats[i].Row]
	}
	return stats, nil
}
