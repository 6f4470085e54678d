package optimizer

import (
	"math"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stitts-dev/dfs-coverage/pkg/logger"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// SelectionStrategy picks the next lineup from the cumulative covariance of
// every row against the lineups selected so far. It returns -1 when no
// unselected row remains.
type SelectionStrategy interface {
	Name() string
	Next(cumulative []float64, selected []bool) int
}

// MinAbsCovariance picks the row whose cumulative covariance is closest to
// zero. Ties go to the lowest row.
type MinAbsCovariance struct{}

func (MinAbsCovariance) Name() string { return "min_abs" }

func (MinAbsCovariance) Next(cumulative []float64, selected []bool) int {
	return argminUnselected(cumulative, selected, math.Abs)
}

// MinSignedCovariance prefers negatively correlated rows, picking the lowest
// signed cumulative covariance.
type MinSignedCovariance struct{}

func (MinSignedCovariance) Name() string { return "min_signed" }

func (MinSignedCovariance) Next(cumulative []float64, selected []bool) int {
	return argminUnselected(cumulative, selected, func(v float64) float64 { return v })
}

func argminUnselected(values []float64, selected []bool, score func(float64) float64) int {
	best := -1
	bestScore := math.Inf(1)
	for i, v := range values {
		if selected[i] {
			continue
		}
		if s := score(v); best < 0 || s < bestScore {
			best, bestScore = i, s
		}
	}
	return best
}

// StrategyByName resolves a strategy name, defaulting to MinAbsCovariance
func StrategyByName(name string) SelectionStrategy {
	switch name {
	case "min_signed":
		return MinSignedCovariance{}
	default:
		return MinAbsCovariance{}
	}
}

// StartRule chooses the first lineup of a portfolio
type StartRule string

const (
	StartRandom      StartRule = "random"
	StartMaxVariance StartRule = "max_variance"
)

// DiversifyOptions configures Diversify. Zero values select a random start
// with MinAbsCovariance.
type DiversifyOptions struct {
	Strategy SelectionStrategy
	Start    StartRule
	Rand     *rand.Rand
	Logger   *logrus.Entry
}

// Diversify greedily selects up to n rows of set that are mutually weakly
// correlated. After the start row, each step adds the row chosen by the
// strategy from every row's summed covariance with the selection; selected
// rows are never picked twice. The result is in selection order.
func Diversify(set *LineupSet, n int, opts DiversifyOptions) []int {
	if n <= 0 || set.Len() == 0 {
		return []int{}
	}
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger().WithField("component", "diversifier")
	}
	strategy := opts.Strategy
	if strategy == nil {
		strategy = MinAbsCovariance{}
	}
	rows := set.Len()
	if n > rows {
		n = rows
	}

	var mc mat.Dense
	mc.Mul(set.incidence, set.cov)

	selected := make([]bool, rows)
	cumulative := make([]float64, rows)
	order := make([]int, 0, n)

	pick := func(row int) {
		selected[row] = true
		order = append(order, row)
		for i := 0; i < rows; i++ {
			mcRow := mc.RawRowView(i)
			for _, c := range set.members[row] {
				cumulative[i] += mcRow[c]
			}
		}
	}

	pick(startRow(set, opts))
	for len(order) < n {
		next := strategy.Next(cumulative, selected)
		if next < 0 {
			break
		}
		pick(next)
	}

	log.WithFields(logrus.Fields{
		"rows":     rows,
		"selected": len(order),
		"strategy": strategy.Name(),
		"start":    order[0],
	}).Debug("Diversified lineup selection")

	return order
}

func startRow(set *LineupSet, opts DiversifyOptions) int {
	if opts.Start == StartMaxVariance {
		return floats.MaxIdx(set.DiagonalVariance())
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return rng.Intn(set.Len())
}
