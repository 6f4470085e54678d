package optimizer

import (
	"fmt"
	"math"

	"github.com/stitts-dev/dfs-coverage/internal/types"
	"gonum.org/v1/gonum/mat"
)

const (
	SportNFL = "nfl"
	SportNBA = "nba"
	SportNHL = "nhl"
)

// sportsBySlotID maps roster slot ids to the sport of their draft group
var sportsBySlotID = map[int]string{
	511: SportNFL,
	512: SportNFL,
	476: SportNBA,
	475: SportNBA,
	543: SportNHL,
	544: SportNHL,
}

// DetectSport infers the sport of a pool from its roster slot ids, falling
// back to NFL
func DetectSport(pool *EntityPool) string {
	for _, e := range pool.entities {
		if sport, ok := sportsBySlotID[e.RosterSlotID]; ok {
			return sport
		}
	}
	return SportNFL
}

// BuildCovariance produces a prior entity covariance matrix for pools that
// arrive without one. The diagonal is each entity's variance; off-diagonal
// entries are rho * sd_i * sd_j where rho comes from position-pair tables
// for teammates and opponents. Two rows of the same player have rho = 1.
func BuildCovariance(pool *EntityPool, sport string) *mat.SymDense {
	n := pool.Len()
	if n == 0 {
		return &mat.SymDense{}
	}

	sd := make([]float64, n)
	for i, s := range pool.stats {
		sd[i] = math.Sqrt(math.Max(0, s.VarianceOrZero()))
	}

	cov := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		cov.SetSym(i, i, sd[i]*sd[i])
		for j := i + 1; j < n; j++ {
			rho := pairCorrelation(pool.entities[i].PlayerID == pool.entities[j].PlayerID,
				pool.entities[i].Team == pool.entities[j].Team,
				pool.entities[i].Position, pool.entities[j].Position, sport)
			cov.SetSym(i, j, rho*sd[i]*sd[j])
		}
	}
	return cov
}

func pairCorrelation(samePlayer, sameTeam bool, pos1, pos2, sport string) float64 {
	if samePlayer {
		return 1
	}
	var rho float64
	if sameTeam {
		rho = teammateCorrelation(pos1, pos2, sport)
	} else {
		rho = opponentCorrelation(pos1, pos2, sport)
	}
	return math.Max(-1, math.Min(1, rho))
}

var teammateTables = map[string]map[string]map[string]float64{
	// QB stacks dominate
	SportNFL: {
		"QB":  {"QB": 0.0, "RB": 0.10, "WR": 0.50, "TE": 0.40, "K": 0.15, "DST": -0.20},
		"RB":  {"QB": 0.10, "RB": -0.30, "WR": -0.10, "TE": -0.05, "K": 0.10, "DST": 0.15},
		"WR":  {"QB": 0.50, "RB": -0.10, "WR": 0.25, "TE": 0.10, "K": 0.05, "DST": -0.10},
		"TE":  {"QB": 0.40, "RB": -0.05, "WR": 0.10, "TE": 0.0, "K": 0.05, "DST": -0.05},
		"K":   {"QB": 0.15, "RB": 0.10, "WR": 0.05, "TE": 0.05, "K": 0.0, "DST": 0.10},
		"DST": {"QB": -0.20, "RB": 0.15, "WR": -0.10, "TE": -0.05, "K": 0.10, "DST": 0.0},
	},
	SportNBA: {
		"PG": {"PG": 0.0, "SG": 0.35, "SF": 0.25, "PF": 0.20, "C": 0.30},
		"SG": {"PG": 0.35, "SG": 0.0, "SF": 0.20, "PF": 0.15, "C": 0.25},
		"SF": {"PG": 0.25, "SG": 0.20, "SF": 0.0, "PF": 0.20, "C": 0.20},
		"PF": {"PG": 0.20, "SG": 0.15, "SF": 0.20, "PF": 0.0, "C": 0.35},
		"C":  {"PG": 0.30, "SG": 0.25, "SF": 0.20, "PF": 0.35, "C": 0.0},
	},
	// line mates
	SportNHL: {
		"C": {"C": 0.20, "W": 0.45, "D": 0.25, "G": 0.30},
		"W": {"C": 0.45, "W": 0.40, "D": 0.20, "G": 0.30},
		"D": {"C": 0.25, "W": 0.20, "D": 0.35, "G": 0.35},
		"G": {"C": 0.30, "W": 0.30, "D": 0.35, "G": 0.0},
	},
}

var teammateDefaults = map[string]float64{
	SportNFL: 0.10,
	SportNBA: 0.20,
	SportNHL: 0.20,
}

func teammateCorrelation(pos1, pos2, sport string) float64 {
	if rho, ok := teammateTables[sport][pos1][pos2]; ok {
		return rho
	}
	if rho, ok := teammateDefaults[sport]; ok {
		return rho
	}
	return 0.2
}

func opponentCorrelation(pos1, pos2, sport string) float64 {
	switch sport {
	case SportNFL:
		// shootouts lift opposing passing games
		if pos1 == "QB" && (pos2 == "WR" || pos2 == "TE" || pos2 == "QB") {
			return 0.25
		}
		if pos2 == "QB" && (pos1 == "WR" || pos1 == "TE") {
			return 0.25
		}
		if pos1 == "DST" || pos2 == "DST" {
			if pos1 == "RB" || pos2 == "RB" {
				return -0.30
			}
			return -0.20
		}
		return 0.10
	case SportNBA:
		return 0.15
	case SportNHL:
		if pos1 == "G" || pos2 == "G" {
			return -0.20
		}
		return 0.15
	default:
		return 0.05
	}
}

// AlignCovariance reorders a covariance matrix indexed like the raw provider
// rows into the pool's entity order. Rows dropped from the pool are skipped.
func AlignCovariance(rows []types.Draftable, values [][]float64, pool *EntityPool) (*mat.Dense, error) {
	if len(values) != len(rows) {
		return nil, fmt.Errorf("%w: covariance has %d rows, %d draftables", ErrDimensionMismatch, len(values), len(rows))
	}
	index := make(map[string]int, len(rows))
	for i, row := range rows {
		if len(values[i]) != len(rows) {
			return nil, fmt.Errorf("%w: covariance row %d has %d columns, want %d", ErrDimensionMismatch, i, len(values[i]), len(rows))
		}
		slot, err := ResolveSlot(row)
		if err != nil {
			return nil, err
		}
		index[entityKey(row.PlayerID, slot)] = i
	}

	n := pool.Len()
	if n == 0 {
		return &mat.Dense{}, nil
	}
	order := make([]int, n)
	for i, e := range pool.entities {
		src, ok := index[entityKey(e.PlayerID, e.Slot)]
		if !ok {
			return nil, fmt.Errorf("%w: no covariance row for player %d in slot %s", ErrDimensionMismatch, e.PlayerID, e.Slot)
		}
		order[i] = src
	}

	cov := mat.NewDense(n, n, nil)
	for i, a := range order {
		for j, b := range order {
			cov.Set(i, j, values[a][b])
		}
	}
	return cov, nil
}
