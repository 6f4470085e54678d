package optimizer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/stitts-dev/dfs-coverage/internal/types"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// LineupStats is the per-lineup rollup of a LineupSet
type LineupStats struct {
	Row        int
	Descriptor string
	Salary     int
	Projection float64
	Actual     float64
	Variance   float64
}

// LineupSet stores lineups as a 0/1 incidence matrix (lineups x entities)
// over the entities the lineups actually use. The entity table and the
// covariance matrix are column-aligned with the incidence matrix. A set is
// never mutated; filters build a new one.
type LineupSet struct {
	constraints *LineupConstraints
	entities    []types.Entity
	stats       []types.EntityStats
	members     [][]int // row -> sorted column indices
	incidence   *mat.Dense
	cov         *mat.SymDense
}

// NewLineupSet builds a set from search output. Each lineup holds pool
// indices; cov is indexed like the pool.
func NewLineupSet(pool *EntityPool, lineups [][]int, cov mat.Matrix) (*LineupSet, error) {
	if err := checkCovariance(cov, pool.Len()); err != nil {
		return nil, err
	}
	return buildLineupSet(pool.constraints, pool.entities, pool.stats, lineups, cov)
}

// NewLineupSetFromIncidence builds a set from an existing 0/1 matrix whose
// columns follow the pool ordering.
func NewLineupSetFromIncidence(pool *EntityPool, incidence mat.Matrix, cov mat.Matrix) (*LineupSet, error) {
	if err := checkCovariance(cov, pool.Len()); err != nil {
		return nil, err
	}
	rows, cols := incidence.Dims()
	if cols != pool.Len() {
		return nil, fmt.Errorf("%w: incidence has %d columns, pool has %d entities", ErrDimensionMismatch, cols, pool.Len())
	}

	lineups := make([][]int, rows)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			switch v := incidence.At(i, j); v {
			case 0:
			case 1:
				lineups[i] = append(lineups[i], j)
			default:
				return nil, fmt.Errorf("%w: incidence entry (%d,%d) is %v, want 0 or 1", ErrDimensionMismatch, i, j, v)
			}
		}
	}
	return buildLineupSet(pool.constraints, pool.entities, pool.stats, lineups, cov)
}

func checkCovariance(cov mat.Matrix, n int) error {
	if cov == nil {
		return fmt.Errorf("%w: covariance matrix is required", ErrDimensionMismatch)
	}
	r, c := cov.Dims()
	if r != c || r != n {
		return fmt.Errorf("%w: covariance is %dx%d, pool has %d entities", ErrDimensionMismatch, r, c, n)
	}
	return nil
}

// buildLineupSet validates rows against the roster size, prunes unused
// columns and slices the entity table and covariance to the survivors.
// cov is symmetrized as (C + C^T) / 2.
func buildLineupSet(constraints *LineupConstraints, entities []types.Entity, stats []types.EntityStats, lineups [][]int, cov mat.Matrix) (*LineupSet, error) {
	rosterSize := constraints.RosterSize()
	used := make([]bool, len(entities))
	for r, lineup := range lineups {
		if len(lineup) != rosterSize {
			return nil, fmt.Errorf("%w: lineup %d has %d entities, roster size is %d", ErrDimensionMismatch, r, len(lineup), rosterSize)
		}
		for _, e := range lineup {
			if e < 0 || e >= len(entities) {
				return nil, fmt.Errorf("%w: lineup %d references entity %d of %d", ErrDimensionMismatch, r, e, len(entities))
			}
			used[e] = true
		}
	}

	remap := make([]int, len(entities))
	columns := make([]int, 0, len(entities))
	for e, ok := range used {
		if ok {
			remap[e] = len(columns)
			columns = append(columns, e)
		}
	}

	set := &LineupSet{
		constraints: constraints,
		entities:    make([]types.Entity, len(columns)),
		stats:       make([]types.EntityStats, len(columns)),
		members:     make([][]int, len(lineups)),
	}
	for c, e := range columns {
		set.entities[c] = entities[e]
		set.stats[c] = stats[e]
	}
	for r, lineup := range lineups {
		row := make([]int, len(lineup))
		for i, e := range lineup {
			row[i] = remap[e]
		}
		sort.Ints(row)
		for i := 1; i < len(row); i++ {
			if row[i] == row[i-1] {
				return nil, fmt.Errorf("%w: lineup %d repeats entity %d", ErrDimensionMismatch, r, columns[row[i]])
			}
		}
		set.members[r] = row
	}

	if len(lineups) == 0 {
		return set, nil
	}

	set.incidence = mat.NewDense(len(lineups), len(columns), nil)
	for r, row := range set.members {
		for _, c := range row {
			set.incidence.Set(r, c, 1)
		}
	}
	set.cov = mat.NewSymDense(len(columns), nil)
	for i, a := range columns {
		for j := i; j < len(columns); j++ {
			b := columns[j]
			set.cov.SetSym(i, j, (cov.At(a, b)+cov.At(b, a))/2)
		}
	}

	return set, nil
}

func (s *LineupSet) Len() int                              { return len(s.members) }
func (s *LineupSet) NumEntities() int                      { return len(s.entities) }
func (s *LineupSet) RosterSize() int                       { return s.constraints.RosterSize() }
func (s *LineupSet) Constraints() *LineupConstraints       { return s.constraints }
func (s *LineupSet) Entity(col int) types.Entity           { return s.entities[col] }
func (s *LineupSet) EntityStats(col int) types.EntityStats { return s.stats[col] }

// Members returns the sorted column indices of a lineup
func (s *LineupSet) Members(row int) []int {
	out := make([]int, len(s.members[row]))
	copy(out, s.members[row])
	return out
}

// Lineup returns the entities of a lineup in slot declaration order
func (s *LineupSet) Lineup(row int) []types.Entity {
	out := make([]types.Entity, len(s.members[row]))
	for i, c := range s.members[row] {
		out[i] = s.entities[c]
	}
	sort.SliceStable(out, func(a, b int) bool {
		return s.constraints.slotIndex[out[a].Slot] < s.constraints.slotIndex[out[b].Slot]
	})
	return out
}

// Incidence returns the incidence matrix; empty for an empty set
func (s *LineupSet) Incidence() mat.Matrix {
	if s.incidence == nil {
		return &mat.Dense{}
	}
	return s.incidence
}

// EntityCovariance returns the covariance matrix sliced to the set's columns
func (s *LineupSet) EntityCovariance() mat.Symmetric {
	if s.cov == nil {
		return &mat.SymDense{}
	}
	return s.cov
}

// rowsOf returns the incidence restricted to rows, or the whole matrix when
// rows is empty
func (s *LineupSet) rowsOf(rows []int) (*mat.Dense, error) {
	if len(rows) == 0 {
		return s.incidence, nil
	}
	if err := s.checkRows(rows); err != nil {
		return nil, err
	}
	sub := mat.NewDense(len(rows), len(s.entities), nil)
	for i, r := range rows {
		sub.SetRow(i, s.incidence.RawRowView(r))
	}
	return sub, nil
}

func (s *LineupSet) checkRows(rows []int) error {
	for _, r := range rows {
		if r < 0 || r >= len(s.members) {
			return fmt.Errorf("%w: row %d out of range [0,%d)", ErrDimensionMismatch, r, len(s.members))
		}
	}
	return nil
}

// Overlap returns pairwise shared-entity counts M*M^T, restricted to rows
// when given. The diagonal equals the roster size.
func (s *LineupSet) Overlap(rows ...int) (*mat.Dense, error) {
	if s.incidence == nil {
		return &mat.Dense{}, nil
	}
	m, err := s.rowsOf(rows)
	if err != nil {
		return nil, err
	}
	var out mat.Dense
	out.Mul(m, m.T())
	return &out, nil
}

// Covariance returns pairwise lineup covariance M*C*M^T, restricted to rows
// when given. The result is exactly symmetric.
func (s *LineupSet) Covariance(rows ...int) (*mat.Dense, error) {
	if s.incidence == nil {
		return &mat.Dense{}, nil
	}
	m, err := s.rowsOf(rows)
	if err != nil {
		return nil, err
	}
	var mc, out mat.Dense
	mc.Mul(m, s.cov)
	out.Mul(&mc, m.T())

	n, _ := out.Dims()
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			v := (out.At(i, j) + out.At(j, i)) / 2
			out.Set(i, j, v)
			out.Set(j, i, v)
		}
	}
	return &out, nil
}

// CovarianceWith returns the covariance of every lineup against each of the
// given rows, a Len() x len(rows) matrix.
func (s *LineupSet) CovarianceWith(rows ...int) (*mat.Dense, error) {
	if s.incidence == nil || len(rows) == 0 {
		return &mat.Dense{}, nil
	}
	m, err := s.rowsOf(rows)
	if err != nil {
		return nil, err
	}
	var mc, out mat.Dense
	mc.Mul(s.incidence, s.cov)
	out.Mul(&mc, m.T())
	return &out, nil
}

// DiagonalVariance returns each lineup's own variance as the row sums of
// (M*C) ⊙ M without forming the full lineup covariance.
func (s *LineupSet) DiagonalVariance() []float64 {
	if s.incidence == nil {
		return []float64{}
	}
	var mc mat.Dense
	mc.Mul(s.incidence, s.cov)
	mc.MulElem(&mc, s.incidence)

	out := make([]float64, len(s.members))
	for r := range out {
		out[r] = floats.Sum(mc.RawRowView(r))
	}
	return out
}

// Stats returns one row per lineup sorted by descending own variance, ties
// in row order.
func (s *LineupSet) Stats() []LineupStats {
	out := make([]LineupStats, len(s.members))
	if len(out) == 0 {
		return out
	}

	salary := make([]float64, len(s.entities))
	projection := make([]float64, len(s.entities))
	actual := make([]float64, len(s.entities))
	for c, e := range s.entities {
		salary[c] = float64(e.Salary)
		projection[c] = s.stats[c].ProjectionOrZero()
		actual[c] = s.stats[c].ActualOrZero()
	}
	salaries := s.rollup(salary)
	projections := s.rollup(projection)
	actuals := s.rollup(actual)
	variances := s.DiagonalVariance()

	for r := range out {
		out[r] = LineupStats{
			Row:        r,
			Descriptor: s.Descriptor(r),
			Salary:     int(salaries[r]),
			Projection: projections[r],
			Actual:     actuals[r],
			Variance:   variances[r],
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Variance > out[b].Variance
	})
	return out
}

// rollup computes M * attr
func (s *LineupSet) rollup(attr []float64) []float64 {
	var v mat.VecDense
	v.MulVec(s.incidence, mat.NewVecDense(len(attr), attr))
	return v.RawVector().Data
}

// Descriptor is the canonical text form of a lineup: one (slot:name:id)
// token per member, sorted so the captain token leads.
func (s *LineupSet) Descriptor(row int) string {
	tokens := make([]string, len(s.members[row]))
	for i, c := range s.members[row] {
		e := s.entities[c]
		tokens[i] = fmt.Sprintf("(%s:%s:%d)", e.Slot, e.Name, e.PlayerID)
	}
	sort.Strings(tokens)
	return strings.Join(tokens, "")
}

// Filter returns a new set holding rows in the given order, pruned to the
// entities they use
func (s *LineupSet) Filter(rows []int) (*LineupSet, error) {
	if err := s.checkRows(rows); err != nil {
		return nil, err
	}
	lineups := make([][]int, len(rows))
	for i, r := range rows {
		lineups[i] = s.members[r]
	}
	if s.cov == nil {
		return &LineupSet{constraints: s.constraints, members: [][]int{}}, nil
	}
	return buildLineupSet(s.constraints, s.entities, s.stats, lineups, s.cov)
}

// FilterBy keeps, in row order, the lineups whose stats satisfy keep
func (s *LineupSet) FilterBy(keep func(LineupStats) bool) (*LineupSet, error) {
	stats := s.Stats()
	sort.Slice(stats, func(a, b int) bool { return stats[a].Row < stats[b].Row })

	rows := make([]int, 0, len(stats))
	for _, st := range stats {
		if keep(st) {
			rows = append(rows, st.Row)
		}
	}
	return s.Filter(rows)
}

// SalaryAtLeast keeps lineups spending at least min
func SalaryAtLeast(min int) func(LineupStats) bool {
	return func(st LineupStats) bool { return st.Salary >= min }
}
