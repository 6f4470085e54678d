package optimizer

import (
	"math"
	"math/bits"

	"gonum.org/v1/gonum/stat/combin"
)

// candidateSpace is the cartesian product of per-slot combinations. Only the
// combination lists are materialized; candidates are decoded on demand from
// a linear index.
type candidateSpace struct {
	combos   [][][]int // slot -> combination -> entity indices
	dims     []int
	total    int
	overflow bool
	size     int // roster size
}

// newCandidateSpace builds k-combinations of each slot group. A slot with
// fewer entities than it requires yields an empty space.
func newCandidateSpace(groups [][]int, slots []SlotRequirement) *candidateSpace {
	cs := &candidateSpace{
		combos: make([][][]int, len(slots)),
		dims:   make([]int, len(slots)),
	}
	for g, slot := range slots {
		cs.size += slot.Count
		members := groups[g]
		if len(members) < slot.Count {
			continue
		}
		positions := combin.Combinations(len(members), slot.Count)
		entityCombos := make([][]int, len(positions))
		for c, pos := range positions {
			combo := make([]int, len(pos))
			for j, p := range pos {
				combo[j] = members[p]
			}
			entityCombos[c] = combo
		}
		cs.combos[g] = entityCombos
		cs.dims[g] = len(entityCombos)
	}
	cs.total, cs.overflow = cardinality(cs.dims)
	return cs
}

// cardinality multiplies dims, reporting overflow instead of wrapping
func cardinality(dims []int) (int, bool) {
	if len(dims) == 0 {
		return 0, false
	}
	total := uint64(1)
	for _, d := range dims {
		if d == 0 {
			return 0, false
		}
		hi, lo := bits.Mul64(total, uint64(d))
		if hi != 0 || lo > math.MaxInt64 {
			return math.MaxInt64, true
		}
		total = lo
	}
	return int(total), false
}

func (cs *candidateSpace) empty() bool {
	return cs.total == 0
}

// shardSize is the number of candidates sharing one first-slot combination
func (cs *candidateSpace) shardSize() int {
	if cs.empty() {
		return 0
	}
	return cs.total / cs.dims[0]
}

// decode writes the flattened candidate at linear index idx into dst.
// sub is scratch space of len(dims).
func (cs *candidateSpace) decode(dst, sub []int, idx int) []int {
	sub = combin.SubFor(sub, idx, cs.dims)
	dst = dst[:0]
	for g, c := range sub {
		dst = append(dst, cs.combos[g][c]...)
	}
	return dst
}
