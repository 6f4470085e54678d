package optimizer

import (
	"fmt"
	"sort"

	"github.com/stitts-dev/dfs-coverage/internal/types"
)

// maxPoolTeams is the number of teams a single-game pool may span
const maxPoolTeams = 2

// EntityPool is the cleaned, ordered set of draftable entities for one draft
// group. Pools are immutable; filters return new pools.
type EntityPool struct {
	constraints *LineupConstraints
	entities    []types.Entity
	stats       []types.EntityStats
	teams       []string
}

// NewEntityPool cleans raw provider rows: resolves slot names, derives each
// entity's opponent and orders rows by (player id, slot).
func NewEntityPool(rows []types.Draftable, constraints *LineupConstraints) (*EntityPool, error) {
	if constraints == nil {
		return nil, fmt.Errorf("%w: nil constraints", ErrInvalidConstraint)
	}

	entities := make([]types.Entity, 0, len(rows))
	stats := make([]types.EntityStats, 0, len(rows))
	seen := make(map[string]bool, len(rows))

	for i, row := range rows {
		slot, err := ResolveSlot(row)
		if err != nil {
			return nil, err
		}
		if !constraints.HasSlot(slot) {
			return nil, fmt.Errorf("%w: %s (row %d, %s) for contest %s", ErrSlotMismatch, slot, i, row.Name, constraints.ContestType())
		}
		if row.Salary < 0 {
			return nil, fmt.Errorf("%w: negative salary %d for %s", ErrInvalidEntity, row.Salary, row.Name)
		}
		if row.Team == "" {
			return nil, fmt.Errorf("%w: %s has no team", ErrInvalidEntity, row.Name)
		}
		key := entityKey(row.PlayerID, slot)
		if seen[key] {
			return nil, fmt.Errorf("%w: duplicate row for player %d in slot %s", ErrInvalidEntity, row.PlayerID, slot)
		}
		seen[key] = true

		entities = append(entities, types.Entity{
			PlayerID:     row.PlayerID,
			Name:         row.Name,
			Team:         row.Team,
			Opponent:     row.Opponent,
			Position:     row.Position,
			RosterSlotID: row.RosterSlotID,
			Slot:         slot,
			Salary:       row.Salary,
		})
		stats = append(stats, types.EntityStats{
			Projection: row.Projection,
			Variance:   row.Variance,
			Actual:     row.Actual,
		})
	}

	teams := distinctTeams(entities)
	if len(teams) > maxPoolTeams {
		return nil, fmt.Errorf("%w: %d teams %v, single-game contests allow %d", ErrTooManyTeams, len(teams), teams, maxPoolTeams)
	}
	if len(teams) == maxPoolTeams {
		for i := range entities {
			if entities[i].Team == teams[0] {
				entities[i].Opponent = teams[1]
			} else {
				entities[i].Opponent = teams[0]
			}
		}
	}

	pool := &EntityPool{
		constraints: constraints,
		entities:    entities,
		stats:       stats,
		teams:       teams,
	}
	pool.sortCanonical()

	return pool, nil
}

func (p *EntityPool) sortCanonical() {
	order := make([]int, len(p.entities))
	for i := range order {
		order[i] = i
	}
	slotRank := func(e types.Entity) int {
		return p.constraints.slotIndex[e.Slot]
	}
	sort.SliceStable(order, func(a, b int) bool {
		ea, eb := p.entities[order[a]], p.entities[order[b]]
		if ea.PlayerID != eb.PlayerID {
			return ea.PlayerID < eb.PlayerID
		}
		if slotRank(ea) != slotRank(eb) {
			return slotRank(ea) < slotRank(eb)
		}
		return ea.RosterSlotID < eb.RosterSlotID
	})

	entities := make([]types.Entity, len(order))
	stats := make([]types.EntityStats, len(order))
	for i, idx := range order {
		entities[i] = p.entities[idx]
		stats[i] = p.stats[idx]
	}
	p.entities = entities
	p.stats = stats
}

func entityKey(playerID int64, slot string) string {
	return fmt.Sprintf("%d:%s", playerID, slot)
}

func distinctTeams(entities []types.Entity) []string {
	set := make(map[string]bool)
	for _, e := range entities {
		set[e.Team] = true
	}
	teams := make([]string, 0, len(set))
	for team := range set {
		teams = append(teams, team)
	}
	sort.Strings(teams)
	return teams
}

func (p *EntityPool) Len() int                            { return len(p.entities) }
func (p *EntityPool) Constraints() *LineupConstraints     { return p.constraints }
func (p *EntityPool) Entity(i int) types.Entity           { return p.entities[i] }
func (p *EntityPool) EntityStats(i int) types.EntityStats { return p.stats[i] }

// Teams returns the sorted team abbreviations present in the pool
func (p *EntityPool) Teams() []string {
	out := make([]string, len(p.teams))
	copy(out, p.teams)
	return out
}

// Entities returns a copy of the entity table
func (p *EntityPool) Entities() []types.Entity {
	out := make([]types.Entity, len(p.entities))
	copy(out, p.entities)
	return out
}

// Stats returns a copy of the numeric attribute table, aligned with Entities
func (p *EntityPool) Stats() []types.EntityStats {
	out := make([]types.EntityStats, len(p.stats))
	copy(out, p.stats)
	return out
}

// IndicesBySlot groups entity indices by slot category, in the constraint's
// slot order. With viableOnly set, entities without a positive projection
// are left out.
func (p *EntityPool) IndicesBySlot(viableOnly bool) [][]int {
	groups := make([][]int, len(p.constraints.slots))
	for i, e := range p.entities {
		if viableOnly && !p.stats[i].HasProjection() {
			continue
		}
		g := p.constraints.slotIndex[e.Slot]
		groups[g] = append(groups[g], i)
	}
	return groups
}

// FilterByProjection keeps entities whose projection is known and strictly
// greater than threshold scaled by the slot multiplier.
func (p *EntityPool) FilterByProjection(threshold float64) *EntityPool {
	keep := make([]int, 0, len(p.entities))
	for i, e := range p.entities {
		s := p.stats[i]
		if s.Projection == nil {
			continue
		}
		if *s.Projection > threshold*p.constraints.Multiplier(e.Slot) {
			keep = append(keep, i)
		}
	}
	return p.subset(keep)
}

// Exclude drops every row belonging to the listed players
func (p *EntityPool) Exclude(playerIDs []int64) *EntityPool {
	if len(playerIDs) == 0 {
		return p
	}
	excluded := make(map[int64]bool, len(playerIDs))
	for _, id := range playerIDs {
		excluded[id] = true
	}
	keep := make([]int, 0, len(p.entities))
	for i, e := range p.entities {
		if !excluded[e.PlayerID] {
			keep = append(keep, i)
		}
	}
	return p.subset(keep)
}

func (p *EntityPool) subset(keep []int) *EntityPool {
	out := &EntityPool{
		constraints: p.constraints,
		entities:    make([]types.Entity, len(keep)),
		stats:       make([]types.EntityStats, len(keep)),
		teams:       p.teams,
	}
	for i, idx := range keep {
		out.entities[i] = p.entities[idx]
		out.stats[i] = p.stats[idx]
	}
	return out
}
