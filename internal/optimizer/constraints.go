package optimizer

import (
	"fmt"
	"strings"

	"github.com/stitts-dev/dfs-coverage/internal/types"
)

const (
	ContestShowdown = "Showdown"

	SlotCaptain = "CPT"
	SlotFlex    = "FLEX"

	// CaptainMultiplier scales captain salary, projection and threshold
	CaptainMultiplier = 1.5
)

// SlotRequirement is the number of entities a lineup needs from one slot category
type SlotRequirement struct {
	Slot       string
	Count      int
	Multiplier float64
}

// LineupConstraints is the immutable ruleset of one contest shape.
type LineupConstraints struct {
	contestType string
	salaryCap   int
	slots       []SlotRequirement
	uniqueTeams int
	rosterSize  int
	slotIndex   map[string]int
}

// NewLineupConstraints validates and builds a ruleset. Slot order is kept as
// given and drives enumeration order.
func NewLineupConstraints(contestType string, salaryCap int, slots []SlotRequirement, uniqueTeams int) (*LineupConstraints, error) {
	if salaryCap <= 0 {
		return nil, fmt.Errorf("%w: salary cap must be positive, got %d", ErrInvalidConstraint, salaryCap)
	}
	if len(slots) == 0 {
		return nil, fmt.Errorf("%w: at least one slot category is required", ErrInvalidConstraint)
	}
	if uniqueTeams <= 0 {
		return nil, fmt.Errorf("%w: unique team count must be positive, got %d", ErrInvalidConstraint, uniqueTeams)
	}

	lc := &LineupConstraints{
		contestType: contestType,
		salaryCap:   salaryCap,
		slots:       make([]SlotRequirement, len(slots)),
		uniqueTeams: uniqueTeams,
		slotIndex:   make(map[string]int, len(slots)),
	}
	for i, slot := range slots {
		if slot.Slot == "" {
			return nil, fmt.Errorf("%w: slot %d has no name", ErrInvalidConstraint, i)
		}
		if slot.Count <= 0 {
			return nil, fmt.Errorf("%w: slot %s requires a positive count, got %d", ErrInvalidConstraint, slot.Slot, slot.Count)
		}
		if _, dup := lc.slotIndex[slot.Slot]; dup {
			return nil, fmt.Errorf("%w: slot %s declared twice", ErrInvalidConstraint, slot.Slot)
		}
		if slot.Multiplier == 0 {
			slot.Multiplier = 1
		}
		lc.slots[i] = slot
		lc.slotIndex[slot.Slot] = i
		lc.rosterSize += slot.Count
	}
	if uniqueTeams > lc.rosterSize {
		return nil, fmt.Errorf("%w: %d unique teams cannot fit in a roster of %d", ErrInvalidConstraint, uniqueTeams, lc.rosterSize)
	}

	return lc, nil
}

// GetConstraintsForContest returns the ruleset for a named contest shape
func GetConstraintsForContest(contestType string) (*LineupConstraints, error) {
	switch strings.ToLower(contestType) {
	case "showdown", "captain":
		return NewLineupConstraints(ContestShowdown, 50000, []SlotRequirement{
			{Slot: SlotCaptain, Count: 1, Multiplier: CaptainMultiplier},
			{Slot: SlotFlex, Count: 5, Multiplier: 1},
		}, 2)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedContest, contestType)
	}
}

func (lc *LineupConstraints) ContestType() string { return lc.contestType }
func (lc *LineupConstraints) SalaryCap() int      { return lc.salaryCap }
func (lc *LineupConstraints) UniqueTeams() int    { return lc.uniqueTeams }
func (lc *LineupConstraints) RosterSize() int     { return lc.rosterSize }

// Slots returns a copy of the slot requirements in declaration order
func (lc *LineupConstraints) Slots() []SlotRequirement {
	out := make([]SlotRequirement, len(lc.slots))
	copy(out, lc.slots)
	return out
}

// RequiredCount returns how many entities the slot needs, 0 if undeclared
func (lc *LineupConstraints) RequiredCount(slot string) int {
	if i, ok := lc.slotIndex[slot]; ok {
		return lc.slots[i].Count
	}
	return 0
}

// Multiplier returns the scoring multiplier of a slot, 1 if undeclared
func (lc *LineupConstraints) Multiplier(slot string) float64 {
	if i, ok := lc.slotIndex[slot]; ok {
		return lc.slots[i].Multiplier
	}
	return 1
}

// HasSlot reports whether the contest declares the slot category
func (lc *LineupConstraints) HasSlot(slot string) bool {
	_, ok := lc.slotIndex[slot]
	return ok
}

// IsValid reports whether a candidate satisfies the salary cap and the exact
// per-slot counts. Team diversity and player uniqueness are search-time checks.
func (lc *LineupConstraints) IsValid(candidate []types.Entity) bool {
	return lc.ValidateLineup(candidate) == nil
}

// ValidateLineup is IsValid with a reason for the first failed rule
func (lc *LineupConstraints) ValidateLineup(candidate []types.Entity) error {
	if err := lc.validateSalaryCap(candidate); err != nil {
		return err
	}
	return lc.validateSlots(candidate)
}

func (lc *LineupConstraints) validateSalaryCap(candidate []types.Entity) error {
	total := 0
	for _, e := range candidate {
		total += e.Salary
	}
	if total > lc.salaryCap {
		return fmt.Errorf("lineup exceeds salary cap: %d > %d", total, lc.salaryCap)
	}
	return nil
}

func (lc *LineupConstraints) validateSlots(candidate []types.Entity) error {
	counts := make(map[string]int, len(lc.slots))
	for _, e := range candidate {
		if !lc.HasSlot(e.Slot) {
			return fmt.Errorf("%w: %s", ErrSlotMismatch, e.Slot)
		}
		counts[e.Slot]++
	}
	for _, slot := range lc.slots {
		if counts[slot.Slot] != slot.Count {
			return fmt.Errorf("slot %s requires exactly %d players, got %d", slot.Slot, slot.Count, counts[slot.Slot])
		}
	}
	return nil
}

// ValidateRoster applies the full rule set, including the search-time checks
// for distinct teams and distinct players.
func (lc *LineupConstraints) ValidateRoster(candidate []types.Entity) error {
	if err := lc.ValidateLineup(candidate); err != nil {
		return err
	}

	players := make(map[int64]bool, len(candidate))
	teams := make(map[string]bool, lc.uniqueTeams)
	for _, e := range candidate {
		if players[e.PlayerID] {
			return fmt.Errorf("player %s (%d) used more than once", e.Name, e.PlayerID)
		}
		players[e.PlayerID] = true
		teams[e.Team] = true
	}
	if len(teams) != lc.uniqueTeams {
		return fmt.Errorf("lineup needs players from exactly %d teams, got %d", lc.uniqueTeams, len(teams))
	}
	return nil
}
