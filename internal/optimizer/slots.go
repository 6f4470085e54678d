package optimizer

import (
	"fmt"
	"strings"

	"github.com/stitts-dev/dfs-coverage/internal/types"
)

// rosterSlotNames maps DraftKings roster slot ids to slot categories
var rosterSlotNames = map[int]string{
	511: SlotCaptain, // NFL showdown
	512: SlotFlex,
	476: SlotCaptain, // NBA showdown
	475: SlotFlex,
	543: SlotCaptain, // NHL showdown
	544: SlotFlex,
}

// slotAliases normalizes provider spellings of slot names
var slotAliases = map[string]string{
	"CPT":     SlotCaptain,
	"CAPTAIN": SlotCaptain,
	"FLEX":    SlotFlex,
	"UTIL":    SlotFlex,
}

// ResolveSlot returns the slot category of a raw row. An explicit slot name
// wins over the roster slot id.
func ResolveSlot(d types.Draftable) (string, error) {
	if d.RosterSlot != "" {
		name := strings.ToUpper(strings.TrimSpace(d.RosterSlot))
		if alias, ok := slotAliases[name]; ok {
			return alias, nil
		}
		return name, nil
	}
	if name, ok := rosterSlotNames[d.RosterSlotID]; ok {
		return name, nil
	}
	return "", fmt.Errorf("%w: uncategorized roster slot id %d for %s", ErrSlotMismatch, d.RosterSlotID, d.Name)
}
