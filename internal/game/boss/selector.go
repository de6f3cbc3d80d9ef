package boss

import (
	"github.com/emberhold/encounter/internal/game/dice"
)

// SelectAbility picks the boss's action for this turn via a priority-weighted
// random draw over the eligible catalog entries. An ability is eligible when:
//
//   - it has no phase gate, or the gate is <= the active phase's number,
//   - its identifier is listed in the active phase's allowed set, and
//   - its cooldown is currently 0.
//
// When no ability is eligible (everything on cooldown, or the phase's allowed
// set references nothing usable), the designated fallback (the first catalog
// entry) is returned. Selection never fails.
//
// Iteration follows catalog order, so the draw is deterministic given the
// template and the Source.
//
// Precondition: tpl must be validated; src must be non-nil.
// Postcondition: Returns a non-nil ability from tpl's catalog.
func SelectAbility(tpl *Template, phase Phase, cooldowns map[string]int, src dice.Source) *Ability {
	allowed := make(map[string]bool, len(phase.AbilityIDs))
	for _, id := range phase.AbilityIDs {
		allowed[id] = true
	}

	var eligible []*Ability
	for i := range tpl.Abilities {
		a := &tpl.Abilities[i]
		if a.MinPhase > phase.Number {
			continue
		}
		if !allowed[a.ID] {
			continue
		}
		if cooldowns[a.ID] > 0 {
			continue
		}
		eligible = append(eligible, a)
	}

	if len(eligible) == 0 {
		return tpl.Fallback()
	}

	weights := make([]int, len(eligible))
	for i, a := range eligible {
		weights[i] = a.Priority
	}
	return eligible[dice.WeightedIndex(weights, src)]
}
