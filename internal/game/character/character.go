// Package character models the acting character as the engine sees it: an
// external record owning the combat stat and health, read before a turn and
// written back after. Leveling, inventory, and progression live elsewhere.
package character

import "github.com/emberhold/encounter/internal/game/encounter"

// Character is the slice of the character record the engine consumes.
type Character struct {
	ID    string
	Name  string
	Level int
	// CombatStat is added flat to attack damage.
	CombatStat int
	// Defense reduces incoming damage, scaled by the configured factor.
	Defense   int
	CurrentHP int
	MaxHP     int
}

// Stats returns the character's effective combat numbers for one turn.
func (c *Character) Stats() encounter.PlayerStats {
	return encounter.PlayerStats{CombatStat: c.CombatStat, Defense: c.Defense}
}
