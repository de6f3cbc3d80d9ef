// Package effect implements status-effect tracking for combatants: a closed
// registry of effect kinds and an ActiveSet that applies, stacks, aggregates,
// and decays effect instances.
package effect

import "sort"

// Kind identifies a status effect. The set of kinds is closed: adding one is a
// data addition to the registry table, never a new code branch.
type Kind string

const (
	Burn       Kind = "burn"
	Poison     Kind = "poison"
	Bleed      Kind = "bleed"
	Stun       Kind = "stun"
	Root       Kind = "root"
	Silence    Kind = "silence"
	Weaken     Kind = "weaken"
	Vulnerable Kind = "vulnerable"
	Shield     Kind = "shield"
	Rage       Kind = "rage"
	Daze       Kind = "daze"
	Focus      Kind = "focus"
)

// Definition is the static behavior of one effect kind. All modifiers compose
// multiplicatively across active effects except HandSizeDelta, which is additive.
type Definition struct {
	// Name is the display name.
	Name string
	// DamageOverTime marks the effect as dealing damage each turn it is active.
	DamageOverTime bool
	// DamageCoefficient is damage dealt per unit of power per turn, floored.
	DamageCoefficient float64
	// PreventsAction blocks every action while active (stun).
	PreventsAction bool
	// DamageDealtMult multiplies damage the bearer deals.
	DamageDealtMult float64
	// DefenseMult multiplies the bearer's effective defense.
	DefenseMult float64
	// HandSizeDelta adjusts the bearer's attack hand size (may be negative).
	HandSizeDelta int
	// RestrictedActions lists specific player actions blocked while active
	// (e.g. root blocks "flee", silence blocks "item").
	RestrictedActions []string
}

// registry is the immutable kind table. Multipliers default to 1.0 so an
// effect only has to declare what it changes.
var registry = map[Kind]Definition{
	Burn: {
		Name:              "Burning",
		DamageOverTime:    true,
		DamageCoefficient: 1.2,
		DamageDealtMult:   1.0,
		DefenseMult:       1.0,
	},
	Poison: {
		Name:              "Poisoned",
		DamageOverTime:    true,
		DamageCoefficient: 0.8,
		DamageDealtMult:   1.0,
		DefenseMult:       1.0,
	},
	Bleed: {
		Name:              "Bleeding",
		DamageOverTime:    true,
		DamageCoefficient: 1.0,
		DamageDealtMult:   1.0,
		DefenseMult:       1.0,
	},
	Stun: {
		Name:            "Stunned",
		PreventsAction:  true,
		DamageDealtMult: 1.0,
		DefenseMult:     1.0,
	},
	Root: {
		Name:              "Rooted",
		DamageDealtMult:   1.0,
		DefenseMult:       1.0,
		RestrictedActions: []string{"flee"},
	},
	Silence: {
		Name:              "Silenced",
		DamageDealtMult:   1.0,
		DefenseMult:       1.0,
		RestrictedActions: []string{"item", "special"},
	},
	Weaken: {
		Name:            "Weakened",
		DamageDealtMult: 0.75,
		DefenseMult:     1.0,
	},
	Vulnerable: {
		Name:            "Vulnerable",
		DamageDealtMult: 1.0,
		DefenseMult:     0.75,
	},
	Shield: {
		Name:            "Shielded",
		DamageDealtMult: 1.0,
		DefenseMult:     1.5,
	},
	Rage: {
		Name:            "Enraged",
		DamageDealtMult: 1.5,
		DefenseMult:     0.9,
	},
	Daze: {
		Name:            "Dazed",
		DamageDealtMult: 1.0,
		DefenseMult:     1.0,
		HandSizeDelta:   -2,
	},
	Focus: {
		Name:            "Focused",
		DamageDealtMult: 1.0,
		DefenseMult:     1.0,
		HandSizeDelta:   2,
	},
}

// Lookup returns the Definition for kind, or (zero, false) for an unrecognized
// kind. Unrecognized kinds never abort a turn; callers skip them and record a
// warning.
func Lookup(kind Kind) (Definition, bool) {
	def, ok := registry[kind]
	return def, ok
}

// Kinds returns the closed set of registered kinds in sorted order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
