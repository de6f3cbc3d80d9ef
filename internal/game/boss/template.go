// Package boss provides boss content definitions (abilities, phases, minions,
// rewards) loaded from YAML, plus phase resolution and ability selection.
package boss

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/emberhold/encounter/internal/game/effect"
)

// Target-selection modes for boss abilities.
const (
	TargetSingle = "single"
	TargetAll    = "all"
	TargetRandom = "random"
)

// Ability types.
const (
	TypeAttack        = "attack"
	TypeDefense       = "defense"
	TypeBuff          = "buff"
	TypeDebuff        = "debuff"
	TypeSummon        = "summon"
	TypeEnvironmental = "environmental"
)

// AppliedEffect is a status effect an ability applies on hit.
type AppliedEffect struct {
	Kind      string  `yaml:"kind"`
	Power     float64 `yaml:"power"`
	Duration  int     `yaml:"duration"`
	Stackable bool    `yaml:"stackable"`
	MaxStacks int     `yaml:"max_stacks"`
}

// MinionSpec describes minions summoned by an ability or phase entry.
type MinionSpec struct {
	Name       string `yaml:"name"`
	Count      int    `yaml:"count"`
	MaxHP      int    `yaml:"max_hp"`
	BaseDamage int    `yaml:"base_damage"`
}

// Ability is one entry in a boss's action catalog.
type Ability struct {
	ID         string `yaml:"id"`
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	BaseDamage int    `yaml:"base_damage"`
	// Cooldown is the number of turns the ability is unavailable after use.
	Cooldown int `yaml:"cooldown"`
	// Priority is the selection weight; higher values are picked more often.
	Priority int `yaml:"priority"`
	// MinPhase gates the ability to phases >= this number; 0 = ungated.
	MinPhase int `yaml:"min_phase"`
	// TargetMode is one of single, all, random. Empty defaults to single.
	TargetMode string         `yaml:"target_mode"`
	Effect     *AppliedEffect `yaml:"effect"`
	Summon     *MinionSpec    `yaml:"summon"`
}

// Phase is one combat stage of the boss, entered when health drops below its
// threshold.
type Phase struct {
	Number int `yaml:"number"`
	// Threshold is the health percentage at or below which the phase is
	// active. Phases form a ladder: later phases have lower thresholds.
	Threshold float64 `yaml:"threshold"`
	// AbilityIDs is the subset of the catalog usable in this phase.
	AbilityIDs []string `yaml:"abilities"`
	// AttackMult scales ability damage while the phase is active.
	AttackMult float64 `yaml:"attack_mult"`
	// Summon, when set, spawns minions on phase entry.
	Summon *MinionSpec `yaml:"summon"`
	// Hazard is a narrative environmental-hazard description.
	Hazard string `yaml:"hazard"`
}

// RewardSpec is the loot granted on victory, consumed by the reward awarder.
type RewardSpec struct {
	GoldMin        int      `yaml:"gold_min"`
	GoldMax        int      `yaml:"gold_max"`
	Experience     int      `yaml:"experience"`
	Items          []string `yaml:"items"`
	Title          string   `yaml:"title"`
	AchievementID  string   `yaml:"achievement_id"`
	PermanentBonus string   `yaml:"permanent_bonus"`
}

// Template defines a boss encounter loaded from YAML.
type Template struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Level       int    `yaml:"level"`
	MaxHP       int    `yaml:"max_hp"`
	// CanFlee controls whether the player may flee this encounter.
	CanFlee bool `yaml:"can_flee"`
	// Immunities lists effect kinds that can never be applied to the boss.
	Immunities []string    `yaml:"immunities"`
	Abilities  []Ability   `yaml:"abilities"`
	Phases     []Phase     `yaml:"phases"`
	Reward     *RewardSpec `yaml:"reward"`
}

// Ability returns the catalog entry with the given ID.
//
// Postcondition: Returns (ability, true) if found, or (nil, false) otherwise.
func (t *Template) Ability(id string) (*Ability, bool) {
	for i := range t.Abilities {
		if t.Abilities[i].ID == id {
			return &t.Abilities[i], true
		}
	}
	return nil, false
}

// Fallback returns the designated fallback ability: the first catalog entry.
//
// Precondition: the template has been validated (at least one ability).
func (t *Template) Fallback() *Ability {
	return &t.Abilities[0]
}

// ImmunityKinds returns the boss's immunities as effect kinds.
func (t *Template) ImmunityKinds() []effect.Kind {
	out := make([]effect.Kind, len(t.Immunities))
	for i, s := range t.Immunities {
		out[i] = effect.Kind(s)
	}
	return out
}

// Validate checks that the template satisfies all content invariants.
//
// Precondition: t must not be nil.
// Postcondition: Returns nil iff the template is internally consistent:
// non-empty identity, positive health, a non-empty ability catalog with valid
// types/modes/weights, and an ascending phase ladder whose ability references
// resolve.
func (t *Template) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("boss template: id must not be empty")
	}
	if t.Name == "" {
		return fmt.Errorf("boss template %q: name must not be empty", t.ID)
	}
	if t.MaxHP < 1 {
		return fmt.Errorf("boss template %q: max_hp must be >= 1", t.ID)
	}
	if len(t.Abilities) == 0 {
		return fmt.Errorf("boss template %q: must define at least one ability", t.ID)
	}
	validTypes := map[string]bool{
		TypeAttack: true, TypeDefense: true, TypeBuff: true,
		TypeDebuff: true, TypeSummon: true, TypeEnvironmental: true,
	}
	validModes := map[string]bool{"": true, TargetSingle: true, TargetAll: true, TargetRandom: true}
	ids := make(map[string]bool, len(t.Abilities))
	for i, a := range t.Abilities {
		if a.ID == "" {
			return fmt.Errorf("boss template %q: ability[%d] must have a non-empty id", t.ID, i)
		}
		if ids[a.ID] {
			return fmt.Errorf("boss template %q: duplicate ability id %q", t.ID, a.ID)
		}
		ids[a.ID] = true
		if !validTypes[a.Type] {
			return fmt.Errorf("boss template %q: ability %q has unknown type %q", t.ID, a.ID, a.Type)
		}
		if !validModes[a.TargetMode] {
			return fmt.Errorf("boss template %q: ability %q has unknown target mode %q", t.ID, a.ID, a.TargetMode)
		}
		if a.Priority < 1 {
			return fmt.Errorf("boss template %q: ability %q priority must be >= 1", t.ID, a.ID)
		}
		if a.Cooldown < 0 {
			return fmt.Errorf("boss template %q: ability %q cooldown must be >= 0", t.ID, a.ID)
		}
		if a.BaseDamage < 0 {
			return fmt.Errorf("boss template %q: ability %q base_damage must be >= 0", t.ID, a.ID)
		}
		if a.Effect != nil {
			if a.Effect.Duration < 1 {
				return fmt.Errorf("boss template %q: ability %q effect duration must be >= 1", t.ID, a.ID)
			}
			if a.Effect.Power < 0 {
				return fmt.Errorf("boss template %q: ability %q effect power must be >= 0", t.ID, a.ID)
			}
		}
		if a.Summon != nil {
			if err := validateMinion(a.Summon); err != nil {
				return fmt.Errorf("boss template %q: ability %q: %w", t.ID, a.ID, err)
			}
		}
	}
	if len(t.Phases) == 0 {
		return fmt.Errorf("boss template %q: must define at least one phase", t.ID)
	}
	prevNumber := 0
	prevThreshold := 101.0
	for i, p := range t.Phases {
		if p.Number <= prevNumber {
			return fmt.Errorf("boss template %q: phase[%d] numbers must be strictly ascending", t.ID, i)
		}
		if p.Threshold <= 0 || p.Threshold > 100 {
			return fmt.Errorf("boss template %q: phase %d threshold must be in (0, 100], got %f", t.ID, p.Number, p.Threshold)
		}
		if p.Threshold >= prevThreshold {
			return fmt.Errorf("boss template %q: phase %d threshold must be below the previous phase's", t.ID, p.Number)
		}
		if p.AttackMult <= 0 {
			return fmt.Errorf("boss template %q: phase %d attack_mult must be > 0", t.ID, p.Number)
		}
		if len(p.AbilityIDs) == 0 {
			return fmt.Errorf("boss template %q: phase %d must allow at least one ability", t.ID, p.Number)
		}
		for _, id := range p.AbilityIDs {
			if !ids[id] {
				return fmt.Errorf("boss template %q: phase %d references unknown ability %q", t.ID, p.Number, id)
			}
		}
		if p.Summon != nil {
			if err := validateMinion(p.Summon); err != nil {
				return fmt.Errorf("boss template %q: phase %d: %w", t.ID, p.Number, err)
			}
		}
		prevNumber = p.Number
		prevThreshold = p.Threshold
	}
	if t.Phases[0].Threshold != 100 {
		return fmt.Errorf("boss template %q: first phase threshold must be 100", t.ID)
	}
	if t.Reward != nil {
		if t.Reward.GoldMin < 0 {
			return fmt.Errorf("boss template %q: reward gold_min must be >= 0", t.ID)
		}
		if t.Reward.GoldMin > t.Reward.GoldMax {
			return fmt.Errorf("boss template %q: reward gold_min (%d) must be <= gold_max (%d)", t.ID, t.Reward.GoldMin, t.Reward.GoldMax)
		}
		if t.Reward.Experience < 0 {
			return fmt.Errorf("boss template %q: reward experience must be >= 0", t.ID)
		}
	}
	return nil
}

func validateMinion(m *MinionSpec) error {
	if m.Name == "" {
		return fmt.Errorf("minion name must not be empty")
	}
	if m.Count < 1 {
		return fmt.Errorf("minion %q count must be >= 1", m.Name)
	}
	if m.MaxHP < 1 {
		return fmt.Errorf("minion %q max_hp must be >= 1", m.Name)
	}
	if m.BaseDamage < 0 {
		return fmt.Errorf("minion %q base_damage must be >= 0", m.Name)
	}
	return nil
}

// LoadTemplateFromBytes parses a single boss template from raw YAML bytes.
//
// Precondition: data must be valid YAML for a single Template.
// Postcondition: Returns a validated *Template, or an error.
func LoadTemplateFromBytes(data []byte) (*Template, error) {
	var tpl Template
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&tpl); err != nil {
		return nil, fmt.Errorf("parsing boss template: %w", err)
	}
	if err := tpl.Validate(); err != nil {
		return nil, err
	}
	return &tpl, nil
}

// Registry holds all known boss Templates keyed by ID.
type Registry struct {
	templates map[string]*Template
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{templates: make(map[string]*Template)}
}

// Register adds tpl to the registry, overwriting any existing entry with the same ID.
//
// Precondition: tpl must not be nil and tpl.ID must not be empty.
func (r *Registry) Register(tpl *Template) {
	r.templates[tpl.ID] = tpl
}

// Get returns the Template for id, or (nil, false) if not found.
func (r *Registry) Get(id string) (*Template, bool) {
	tpl, ok := r.templates[id]
	return tpl, ok
}

// All returns a snapshot slice of all registered Templates.
func (r *Registry) All() []*Template {
	out := make([]*Template, 0, len(r.templates))
	for _, tpl := range r.templates {
		out = append(out, tpl)
	}
	return out
}

// LoadDirectory reads every *.yaml file in dir, parses each as a Template,
// and returns a populated Registry.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns a non-nil Registry, or an error if any file fails to
// parse or validate.
func LoadDirectory(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading boss dir %q: %w", dir, err)
	}
	reg := NewRegistry()
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		tpl, err := LoadTemplateFromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", path, err)
		}
		reg.Register(tpl)
	}
	return reg, nil
}
