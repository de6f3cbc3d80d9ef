package effect

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Instance is one applied status effect on a combatant.
// Power for a stackable effect is the aggregate of all stacks' contributions;
// it is never divided back per stack.
type Instance struct {
	Kind Kind `json:"kind"`
	// Power is the aggregate potency across all stacks.
	Power float64 `json:"power"`
	// Duration is the remaining duration in turns. An instance whose duration
	// reaches 0 is removed by Decay.
	Duration int `json:"duration"`
	// Stackable marks whether re-applications add power.
	Stackable bool `json:"stackable,omitempty"`
	// MaxStacks caps re-applications when Stackable is set.
	MaxStacks int `json:"max_stacks,omitempty"`
	// Stacks counts accepted applications.
	Stacks int `json:"stacks"`
	// AppliedAt is diagnostic only, never used by gameplay logic.
	AppliedAt time.Time `json:"applied_at"`
}

// Describe returns a human-readable one-line description of the instance.
func (in Instance) Describe() string {
	name := string(in.Kind)
	if def, ok := Lookup(in.Kind); ok {
		name = def.Name
	}
	if in.Stacks > 1 {
		return fmt.Sprintf("%s x%d (%d turns left)", name, in.Stacks, in.Duration)
	}
	return fmt.Sprintf("%s (%d turns left)", name, in.Duration)
}

// ApplyOutcome reports what Apply did with an incoming effect.
type ApplyOutcome int

const (
	// Applied means a new instance was appended.
	Applied ApplyOutcome = iota
	// Stacked means power was added to an existing instance.
	Stacked
	// Refreshed means only the duration of an existing instance was extended.
	Refreshed
	// RejectedImmune means the target is immune to the kind.
	RejectedImmune
	// RejectedActive means a non-stackable instance with an equal or longer
	// duration is already active.
	RejectedActive
)

// String returns the outcome label.
func (o ApplyOutcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Stacked:
		return "stacked"
	case Refreshed:
		return "refreshed"
	case RejectedImmune:
		return "immune"
	case RejectedActive:
		return "already active"
	default:
		return "unknown"
	}
}

// ActiveSet tracks all status effects currently applied to one combatant, in
// application order. At most one instance per kind is held; the Apply rules
// merge re-applications. It is not safe for concurrent use; the caller must
// serialise access.
type ActiveSet struct {
	instances []*Instance
}

// NewActiveSet creates an empty ActiveSet.
func NewActiveSet() *ActiveSet {
	return &ActiveSet{}
}

// find returns the instance with the given kind, or nil.
func (s *ActiveSet) find(kind Kind) *Instance {
	for _, in := range s.instances {
		if in.Kind == kind {
			return in
		}
	}
	return nil
}

// Apply adds or merges an incoming effect, honoring immunities and stacking:
//   - kind in immunities: rejected, no mutation.
//   - existing stackable instance below its stack cap: power is added, duration
//     extended to the longer of the two (never shortened), stack count bumped.
//   - existing stackable instance at its cap: only duration is refreshed.
//   - existing non-stackable instance: replaced only when the incoming duration
//     is strictly longer, taking the higher power; otherwise rejected.
//   - no existing instance: appended as-is with one stack.
//
// Precondition: inc.Duration > 0 and inc.Power >= 0.
// Postcondition: For a stackable kind, power never exceeds what MaxStacks
// accepted applications contribute.
func (s *ActiveSet) Apply(inc Instance, immunities []Kind) ApplyOutcome {
	for _, k := range immunities {
		if k == inc.Kind {
			return RejectedImmune
		}
	}

	existing := s.find(inc.Kind)
	if existing == nil {
		inc.Stacks = 1
		if inc.AppliedAt.IsZero() {
			inc.AppliedAt = time.Now()
		}
		s.instances = append(s.instances, &inc)
		return Applied
	}

	if inc.Stackable && existing.Stacks < existing.MaxStacks {
		existing.Power += inc.Power
		existing.Stacks++
		if inc.Duration > existing.Duration {
			existing.Duration = inc.Duration
		}
		return Stacked
	}
	if inc.Stackable {
		// At maximum stacks: only the duration may be refreshed.
		if inc.Duration > existing.Duration {
			existing.Duration = inc.Duration
		}
		return Refreshed
	}
	if inc.Duration > existing.Duration {
		existing.Duration = inc.Duration
		existing.Power = math.Max(existing.Power, inc.Power)
		return Refreshed
	}
	return RejectedActive
}

// ProcessResult aggregates one turn's worth of effect processing.
type ProcessResult struct {
	// Damage is the total damage-over-time to apply to the bearer this turn.
	Damage int
	// DamageMult is the product of all active DamageDealtMult modifiers.
	DamageMult float64
	// DefenseMult is the product of all active DefenseMult modifiers.
	DefenseMult float64
	// HandSizeDelta is the sum of all active hand-size adjustments.
	HandSizeDelta int
	// CanAct is false when any active effect prevents action.
	CanAct bool
	// Restricted holds the specific action names blocked by active effects.
	Restricted map[string]bool
	// Messages are human-readable descriptions of each processed instance.
	Messages []string
	// UnknownKinds lists instances skipped because their kind is unregistered;
	// callers log these as warnings.
	UnknownKinds []Kind
}

// Blocks reports whether the given action name is restricted this turn.
func (r ProcessResult) Blocks(action string) bool {
	return r.Restricted[action]
}

// Process aggregates all active instances: damage-over-time contributions are
// floored per instance and summed, damage and defense multipliers compose
// multiplicatively, hand-size deltas sum, and any action-preventing effect
// clears CanAct. Unrecognized kinds are skipped and reported, never fatal.
//
// Process does not mutate the set; the caller applies the damage to the
// bearer's health and calls Decay exactly once after all damage computation
// for the turn.
func (s *ActiveSet) Process() ProcessResult {
	res := ProcessResult{
		DamageMult:  1.0,
		DefenseMult: 1.0,
		CanAct:      true,
		Restricted:  make(map[string]bool),
	}
	for _, in := range s.instances {
		def, ok := Lookup(in.Kind)
		if !ok {
			res.UnknownKinds = append(res.UnknownKinds, in.Kind)
			continue
		}
		if def.DamageOverTime {
			res.Damage += int(math.Floor(in.Power * def.DamageCoefficient))
		}
		res.DamageMult *= def.DamageDealtMult
		res.DefenseMult *= def.DefenseMult
		res.HandSizeDelta += def.HandSizeDelta
		if def.PreventsAction {
			res.CanAct = false
		}
		for _, a := range def.RestrictedActions {
			res.Restricted[a] = true
		}
		res.Messages = append(res.Messages, in.Describe())
	}
	return res
}

// Decay decrements every instance's duration by 1 and removes any instance
// whose duration is now <= 0, returning the removed kinds in order. Must be
// called exactly once per completed turn, after all damage computation.
//
// Postcondition: every remaining instance has Duration > 0.
func (s *ActiveSet) Decay() []Kind {
	var removed []Kind
	kept := s.instances[:0]
	for _, in := range s.instances {
		in.Duration--
		if in.Duration <= 0 {
			removed = append(removed, in.Kind)
			continue
		}
		kept = append(kept, in)
	}
	s.instances = kept
	return removed
}

// Remove deletes the instance with the given kind. No-op if absent.
//
// Postcondition: Has(kind) is false.
func (s *ActiveSet) Remove(kind Kind) {
	kept := s.instances[:0]
	for _, in := range s.instances {
		if in.Kind == kind {
			continue
		}
		kept = append(kept, in)
	}
	s.instances = kept
}

// Clear removes every instance.
func (s *ActiveSet) Clear() {
	s.instances = nil
}

// Has reports whether an instance of kind is active.
func (s *ActiveSet) Has(kind Kind) bool {
	return s.find(kind) != nil
}

// Get returns a copy of the instance with the given kind.
func (s *ActiveSet) Get(kind Kind) (Instance, bool) {
	if in := s.find(kind); in != nil {
		return *in, true
	}
	return Instance{}, false
}

// Len returns the number of active instances.
func (s *ActiveSet) Len() int {
	return len(s.instances)
}

// All returns copies of the active instances in application order.
func (s *ActiveSet) All() []Instance {
	out := make([]Instance, len(s.instances))
	for i, in := range s.instances {
		out[i] = *in
	}
	return out
}

// Clone returns a deep copy of the set.
func (s *ActiveSet) Clone() *ActiveSet {
	cp := &ActiveSet{instances: make([]*Instance, len(s.instances))}
	for i, in := range s.instances {
		dup := *in
		cp.instances[i] = &dup
	}
	return cp
}

// MarshalJSON encodes the set as its ordered instance list.
func (s *ActiveSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.All())
}

// UnmarshalJSON decodes an ordered instance list.
func (s *ActiveSet) UnmarshalJSON(data []byte) error {
	var instances []Instance
	if err := json.Unmarshal(data, &instances); err != nil {
		return fmt.Errorf("decoding active effects: %w", err)
	}
	s.instances = make([]*Instance, len(instances))
	for i := range instances {
		in := instances[i]
		s.instances[i] = &in
	}
	return nil
}
