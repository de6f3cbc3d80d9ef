// Package encounter holds the combat session model, the session store
// contract, and the turn engine that resolves one encounter turn at a time.
package encounter

import (
	"time"

	"github.com/google/uuid"

	"github.com/emberhold/encounter/internal/game/effect"
)

// CombatantState is the mutable per-side combat record. Health is always
// clamped to [0, MaxHP]; Alive follows CurrentHP > 0.
type CombatantState struct {
	CurrentHP   int               `json:"current_hp"`
	MaxHP       int               `json:"max_hp"`
	Alive       bool              `json:"alive"`
	DamageDealt int               `json:"damage_dealt"`
	DamageTaken int               `json:"damage_taken"`
	Effects     *effect.ActiveSet `json:"effects"`
}

// NewCombatantState creates a full-health combatant with no active effects.
func NewCombatantState(maxHP int) CombatantState {
	return CombatantState{
		CurrentHP: maxHP,
		MaxHP:     maxHP,
		Alive:     true,
		Effects:   effect.NewActiveSet(),
	}
}

// ApplyDamage reduces CurrentHP by amount, clamped at 0, and clears Alive when
// health reaches 0. Negative amounts are ignored. Returns the damage actually
// applied after clamping.
func (c *CombatantState) ApplyDamage(amount int) int {
	if amount <= 0 {
		return 0
	}
	applied := amount
	if applied > c.CurrentHP {
		applied = c.CurrentHP
	}
	c.CurrentHP -= applied
	c.DamageTaken += applied
	if c.CurrentHP <= 0 {
		c.CurrentHP = 0
		c.Alive = false
	}
	return applied
}

// Heal restores CurrentHP by amount, clamped at MaxHP. Healing never revives:
// a dead combatant stays dead.
func (c *CombatantState) Heal(amount int) {
	if amount <= 0 || !c.Alive {
		return
	}
	c.CurrentHP += amount
	if c.CurrentHP > c.MaxHP {
		c.CurrentHP = c.MaxHP
	}
}

// Clone returns a deep copy, including the active effect set.
func (c CombatantState) Clone() CombatantState {
	cp := c
	if c.Effects != nil {
		cp.Effects = c.Effects.Clone()
	} else {
		cp.Effects = effect.NewActiveSet()
	}
	return cp
}

// Minion is a secondary combatant summoned by a boss ability or phase entry.
// Minions act alongside the boss each turn until killed or the encounter ends.
type Minion struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	CurrentHP  int    `json:"current_hp"`
	MaxHP      int    `json:"max_hp"`
	BaseDamage int    `json:"base_damage"`
	Alive      bool   `json:"alive"`
}

// NewMinion creates a full-health minion with a fresh identifier.
func NewMinion(name string, maxHP, baseDamage int) Minion {
	return Minion{
		ID:         uuid.NewString(),
		Name:       name,
		CurrentHP:  maxHP,
		MaxHP:      maxHP,
		BaseDamage: baseDamage,
		Alive:      true,
	}
}

// Session is one active boss encounter. The store owns the record; the engine
// borrows a deep copy for the duration of one turn and the caller commits it
// back through the store on success.
type Session struct {
	ID          string `json:"id"`
	CharacterID string `json:"character_id"`
	BossID      string `json:"boss_id"`
	// PhaseNumber is monotonically non-decreasing for the life of the session.
	PhaseNumber int `json:"phase_number"`
	// Turn counts completed turns; it doubles as the optimistic-concurrency
	// token for Store.Update.
	Turn             int            `json:"turn"`
	TotalDamageDealt int            `json:"total_damage_dealt"`
	UsedAbilities    []string       `json:"used_abilities"`
	Cooldowns        map[string]int `json:"cooldowns"`
	Minions          []Minion       `json:"minions"`
	Player           CombatantState `json:"player"`
	Boss             CombatantState `json:"boss"`
	CreatedAt        time.Time      `json:"created_at"`
	ExpiresAt        time.Time      `json:"expires_at"`
}

// NewSession creates a fresh session for the given character and boss at
// phase 1, turn 0.
func NewSession(characterID, bossID string, playerMaxHP, bossMaxHP int, ttl time.Duration) *Session {
	now := time.Now()
	return &Session{
		ID:          uuid.NewString(),
		CharacterID: characterID,
		BossID:      bossID,
		PhaseNumber: 1,
		Cooldowns:   make(map[string]int),
		Player:      NewCombatantState(playerMaxHP),
		Boss:        NewCombatantState(bossMaxHP),
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
}

// LivingMinions returns the minions still alive, in summon order.
func (s *Session) LivingMinions() []*Minion {
	var out []*Minion
	for i := range s.Minions {
		if s.Minions[i].Alive {
			out = append(out, &s.Minions[i])
		}
	}
	return out
}

// PruneMinions drops dead minions from the session.
func (s *Session) PruneMinions() {
	kept := s.Minions[:0]
	for _, m := range s.Minions {
		if m.Alive {
			kept = append(kept, m)
		}
	}
	s.Minions = kept
}

// Clone returns a deep copy of the session. The engine resolves every turn on
// a clone so a mid-pipeline error never corrupts the stored record.
func (s *Session) Clone() *Session {
	cp := *s
	cp.Player = s.Player.Clone()
	cp.Boss = s.Boss.Clone()
	cp.UsedAbilities = append([]string(nil), s.UsedAbilities...)
	cp.Minions = append([]Minion(nil), s.Minions...)
	cp.Cooldowns = make(map[string]int, len(s.Cooldowns))
	for k, v := range s.Cooldowns {
		cp.Cooldowns[k] = v
	}
	return &cp
}

// Expired reports whether the session's TTL has elapsed at the given instant.
func (s *Session) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// Touch extends the session's expiry to now + ttl.
func (s *Session) Touch(ttl time.Duration) {
	s.ExpiresAt = time.Now().Add(ttl)
}
