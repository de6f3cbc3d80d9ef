package encounter

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/emberhold/encounter/internal/game/boss"
	"github.com/emberhold/encounter/internal/game/cards"
	"github.com/emberhold/encounter/internal/game/dice"
	"github.com/emberhold/encounter/internal/game/effect"
)

// Player actions accepted by the engine.
const (
	ActionAttack  = "attack"
	ActionSpecial = "special"
	ActionDefend  = "defend"
	ActionItem    = "item"
	ActionFlee    = "flee"
)

// minHandSize is the floor on the player's card draw regardless of how many
// hand-shrinking effects are active.
const minHandSize = 3

// baseHandSize is the unmodified card draw for an attack.
const baseHandSize = 5

// PlayerStats carries the acting character's effective combat numbers, read
// from the external character record before the turn.
type PlayerStats struct {
	// CombatStat is added flat to the player's attack damage.
	CombatStat int
	// Defense reduces incoming boss damage, scaled by the defense factor.
	Defense int
}

// TurnInput is the player's requested action for one turn.
type TurnInput struct {
	Action string
	// TargetID is carried for clients that name a minion; the pipeline
	// currently resolves every player attack against the boss, so it is
	// reserved until abilities can strike minions directly.
	TargetID string
}

// TurnResult is everything one resolved turn produced.
type TurnResult struct {
	PlayerAction string `json:"playerAction"`
	PlayerDamage int    `json:"playerDamage"`
	// Blocked means the requested action was prevented by an active effect
	// and yielded zero damage. The action is never substituted.
	Blocked bool `json:"blocked,omitempty"`
	// Stunned means the player could take no action at all this turn.
	Stunned bool `json:"stunned,omitempty"`
	// Fled means the player escaped; the encounter is over without a victor.
	Fled           bool     `json:"fled,omitempty"`
	OpponentAction string   `json:"opponentAction,omitempty"`
	OpponentDamage int      `json:"opponentDamage"`
	MinionActions  []string `json:"minionActions,omitempty"`
	StatusEffects  []string `json:"statusEffects"`
	ExpiredEffects []string `json:"expiredEffects,omitempty"`
	// PhaseChange is the phase number entered this turn, 0 when none.
	PhaseChange    int  `json:"phaseChange,omitempty"`
	Defeated       bool `json:"defeated"`
	PlayerDefeated bool `json:"playerDefeated"`
	// Turn is the session's turn counter after this turn committed.
	Turn int `json:"turn"`
}

// Terminal reports whether the encounter ended this turn.
func (r *TurnResult) Terminal() bool {
	return r.Defeated || r.PlayerDefeated || r.Fled
}

// Engine resolves combat turns. It is stateless across turns: every call
// works on a deep copy of the given session and returns the updated copy, so
// a failed turn leaves the stored session untouched.
type Engine struct {
	src           dice.Source
	defenseFactor float64
	logger        *zap.Logger
}

// NewEngine creates an Engine drawing randomness from src. defenseFactor
// scales the player's defense stat when reducing incoming boss damage.
func NewEngine(src dice.Source, defenseFactor float64, logger *zap.Logger) *Engine {
	return &Engine{src: src, defenseFactor: defenseFactor, logger: logger}
}

// ResolveTurn runs the fixed turn pipeline: start-of-turn effect processing
// for both sides, player action resolution under the aggregated modifiers,
// damage application, phase transition check, boss ability selection and
// execution, minion attacks, cooldown decay, effect decay, and terminal
// checks. The pipeline is synchronous and deterministic given the Source.
//
// The session passed in is never mutated; the returned session reflects the
// completed turn and is what the caller commits through the Store.
//
// Precondition: tpl must be validated and match sess.BossID.
// Postcondition: On success the returned session's turn counter is
// sess.Turn + 1 and all invariants hold (health clamped, cooldowns >= 0,
// phase number non-decreasing). On error the inputs are unchanged and no
// result is returned.
func (e *Engine) ResolveTurn(sess *Session, tpl *boss.Template, stats PlayerStats, input TurnInput) (*Session, *TurnResult, error) {
	switch input.Action {
	case ActionAttack, ActionSpecial, ActionDefend, ActionItem, ActionFlee:
	default:
		return nil, nil, fmt.Errorf("unknown action %q", input.Action)
	}

	s := sess.Clone()
	res := &TurnResult{PlayerAction: input.Action}

	// Step 1: start-of-turn effect processing for every living combatant.
	playerMods := e.processEffects(&s.Player, "you", res)
	bossMods := e.processEffects(&s.Boss, tpl.Name, res)

	if !s.Player.Alive {
		return e.finish(s, res, func() { res.PlayerDefeated = true }), res, nil
	}
	if !s.Boss.Alive {
		return e.finish(s, res, func() { res.Defeated = true }), res, nil
	}

	// Steps 2 and 3: resolve the player's action under this turn's modifiers.
	defending := false
	fled := false
	switch {
	case !playerMods.CanAct:
		res.Blocked = true
		res.Stunned = true
	case playerMods.Blocks(input.Action):
		res.Blocked = true
	case input.Action == ActionAttack || input.Action == ActionSpecial:
		dmg, err := e.resolveAttack(playerMods, stats, res)
		if err != nil {
			return nil, nil, err
		}
		res.PlayerDamage = dmg
	case input.Action == ActionDefend:
		defending = true
	case input.Action == ActionItem:
		// Item resolution belongs to the inventory collaborator; the engine
		// only sequences the turn around it.
	case input.Action == ActionFlee:
		fled = tpl.CanFlee
		if !fled {
			res.StatusEffects = append(res.StatusEffects, fmt.Sprintf("There is no escape from %s!", tpl.Name))
		}
	}

	// Step 4: apply player damage.
	if res.PlayerDamage > 0 {
		applied := s.Boss.ApplyDamage(res.PlayerDamage)
		s.Player.DamageDealt += applied
		s.TotalDamageDealt += applied
	}

	if fled {
		res.Fled = true
		return e.finish(s, res, nil), res, nil
	}

	// Step 5: phase transition on post-damage health; a dead boss
	// short-circuits to the victory path and takes no action.
	if !s.Boss.Alive {
		return e.finish(s, res, func() { res.Defeated = true }), res, nil
	}
	phase, transitioned := boss.NextPhase(s.PhaseNumber, s.Boss.CurrentHP, s.Boss.MaxHP, tpl.Phases)
	if transitioned {
		s.PhaseNumber = phase.Number
		res.PhaseChange = phase.Number
		if phase.Hazard != "" {
			res.StatusEffects = append(res.StatusEffects, phase.Hazard)
		}
		if phase.Summon != nil {
			e.summon(s, phase.Summon, res)
		}
		e.logger.Info("boss entered new phase",
			zap.String("session_id", s.ID),
			zap.String("boss_id", s.BossID),
			zap.Int("phase", phase.Number))
	}

	effDefense := int(math.Floor(float64(stats.Defense) * playerMods.DefenseMult))

	// Step 6: boss ability selection and execution.
	if bossMods.CanAct {
		ability := boss.SelectAbility(tpl, phase, s.Cooldowns, e.src)
		s.UsedAbilities = append(s.UsedAbilities, ability.ID)
		s.Cooldowns[ability.ID] = ability.Cooldown
		res.OpponentAction = ability.Name
		e.executeAbility(s, tpl, ability, phase, bossMods, effDefense, defending, res)
	} else {
		res.StatusEffects = append(res.StatusEffects, fmt.Sprintf("%s is unable to act!", tpl.Name))
	}

	// Step 7: minion attacks add to the opponent's action total.
	for _, m := range s.LivingMinions() {
		if !s.Player.Alive {
			break
		}
		dmg := e.strikeDamage(m.BaseDamage, 1.0, 1.0, effDefense, defending)
		applied := s.Player.ApplyDamage(dmg)
		res.OpponentDamage += applied
		res.MinionActions = append(res.MinionActions, fmt.Sprintf("%s hits you for %d damage", m.Name, applied))
	}

	// Step 8: decay every tracked cooldown, floored at 0.
	for id, cd := range s.Cooldowns {
		if cd > 0 {
			cd--
		}
		if cd < 0 {
			e.logger.Warn("clamped negative cooldown",
				zap.String("session_id", s.ID),
				zap.String("ability_id", id))
			cd = 0
		}
		s.Cooldowns[id] = cd
	}

	// Step 9: decay status effects, after all damage computation.
	for _, kind := range s.Player.Effects.Decay() {
		res.ExpiredEffects = append(res.ExpiredEffects, effectName(kind))
	}
	for _, kind := range s.Boss.Effects.Decay() {
		res.ExpiredEffects = append(res.ExpiredEffects, effectName(kind))
	}
	s.PruneMinions()

	// Steps 10 and 11: terminal checks and result assembly.
	if !s.Player.Alive {
		res.PlayerDefeated = true
	}
	if !s.Boss.Alive {
		res.Defeated = true
	}
	s.Turn++
	res.Turn = s.Turn
	return s, res, nil
}

// processEffects runs start-of-turn effect processing for one combatant,
// applying accumulated damage-over-time to its health and collecting the
// turn's messages. Unknown effect kinds are skipped with a warning.
func (e *Engine) processEffects(c *CombatantState, who string, res *TurnResult) effect.ProcessResult {
	if !c.Alive {
		return effect.ProcessResult{DamageMult: 1.0, DefenseMult: 1.0, CanAct: false}
	}
	mods := c.Effects.Process()
	for _, kind := range mods.UnknownKinds {
		e.logger.Warn("skipping unknown effect kind", zap.String("kind", string(kind)))
	}
	res.StatusEffects = append(res.StatusEffects, mods.Messages...)
	if mods.Damage > 0 {
		applied := c.ApplyDamage(mods.Damage)
		res.StatusEffects = append(res.StatusEffects, fmt.Sprintf("%s: %d damage from active effects", who, applied))
	}
	return mods
}

// resolveAttack draws the player's hand under the active hand-size delta,
// ranks it, and converts the rank to damage. Critical ranks double the base
// damage before the damage multiplier; the combat stat is added flat.
func (e *Engine) resolveAttack(mods effect.ProcessResult, stats PlayerStats, res *TurnResult) (int, error) {
	handSize := baseHandSize + mods.HandSizeDelta
	if handSize < minHandSize {
		handSize = minHandSize
	}
	hand, err := cards.Draw(handSize, e.src)
	if err != nil {
		return 0, fmt.Errorf("drawing attack hand: %w", err)
	}
	rank := cards.EvaluateBest(hand)
	base := cards.BaseDamage(rank)
	if cards.IsCritical(rank) {
		base *= 2
		res.StatusEffects = append(res.StatusEffects, fmt.Sprintf("Critical hit! %s!", rank))
	}
	dmg := int(math.Floor(float64(base)*mods.DamageMult)) + stats.CombatStat
	e.logger.Debug("resolved player attack",
		zap.Int("hand_size", handSize),
		zap.Stringer("rank", rank),
		zap.Int("damage", dmg))
	return dmg, nil
}

// executeAbility applies one boss ability against the player. Single-player
// encounters collapse every target mode to the owning player. Buff and
// defense abilities apply their effect to the boss itself, honoring its
// immunities; everything else lands on the player.
func (e *Engine) executeAbility(s *Session, tpl *boss.Template, ability *boss.Ability, phase boss.Phase, bossMods effect.ProcessResult, effDefense int, defending bool, res *TurnResult) {
	if ability.BaseDamage > 0 {
		dmg := e.strikeDamage(ability.BaseDamage, phase.AttackMult, bossMods.DamageMult, effDefense, defending)
		applied := s.Player.ApplyDamage(dmg)
		s.Boss.DamageDealt += applied
		res.OpponentDamage += applied
	}

	if ability.Effect != nil {
		inst := effect.Instance{
			Kind:      effect.Kind(ability.Effect.Kind),
			Power:     ability.Effect.Power,
			Duration:  ability.Effect.Duration,
			Stackable: ability.Effect.Stackable,
			MaxStacks: ability.Effect.MaxStacks,
		}
		target := &s.Player
		immunities := []effect.Kind(nil)
		if ability.Type == boss.TypeBuff || ability.Type == boss.TypeDefense {
			target = &s.Boss
			immunities = tpl.ImmunityKinds()
		}
		outcome := target.Effects.Apply(inst, immunities)
		switch outcome {
		case effect.Applied, effect.Stacked, effect.Refreshed:
			res.StatusEffects = append(res.StatusEffects, fmt.Sprintf("%s: %s", ability.Name, effectName(inst.Kind)))
		default:
			e.logger.Debug("ability effect not applied",
				zap.String("ability_id", ability.ID),
				zap.String("kind", ability.Effect.Kind),
				zap.Stringer("outcome", outcome))
		}
	}

	if ability.Summon != nil {
		e.summon(s, ability.Summon, res)
	}
}

// strikeDamage computes damage dealt to the player by the boss or a minion:
// floor(base x attack multiplier x effect multiplier) minus
// floor(effective defense x defense factor), floored at 1 when the attack
// connects. A defensive stance halves the result, still floored at 1.
func (e *Engine) strikeDamage(base int, attackMult, dmgMult float64, effDefense int, defending bool) int {
	raw := int(math.Floor(float64(base)*attackMult*dmgMult)) - int(math.Floor(float64(effDefense)*e.defenseFactor))
	if raw < 1 {
		raw = 1
	}
	if defending {
		raw /= 2
		if raw < 1 {
			raw = 1
		}
	}
	return raw
}

// summon spawns the described minions into the session.
func (e *Engine) summon(s *Session, spec *boss.MinionSpec, res *TurnResult) {
	for i := 0; i < spec.Count; i++ {
		m := NewMinion(spec.Name, spec.MaxHP, spec.BaseDamage)
		s.Minions = append(s.Minions, m)
	}
	res.StatusEffects = append(res.StatusEffects, fmt.Sprintf("%d %s joined the fight!", spec.Count, spec.Name))
	e.logger.Info("summoned minions",
		zap.String("session_id", s.ID),
		zap.String("minion", spec.Name),
		zap.Int("count", spec.Count))
}

// finish closes out a short-circuited turn: the terminal flag is set, the
// turn counter advances, and the result is stamped. mark may be nil.
func (e *Engine) finish(s *Session, res *TurnResult, mark func()) *Session {
	if mark != nil {
		mark()
	}
	s.Turn++
	res.Turn = s.Turn
	return s
}

// effectName resolves a kind to its display name, falling back to the raw kind.
func effectName(kind effect.Kind) string {
	if def, ok := effect.Lookup(kind); ok {
		return def.Name
	}
	return string(kind)
}
