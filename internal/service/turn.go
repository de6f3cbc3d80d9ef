// Package service coordinates one encounter turn end to end: load the
// session and character, run the engine on a copy, commit conditionally, and
// handle the terminal paths (rewards, deletion, notification).
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/emberhold/encounter/internal/game/boss"
	"github.com/emberhold/encounter/internal/game/character"
	"github.com/emberhold/encounter/internal/game/encounter"
	"github.com/emberhold/encounter/internal/game/reward"
)

// ErrBossNotFound is returned when a session references a boss template that
// is no longer registered.
var ErrBossNotFound = errors.New("boss template not found")

// CharacterSource reads and writes the external character record: effective
// combat stats before the turn, health after.
type CharacterSource interface {
	FindByID(ctx context.Context, id string) (*character.Character, error)
	UpdateHealth(ctx context.Context, id string, currentHP int) error
}

// Notifier broadcasts turn results to the owning client's realtime channel.
// Delivery is fire-and-forget: failures are logged, never raised.
type Notifier interface {
	NotifyTurn(ctx context.Context, characterID string, result *encounter.TurnResult) error
}

// TurnOutcome is everything one successfully committed turn produced.
type TurnOutcome struct {
	Session *encounter.Session
	Result  *encounter.TurnResult
	// Reward is set only on terminal victory.
	Reward *reward.Reward
}

// TurnService owns the load, resolve, commit sequence for encounter turns.
type TurnService struct {
	store      encounter.Store
	bosses     *boss.Registry
	characters CharacterSource
	engine     *encounter.Engine
	awarder    reward.Awarder
	notifier   Notifier
	ttl        time.Duration
	logger     *zap.Logger
}

// NewTurnService wires a TurnService. notifier may be nil when no realtime
// channel is attached.
func NewTurnService(
	store encounter.Store,
	bosses *boss.Registry,
	characters CharacterSource,
	engine *encounter.Engine,
	awarder reward.Awarder,
	notifier Notifier,
	ttl time.Duration,
	logger *zap.Logger,
) *TurnService {
	return &TurnService{
		store:      store,
		bosses:     bosses,
		characters: characters,
		engine:     engine,
		awarder:    awarder,
		notifier:   notifier,
		ttl:        ttl,
		logger:     logger,
	}
}

// StartEncounter creates and stores a fresh session for the character against
// the given boss. Eligibility checks (level, discovery, reputation) belong to
// the caller.
//
// Postcondition: On success a session at phase 1, turn 0 is stored and
// returned; the player side carries the character's current and maximum health.
func (s *TurnService) StartEncounter(ctx context.Context, characterID, bossID string) (*encounter.Session, error) {
	char, err := s.characters.FindByID(ctx, characterID)
	if err != nil {
		return nil, fmt.Errorf("loading character %q: %w", characterID, err)
	}
	tpl, ok := s.bosses.Get(bossID)
	if !ok {
		return nil, fmt.Errorf("boss %q: %w", bossID, ErrBossNotFound)
	}
	if char.CurrentHP <= 0 {
		return nil, fmt.Errorf("character %q cannot fight at 0 health", characterID)
	}

	sess := encounter.NewSession(characterID, bossID, char.MaxHP, tpl.MaxHP, s.ttl)
	sess.Player.CurrentHP = char.CurrentHP
	if err := s.store.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("storing session: %w", err)
	}
	s.logger.Info("encounter started",
		zap.String("session_id", sess.ID),
		zap.String("character_id", characterID),
		zap.String("boss_id", bossID))
	return sess, nil
}

// GetSession returns the current session snapshot.
func (s *TurnService) GetSession(ctx context.Context, sessionID string) (*encounter.Session, error) {
	return s.store.FindByID(ctx, sessionID)
}

// ResolveTurn processes one turn for the session: load, resolve on a copy,
// commit conditionally on the loaded turn counter, then handle terminal
// paths. A concurrent turn that commits first surfaces as ErrStaleSession
// and writes nothing.
func (s *TurnService) ResolveTurn(ctx context.Context, sessionID string, input encounter.TurnInput) (*TurnOutcome, error) {
	sess, err := s.store.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading session %q: %w", sessionID, err)
	}
	char, err := s.characters.FindByID(ctx, sess.CharacterID)
	if err != nil {
		return nil, fmt.Errorf("loading character %q: %w", sess.CharacterID, err)
	}
	tpl, ok := s.bosses.Get(sess.BossID)
	if !ok {
		return nil, fmt.Errorf("boss %q: %w", sess.BossID, ErrBossNotFound)
	}

	expectedTurn := sess.Turn
	next, result, err := s.engine.ResolveTurn(sess, tpl, char.Stats(), input)
	if err != nil {
		return nil, fmt.Errorf("resolving turn: %w", err)
	}

	outcome := &TurnOutcome{Session: next, Result: result}

	if result.Terminal() {
		// Committing the final state is pointless when the session is about
		// to be reclaimed; terminal turns delete instead. The delete carries
		// the same turn guard as Update, so of two concurrent killing blows
		// only the one that closes the session awards anything.
		if err := s.store.Delete(ctx, next.ID, expectedTurn); err != nil {
			return nil, fmt.Errorf("closing session: %w", err)
		}
		if result.Defeated && s.awarder != nil {
			r, err := s.awarder.Award(ctx, next.CharacterID, tpl, next)
			if err != nil {
				s.logger.Error("awarding rewards failed",
					zap.String("session_id", next.ID),
					zap.Error(err))
			} else {
				outcome.Reward = &r
			}
		}
	} else {
		if err := s.store.Update(ctx, next, expectedTurn); err != nil {
			return nil, fmt.Errorf("committing turn: %w", err)
		}
	}

	s.writeBackHealth(ctx, next)
	s.notify(ctx, next.CharacterID, result)
	return outcome, nil
}

// writeBackHealth persists the player's post-turn health to the character
// record. The session already committed, so a failed write is logged and
// repaired by the next turn rather than failing this one.
func (s *TurnService) writeBackHealth(ctx context.Context, sess *encounter.Session) {
	if err := s.characters.UpdateHealth(ctx, sess.CharacterID, sess.Player.CurrentHP); err != nil {
		s.logger.Error("writing character health back failed",
			zap.String("character_id", sess.CharacterID),
			zap.Int("current_hp", sess.Player.CurrentHP),
			zap.Error(err))
	}
}

// notify broadcasts the turn result. Failures are logged, never returned.
func (s *TurnService) notify(ctx context.Context, characterID string, result *encounter.TurnResult) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyTurn(ctx, characterID, result); err != nil {
		s.logger.Warn("turn notification failed",
			zap.String("character_id", characterID),
			zap.Error(err))
	}
}
