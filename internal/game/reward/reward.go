// Package reward grants victory loot. The engine never computes rewards
// itself; the turn service invokes an Awarder exactly once, on terminal
// victory.
package reward

import (
	"context"

	"go.uber.org/zap"

	"github.com/emberhold/encounter/internal/game/boss"
	"github.com/emberhold/encounter/internal/game/dice"
	"github.com/emberhold/encounter/internal/game/encounter"
)

// Reward is what a character receives for a victory.
type Reward struct {
	Gold           int      `json:"gold"`
	Experience     int      `json:"experience"`
	Items          []string `json:"items,omitempty"`
	Title          string   `json:"title,omitempty"`
	AchievementID  string   `json:"achievementId,omitempty"`
	PermanentBonus string   `json:"permanentBonus,omitempty"`
}

// Awarder grants rewards for a won encounter.
type Awarder interface {
	Award(ctx context.Context, characterID string, tpl *boss.Template, sess *encounter.Session) (Reward, error)
}

// TableAwarder reads the boss template's reward block: gold rolls uniformly
// in the configured range, everything else is granted as listed. A template
// without a reward block grants nothing.
type TableAwarder struct {
	src    dice.Source
	logger *zap.Logger
}

// NewTableAwarder creates a TableAwarder rolling gold from src.
func NewTableAwarder(src dice.Source, logger *zap.Logger) *TableAwarder {
	return &TableAwarder{src: src, logger: logger}
}

// Award builds the reward from tpl's reward block.
func (a *TableAwarder) Award(_ context.Context, characterID string, tpl *boss.Template, sess *encounter.Session) (Reward, error) {
	spec := tpl.Reward
	if spec == nil {
		return Reward{}, nil
	}
	r := Reward{
		Gold:           dice.Range(spec.GoldMin, spec.GoldMax, a.src),
		Experience:     spec.Experience,
		Items:          append([]string(nil), spec.Items...),
		Title:          spec.Title,
		AchievementID:  spec.AchievementID,
		PermanentBonus: spec.PermanentBonus,
	}
	a.logger.Info("awarded encounter rewards",
		zap.String("character_id", characterID),
		zap.String("boss_id", tpl.ID),
		zap.String("session_id", sess.ID),
		zap.Int("gold", r.Gold),
		zap.Int("experience", r.Experience),
		zap.Int("turns", sess.Turn))
	return r, nil
}
