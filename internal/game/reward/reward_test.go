package reward_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/emberhold/encounter/internal/game/boss"
	"github.com/emberhold/encounter/internal/game/encounter"
	"github.com/emberhold/encounter/internal/game/reward"
)

type fixedSrc struct{ val int }

func (f fixedSrc) Intn(_ int) int { return f.val }

func TestTableAwarder_RollsFromRewardBlock(t *testing.T) {
	tpl := &boss.Template{
		ID:   "cinder_drake",
		Name: "Cinder Drake",
		Reward: &boss.RewardSpec{
			GoldMin:       100,
			GoldMax:       200,
			Experience:    500,
			Items:         []string{"drake_scale"},
			Title:         "Drakesbane",
			AchievementID: "slay_cinder_drake",
		},
	}
	sess := encounter.NewSession("char-1", tpl.ID, 100, 500, time.Minute)
	a := reward.NewTableAwarder(fixedSrc{val: 25}, zap.NewNop())

	r, err := a.Award(context.Background(), "char-1", tpl, sess)
	require.NoError(t, err)
	assert.Equal(t, 125, r.Gold)
	assert.Equal(t, 500, r.Experience)
	assert.Equal(t, []string{"drake_scale"}, r.Items)
	assert.Equal(t, "Drakesbane", r.Title)
	assert.Equal(t, "slay_cinder_drake", r.AchievementID)
}

func TestTableAwarder_NoRewardBlock(t *testing.T) {
	tpl := &boss.Template{ID: "cinder_drake", Name: "Cinder Drake"}
	sess := encounter.NewSession("char-1", tpl.ID, 100, 500, time.Minute)
	a := reward.NewTableAwarder(fixedSrc{val: 0}, zap.NewNop())

	r, err := a.Award(context.Background(), "char-1", tpl, sess)
	require.NoError(t, err)
	assert.Zero(t, r.Gold)
	assert.Zero(t, r.Experience)
	assert.Empty(t, r.Items)
}
