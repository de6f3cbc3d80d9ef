package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/emberhold/encounter/internal/game/boss"
	"github.com/emberhold/encounter/internal/game/character"
	"github.com/emberhold/encounter/internal/game/encounter"
	"github.com/emberhold/encounter/internal/game/reward"
	"github.com/emberhold/encounter/internal/service"
	"github.com/emberhold/encounter/internal/storage/postgres"
)

type fixedSrc struct{ val int }

func (f fixedSrc) Intn(_ int) int { return f.val }

type fakeCharacters struct {
	chars        map[string]*character.Character
	healthWrites map[string]int
	failHealth   bool
}

func newFakeCharacters(chars ...*character.Character) *fakeCharacters {
	f := &fakeCharacters{
		chars:        make(map[string]*character.Character),
		healthWrites: make(map[string]int),
	}
	for _, c := range chars {
		f.chars[c.ID] = c
	}
	return f
}

func (f *fakeCharacters) FindByID(_ context.Context, id string) (*character.Character, error) {
	c, ok := f.chars[id]
	if !ok {
		return nil, postgres.ErrCharacterNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCharacters) UpdateHealth(_ context.Context, id string, currentHP int) error {
	if f.failHealth {
		return errors.New("character store down")
	}
	f.healthWrites[id] = currentHP
	return nil
}

type recordingNotifier struct {
	notified []string
	fail     bool
}

func (n *recordingNotifier) NotifyTurn(_ context.Context, characterID string, _ *encounter.TurnResult) error {
	if n.fail {
		return errors.New("channel closed")
	}
	n.notified = append(n.notified, characterID)
	return nil
}

// countingAwarder records how many times rewards were granted.
type countingAwarder struct {
	awards int
}

func (a *countingAwarder) Award(_ context.Context, _ string, _ *boss.Template, _ *encounter.Session) (reward.Reward, error) {
	a.awards++
	return reward.Reward{Gold: 100}, nil
}

// staleStore hands every reader the same stale snapshot, standing in for two
// handlers that both loaded the session before either committed.
type staleStore struct {
	encounter.Store
	snapshot *encounter.Session
}

func (s *staleStore) FindByID(ctx context.Context, id string) (*encounter.Session, error) {
	if s.snapshot != nil && s.snapshot.ID == id {
		return s.snapshot.Clone(), nil
	}
	return s.Store.FindByID(ctx, id)
}

func drakeTemplate() *boss.Template {
	return &boss.Template{
		ID:      "cinder_drake",
		Name:    "Cinder Drake",
		MaxHP:   500,
		CanFlee: true,
		Abilities: []boss.Ability{
			{ID: "claw", Name: "Claw Swipe", Type: boss.TypeAttack, BaseDamage: 10, Priority: 4},
		},
		Phases: []boss.Phase{
			{Number: 1, Threshold: 100, AbilityIDs: []string{"claw"}, AttackMult: 1.0},
		},
		Reward: &boss.RewardSpec{GoldMin: 100, GoldMax: 100, Experience: 500},
	}
}

func zara() *character.Character {
	return &character.Character{
		ID: "char-1", Name: "Zara", Level: 12,
		CombatStat: 5, Defense: 10, CurrentHP: 90, MaxHP: 100,
	}
}

type fixture struct {
	svc        *service.TurnService
	store      *encounter.MemoryStore
	characters *fakeCharacters
	notifier   *recordingNotifier
}

func newFixture(t *testing.T, tpl *boss.Template, opts ...func(*fixture)) *fixture {
	t.Helper()
	logger := zap.NewNop()
	f := &fixture{
		store:      encounter.NewMemoryStore(time.Minute, logger),
		characters: newFakeCharacters(zara()),
		notifier:   &recordingNotifier{},
	}
	for _, opt := range opts {
		opt(f)
	}
	reg := boss.NewRegistry()
	reg.Register(tpl)
	src := fixedSrc{val: 0}
	var store encounter.Store = f.store
	f.svc = service.NewTurnService(
		store, reg, f.characters,
		encounter.NewEngine(src, 0.5, logger),
		reward.NewTableAwarder(src, logger),
		f.notifier, time.Minute, logger,
	)
	return f
}

func TestStartEncounter(t *testing.T) {
	f := newFixture(t, drakeTemplate())

	sess, err := f.svc.StartEncounter(context.Background(), "char-1", "cinder_drake")
	require.NoError(t, err)
	assert.Equal(t, 1, sess.PhaseNumber)
	assert.Equal(t, 0, sess.Turn)
	assert.Equal(t, 90, sess.Player.CurrentHP, "player enters at the character's current health")
	assert.Equal(t, 100, sess.Player.MaxHP)
	assert.Equal(t, 500, sess.Boss.CurrentHP)

	stored, err := f.svc.GetSession(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, stored.ID)
}

func TestStartEncounter_UnknownBoss(t *testing.T) {
	f := newFixture(t, drakeTemplate())
	_, err := f.svc.StartEncounter(context.Background(), "char-1", "nope")
	assert.ErrorIs(t, err, service.ErrBossNotFound)
}

func TestStartEncounter_UnknownCharacter(t *testing.T) {
	f := newFixture(t, drakeTemplate())
	_, err := f.svc.StartEncounter(context.Background(), "nope", "cinder_drake")
	assert.ErrorIs(t, err, postgres.ErrCharacterNotFound)
}

func TestStartEncounter_DeadCharacter(t *testing.T) {
	f := newFixture(t, drakeTemplate())
	f.characters.chars["char-1"].CurrentHP = 0
	_, err := f.svc.StartEncounter(context.Background(), "char-1", "cinder_drake")
	assert.Error(t, err)
}

func TestResolveTurn_CommitsAndWritesBackHealth(t *testing.T) {
	f := newFixture(t, drakeTemplate())
	ctx := context.Background()
	sess, err := f.svc.StartEncounter(ctx, "char-1", "cinder_drake")
	require.NoError(t, err)

	out, err := f.svc.ResolveTurn(ctx, sess.ID, encounter.TurnInput{Action: encounter.ActionDefend})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Session.Turn)
	assert.False(t, out.Result.Terminal())
	assert.Nil(t, out.Reward)

	stored, err := f.svc.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Turn)

	assert.Equal(t, out.Session.Player.CurrentHP, f.characters.healthWrites["char-1"])
	assert.Equal(t, []string{"char-1"}, f.notifier.notified)
}

func TestResolveTurn_SessionNotFound(t *testing.T) {
	f := newFixture(t, drakeTemplate())
	_, err := f.svc.ResolveTurn(context.Background(), "nope", encounter.TurnInput{Action: encounter.ActionAttack})
	assert.ErrorIs(t, err, encounter.ErrSessionNotFound)
}

func TestResolveTurn_VictoryAwardsAndDeletes(t *testing.T) {
	tpl := drakeTemplate()
	tpl.MaxHP = 50 // one crit hand ends it
	f := newFixture(t, tpl)
	ctx := context.Background()
	sess, err := f.svc.StartEncounter(ctx, "char-1", "cinder_drake")
	require.NoError(t, err)

	out, err := f.svc.ResolveTurn(ctx, sess.ID, encounter.TurnInput{Action: encounter.ActionAttack})
	require.NoError(t, err)
	assert.True(t, out.Result.Defeated)
	require.NotNil(t, out.Reward)
	assert.Equal(t, 100, out.Reward.Gold)
	assert.Equal(t, 500, out.Reward.Experience)

	_, err = f.svc.GetSession(ctx, sess.ID)
	assert.ErrorIs(t, err, encounter.ErrSessionNotFound)
}

func TestResolveTurn_FleeDeletesWithoutReward(t *testing.T) {
	f := newFixture(t, drakeTemplate())
	ctx := context.Background()
	sess, err := f.svc.StartEncounter(ctx, "char-1", "cinder_drake")
	require.NoError(t, err)

	out, err := f.svc.ResolveTurn(ctx, sess.ID, encounter.TurnInput{Action: encounter.ActionFlee})
	require.NoError(t, err)
	assert.True(t, out.Result.Fled)
	assert.Nil(t, out.Reward)

	_, err = f.svc.GetSession(ctx, sess.ID)
	assert.ErrorIs(t, err, encounter.ErrSessionNotFound)
}

func TestResolveTurn_StaleSubmissionRejected(t *testing.T) {
	f := newFixture(t, drakeTemplate())
	ctx := context.Background()
	sess, err := f.svc.StartEncounter(ctx, "char-1", "cinder_drake")
	require.NoError(t, err)

	// Both requests see the turn-0 snapshot; the second commit must lose.
	stale := &staleStore{Store: f.store}
	snapshot, err := f.store.FindByID(ctx, sess.ID)
	require.NoError(t, err)
	stale.snapshot = snapshot

	reg := boss.NewRegistry()
	reg.Register(drakeTemplate())
	logger := zap.NewNop()
	svc := service.NewTurnService(
		stale, reg, f.characters,
		encounter.NewEngine(fixedSrc{val: 0}, 0.5, logger),
		nil, nil, time.Minute, logger,
	)

	_, err = svc.ResolveTurn(ctx, sess.ID, encounter.TurnInput{Action: encounter.ActionDefend})
	require.NoError(t, err)

	_, err = svc.ResolveTurn(ctx, sess.ID, encounter.TurnInput{Action: encounter.ActionDefend})
	assert.ErrorIs(t, err, encounter.ErrStaleSession)

	stored, err := f.store.FindByID(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Turn, "exactly one turn committed")
}

func TestResolveTurn_ConcurrentKillingBlowsAwardOnce(t *testing.T) {
	tpl := drakeTemplate()
	tpl.MaxHP = 50 // one crit hand ends it
	f := newFixture(t, tpl)
	ctx := context.Background()
	sess, err := f.svc.StartEncounter(ctx, "char-1", "cinder_drake")
	require.NoError(t, err)

	// Both requests see the turn-0 snapshot and both resolve to victory; only
	// the one that closes the session may grant the reward.
	stale := &staleStore{Store: f.store}
	snapshot, err := f.store.FindByID(ctx, sess.ID)
	require.NoError(t, err)
	stale.snapshot = snapshot

	awarder := &countingAwarder{}
	reg := boss.NewRegistry()
	reg.Register(tpl)
	logger := zap.NewNop()
	svc := service.NewTurnService(
		stale, reg, f.characters,
		encounter.NewEngine(fixedSrc{val: 0}, 0.5, logger),
		awarder, nil, time.Minute, logger,
	)

	out, err := svc.ResolveTurn(ctx, sess.ID, encounter.TurnInput{Action: encounter.ActionAttack})
	require.NoError(t, err)
	assert.True(t, out.Result.Defeated)
	require.NotNil(t, out.Reward)

	_, err = svc.ResolveTurn(ctx, sess.ID, encounter.TurnInput{Action: encounter.ActionAttack})
	assert.ErrorIs(t, err, encounter.ErrSessionNotFound, "the losing killing blow must be rejected")

	assert.Equal(t, 1, awarder.awards, "reward granted exactly once")
}

func TestResolveTurn_NotifierFailureDoesNotFailTurn(t *testing.T) {
	f := newFixture(t, drakeTemplate(), func(f *fixture) {
		f.notifier.fail = true
	})
	ctx := context.Background()
	sess, err := f.svc.StartEncounter(ctx, "char-1", "cinder_drake")
	require.NoError(t, err)

	_, err = f.svc.ResolveTurn(ctx, sess.ID, encounter.TurnInput{Action: encounter.ActionDefend})
	assert.NoError(t, err)
}

func TestResolveTurn_HealthWriteBackFailureDoesNotFailTurn(t *testing.T) {
	f := newFixture(t, drakeTemplate(), func(f *fixture) {
		f.characters.failHealth = true
	})
	ctx := context.Background()
	sess, err := f.svc.StartEncounter(ctx, "char-1", "cinder_drake")
	require.NoError(t, err)

	out, err := f.svc.ResolveTurn(ctx, sess.ID, encounter.TurnInput{Action: encounter.ActionDefend})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Session.Turn)
}
