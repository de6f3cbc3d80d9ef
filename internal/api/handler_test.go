package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/emberhold/encounter/internal/api"
	"github.com/emberhold/encounter/internal/game/boss"
	"github.com/emberhold/encounter/internal/game/character"
	"github.com/emberhold/encounter/internal/game/encounter"
	"github.com/emberhold/encounter/internal/game/reward"
	"github.com/emberhold/encounter/internal/service"
	"github.com/emberhold/encounter/internal/storage/postgres"
)

type fixedSrc struct{ val int }

func (f fixedSrc) Intn(_ int) int { return f.val }

type stubCharacters struct {
	char *character.Character
}

func (s *stubCharacters) FindByID(_ context.Context, id string) (*character.Character, error) {
	if s.char == nil || s.char.ID != id {
		return nil, postgres.ErrCharacterNotFound
	}
	cp := *s.char
	return &cp, nil
}

func (s *stubCharacters) UpdateHealth(_ context.Context, _ string, hp int) error {
	s.char.CurrentHP = hp
	return nil
}

func testRouter(t *testing.T) *gin.Engine {
	t.Helper()
	logger := zap.NewNop()
	tpl := &boss.Template{
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
	}
	reg := boss.NewRegistry()
	reg.Register(tpl)

	chars := &stubCharacters{char: &character.Character{
		ID: "char-1", Name: "Zara", CombatStat: 5, Defense: 10, CurrentHP: 90, MaxHP: 100,
	}}
	src := fixedSrc{val: 0}
	svc := service.NewTurnService(
		encounter.NewMemoryStore(time.Minute, logger),
		reg, chars,
		encounter.NewEngine(src, 0.5, logger),
		reward.NewTableAwarder(src, logger),
		nil, time.Minute, logger,
	)
	return api.NewRouter(api.NewEncounterHandler(svc, logger), logger)
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) (*httptest.ResponseRecorder, api.TurnResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var resp api.TurnResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return w, resp
}

func startSession(t *testing.T, r *gin.Engine) string {
	t.Helper()
	w, resp := doJSON(t, r, http.MethodPost, "/encounter/start",
		api.StartRequest{CharacterID: "char-1", BossID: "cinder_drake"})
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, resp.Session)
	return resp.Session.ID
}

func TestHealthz(t *testing.T) {
	r := testRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStart(t *testing.T) {
	r := testRouter(t)
	w, resp := doJSON(t, r, http.MethodPost, "/encounter/start",
		api.StartRequest{CharacterID: "char-1", BossID: "cinder_drake"})
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Session)
	assert.Equal(t, 90, resp.Session.Player.CurrentHP)
}

func TestStart_UnknownBoss(t *testing.T) {
	r := testRouter(t)
	w, resp := doJSON(t, r, http.MethodPost, "/encounter/start",
		api.StartRequest{CharacterID: "char-1", BossID: "nope"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, resp.Success)
	assert.Equal(t, "boss not found", resp.Error)
}

func TestStart_MissingFields(t *testing.T) {
	r := testRouter(t)
	w, resp := doJSON(t, r, http.MethodPost, "/encounter/start", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, resp.Success)
}

func TestTurn(t *testing.T) {
	r := testRouter(t)
	id := startSession(t, r)

	w, resp := doJSON(t, r, http.MethodPost, "/encounter/turn",
		api.TurnRequest{SessionID: id, Action: "defend"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.TurnResult)
	assert.Equal(t, "defend", resp.TurnResult.PlayerAction)
	assert.Equal(t, 1, resp.TurnResult.Turn)
	require.NotNil(t, resp.Session)
	assert.Equal(t, 1, resp.Session.Turn)
}

func TestTurn_SessionNotFound(t *testing.T) {
	r := testRouter(t)
	w, resp := doJSON(t, r, http.MethodPost, "/encounter/turn",
		api.TurnRequest{SessionID: "nope", Action: "attack"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "session not found", resp.Error)
}

func TestTurn_FleeEndsEncounter(t *testing.T) {
	r := testRouter(t)
	id := startSession(t, r)

	w, resp := doJSON(t, r, http.MethodPost, "/encounter/turn",
		api.TurnRequest{SessionID: id, Action: "flee"})
	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, resp.TurnResult)
	assert.True(t, resp.TurnResult.Fled)
	assert.Equal(t, "You escaped.", resp.Message)

	w, _ = doJSON(t, r, http.MethodPost, "/encounter/turn",
		api.TurnRequest{SessionID: id, Action: "attack"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGet(t *testing.T) {
	r := testRouter(t)
	id := startSession(t, r)

	w, resp := doJSON(t, r, http.MethodGet, "/encounter/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)
	require.NotNil(t, resp.Session)
	assert.Equal(t, id, resp.Session.ID)
}

func TestGet_Missing(t *testing.T) {
	r := testRouter(t)
	w, _ := doJSON(t, r, http.MethodGet, "/encounter/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
