// Package api exposes the encounter engine over a thin JSON surface.
package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/emberhold/encounter/internal/game/encounter"
	"github.com/emberhold/encounter/internal/game/reward"
	"github.com/emberhold/encounter/internal/service"
	"github.com/emberhold/encounter/internal/storage/postgres"
)

// EncounterHandler groups the encounter HTTP handlers.
type EncounterHandler struct {
	turns  *service.TurnService
	logger *zap.Logger
}

// NewEncounterHandler creates an EncounterHandler backed by the turn service.
func NewEncounterHandler(turns *service.TurnService, logger *zap.Logger) *EncounterHandler {
	return &EncounterHandler{turns: turns, logger: logger}
}

// StartRequest initiates an encounter. Eligibility checks (level, discovery)
// are the caller's responsibility.
type StartRequest struct {
	CharacterID string `json:"characterId" binding:"required"`
	BossID      string `json:"bossId" binding:"required"`
}

// TurnRequest submits one turn action for a session. TargetID is optional and
// reserved until player attacks can strike minions directly.
type TurnRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
	Action    string `json:"action" binding:"required"`
	TargetID  string `json:"targetId"`
}

// TurnResponse is the envelope every turn submission returns. The embedded
// session carries the committed turn counter so clients can detect stale
// resubmits.
type TurnResponse struct {
	Success    bool                  `json:"success"`
	Session    *encounter.Session    `json:"session,omitempty"`
	TurnResult *encounter.TurnResult `json:"turnResult,omitempty"`
	Reward     *reward.Reward        `json:"reward,omitempty"`
	Message    string                `json:"message,omitempty"`
	Error      string                `json:"error,omitempty"`
}

// Start creates a new combat session.
func (h *EncounterHandler) Start(c *gin.Context) {
	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, TurnResponse{Success: false, Error: "invalid request body"})
		return
	}

	sess, err := h.turns.StartEncounter(c.Request.Context(), req.CharacterID, req.BossID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, TurnResponse{Success: true, Session: sess})
}

// Turn resolves one turn for an existing session.
func (h *EncounterHandler) Turn(c *gin.Context) {
	var req TurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, TurnResponse{Success: false, Error: "invalid request body"})
		return
	}

	out, err := h.turns.ResolveTurn(c.Request.Context(), req.SessionID, encounter.TurnInput{
		Action:   req.Action,
		TargetID: req.TargetID,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := TurnResponse{
		Success:    true,
		Session:    out.Session,
		TurnResult: out.Result,
		Reward:     out.Reward,
	}
	switch {
	case out.Result.Defeated:
		resp.Message = "Victory!"
	case out.Result.PlayerDefeated:
		resp.Message = "You have been defeated."
	case out.Result.Fled:
		resp.Message = "You escaped."
	}
	c.JSON(http.StatusOK, resp)
}

// Get returns the current session snapshot.
func (h *EncounterHandler) Get(c *gin.Context) {
	sess, err := h.turns.GetSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, TurnResponse{Success: true, Session: sess})
}

// respondError maps domain errors onto the response envelope. Not-found and
// stale-turn conditions are client-resolvable; everything else is opaque.
func (h *EncounterHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, encounter.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, TurnResponse{Success: false, Error: "session not found"})
	case errors.Is(err, postgres.ErrCharacterNotFound):
		c.JSON(http.StatusNotFound, TurnResponse{Success: false, Error: "character not found"})
	case errors.Is(err, service.ErrBossNotFound):
		c.JSON(http.StatusNotFound, TurnResponse{Success: false, Error: "boss not found"})
	case errors.Is(err, encounter.ErrStaleSession):
		c.JSON(http.StatusConflict, TurnResponse{
			Success: false,
			Error:   "another turn committed first; re-fetch the session and resubmit",
		})
	case errors.Is(err, encounter.ErrSessionExists):
		c.JSON(http.StatusConflict, TurnResponse{Success: false, Error: "session already exists"})
	default:
		h.logger.Error("turn request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, TurnResponse{Success: false, Error: "internal error"})
	}
}
