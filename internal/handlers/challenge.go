package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lijuuu/CTFArenaService/internal/engine"
	"github.com/lijuuu/CTFArenaService/internal/jwt"
	"github.com/lijuuu/CTFArenaService/internal/model"
)

// StandingsReader serves archived standings.
type StandingsReader interface {
	LatestStandings(ctx context.Context) (*model.Standings, error)
}

// Notifier announces arena events to live observers.
type Notifier interface {
	ChallengeClaimed(challengeID int, username string)
	FlagCaptured(challengeID int, username string, points int)
	ArenaReset()
}

type Handler struct {
	engine    *engine.Engine
	jwt       *jwt.JWTManager
	standings StandingsReader
	notifier  Notifier
}

func NewHandler(e *engine.Engine, jm *jwt.JWTManager, standings StandingsReader, notifier Notifier) *Handler {
	return &Handler{engine: e, jwt: jm, standings: standings, notifier: notifier}
}

type joinRequest struct {
	Username string `json:"username"`
}

type submitRequest struct {
	Flag string `json:"flag"`
}

type adminTokenRequest struct {
	Key string `json:"key"`
}

func (h *Handler) Join(c *gin.Context) {
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		WriteEngineError(c, engine.ErrInvalidInput)
		return
	}
	user, err := h.engine.Join(c.Request.Context(), req.Username)
	if err != nil {
		WriteEngineError(c, err)
		return
	}
	token, err := h.jwt.GenerateToken(user.Username)
	if err != nil {
		requestLog(c).Error(c.Request.Context(), "token generation failed", "error", err)
		WriteJSONError(c, http.StatusInternalServerError, "INTERNAL", "could not issue token")
		return
	}
	WriteJSONResponse(c, http.StatusOK, map[string]any{"user": user, "token": token})
}

func (h *Handler) ListChallenges(c *gin.Context) {
	WriteJSONResponse(c, http.StatusOK, map[string]any{"challenges": h.engine.Catalog().All()})
}

func (h *Handler) ChallengeStates(c *gin.Context) {
	views, err := h.engine.Challenges(c.Request.Context())
	if err != nil {
		WriteEngineError(c, err)
		return
	}
	WriteJSONResponse(c, http.StatusOK, map[string]any{"challenges": views})
}

func (h *Handler) Claim(c *gin.Context) {
	id, ok := challengeID(c)
	if !ok {
		return
	}
	user := c.GetString(ctxUsername)
	st, changed, err := h.engine.Claim(c.Request.Context(), id, user)
	if err != nil {
		requestLog(c).Info(c.Request.Context(), "claim rejected", "challengeId", id, "user", user, "reason", engine.Code(err))
		WriteEngineError(c, err)
		return
	}
	if changed && h.notifier != nil {
		h.notifier.ChallengeClaimed(id, user)
	}
	WriteJSONResponse(c, http.StatusOK, map[string]any{"challengeId": id, "state": st})
}

func (h *Handler) Submit(c *gin.Context) {
	id, ok := challengeID(c)
	if !ok {
		return
	}
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		WriteEngineError(c, engine.ErrInvalidInput)
		return
	}
	user := c.GetString(ctxUsername)
	st, err := h.engine.Submit(c.Request.Context(), id, user, req.Flag)
	if err != nil {
		WriteEngineError(c, err)
		return
	}
	if h.notifier != nil {
		h.notifier.FlagCaptured(id, user, st.Score)
	}
	WriteJSONResponse(c, http.StatusOK, map[string]any{"challengeId": id, "state": st})
}

func (h *Handler) Leaderboard(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil || limit < 0 {
		WriteEngineError(c, engine.ErrInvalidInput)
		return
	}
	rows, err := h.engine.Leaderboard(c.Request.Context(), limit)
	if err != nil {
		WriteEngineError(c, err)
		return
	}
	WriteJSONResponse(c, http.StatusOK, map[string]any{"leaderboard": rows})
}

func (h *Handler) Users(c *gin.Context) {
	users, err := h.engine.Users(c.Request.Context())
	if err != nil {
		WriteEngineError(c, err)
		return
	}
	WriteJSONResponse(c, http.StatusOK, map[string]any{"users": users})
}

func (h *Handler) AdminToken(c *gin.Context) {
	var req adminTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		WriteEngineError(c, engine.ErrInvalidInput)
		return
	}
	token, err := h.jwt.GenerateAdminToken(req.Key)
	if err != nil {
		requestLog(c).Warn(c.Request.Context(), "admin token refused")
		WriteEngineError(c, engine.ErrUnauthorized)
		return
	}
	WriteJSONResponse(c, http.StatusOK, map[string]any{"token": token})
}

func (h *Handler) Recompute(c *gin.Context) {
	if err := h.engine.ReconcileAll(c.Request.Context()); err != nil {
		WriteEngineError(c, err)
		return
	}
	WriteJSONResponse(c, http.StatusOK, map[string]any{"recomputed": true})
}

func (h *Handler) Reset(c *gin.Context) {
	if err := h.engine.Reset(c.Request.Context()); err != nil {
		WriteEngineError(c, err)
		return
	}
	if h.notifier != nil {
		h.notifier.ArenaReset()
	}
	requestLog(c).Info(c.Request.Context(), "arena reset by admin")
	WriteJSONResponse(c, http.StatusOK, map[string]any{"reset": true})
}

func (h *Handler) LatestStandings(c *gin.Context) {
	if h.standings == nil {
		WriteEngineError(c, engine.ErrNotFound)
		return
	}
	standings, err := h.standings.LatestStandings(c.Request.Context())
	if err != nil {
		requestLog(c).Warn(c.Request.Context(), "reading standings archive failed", "error", err)
		WriteEngineError(c, engine.ErrStoreUnavailable)
		return
	}
	if standings == nil {
		WriteEngineError(c, engine.ErrNotFound)
		return
	}
	WriteJSONResponse(c, http.StatusOK, map[string]any{"standings": standings})
}

func challengeID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		WriteEngineError(c, engine.ErrInvalidInput)
		return 0, false
	}
	return id, true
}
