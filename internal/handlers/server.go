package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lijuuu/CTFArenaService/internal/logging"
)

// NewRouter wires the HTTP API. ws is mounted at /ws when non-nil.
func NewRouter(h *Handler, log logging.Logger, ws http.Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(log))

	api := r.Group("/api/v1")
	{
		api.POST("/join", h.Join)
		api.GET("/challenges", h.ListChallenges)
		api.GET("/challenges/states", h.ChallengeStates)
		api.GET("/leaderboard", h.Leaderboard)
		api.GET("/users", h.Users)

		participant := api.Group("/challenges")
		participant.Use(JWTAuthMiddleware(h.jwt))
		{
			participant.POST("/:id/claim", h.Claim)
			participant.POST("/:id/submit", h.Submit)
		}

		api.POST("/admin/token", h.AdminToken)
		admin := api.Group("/admin")
		admin.Use(AdminAuthMiddleware(h.jwt))
		{
			admin.POST("/recompute", h.Recompute)
			admin.POST("/reset", h.Reset)
			admin.GET("/standings/latest", h.LatestStandings)
		}
	}

	if ws != nil {
		r.GET("/ws", gin.WrapH(ws))
	}
	return r
}
