package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lijuuu/CTFArenaService/internal/engine"
	"github.com/lijuuu/CTFArenaService/internal/jwt"
	"github.com/lijuuu/CTFArenaService/internal/logging"
)

const (
	ctxUsername = "username"
	ctxLogger   = "logger"
)

// RequestLogger tags every request with an id and logs its outcome.
func RequestLogger(log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		reqLog := log.With("requestId", requestID)
		c.Set(ctxLogger, reqLog)
		c.Header("X-Request-ID", requestID)

		start := time.Now()
		c.Next()

		reqLog.Info(c.Request.Context(), "http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"took", time.Since(start).String(),
		)
	}
}

// JWTAuthMiddleware requires a participant token in the Authorization header.
func JWTAuthMiddleware(jm *jwt.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := jm.ValidateToken(c.GetHeader("Authorization"))
		if err != nil {
			WriteJSONError(c, http.StatusUnauthorized, engine.Code(engine.ErrUnauthorized), "invalid or missing token")
			c.Abort()
			return
		}
		c.Set(ctxUsername, claims.Username)
		c.Next()
	}
}

// AdminAuthMiddleware requires an admin token.
func AdminAuthMiddleware(jm *jwt.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := jm.ValidateAdminToken(c.GetHeader("Authorization")); err != nil {
			WriteJSONError(c, http.StatusUnauthorized, engine.Code(engine.ErrUnauthorized), "admin token required")
			c.Abort()
			return
		}
		c.Next()
	}
}

func requestLog(c *gin.Context) logging.Logger {
	if l, ok := c.Get(ctxLogger); ok {
		if log, ok := l.(logging.Logger); ok {
			return log
		}
	}
	return logging.Nop()
}
