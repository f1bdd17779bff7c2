package middleware

import (
	"github.com/lijuuu/CTFArenaService/internal/engine"
	"github.com/lijuuu/CTFArenaService/internal/jwt"
	"github.com/lijuuu/CTFArenaService/internal/wss/broadcasts"
	wsstypes "github.com/lijuuu/CTFArenaService/internal/wss/types"
)

// AuthMiddleware handles JWT authentication for WebSocket events
type AuthMiddleware struct {
	jwtManager *jwt.JWTManager
}

func NewAuthMiddleware(jwtManager *jwt.JWTManager) *AuthMiddleware {
	return &AuthMiddleware{
		jwtManager: jwtManager,
	}
}

// Authenticate resolves the acting user from the payload token or, failing
// that, from the user bound to the connection by JOIN_ARENA.
func (m *AuthMiddleware) Authenticate(ctx *wsstypes.WsContext) error {
	if token, _ := ctx.Payload["token"].(string); token != "" {
		claims, err := m.jwtManager.ValidateToken(token)
		if err != nil {
			ctx.Log.Info(ctx.Ctx, "jwt validation failed", "error", err)
			return engine.ErrUnauthorized
		}
		ctx.Claims = claims
		ctx.Username = claims.Username
		return nil
	}
	if username := ctx.Client.Username(); username != "" {
		ctx.Username = username
		return nil
	}
	return engine.ErrUnauthorized
}

// Require wraps next so it only runs for authenticated events.
func (m *AuthMiddleware) Require(next func(*wsstypes.WsContext) error) func(*wsstypes.WsContext) error {
	return func(ctx *wsstypes.WsContext) error {
		if err := m.Authenticate(ctx); err != nil {
			_ = broadcasts.SendErrorWithType(ctx.Client, wsstypes.AUTH_ERROR, engine.Code(err), "Invalid or missing token", nil)
			return err
		}
		return next(ctx)
	}
}
