package wsshandler

import (
	"github.com/lijuuu/CTFArenaService/internal/engine"
	"github.com/lijuuu/CTFArenaService/internal/wss/broadcasts"
	wsstypes "github.com/lijuuu/CTFArenaService/internal/wss/types"
)

// JoinArenaHandler registers the user, binds it to the connection and hands
// back a session token for later events.
func JoinArenaHandler(ctx *wsstypes.WsContext) error {
	var payload wsstypes.JoinArenaPayload
	if err := decodePayload(ctx, &payload); err != nil {
		ctx.Log.Info(ctx.Ctx, "invalid join payload", "error", err)
		return broadcasts.SendErrorWithType(ctx.Client, wsstypes.JOIN_ARENA, engine.Code(engine.ErrInvalidInput), "Invalid payload format", nil)
	}

	user, err := ctx.State.Engine.Join(ctx.Ctx, payload.Username)
	if err != nil {
		ctx.Log.Info(ctx.Ctx, "join failed", "error", err)
		return broadcasts.SendEngineError(ctx.Client, wsstypes.JOIN_ARENA, err)
	}

	token, err := ctx.State.JwtManager.GenerateToken(user.Username)
	if err != nil {
		ctx.Log.Error(ctx.Ctx, "token generation failed", "user", user.Username, "error", err)
		return broadcasts.SendErrorWithType(ctx.Client, wsstypes.JOIN_ARENA, "INTERNAL", "Internal error", nil)
	}
	ctx.Client.Bind(user.Username)

	ctx.Log.Info(ctx.Ctx, "joined arena", "user", user.Username, "ip", ctx.Client.RemoteAddr())
	return broadcasts.SendOK(ctx.Client, wsstypes.JOIN_ARENA, "Joined arena successfully", map[string]any{
		"user":  user,
		"token": token,
	})
}
