package wsshandler

import (
	"github.com/lijuuu/CTFArenaService/internal/engine"
	"github.com/lijuuu/CTFArenaService/internal/model"
	"github.com/lijuuu/CTFArenaService/internal/wss/broadcasts"
	wsstypes "github.com/lijuuu/CTFArenaService/internal/wss/types"
)

func GetLeaderboardHandler(ctx *wsstypes.WsContext) error {
	var payload wsstypes.GetLeaderboardPayload
	if err := decodePayload(ctx, &payload); err != nil {
		return broadcasts.SendErrorWithType(ctx.Client, wsstypes.GET_LEADERBOARD, engine.Code(engine.ErrInvalidInput), "Invalid payload format", nil)
	}

	rows, err := ctx.State.Engine.Leaderboard(ctx.Ctx, payload.Limit)
	if err != nil {
		ctx.Log.Warn(ctx.Ctx, "leaderboard read failed", "error", err)
		return broadcasts.SendEngineError(ctx.Client, wsstypes.GET_LEADERBOARD, err)
	}
	return broadcasts.SendOK(ctx.Client, wsstypes.GET_LEADERBOARD, "", model.LeaderboardSnapshotPayload{Leaderboard: rows})
}
