package wsshandler

import (
	"github.com/lijuuu/CTFArenaService/internal/engine"
	"github.com/lijuuu/CTFArenaService/internal/wss/broadcasts"
	wsstypes "github.com/lijuuu/CTFArenaService/internal/wss/types"
)

func SubmitFlagHandler(ctx *wsstypes.WsContext) error {
	var payload wsstypes.SubmitFlagPayload
	if err := decodePayload(ctx, &payload); err != nil {
		return broadcasts.SendErrorWithType(ctx.Client, wsstypes.SUBMIT_FLAG, engine.Code(engine.ErrInvalidInput), "Invalid payload format", nil)
	}

	st, err := ctx.State.Engine.Submit(ctx.Ctx, payload.ChallengeID, ctx.Username, payload.Flag)
	if err != nil {
		return broadcasts.SendEngineError(ctx.Client, wsstypes.SUBMIT_FLAG, err)
	}

	broadcasts.BroadcastFlagCaptured(ctx.State, payload.ChallengeID, ctx.Username, st.Score)
	return broadcasts.SendOK(ctx.Client, wsstypes.SUBMIT_FLAG, "Flag captured", map[string]any{
		"challengeId": payload.ChallengeID,
		"state":       st,
	})
}
