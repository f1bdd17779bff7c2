package wsshandler

import (
	"github.com/lijuuu/CTFArenaService/internal/engine"
	"github.com/lijuuu/CTFArenaService/internal/wss/broadcasts"
	wsstypes "github.com/lijuuu/CTFArenaService/internal/wss/types"
)

func ClaimChallengeHandler(ctx *wsstypes.WsContext) error {
	var payload wsstypes.ClaimChallengePayload
	if err := decodePayload(ctx, &payload); err != nil {
		return broadcasts.SendErrorWithType(ctx.Client, wsstypes.CLAIM_CHALLENGE, engine.Code(engine.ErrInvalidInput), "Invalid payload format", nil)
	}

	st, changed, err := ctx.State.Engine.Claim(ctx.Ctx, payload.ChallengeID, ctx.Username)
	if err != nil {
		ctx.Log.Info(ctx.Ctx, "claim rejected", "challengeId", payload.ChallengeID, "user", ctx.Username, "reason", engine.Code(err))
		return broadcasts.SendEngineError(ctx.Client, wsstypes.CLAIM_CHALLENGE, err)
	}

	if changed {
		broadcasts.BroadcastChallengeClaimed(ctx.State, payload.ChallengeID, ctx.Username)
	}
	return broadcasts.SendOK(ctx.Client, wsstypes.CLAIM_CHALLENGE, "Challenge claimed", map[string]any{
		"challengeId": payload.ChallengeID,
		"state":       st,
	})
}
