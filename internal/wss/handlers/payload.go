package wsshandler

import (
	"encoding/json"

	wsstypes "github.com/lijuuu/CTFArenaService/internal/wss/types"
)

func decodePayload(ctx *wsstypes.WsContext, v any) error {
	raw, err := json.Marshal(ctx.Payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
