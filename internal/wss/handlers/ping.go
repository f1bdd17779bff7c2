package wsshandler

import (
	"time"

	"github.com/lijuuu/CTFArenaService/internal/wss/broadcasts"
	wsstypes "github.com/lijuuu/CTFArenaService/internal/wss/types"
)

func PingHandler(ctx *wsstypes.WsContext) error {
	return broadcasts.SendOK(ctx.Client, wsstypes.PING_SERVER, "pong", map[string]any{
		"time": time.Now().UnixMilli(),
	})
}
