package wsshandler

import (
	"time"

	"github.com/lijuuu/CTFArenaService/internal/store"
	"github.com/lijuuu/CTFArenaService/internal/wss/broadcasts"
	wsstypes "github.com/lijuuu/CTFArenaService/internal/wss/types"
)

// RefetchStateHandler resends the latest snapshot of every collection, read
// straight from the store when the hub has not seen one yet.
func RefetchStateHandler(ctx *wsstypes.WsContext) error {
	now := time.Now()
	for _, collection := range store.Collections {
		snap, ok := ctx.State.Hub.Snapshot(collection)
		if !ok {
			var err error
			snap, err = ctx.State.Engine.Snapshot(ctx.Ctx, collection)
			if err != nil {
				return broadcasts.SendEngineError(ctx.Client, wsstypes.REFETCH_STATE, err)
			}
		}
		event, ok := broadcasts.SnapshotEvent(ctx.State.Engine, snap, now)
		if !ok {
			continue
		}
		if err := broadcasts.PushEvent(ctx.Client, event); err != nil {
			return err
		}
	}
	return nil
}
