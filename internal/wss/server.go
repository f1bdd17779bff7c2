package wss

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/lijuuu/CTFArenaService/internal/store"
	"github.com/lijuuu/CTFArenaService/internal/wss/broadcasts"
	wsshandler "github.com/lijuuu/CTFArenaService/internal/wss/handlers"
	"github.com/lijuuu/CTFArenaService/internal/wss/middleware"
	wsstypes "github.com/lijuuu/CTFArenaService/internal/wss/types"
)

// NewArenaDispatcher registers every arena event. Events that act on behalf
// of a user go through the auth middleware.
func NewArenaDispatcher(auth *middleware.AuthMiddleware) *Dispatcher {
	d := NewDispatcher()
	d.Register(wsstypes.PING_SERVER, wsshandler.PingHandler)
	d.Register(wsstypes.JOIN_ARENA, wsshandler.JoinArenaHandler)
	d.Register(wsstypes.CLAIM_CHALLENGE, auth.Require(wsshandler.ClaimChallengeHandler))
	d.Register(wsstypes.SUBMIT_FLAG, auth.Require(wsshandler.SubmitFlagHandler))
	d.Register(wsstypes.GET_LEADERBOARD, wsshandler.GetLeaderboardHandler)
	d.Register(wsstypes.REFETCH_STATE, wsshandler.RefetchStateHandler)
	return d
}

// NewUpgrader accepts any origin when allowed is empty; otherwise the Origin
// host must match one of the listed origins.
func NewUpgrader(allowed []string) *websocket.Upgrader {
	return &websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			if len(allowed) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			for _, a := range allowed {
				if strings.EqualFold(a, origin) || strings.EqualFold(a, u.Host) {
					return true
				}
			}
			return false
		},
	}
}

func WsHandler(dispatcher *Dispatcher, state *wsstypes.State, upgrader *websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			state.Log.Warn(r.Context(), "websocket upgrade failed", "error", err)
			return
		}

		client := wsstypes.NewClient(uuid.NewString(), conn)
		client.PrepareRead()
		log := state.Log.With("clientId", client.ID)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		state.AddClient(client)
		_, detach := state.Hub.Attach(func(snap store.Snapshot) {
			event, ok := broadcasts.SnapshotEvent(state.Engine, snap, time.Now())
			if !ok {
				return
			}
			if err := broadcasts.PushEvent(client, event); err != nil {
				log.Debug(ctx, "snapshot push failed", "collection", snap.Collection, "error", err)
			}
		})
		defer func() {
			detach()
			state.RemoveClient(client.ID)
			_ = client.Close()
			log.Info(ctx, "websocket closed", "user", client.Username())
		}()
		log.Info(ctx, "websocket connection established", "ip", client.RemoteAddr())

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Info(ctx, "websocket read error", "error", err)
				}
				return
			}

			var wsMsg wsstypes.WsMessage
			if err := json.Unmarshal(msg, &wsMsg); err != nil {
				_ = broadcasts.SendErrorWithType(client, wsstypes.UNKNOWN_EVENT, "INVALID_INPUT", "Invalid message format", nil)
				continue
			}
			if wsMsg.Payload == nil {
				wsMsg.Payload = map[string]any{}
			}

			requestID := uuid.NewString()
			wctx := &wsstypes.WsContext{
				Ctx:       ctx,
				Client:    client,
				Payload:   wsMsg.Payload,
				State:     state,
				Log:       log.With("requestId", requestID, "event", wsMsg.Type),
				RequestID: requestID,
			}

			if err := dispatcher.Dispatch(wsMsg.Type, wctx); err != nil {
				wctx.Log.Debug(ctx, "dispatch error", "error", err)
				if errors.Is(err, ErrUnknownEvent) {
					_ = broadcasts.SendErrorWithType(client, wsstypes.UNKNOWN_EVENT, "INVALID_INPUT", err.Error(), map[string]any{"events": dispatcher.Events()})
				}
			}
		}
	}
}
