package wss

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lijuuu/CTFArenaService/internal/catalog"
	"github.com/lijuuu/CTFArenaService/internal/engine"
	"github.com/lijuuu/CTFArenaService/internal/jwt"
	"github.com/lijuuu/CTFArenaService/internal/logging"
	"github.com/lijuuu/CTFArenaService/internal/model"
	"github.com/lijuuu/CTFArenaService/internal/state"
	"github.com/lijuuu/CTFArenaService/internal/store"
	"github.com/lijuuu/CTFArenaService/internal/wss/middleware"
	wsstypes "github.com/lijuuu/CTFArenaService/internal/wss/types"
)

type envelope struct {
	Type    string          `json:"type"`
	Status  string          `json:"status"`
	Payload json.RawMessage `json:"payload"`
	Error   *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

type arena struct {
	server *httptest.Server
	engine *engine.Engine
	jwt    *jwt.JWTManager
}

func newArena(t *testing.T) *arena {
	t.Helper()
	s := store.NewMemoryStore()
	e := engine.New(s, catalog.Default())
	hub := state.NewHub(s, e, logging.Nop())
	hub.OnSnapshot(store.CollectionChallenges, e.OnChallenges)
	require.NoError(t, hub.Start(context.Background()))
	t.Cleanup(hub.Close)

	jm := jwt.NewJWTManager("test-secret", "admin", time.Hour)
	st := wsstypes.NewState(e, hub, jm, logging.Nop())
	d := NewArenaDispatcher(middleware.NewAuthMiddleware(jm))
	srv := httptest.NewServer(WsHandler(d, st, NewUpgrader(nil)))
	t.Cleanup(srv.Close)
	return &arena{server: srv, engine: e, jwt: jm}
}

func (a *arena) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(a.server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, eventType string, payload map[string]any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"type": eventType, "payload": payload}))
}

// readUntil skips pushes until a message of the wanted type that satisfies
// match arrives.
func readUntil(t *testing.T, conn *websocket.Conn, eventType string, match func(envelope) bool) envelope {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	require.NoError(t, conn.SetReadDeadline(deadline))
	for {
		var env envelope
		require.NoError(t, conn.ReadJSON(&env), "waiting for %s", eventType)
		if env.Type == eventType && (match == nil || match(env)) {
			return env
		}
	}
}

func TestPushesSnapshotsOnConnect(t *testing.T) {
	a := newArena(t)
	conn := a.dial(t)

	env := readUntil(t, conn, wsstypes.CHALLENGES_SNAPSHOT, func(e envelope) bool {
		var p model.ChallengesSnapshotPayload
		return json.Unmarshal(e.Payload, &p) == nil && len(p.Challenges) == 11
	})
	assert.NotContains(t, string(env.Payload), "CTF{")
	readUntil(t, conn, wsstypes.LEADERBOARD_SNAPSHOT, nil)
	readUntil(t, conn, wsstypes.USERS_SNAPSHOT, nil)
}

func TestArenaFlow(t *testing.T) {
	a := newArena(t)
	alice := a.dial(t)
	bob := a.dial(t)
	readUntil(t, bob, wsstypes.USERS_SNAPSHOT, nil)

	send(t, alice, wsstypes.JOIN_ARENA, map[string]any{"username": "alice"})
	joined := readUntil(t, alice, wsstypes.JOIN_ARENA, nil)
	require.Equal(t, "ok", joined.Status)
	var joinPayload struct {
		Token string     `json:"token"`
		User  model.User `json:"user"`
	}
	require.NoError(t, json.Unmarshal(joined.Payload, &joinPayload))
	assert.Equal(t, "alice", joinPayload.User.Username)
	assert.NotEmpty(t, joinPayload.Token)

	send(t, alice, wsstypes.CLAIM_CHALLENGE, map[string]any{"challengeId": 7})
	claimed := readUntil(t, alice, wsstypes.CLAIM_CHALLENGE, nil)
	require.Equal(t, "ok", claimed.Status)
	readUntil(t, bob, wsstypes.CHALLENGE_CLAIMED, nil)

	bobToken, err := a.jwt.GenerateToken("bob")
	require.NoError(t, err)
	send(t, bob, wsstypes.CLAIM_CHALLENGE, map[string]any{"challengeId": 7, "token": bobToken})
	conflict := readUntil(t, bob, wsstypes.CLAIM_CHALLENGE, nil)
	require.Equal(t, "error", conflict.Status)
	require.NotNil(t, conflict.Error)
	assert.Equal(t, "CONFLICT", conflict.Error.Code)
	assert.Equal(t, "alice", conflict.Error.Details["occupiedBy"])

	send(t, alice, wsstypes.SUBMIT_FLAG, map[string]any{"challengeId": 7, "flag": "CTF{WRONG}"})
	wrong := readUntil(t, alice, wsstypes.SUBMIT_FLAG, nil)
	require.NotNil(t, wrong.Error)
	assert.Equal(t, "INCORRECT_FLAG", wrong.Error.Code)
	assert.NotContains(t, wrong.Error.Message, "EASY_CAESAR")

	send(t, alice, wsstypes.CLAIM_CHALLENGE, map[string]any{"challengeId": 7})
	reclaimed := readUntil(t, alice, wsstypes.CLAIM_CHALLENGE, nil)
	require.Equal(t, "ok", reclaimed.Status)

	send(t, alice, wsstypes.SUBMIT_FLAG, map[string]any{"challengeId": 7, "flag": "CTF{EASY_CAESAR_ONE}"})
	solved := readUntil(t, alice, wsstypes.SUBMIT_FLAG, nil)
	require.Equal(t, "ok", solved.Status)

	// bob sees the capture and the new standings, but no second claim
	var captured, ranked bool
	require.NoError(t, bob.SetReadDeadline(time.Now().Add(3*time.Second)))
	for !captured || !ranked {
		var env envelope
		require.NoError(t, bob.ReadJSON(&env))
		switch env.Type {
		case wsstypes.CHALLENGE_CLAIMED:
			t.Fatal("re-claim by the occupant was broadcast")
		case wsstypes.FLAG_CAPTURED:
			captured = true
		case wsstypes.LEADERBOARD_SNAPSHOT:
			var p model.LeaderboardSnapshotPayload
			if json.Unmarshal(env.Payload, &p) == nil && len(p.Leaderboard) > 0 {
				top := p.Leaderboard[0]
				ranked = ranked || (top.Username == "alice" && top.Score == 50 && top.Marker == "🥇")
			}
		}
	}

	send(t, bob, wsstypes.GET_LEADERBOARD, map[string]any{"limit": 1})
	board := readUntil(t, bob, wsstypes.GET_LEADERBOARD, nil)
	var rows model.LeaderboardSnapshotPayload
	require.NoError(t, json.Unmarshal(board.Payload, &rows))
	require.Len(t, rows.Leaderboard, 1)
	assert.Equal(t, 50, rows.Leaderboard[0].Score)
}

func TestUnauthenticatedClaim(t *testing.T) {
	a := newArena(t)
	conn := a.dial(t)

	send(t, conn, wsstypes.CLAIM_CHALLENGE, map[string]any{"challengeId": 1})
	env := readUntil(t, conn, wsstypes.AUTH_ERROR, nil)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	send(t, conn, wsstypes.CLAIM_CHALLENGE, map[string]any{"challengeId": 1, "token": "garbage"})
	readUntil(t, conn, wsstypes.AUTH_ERROR, nil)
}

func TestPingRefetchAndUnknown(t *testing.T) {
	a := newArena(t)
	conn := a.dial(t)

	send(t, conn, wsstypes.PING_SERVER, nil)
	pong := readUntil(t, conn, wsstypes.PING_SERVER, nil)
	assert.Equal(t, "ok", pong.Status)

	send(t, conn, "NOPE", nil)
	unknown := readUntil(t, conn, wsstypes.UNKNOWN_EVENT, nil)
	assert.Equal(t, "error", unknown.Status)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	readUntil(t, conn, wsstypes.UNKNOWN_EVENT, nil)

	send(t, conn, wsstypes.REFETCH_STATE, nil)
	readUntil(t, conn, wsstypes.USERS_SNAPSHOT, nil)
}

func TestStalledClientDoesNotBlockOthers(t *testing.T) {
	a := newArena(t)
	a.dial(t) // connected but never reads
	conn := a.dial(t)

	for i := 0; i < 600; i++ {
		send(t, conn, wsstypes.JOIN_ARENA, map[string]any{"username": fmt.Sprintf("user%03d", i)})
		readUntil(t, conn, wsstypes.JOIN_ARENA, nil)
	}

	send(t, conn, wsstypes.CLAIM_CHALLENGE, map[string]any{"challengeId": 1})
	env := readUntil(t, conn, wsstypes.CLAIM_CHALLENGE, nil)
	assert.Equal(t, "ok", env.Status)
}

func TestUpgraderOrigins(t *testing.T) {
	open := NewUpgrader(nil)
	restricted := NewUpgrader([]string{"arena.example.com", "http://localhost:3000"})

	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}

	assert.True(t, open.CheckOrigin(req("https://evil.test")))
	assert.True(t, restricted.CheckOrigin(req("https://arena.example.com")))
	assert.True(t, restricted.CheckOrigin(req("http://localhost:3000")))
	assert.True(t, restricted.CheckOrigin(req("")))
	assert.False(t, restricted.CheckOrigin(req("https://evil.test")))
}
