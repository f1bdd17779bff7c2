package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lijuuu/CTFArenaService/internal/catalog"
	"github.com/lijuuu/CTFArenaService/internal/engine"
	"github.com/lijuuu/CTFArenaService/internal/jwt"
	"github.com/lijuuu/CTFArenaService/internal/logging"
	"github.com/lijuuu/CTFArenaService/internal/model"
	"github.com/lijuuu/CTFArenaService/internal/store"
)

type fakeStandings struct {
	latest *model.Standings
	err    error
}

func (f *fakeStandings) LatestStandings(context.Context) (*model.Standings, error) {
	return f.latest, f.err
}

type recordingNotifier struct {
	events []string
}

func (r *recordingNotifier) ChallengeClaimed(challengeID int, username string) {
	r.events = append(r.events, fmt.Sprintf("claimed %d %s", challengeID, username))
}

func (r *recordingNotifier) FlagCaptured(challengeID int, username string, points int) {
	r.events = append(r.events, fmt.Sprintf("captured %d %s %d", challengeID, username, points))
}

func (r *recordingNotifier) ArenaReset() {
	r.events = append(r.events, "reset")
}

type testServer struct {
	router   *gin.Engine
	jwt      *jwt.JWTManager
	notifier *recordingNotifier
	archive  *fakeStandings
	engine   *engine.Engine
	memStore *store.MemoryStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := store.NewMemoryStore()
	e := engine.New(s, catalog.Default())
	require.NoError(t, e.SeedChallenges(context.Background()))
	jm := jwt.NewJWTManager("secret", "letmein", time.Hour)
	notifier := &recordingNotifier{}
	archive := &fakeStandings{}

	h := NewHandler(e, jm, archive, notifier)
	return &testServer{
		router:   NewRouter(h, logging.Nop(), nil),
		jwt:      jm,
		notifier: notifier,
		archive:  archive,
		engine:   e,
		memStore: s,
	}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) (int, model.GenericResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	var resp model.GenericResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return w.Code, resp
}

func (ts *testServer) join(t *testing.T, username string) string {
	t.Helper()
	code, resp := ts.do(t, http.MethodPost, "/api/v1/join", "", map[string]string{"username": username})
	require.Equal(t, http.StatusOK, code)
	token, _ := resp.Payload["token"].(string)
	require.NotEmpty(t, token)
	return token
}

func (ts *testServer) adminToken(t *testing.T) string {
	t.Helper()
	code, resp := ts.do(t, http.MethodPost, "/api/v1/admin/token", "", map[string]string{"key": "letmein"})
	require.Equal(t, http.StatusOK, code)
	return resp.Payload["token"].(string)
}

func TestJoinAndList(t *testing.T) {
	ts := newTestServer(t)
	ts.join(t, "alice")

	code, resp := ts.do(t, http.MethodPost, "/api/v1/join", "", map[string]string{"username": "bad/name"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "INVALID_INPUT", resp.Error.ErrorType)

	code, resp = ts.do(t, http.MethodGet, "/api/v1/challenges", "", nil)
	require.Equal(t, http.StatusOK, code)
	raw, _ := json.Marshal(resp.Payload)
	assert.NotContains(t, string(raw), "CTF{")

	code, resp = ts.do(t, http.MethodGet, "/api/v1/users", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, resp.Payload["users"], 1)
}

func TestClaimAndSubmit(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.join(t, "alice")
	bob := ts.join(t, "bob")

	code, _ := ts.do(t, http.MethodPost, "/api/v1/challenges/7/claim", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = ts.do(t, http.MethodPost, "/api/v1/challenges/7/claim", alice, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = ts.do(t, http.MethodPost, "/api/v1/challenges/7/claim", alice, nil)
	require.Equal(t, http.StatusOK, code)

	code, resp := ts.do(t, http.MethodPost, "/api/v1/challenges/7/claim", bob, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "CONFLICT", resp.Error.ErrorType)
	assert.Equal(t, "alice", resp.Payload["occupiedBy"])

	code, resp = ts.do(t, http.MethodPost, "/api/v1/challenges/7/submit", alice, map[string]string{"flag": "CTF{easy_caesar_one}"})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "INCORRECT_FLAG", resp.Error.ErrorType)

	code, _ = ts.do(t, http.MethodPost, "/api/v1/challenges/7/submit", alice, map[string]string{"flag": "CTF{EASY_CAESAR_ONE}"})
	require.Equal(t, http.StatusOK, code)

	code, resp = ts.do(t, http.MethodPost, "/api/v1/challenges/7/submit", alice, map[string]string{"flag": "CTF{EASY_CAESAR_ONE}"})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "ALREADY_COMPLETED", resp.Error.ErrorType)
	assert.Equal(t, []string{"claimed 7 alice", "captured 7 alice 50"}, ts.notifier.events)

	code, _ = ts.do(t, http.MethodPost, "/api/v1/challenges/99/claim", alice, nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = ts.do(t, http.MethodPost, "/api/v1/challenges/abc/claim", alice, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, resp = ts.do(t, http.MethodGet, "/api/v1/leaderboard?limit=1", "", nil)
	require.Equal(t, http.StatusOK, code)
	rows := resp.Payload["leaderboard"].([]any)
	require.Len(t, rows, 1)
	top := rows[0].(map[string]any)
	assert.Equal(t, "alice", top["username"])
	assert.Equal(t, float64(50), top["score"])

	code, resp = ts.do(t, http.MethodGet, "/api/v1/challenges/states", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, resp.Payload["challenges"], 11)
}

func TestAdminRoutes(t *testing.T) {
	ts := newTestServer(t)
	alice := ts.join(t, "alice")
	_, err := ts.engine.Submit(context.Background(), 9, "alice", "CTF{EASY_CAESAR_THREE}")
	require.NoError(t, err)

	code, _ := ts.do(t, http.MethodPost, "/api/v1/admin/token", "", map[string]string{"key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = ts.do(t, http.MethodPost, "/api/v1/admin/reset", alice, nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	admin := ts.adminToken(t)

	require.NoError(t, ts.memStore.Update(context.Background(), "leaderboard/alice", map[string]any{"score": 1234}))
	code, _ = ts.do(t, http.MethodPost, "/api/v1/admin/recompute", admin, nil)
	require.Equal(t, http.StatusOK, code)
	rows, err := ts.engine.Leaderboard(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 50, rows[0].Score)

	code, _ = ts.do(t, http.MethodPost, "/api/v1/admin/reset", admin, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []string{"reset"}, ts.notifier.events)
	code, resp := ts.do(t, http.MethodGet, "/api/v1/users", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, resp.Payload["users"])

	code, _ = ts.do(t, http.MethodGet, "/api/v1/admin/standings/latest", admin, nil)
	assert.Equal(t, http.StatusNotFound, code)

	ts.archive.latest = &model.Standings{ArchivedAt: time.Now(), Rows: []model.LeaderboardRow{{Rank: 1, Username: "alice", Score: 50}}}
	code, _ = ts.do(t, http.MethodGet, "/api/v1/admin/standings/latest", admin, nil)
	assert.Equal(t, http.StatusOK, code)

	ts.archive.latest, ts.archive.err = nil, errors.New("mongo down")
	code, resp = ts.do(t, http.MethodGet, "/api/v1/admin/standings/latest", admin, nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "STORE_UNAVAILABLE", resp.Error.ErrorType)
}

func TestStatusFor(t *testing.T) {
	unavailable := fmt.Errorf("%w: timeout", engine.ErrStoreUnavailable)
	cases := map[error]int{
		engine.ErrNotFound:                   http.StatusNotFound,
		&engine.ConflictError{Occupant: "x"}: http.StatusConflict,
		engine.ErrAlreadyCompleted:           http.StatusConflict,
		engine.ErrIncorrectFlag:              http.StatusUnprocessableEntity,
		engine.ErrInvalidInput:               http.StatusBadRequest,
		engine.ErrUnauthorized:               http.StatusUnauthorized,
		unavailable:                          http.StatusServiceUnavailable,
	}
	for err, want := range cases {
		assert.Equal(t, want, StatusFor(err), err.Error())
	}
}
