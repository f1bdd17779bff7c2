// Package engine implements challenge claiming, flag submission and score
// reconciliation on top of the shared store.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lijuuu/CTFArenaService/internal/catalog"
	"github.com/lijuuu/CTFArenaService/internal/leaderboard"
	"github.com/lijuuu/CTFArenaService/internal/logging"
	"github.com/lijuuu/CTFArenaService/internal/model"
	"github.com/lijuuu/CTFArenaService/internal/store"
)

const (
	maxUsernameLen = 32
	// attempts for read-verify-write and for verified leaderboard writes
	maxVerifyAttempts = 5
)

// AttemptRecorder persists submit outcomes.
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, attempt model.Attempt) error
}

// StandingsArchiver keeps the leaderboard as it was before a reset.
type StandingsArchiver interface {
	ArchiveStandings(ctx context.Context, standings model.Standings) error
}

type nopRecorder struct{}

func (nopRecorder) RecordAttempt(context.Context, model.Attempt) error { return nil }

type nopArchiver struct{}

func (nopArchiver) ArchiveStandings(context.Context, model.Standings) error { return nil }

type Engine struct {
	store    store.Store
	tx       store.Transactor
	catalog  *catalog.Catalog
	attempts AttemptRecorder
	archive  StandingsArchiver
	log      logging.Logger

	// pendingFull is set when a reconciliation write failed; the next
	// trigger runs a full recompute.
	pendingFull atomic.Bool

	// reconcileLocks serializes leaderboard writes per user.
	reconcileLocks *keyedMutex

	seenMu   sync.Mutex
	seen     map[int]string
	seenInit bool
}

type Option func(*Engine)

func WithAttemptRecorder(r AttemptRecorder) Option {
	return func(e *Engine) { e.attempts = r }
}

func WithArchiver(a StandingsArchiver) Option {
	return func(e *Engine) { e.archive = a }
}

func WithLogger(l logging.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithoutConditionalWrites forces the read-verify-write path even when the
// store supports transactions.
func WithoutConditionalWrites() Option {
	return func(e *Engine) { e.tx = nil }
}

func New(s store.Store, c *catalog.Catalog, opts ...Option) *Engine {
	e := &Engine{
		store:    s,
		catalog:  c,
		attempts: nopRecorder{},
		archive:  nopArchiver{},
		log:      logging.Nop(),
		seen:     make(map[int]string),

		reconcileLocks: newKeyedMutex(),
	}
	if tx, ok := s.(store.Transactor); ok {
		e.tx = tx
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.With("component", "engine")
	return e
}

func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// Join registers username (or refreshes a returning user) and makes sure a
// leaderboard entry exists.
func (e *Engine) Join(ctx context.Context, username string) (model.User, error) {
	name, err := normalizeUsername(username)
	if err != nil {
		return model.User{}, err
	}
	now, err := e.now(ctx)
	if err != nil {
		return model.User{}, err
	}

	var user model.User
	err = e.conditional(ctx, store.Path(store.CollectionUsers, name), func(current json.RawMessage) (any, error) {
		user = model.User{Username: name, JoinedAt: now, LastActivity: now}
		if len(current) > 0 {
			var existing model.User
			if err := json.Unmarshal(current, &existing); err == nil && existing.JoinedAt != 0 {
				user.JoinedAt = existing.JoinedAt
			}
		}
		return user, nil
	})
	if err != nil {
		return model.User{}, storeErr(err)
	}

	err = e.conditional(ctx, store.Path(store.CollectionLeaderboard, name), func(current json.RawMessage) (any, error) {
		if len(current) > 0 {
			return nil, nil
		}
		return model.LeaderboardEntry{Username: name, Flags: []int{}, LastActivity: now}, nil
	})
	if err != nil {
		return model.User{}, storeErr(err)
	}

	if _, err := e.ReconcileUser(ctx, name); err != nil {
		e.log.Warn(ctx, "reconcile after join failed", "user", name, "error", err)
	}
	e.log.Info(ctx, "user joined", "user", name)
	return user, nil
}

// SeedChallenges creates the initial state for every catalog challenge that
// has no record yet. Existing records are left alone, so concurrent seeding
// is harmless.
func (e *Engine) SeedChallenges(ctx context.Context) error {
	for _, id := range e.catalog.IDs() {
		err := e.conditional(ctx, challengePath(id), func(current json.RawMessage) (any, error) {
			if len(current) > 0 {
				return nil, nil
			}
			return model.InitialState(), nil
		})
		if err != nil {
			return storeErr(err)
		}
	}
	return nil
}

// Reset archives the current standings, clears all three collections and
// reseeds every challenge.
func (e *Engine) Reset(ctx context.Context) error {
	rows, err := e.Leaderboard(ctx, 0)
	if err != nil {
		return err
	}
	if len(rows) > 0 {
		standings := model.Standings{ArchivedAt: time.Now().UTC(), Rows: rows}
		if err := e.archive.ArchiveStandings(ctx, standings); err != nil {
			e.log.Warn(ctx, "archiving standings failed", "error", err)
		}
	}

	for _, collection := range []string{store.CollectionUsers, store.CollectionLeaderboard, store.CollectionChallenges} {
		if err := e.store.Remove(ctx, collection); err != nil {
			return storeErr(err)
		}
	}

	e.seenMu.Lock()
	e.seen = make(map[int]string)
	e.seenMu.Unlock()
	e.pendingFull.Store(false)

	if err := e.SeedChallenges(ctx); err != nil {
		return err
	}
	e.log.Info(ctx, "arena reset", "archivedRows", len(rows))
	return nil
}

// Challenges returns catalog content merged with live state, ordered by id.
func (e *Engine) Challenges(ctx context.Context) ([]model.ChallengeView, error) {
	snap, err := e.store.Get(ctx, store.CollectionChallenges)
	if err != nil {
		return nil, storeErr(err)
	}
	return e.ChallengeViews(snap), nil
}

// ChallengeViews merges a challenges snapshot with the catalog. Challenges
// without a record are shown as available.
func (e *Engine) ChallengeViews(snap store.Snapshot) []model.ChallengeView {
	all := e.catalog.All()
	views := make([]model.ChallengeView, 0, len(all))
	for _, ch := range all {
		state := model.InitialState()
		if raw, ok := snap.Lookup(strconv.Itoa(ch.ID)); ok {
			if decoded, err := decodeState(raw); err == nil {
				state = decoded
			}
		}
		views = append(views, model.ChallengeView{Challenge: ch, State: state})
	}
	return views
}

// Leaderboard renders the current ranked view.
func (e *Engine) Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardRow, error) {
	snap, err := e.store.Get(ctx, store.CollectionLeaderboard)
	if err != nil {
		return nil, storeErr(err)
	}
	return leaderboard.Build(leaderboard.Entries(snap), time.Now(), limit), nil
}

func (e *Engine) Users(ctx context.Context) ([]model.User, error) {
	snap, err := e.store.Get(ctx, store.CollectionUsers)
	if err != nil {
		return nil, storeErr(err)
	}
	return Users(snap), nil
}

// Snapshot reads one collection straight from the store.
func (e *Engine) Snapshot(ctx context.Context, collection string) (store.Snapshot, error) {
	snap, err := e.store.Get(ctx, collection)
	if err != nil {
		return store.Snapshot{}, storeErr(err)
	}
	return snap, nil
}

// Users decodes a users snapshot in store order.
func Users(snap store.Snapshot) []model.User {
	users := make([]model.User, 0, len(snap.Records))
	for _, rec := range snap.Records {
		var u model.User
		if err := json.Unmarshal(rec.Value, &u); err != nil {
			continue
		}
		u.Username = rec.Key
		users = append(users, u)
	}
	return users
}

func (e *Engine) now(ctx context.Context) (int64, error) {
	ts, err := e.store.ServerTimestamp(ctx)
	if err != nil {
		return 0, storeErr(err)
	}
	return ts, nil
}

// conditional applies fn as a single conditional write. Without a
// transactional store it falls back to read-verify-write: the record is
// re-read right before committing and the attempt restarts if it changed.
// That narrows the race window but cannot close it; two writers passing the
// verification at the same instant still race (last write wins).
func (e *Engine) conditional(ctx context.Context, path string, fn store.TxFunc) error {
	if e.tx != nil {
		return e.tx.Transact(ctx, path, fn)
	}

	for i := 0; i < maxVerifyAttempts; i++ {
		before, err := e.readRecord(ctx, path)
		if err != nil {
			return err
		}
		next, err := fn(before)
		if err != nil || next == nil {
			return err
		}
		after, err := e.readRecord(ctx, path)
		if err != nil {
			return err
		}
		if !bytes.Equal(before, after) {
			continue
		}
		return e.store.Set(ctx, path, next)
	}
	return store.ErrContention
}

func (e *Engine) readRecord(ctx context.Context, path string) (json.RawMessage, error) {
	raw, err := e.store.GetRecord(ctx, path)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return raw, err
}

func challengePath(id int) string {
	return store.Path(store.CollectionChallenges, strconv.Itoa(id))
}

func decodeState(raw json.RawMessage) (model.ChallengeState, error) {
	state := model.InitialState()
	if len(raw) == 0 {
		return state, nil
	}
	if err := json.Unmarshal(raw, &state); err != nil {
		return model.ChallengeState{}, err
	}
	if state.Status == "" {
		state.Status = model.StatusAvailable
	}
	return state, nil
}

// normalizeUsername trims the name and rejects characters that cannot be
// used as a store key.
func normalizeUsername(username string) (string, error) {
	name := strings.TrimSpace(username)
	if name == "" || len([]rune(name)) > maxUsernameLen || strings.ContainsAny(name, "/.#$[]") {
		return "", ErrInvalidInput
	}
	return name, nil
}
