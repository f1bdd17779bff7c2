package engine

import (
	"context"
	"encoding/json"
	"slices"
	"sort"
	"strconv"

	"github.com/lijuuu/CTFArenaService/internal/catalog"
	"github.com/lijuuu/CTFArenaService/internal/model"
	"github.com/lijuuu/CTFArenaService/internal/store"
)

// Score is the reconciled standing of one user.
type Score struct {
	Score int   `json:"score"`
	Flags []int `json:"flags"`
}

// Reconcile derives a user's score and flags from a challenges snapshot. Only
// catalog challenges count; a completed record without a score is worth the
// catalog points. Flags are ascending and never nil.
func Reconcile(snap store.Snapshot, c *catalog.Catalog, username string) Score {
	out := Score{Flags: []int{}}
	for _, rec := range snap.Records {
		id, err := strconv.Atoi(rec.Key)
		if err != nil {
			continue
		}
		if _, ok := c.Get(id); !ok {
			continue
		}
		state, err := decodeState(rec.Value)
		if err != nil || state.Status != model.StatusCompleted || state.CompletedBy != username {
			continue
		}
		points := state.Score
		if points <= 0 {
			points = c.Points(id)
		}
		out.Score += points
		out.Flags = append(out.Flags, id)
	}
	sort.Ints(out.Flags)
	return out
}

// ReconcileUser recomputes one user's entry and writes it back. When an
// earlier reconciliation failed, a full recompute runs instead.
func (e *Engine) ReconcileUser(ctx context.Context, username string) (Score, error) {
	if e.pendingFull.Load() {
		if err := e.ReconcileAll(ctx); err != nil {
			return Score{}, err
		}
		snap, err := e.store.Get(ctx, store.CollectionChallenges)
		if err != nil {
			return Score{}, storeErr(err)
		}
		return Reconcile(snap, e.catalog, username), nil
	}

	now, err := e.now(ctx)
	if err != nil {
		e.pendingFull.Store(true)
		return Score{}, err
	}
	score, err := e.reconcileUser(ctx, username, now)
	if err != nil {
		e.pendingFull.Store(true)
		return Score{}, err
	}
	return score, nil
}

// ReconcileAll rewrites score and flags for every known user. lastActivity is
// left untouched so a recompute does not look like activity.
func (e *Engine) ReconcileAll(ctx context.Context) error {
	e.pendingFull.Store(false)

	users, err := e.store.Get(ctx, store.CollectionUsers)
	if err != nil {
		e.pendingFull.Store(true)
		return storeErr(err)
	}

	for _, rec := range users.Records {
		if _, err := e.reconcileUser(ctx, rec.Key, 0); err != nil {
			e.pendingFull.Store(true)
			return err
		}
	}
	e.log.Info(ctx, "full recompute finished", "users", len(users.Records))
	return nil
}

// reconcileUser writes the user's reconciled entry while holding the user's
// reconcile lock. The challenges are read again after the write; if a
// completion landed in between, the entry is rewritten. lastActivity is only
// set when activity is non-zero.
func (e *Engine) reconcileUser(ctx context.Context, username string, activity int64) (Score, error) {
	unlock := e.reconcileLocks.Lock(username)
	defer unlock()

	snap, err := e.store.Get(ctx, store.CollectionChallenges)
	if err != nil {
		return Score{}, storeErr(err)
	}
	score := Reconcile(snap, e.catalog, username)

	for i := 0; i < maxVerifyAttempts; i++ {
		fields := map[string]any{
			"username": username,
			"score":    score.Score,
			"flags":    score.Flags,
		}
		if activity != 0 {
			fields["lastActivity"] = activity
		}
		if err := e.store.Update(ctx, store.Path(store.CollectionLeaderboard, username), fields); err != nil {
			return Score{}, storeErr(err)
		}

		after, err := e.store.Get(ctx, store.CollectionChallenges)
		if err != nil {
			return Score{}, storeErr(err)
		}
		latest := Reconcile(after, e.catalog, username)
		if latest.equal(score) {
			return score, nil
		}
		score = latest
	}
	return Score{}, storeErr(store.ErrContention)
}

func (s Score) equal(o Score) bool {
	return s.Score == o.Score && slices.Equal(s.Flags, o.Flags)
}

// PendingFullRecompute reports whether a failed reconciliation is waiting to
// be healed.
func (e *Engine) PendingFullRecompute() bool {
	return e.pendingFull.Load()
}

// OnChallenges is the change-stream trigger. Challenges that became completed
// since the previous snapshot are reconciled for their completer; the first
// snapshot only primes the baseline.
func (e *Engine) OnChallenges(ctx context.Context, snap store.Snapshot) {
	var completers []string

	e.seenMu.Lock()
	prime := !e.seenInit
	e.seenInit = true
	current := make(map[int]string, len(snap.Records))
	for _, rec := range snap.Records {
		id, err := strconv.Atoi(rec.Key)
		if err != nil {
			continue
		}
		var state model.ChallengeState
		if err := json.Unmarshal(rec.Value, &state); err != nil || state.Status != model.StatusCompleted {
			continue
		}
		current[id] = state.CompletedBy
		if prev, ok := e.seen[id]; !prime && (!ok || prev != state.CompletedBy) {
			completers = append(completers, state.CompletedBy)
		}
	}
	e.seen = current
	e.seenMu.Unlock()

	if e.pendingFull.Load() {
		if err := e.ReconcileAll(ctx); err != nil {
			e.log.Warn(ctx, "pending recompute failed", "error", err)
		}
		return
	}

	done := make(map[string]bool, len(completers))
	for _, user := range completers {
		if user == "" || done[user] {
			continue
		}
		done[user] = true
		if _, err := e.ReconcileUser(ctx, user); err != nil {
			e.log.Warn(ctx, "reconcile from change stream failed", "user", user, "error", err)
		}
	}
}
