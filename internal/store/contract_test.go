package store

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fullStore interface {
	Store
	Transactor
	Pinger
}

// runContract exercises the behaviour every adapter must share.
func runContract(t *testing.T, newStore func(t *testing.T) fullStore) {
	t.Run("get empty collection", func(t *testing.T) {
		s := newStore(t)
		snap, err := s.Get(context.Background(), CollectionChallenges)
		require.NoError(t, err)
		assert.True(t, snap.Empty())
	})

	t.Run("set and get record", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Set(ctx, "users/alice", map[string]any{"username": "alice"}))

		raw, err := s.GetRecord(ctx, "users/alice")
		require.NoError(t, err)
		assert.JSONEq(t, `{"username":"alice"}`, string(raw))

		_, err = s.GetRecord(ctx, "users/bob")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("snapshot ordering", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		for _, k := range []string{"10", "bob", "2", "alice", "1"} {
			require.NoError(t, s.Set(ctx, Path("mixed", k), 1))
		}
		snap, err := s.Get(ctx, "mixed")
		require.NoError(t, err)
		var keys []string
		for _, r := range snap.Records {
			keys = append(keys, r.Key)
		}
		assert.Equal(t, []string{"1", "2", "10", "alice", "bob"}, keys)
	})

	t.Run("update merges and deletes fields", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Set(ctx, "leaderboard/alice", map[string]any{"username": "alice", "score": 10, "extra": true}))
		require.NoError(t, s.Update(ctx, "leaderboard/alice", map[string]any{"score": 50, "extra": nil}))

		raw, err := s.GetRecord(ctx, "leaderboard/alice")
		require.NoError(t, err)
		assert.JSONEq(t, `{"username":"alice","score":50}`, string(raw))

		require.NoError(t, s.Update(ctx, "leaderboard/bob", map[string]any{"score": 1}))
		raw, err = s.GetRecord(ctx, "leaderboard/bob")
		require.NoError(t, err)
		assert.JSONEq(t, `{"score":1}`, string(raw))
	})

	t.Run("remove record and collection", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Set(ctx, "users/a", 1))
		require.NoError(t, s.Set(ctx, "users/b", 2))

		require.NoError(t, s.Remove(ctx, "users/a"))
		snap, err := s.Get(ctx, CollectionUsers)
		require.NoError(t, err)
		require.Len(t, snap.Records, 1)

		require.NoError(t, s.Remove(ctx, CollectionUsers))
		snap, err = s.Get(ctx, CollectionUsers)
		require.NoError(t, err)
		assert.True(t, snap.Empty())
	})

	t.Run("transact abort leaves record", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Set(ctx, "challenges/1", map[string]string{"status": "occupied"}))

		boom := errors.New("precondition failed")
		err := s.Transact(ctx, "challenges/1", func(current json.RawMessage) (any, error) {
			return map[string]string{"status": "completed"}, boom
		})
		assert.ErrorIs(t, err, boom)

		raw, err := s.GetRecord(ctx, "challenges/1")
		require.NoError(t, err)
		assert.JSONEq(t, `{"status":"occupied"}`, string(raw))
	})

	t.Run("transact is atomic under contention", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Set(ctx, "counters/n", 0))

		const workers = 4
		const perWorker = 10
		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < perWorker; i++ {
					err := s.Transact(ctx, "counters/n", func(current json.RawMessage) (any, error) {
						var n int
						if err := json.Unmarshal(current, &n); err != nil {
							return nil, err
						}
						return n + 1, nil
					})
					assert.NoError(t, err)
				}
			}()
		}
		wg.Wait()

		raw, err := s.GetRecord(ctx, "counters/n")
		require.NoError(t, err)
		assert.Equal(t, "40", string(raw))
	})

	t.Run("subscribe delivers initial then changes in order", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()
		require.NoError(t, s.Set(ctx, "users/a", 1))

		got := make(chan Snapshot, 16)
		unsubscribe, err := s.Subscribe(ctx, CollectionUsers, func(snap Snapshot) { got <- snap })
		require.NoError(t, err)
		defer unsubscribe()

		first := waitSnapshot(t, got)
		require.Len(t, first.Records, 1)

		require.NoError(t, s.Set(ctx, "users/b", 2))
		require.Eventually(t, func() bool {
			select {
			case snap := <-got:
				return len(snap.Records) == 2
			default:
				return false
			}
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("server timestamp", func(t *testing.T) {
		s := newStore(t)
		ts, err := s.ServerTimestamp(context.Background())
		require.NoError(t, err)
		assert.Positive(t, ts)
		assert.NoError(t, s.Ping(context.Background()))
	})
}

func waitSnapshot(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case snap := <-ch:
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		return Snapshot{}
	}
}

func TestSplitPath(t *testing.T) {
	c, k, err := SplitPath("challenges/7")
	require.NoError(t, err)
	assert.Equal(t, "challenges", c)
	assert.Equal(t, "7", k)

	c, k, err = SplitPath("users")
	require.NoError(t, err)
	assert.Equal(t, "users", c)
	assert.Empty(t, k)

	_, _, err = SplitPath("a/b/c")
	assert.ErrorIs(t, err, ErrInvalidPath)
	_, _, err = SplitPath("")
	assert.ErrorIs(t, err, ErrInvalidPath)
}
