package broadcasts

import (
	"time"

	"github.com/lijuuu/CTFArenaService/internal/engine"
	"github.com/lijuuu/CTFArenaService/internal/leaderboard"
	"github.com/lijuuu/CTFArenaService/internal/model"
	"github.com/lijuuu/CTFArenaService/internal/store"
	wsstypes "github.com/lijuuu/CTFArenaService/internal/wss/types"
)

// SnapshotEvent renders a store snapshot as the event pushed to clients.
// Leaderboard snapshots go out already ranked.
func SnapshotEvent(e *engine.Engine, snap store.Snapshot, now time.Time) (model.Event, bool) {
	switch snap.Collection {
	case store.CollectionChallenges:
		return model.Event{
			Type:    model.EventChallengesSnapshot,
			Payload: model.ChallengesSnapshotPayload{Challenges: e.ChallengeViews(snap)},
		}, true
	case store.CollectionLeaderboard:
		return model.Event{
			Type:    model.EventLeaderboardSnapshot,
			Payload: model.LeaderboardSnapshotPayload{Leaderboard: leaderboard.Build(leaderboard.Entries(snap), now, 0)},
		}, true
	case store.CollectionUsers:
		return model.Event{
			Type:    model.EventUsersSnapshot,
			Payload: model.UsersSnapshotPayload{Users: engine.Users(snap)},
		}, true
	}
	return model.Event{}, false
}

// PushEvent sends one event to one client.
func PushEvent(c *wsstypes.Client, event model.Event) error {
	return SendOK(c, string(event.Type), "", event.Payload)
}

// BroadcastEvent sends event to every connected client. A failed write only
// affects that client; its read loop notices the broken connection.
func BroadcastEvent(state *wsstypes.State, event model.Event) {
	for _, c := range state.Clients() {
		_ = PushEvent(c, event)
	}
}

func BroadcastChallengeClaimed(state *wsstypes.State, challengeID int, username string) {
	BroadcastEvent(state, model.Event{
		Type:    model.EventChallengeClaimed,
		Payload: model.ChallengeClaimedPayload{ChallengeID: challengeID, UserID: username},
	})
}

func BroadcastFlagCaptured(state *wsstypes.State, challengeID int, username string, points int) {
	BroadcastEvent(state, model.Event{
		Type:    model.EventFlagCaptured,
		Payload: model.FlagCapturedPayload{ChallengeID: challengeID, UserID: username, Points: points},
	})
}

// Notifier lets non-WebSocket callers announce arena events.
type Notifier struct {
	State *wsstypes.State
}

func (n Notifier) ChallengeClaimed(challengeID int, username string) {
	BroadcastChallengeClaimed(n.State, challengeID, username)
}

func (n Notifier) FlagCaptured(challengeID int, username string, points int) {
	BroadcastFlagCaptured(n.State, challengeID, username, points)
}

func (n Notifier) ArenaReset() {
	BroadcastEvent(n.State, model.Event{Type: model.EventArenaReset, Payload: map[string]any{"time": time.Now().UnixMilli()}})
}
