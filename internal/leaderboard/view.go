// Package leaderboard renders the ranked projection of leaderboard entries.
// Nothing here is persisted; views are rebuilt on every render.
package leaderboard

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/lijuuu/CTFArenaService/internal/model"
	"github.com/lijuuu/CTFArenaService/internal/store"
)

var podium = [...]string{"🥇", "🥈", "🥉"}

// Entries decodes a leaderboard snapshot in store order. The record key is
// the username; undecodable records are skipped.
func Entries(snap store.Snapshot) []model.LeaderboardEntry {
	entries := make([]model.LeaderboardEntry, 0, len(snap.Records))
	for _, rec := range snap.Records {
		var entry model.LeaderboardEntry
		if err := json.Unmarshal(rec.Value, &entry); err != nil {
			continue
		}
		entry.Username = rec.Key
		if entry.Flags == nil {
			entry.Flags = []int{}
		}
		entries = append(entries, entry)
	}
	return entries
}

// Build sorts entries by score descending, keeping input order among equal
// scores, and assigns positional ranks. limit <= 0 renders everyone.
func Build(entries []model.LeaderboardEntry, now time.Time, limit int) []model.LeaderboardRow {
	sorted := make([]model.LeaderboardEntry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Score > sorted[j].Score
	})

	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}

	rows := make([]model.LeaderboardRow, 0, len(sorted))
	for i, entry := range sorted {
		rank := i + 1
		rows = append(rows, model.LeaderboardRow{
			Rank:       rank,
			Marker:     Marker(rank),
			Username:   entry.Username,
			Score:      entry.Score,
			FlagCount:  len(entry.Flags),
			LastActive: TimeAgo(entry.LastActivity, now),
		})
	}
	return rows
}

// Marker is the display badge for a 1-based rank.
func Marker(rank int) string {
	if rank >= 1 && rank <= len(podium) {
		return podium[rank-1]
	}
	return fmt.Sprintf("#%d", rank)
}

// TimeAgo buckets the distance between a store timestamp (ms) and now.
func TimeAgo(lastActivity int64, now time.Time) string {
	if lastActivity == 0 {
		return "never"
	}
	minutes := int(now.Sub(model.Millis(lastActivity)) / time.Minute)
	switch {
	case minutes < 1:
		return "just now"
	case minutes < 60:
		return fmt.Sprintf("%dm ago", minutes)
	default:
		return fmt.Sprintf("%dh ago", minutes/60)
	}
}
