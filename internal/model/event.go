package model

type EventType string

const (
	EventChallengesSnapshot  EventType = "CHALLENGES_SNAPSHOT"
	EventLeaderboardSnapshot EventType = "LEADERBOARD_SNAPSHOT"
	EventUsersSnapshot       EventType = "USERS_SNAPSHOT"
	EventChallengeClaimed    EventType = "CHALLENGE_CLAIMED"
	EventFlagCaptured        EventType = "FLAG_CAPTURED"
	EventArenaReset          EventType = "ARENA_RESET"
)

type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// ChallengeView pairs catalog content with its live state for observers.
type ChallengeView struct {
	Challenge
	State ChallengeState `json:"state"`
}

type ChallengesSnapshotPayload struct {
	Challenges []ChallengeView `json:"challenges"`
}

type LeaderboardSnapshotPayload struct {
	Leaderboard []LeaderboardRow `json:"leaderboard"`
}

type UsersSnapshotPayload struct {
	Users []User `json:"users"`
}

type ChallengeClaimedPayload struct {
	ChallengeID int    `json:"challengeId"`
	UserID      string `json:"userId"`
}

type FlagCapturedPayload struct {
	ChallengeID int    `json:"challengeId"`
	UserID      string `json:"userId"`
	Points      int    `json:"points"`
}

// LeaderboardRow is the rendered projection of a LeaderboardEntry.
type LeaderboardRow struct {
	Rank       int    `json:"rank"`
	Marker     string `json:"marker"`
	Username   string `json:"username"`
	Score      int    `json:"score"`
	FlagCount  int    `json:"flagCount"`
	LastActive string `json:"lastActive"`
}

type GenericResponse struct {
	Success bool           `json:"success"`
	Status  int            `json:"status"`
	Payload map[string]any `json:"payload,omitempty"`
	Error   *ErrorInfo     `json:"error,omitempty"`
}

type ErrorInfo struct {
	ErrorType string `json:"type"`
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
}
