package model

import "time"

type ChallengeStatus string

const (
	StatusAvailable ChallengeStatus = "available"
	StatusOccupied  ChallengeStatus = "occupied"
	StatusCompleted ChallengeStatus = "completed"
)

type QuestionDifficulty string

const (
	DifficultyEasy   QuestionDifficulty = "easy"
	DifficultyMedium QuestionDifficulty = "medium"
	DifficultyHard   QuestionDifficulty = "hard"
)

// Challenge is static catalog content. Flag never leaves the server.
type Challenge struct {
	ID             int                `json:"id"`
	Title          string             `json:"title"`
	Description    string             `json:"description"`
	Difficulty     QuestionDifficulty `json:"difficulty"`
	Category       string             `json:"category"`
	Points         int                `json:"points"`
	Flag           string             `json:"-"`
	Hints          []string           `json:"hints"`
	RequiredAction string             `json:"requiredAction"`
	TrafficType    string             `json:"trafficType,omitempty"`
}

// ChallengeState is the dynamic record stored under challenges/<id>.
// Timestamps are store server time in unix milliseconds.
type ChallengeState struct {
	Status      ChallengeStatus `json:"status"`
	OccupiedBy  string          `json:"occupiedBy,omitempty"`
	CompletedBy string          `json:"completedBy,omitempty"`
	StartTime   int64           `json:"startTime,omitempty"`
	CompletedAt int64           `json:"completedAt,omitempty"`
	Score       int             `json:"score"`
}

// InitialState is what every challenge is seeded with.
func InitialState() ChallengeState {
	return ChallengeState{Status: StatusAvailable}
}

// User is stored under users/<username>.
type User struct {
	Username     string `json:"username"`
	JoinedAt     int64  `json:"joinedAt,omitempty"`
	LastActivity int64  `json:"lastActivity,omitempty"`
}

// LeaderboardEntry is stored under leaderboard/<username>. Score and Flags
// are always overwritten by reconciliation.
type LeaderboardEntry struct {
	Username     string `json:"username"`
	Score        int    `json:"score"`
	Flags        []int  `json:"flags"`
	LastActivity int64  `json:"lastActivity,omitempty"`
}

// Millis converts a store timestamp to time.Time.
func Millis(ms int64) time.Time {
	return time.UnixMilli(ms)
}
