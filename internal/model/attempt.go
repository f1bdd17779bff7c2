package model

import "time"

type AttemptOutcome string

const (
	OutcomeSolved           AttemptOutcome = "solved"
	OutcomeIncorrect        AttemptOutcome = "incorrect"
	OutcomeConflict         AttemptOutcome = "conflict"
	OutcomeAlreadyCompleted AttemptOutcome = "already_completed"
)

// Attempt is one flag submission. The submitted value is deliberately absent.
type Attempt struct {
	ChallengeID int
	Username    string
	Outcome     AttemptOutcome
	At          time.Time
}

// Standings is a frozen leaderboard taken before a reset.
type Standings struct {
	ArchivedAt time.Time        `json:"archivedAt" bson:"archived_at"`
	Rows       []LeaderboardRow `json:"standings" bson:"standings"`
}
