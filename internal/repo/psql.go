package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/lijuuu/CTFArenaService/internal/model"
)

// AttemptLog is one row of the durable submit history.
type AttemptLog struct {
	ID          uint      `gorm:"primaryKey"`
	ChallengeID int       `gorm:"index;not null"`
	Username    string    `gorm:"size:32;index;not null"`
	Outcome     string    `gorm:"size:32;not null"`
	AttemptedAt time.Time `gorm:"not null"`
}

type PSQLRepository struct {
	db *gorm.DB
}

func NewPSQLRepository(db *gorm.DB) *PSQLRepository {
	return &PSQLRepository{db: db}
}

// Migrate creates the attempt log table.
func (r *PSQLRepository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&AttemptLog{})
}

// RecordAttempt appends one submit outcome.
func (r *PSQLRepository) RecordAttempt(ctx context.Context, attempt model.Attempt) error {
	row := AttemptLog{
		ChallengeID: attempt.ChallengeID,
		Username:    attempt.Username,
		Outcome:     string(attempt.Outcome),
		AttemptedAt: attempt.At,
	}
	return r.db.WithContext(ctx).Create(&row).Error
}
