package engine

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/lijuuu/CTFArenaService/internal/model"
	"github.com/lijuuu/CTFArenaService/internal/store"
)

// Claim marks the challenge as being worked by username. Re-claiming a
// challenge the user already holds succeeds without a write; changed reports
// whether the challenge moved to occupied.
func (e *Engine) Claim(ctx context.Context, challengeID int, username string) (state model.ChallengeState, changed bool, err error) {
	if _, ok := e.catalog.Get(challengeID); !ok {
		return model.ChallengeState{}, false, ErrNotFound
	}
	if strings.TrimSpace(username) == "" {
		return model.ChallengeState{}, false, ErrInvalidInput
	}
	now, err := e.now(ctx)
	if err != nil {
		return model.ChallengeState{}, false, err
	}

	var result model.ChallengeState
	err = e.conditional(ctx, challengePath(challengeID), func(current json.RawMessage) (any, error) {
		state, err := decodeState(current)
		if err != nil {
			return nil, err
		}
		changed = false
		switch state.Status {
		case model.StatusCompleted:
			return nil, ErrAlreadyCompleted
		case model.StatusOccupied:
			if state.OccupiedBy != username {
				return nil, &ConflictError{ChallengeID: challengeID, Occupant: state.OccupiedBy}
			}
			result = state
			return nil, nil
		}
		state.Status = model.StatusOccupied
		state.OccupiedBy = username
		state.StartTime = now
		result = state
		changed = true
		return state, nil
	})
	if err != nil {
		return model.ChallengeState{}, false, storeErr(err)
	}

	e.touchUser(ctx, username, now)
	if changed {
		e.log.Info(ctx, "challenge claimed", "challengeId", challengeID, "user", username)
	}
	return result, changed, nil
}

// Submit checks value against the challenge flag and completes the challenge
// on an exact match. The submitted value is never logged or stored.
func (e *Engine) Submit(ctx context.Context, challengeID int, username, value string) (model.ChallengeState, error) {
	ch, ok := e.catalog.Get(challengeID)
	if !ok {
		return model.ChallengeState{}, ErrNotFound
	}
	value = strings.TrimSpace(value)
	if value == "" || strings.TrimSpace(username) == "" {
		return model.ChallengeState{}, ErrInvalidInput
	}
	now, err := e.now(ctx)
	if err != nil {
		return model.ChallengeState{}, err
	}

	var result model.ChallengeState
	err = e.conditional(ctx, challengePath(challengeID), func(current json.RawMessage) (any, error) {
		state, err := decodeState(current)
		if err != nil {
			return nil, err
		}
		switch {
		case state.Status == model.StatusCompleted:
			return nil, ErrAlreadyCompleted
		case state.Status == model.StatusOccupied && state.OccupiedBy != username:
			return nil, &ConflictError{ChallengeID: challengeID, Occupant: state.OccupiedBy}
		case value != ch.Flag:
			return nil, ErrIncorrectFlag
		}
		state.Status = model.StatusCompleted
		state.CompletedBy = username
		state.CompletedAt = now
		state.Score = ch.Points
		result = state
		return state, nil
	})
	err = storeErr(err)
	e.recordAttempt(ctx, challengeID, username, err)
	if err != nil {
		if errors.Is(err, ErrIncorrectFlag) {
			e.log.Info(ctx, "incorrect flag", "challengeId", challengeID, "user", username)
		}
		return model.ChallengeState{}, err
	}

	e.touchUser(ctx, username, now)
	e.log.Info(ctx, "flag captured", "challengeId", challengeID, "user", username, "points", ch.Points)

	if _, err := e.ReconcileUser(ctx, username); err != nil {
		e.log.Warn(ctx, "reconcile after submit failed", "user", username, "error", err)
	}
	return result, nil
}

func (e *Engine) recordAttempt(ctx context.Context, challengeID int, username string, err error) {
	var outcome model.AttemptOutcome
	switch {
	case err == nil:
		outcome = model.OutcomeSolved
	case errors.Is(err, ErrIncorrectFlag):
		outcome = model.OutcomeIncorrect
	case errors.Is(err, ErrConflict):
		outcome = model.OutcomeConflict
	case errors.Is(err, ErrAlreadyCompleted):
		outcome = model.OutcomeAlreadyCompleted
	default:
		return
	}
	attempt := model.Attempt{
		ChallengeID: challengeID,
		Username:    username,
		Outcome:     outcome,
		At:          time.Now().UTC(),
	}
	if err := e.attempts.RecordAttempt(ctx, attempt); err != nil {
		e.log.Warn(ctx, "recording attempt failed", "challengeId", challengeID, "user", username, "error", err)
	}
}

// touchUser refreshes lastActivity for a joined user. Unknown users are left
// alone; claiming does not require a prior join.
func (e *Engine) touchUser(ctx context.Context, username string, now int64) {
	err := e.conditional(ctx, store.Path(store.CollectionUsers, username), func(current json.RawMessage) (any, error) {
		if len(current) == 0 {
			return nil, nil
		}
		var u model.User
		if err := json.Unmarshal(current, &u); err != nil {
			return nil, err
		}
		u.LastActivity = now
		return u, nil
	})
	if err != nil {
		e.log.Debug(ctx, "touch user failed", "user", username, "error", err)
	}
}
