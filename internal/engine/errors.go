package engine

import (
	"errors"
	"fmt"

	"github.com/lijuuu/CTFArenaService/internal/store"
)

// Conflict, AlreadyCompleted and IncorrectFlag are ordinary outcomes for the
// caller to display, not failures of the engine.
var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("challenge occupied by another user")
	ErrAlreadyCompleted = errors.New("challenge already completed")
	ErrIncorrectFlag    = errors.New("incorrect flag")
	ErrInvalidInput     = errors.New("invalid input")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrUnauthorized     = errors.New("unauthorized")
)

// ConflictError names the user currently holding the challenge.
type ConflictError struct {
	ChallengeID int
	Occupant    string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("challenge %d is occupied by %s", e.ChallengeID, e.Occupant)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// storeErr maps adapter failures onto the engine taxonomy. Engine outcome
// errors returned from inside a transaction pass through untouched.
func storeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrConflict), errors.Is(err, ErrAlreadyCompleted),
		errors.Is(err, ErrIncorrectFlag), errors.Is(err, ErrNotFound),
		errors.Is(err, ErrInvalidInput), errors.Is(err, ErrStoreUnavailable):
		return err
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	default:
		// unavailable, contention, timeouts and anything else from the adapter
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}

// Code is the stable client-facing name of an engine error.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrConflict):
		return "CONFLICT"
	case errors.Is(err, ErrAlreadyCompleted):
		return "ALREADY_COMPLETED"
	case errors.Is(err, ErrIncorrectFlag):
		return "INCORRECT_FLAG"
	case errors.Is(err, ErrInvalidInput):
		return "INVALID_INPUT"
	case errors.Is(err, ErrUnauthorized):
		return "UNAUTHORIZED"
	default:
		return "STORE_UNAVAILABLE"
	}
}
