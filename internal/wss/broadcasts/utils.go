package broadcasts

import (
	"errors"

	"github.com/lijuuu/CTFArenaService/internal/engine"
	wsstypes "github.com/lijuuu/CTFArenaService/internal/wss/types"
)

func SendJSON(c *wsstypes.Client, data any) error {
	return c.WriteJSON(data)
}

func SendOK(c *wsstypes.Client, eventType, msg string, payload any) error {
	return SendJSON(c, wsstypes.Envelope{
		Type:    eventType,
		Status:  "ok",
		Message: msg,
		Payload: payload,
	})
}

func SendErrorWithType(c *wsstypes.Client, eventType, code, msg string, details any) error {
	return SendJSON(c, wsstypes.Envelope{
		Type:   eventType,
		Status: "error",
		Error: &wsstypes.ErrorInfo{
			Code:    code,
			Message: msg,
			Details: details,
		},
	})
}

// SendEngineError reports an engine outcome. Conflicts carry the occupant.
func SendEngineError(c *wsstypes.Client, eventType string, err error) error {
	var details any
	var conflict *engine.ConflictError
	if errors.As(err, &conflict) {
		details = map[string]any{"challengeId": conflict.ChallengeID, "occupiedBy": conflict.Occupant}
	}
	msg := err.Error()
	if errors.Is(err, engine.ErrStoreUnavailable) {
		msg = "store unavailable, try again"
	}
	return SendErrorWithType(c, eventType, engine.Code(err), msg, details)
}
