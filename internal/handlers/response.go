package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lijuuu/CTFArenaService/internal/engine"
	"github.com/lijuuu/CTFArenaService/internal/model"
)

// WriteJSONResponse writes a success envelope.
func WriteJSONResponse(c *gin.Context, status int, payload map[string]any) {
	c.JSON(status, model.GenericResponse{
		Success: true,
		Status:  status,
		Payload: payload,
	})
}

// WriteJSONError writes an error envelope with an explicit code.
func WriteJSONError(c *gin.Context, status int, code, message string) {
	c.JSON(status, model.GenericResponse{
		Success: false,
		Status:  status,
		Error: &model.ErrorInfo{
			ErrorType: code,
			Code:      status,
			Message:   message,
		},
	})
}

// WriteEngineError maps an engine error onto its HTTP status.
func WriteEngineError(c *gin.Context, err error) {
	status := StatusFor(err)
	msg := err.Error()
	if status == http.StatusServiceUnavailable {
		msg = "store unavailable, try again"
	}
	resp := model.GenericResponse{
		Success: false,
		Status:  status,
		Error: &model.ErrorInfo{
			ErrorType: engine.Code(err),
			Code:      status,
			Message:   msg,
		},
	}
	var conflict *engine.ConflictError
	if errors.As(err, &conflict) {
		resp.Payload = map[string]any{"challengeId": conflict.ChallengeID, "occupiedBy": conflict.Occupant}
	}
	c.JSON(status, resp)
}

func StatusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrConflict), errors.Is(err, engine.ErrAlreadyCompleted):
		return http.StatusConflict
	case errors.Is(err, engine.ErrIncorrectFlag):
		return http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusServiceUnavailable
	}
}
