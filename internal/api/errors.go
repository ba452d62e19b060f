package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"fanledger/internal/logger"
)

// Error is the taxonomy surfaced to HTTP callers. Anything that is not an
// *Error is logged server-side and returned as an opaque 500.
type Error struct {
	Code          string
	Status        int
	Message       string
	RequiredCents int64
	Details       []FieldError
}

func (e *Error) Error() string {
	return e.Message
}

func Validation(msg string) *Error {
	return &Error{Code: "VALIDATION", Status: http.StatusBadRequest, Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Code: "NOT_FOUND", Status: http.StatusNotFound, Message: msg}
}

func Forbidden(msg string) *Error {
	return &Error{Code: "FORBIDDEN", Status: http.StatusForbidden, Message: msg}
}

// InsufficientBalance carries the price the caller would need to cover.
func InsufficientBalance(requiredCents int64) *Error {
	return &Error{
		Code:          "INSUFFICIENT_BALANCE",
		Status:        http.StatusBadRequest,
		Message:       "insufficient wallet balance",
		RequiredCents: requiredCents,
	}
}

// Conflict is a genuine uniqueness violation unrelated to the caller's own
// idempotency key. The caller's own duplicates never reach this: they are
// resolved into idempotent success before an error is surfaced.
func Conflict(msg string) *Error {
	return &Error{Code: "CONFLICT", Status: http.StatusConflict, Message: msg}
}

// Respond writes err as JSON with the mapped status code.
func Respond(c *gin.Context, err error) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		c.JSON(apiErr.Status, ErrorResponse{
			Error:         apiErr.Message,
			Code:          apiErr.Code,
			RequiredCents: apiErr.RequiredCents,
			Details:       apiErr.Details,
		})
		return
	}

	logger.Error("unexpected error",
		"path", c.FullPath(),
		"method", c.Request.Method,
		"error", err,
	)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}
