package api

import (
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
)

// FieldError is one field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// BindingError maps a request binding failure onto the VALIDATION error.
// Struct validation failures carry per-field details; anything else (bad
// JSON, wrong content type) stays opaque.
func BindingError(err error) *Error {
	var vErrs validator.ValidationErrors
	if !errors.As(err, &vErrs) {
		return Validation("invalid request body")
	}

	details := make([]FieldError, 0, len(vErrs))
	for _, fe := range vErrs {
		details = append(details, FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Message: fieldMessage(fe),
		})
	}

	return &Error{
		Code:    "VALIDATION",
		Status:  http.StatusBadRequest,
		Message: "validation failed",
		Details: details,
	}
}

// fieldMessage returns a user-friendly error message
func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return fe.Field() + " must be a valid email address"
	case "min":
		return fe.Field() + " must be at least " + fe.Param() + " characters"
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters"
	case "gte":
		return fe.Field() + " must be greater than or equal to " + fe.Param()
	case "lte":
		return fe.Field() + " must be less than or equal to " + fe.Param()
	default:
		return fe.Field() + " is invalid"
	}
}
