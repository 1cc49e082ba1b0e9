package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/yuy4o/ChatBI/pkg/database"
)

// ValidationError reports an invalid request body.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a validation error for field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// mapServiceError maps handler errors to an HTTP status and message.
func mapServiceError(err error) (int, string) {
	var validErr *ValidationError
	if errors.As(err, &validErr) {
		return http.StatusBadRequest, validErr.Error()
	}
	if errors.Is(err, database.ErrTableNotFound) {
		return http.StatusNotFound, "Table not found"
	}
	if errors.Is(err, database.ErrUnknownColumn) {
		return http.StatusBadRequest, err.Error()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, "request timed out"
	}
	if errors.Is(err, context.Canceled) {
		return http.StatusServiceUnavailable, "request cancelled"
	}

	slog.Error("Unexpected service error", "error", err)
	return http.StatusInternalServerError, "internal server error"
}

func badJSON(err error) error {
	return NewValidationError("body", fmt.Sprintf("invalid JSON body: %v", err))
}
