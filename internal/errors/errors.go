// Package errors defines the structured API error envelope returned by every
// HTTP handler, plus the mapping from engine errors onto HTTP statuses.
package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/render"

	"deskops/internal/bulk"
)

// APIError represents a structured API error response.
type APIError struct {
	StatusCode int    `json:"status_code"`
	ErrorCode  string `json:"error_code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// Render implements the render.Renderer interface for chi/render.
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// New creates a new APIError.
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
}

// NewWithDetails creates a new APIError with additional details.
func NewWithDetails(statusCode int, errorCode, message string, details any) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
		Details:    details,
	}
}

// Predefined error values for common scenarios.
var (
	// 400 Bad Request
	ErrInvalidRequest   = New(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format")
	ErrValidationFailed = New(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed")

	// 404 Not Found
	ErrNotFound          = New(http.StatusNotFound, "NOT_FOUND", "Resource not found")
	ErrOperationNotFound = New(http.StatusNotFound, "OPERATION_NOT_FOUND", "Operation not found")

	// 409 Conflict
	ErrOperationInProgress = New(http.StatusConflict, "OPERATION_IN_PROGRESS", "An operation is already in progress for this item type")

	// 422 Unprocessable Entity
	ErrUndoUnavailable = New(http.StatusUnprocessableEntity, "UNDO_UNAVAILABLE", "Nothing to undo")

	// 429 Too Many Requests
	ErrRateLimitExceeded = New(http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Rate limit exceeded")

	// 500 Internal Server Error
	ErrInternalServer   = New(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error")
	ErrWebSocketUpgrade = New(http.StatusInternalServerError, "WEBSOCKET_UPGRADE_FAILED", "WebSocket upgrade failed")
)

// InvalidRequestWithError creates an invalid request error with details.
func InvalidRequestWithError(err error) *APIError {
	return NewWithDetails(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format", err.Error())
}

// FromEngine maps a bulk engine error onto the API envelope.
func FromEngine(err error) *APIError {
	var engineErr *bulk.EngineError
	if !errors.As(err, &engineErr) {
		return NewWithDetails(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR",
			"Internal server error", err.Error())
	}

	switch engineErr.Kind {
	case bulk.ErrorKindValidation:
		return NewWithDetails(http.StatusBadRequest, "VALIDATION_FAILED", engineErr.Message, engineErr.Context)
	case bulk.ErrorKindConcurrency:
		return NewWithDetails(http.StatusConflict, "OPERATION_IN_PROGRESS", engineErr.Message, engineErr.Context)
	case bulk.ErrorKindNotFound:
		return New(http.StatusNotFound, "OPERATION_NOT_FOUND", engineErr.Message)
	case bulk.ErrorKindInvalidState:
		return NewWithDetails(http.StatusConflict, "INVALID_STATE", engineErr.Message, engineErr.Context)
	case bulk.ErrorKindUndo:
		code := fmt.Sprintf("UNDO_%s", reasonCode(engineErr.Reason))
		return New(http.StatusUnprocessableEntity, code, engineErr.Message)
	default:
		return NewWithDetails(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR",
			engineErr.Message, engineErr.Context)
	}
}

// reasonCode normalizes an undo reason into an error-code suffix.
func reasonCode(reason string) string {
	switch reason {
	case bulk.UndoReasonEmptyStack:
		return "EMPTY_STACK"
	case bulk.UndoReasonNotUndoable:
		return "NOT_UNDOABLE"
	case bulk.UndoReasonInvalidPayload:
		return "INVALID_PAYLOAD"
	default:
		return "FAILED"
	}
}

// ErrorResponse represents a standard error response body.
type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   *APIError `json:"error"`
}

// NewErrorResponse creates a new error response.
func NewErrorResponse(err *APIError) *ErrorResponse {
	return &ErrorResponse{
		Success: false,
		Error:   err,
	}
}

// Render implements the render.Renderer interface.
func (e *ErrorResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return e.Error.Render(w, r)
}
