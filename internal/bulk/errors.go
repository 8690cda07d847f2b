package bulk

import (
	"errors"
	"fmt"
)

// ErrorKind classifies engine errors.
type ErrorKind string

const (
	ErrorKindValidation   ErrorKind = "validation"
	ErrorKindConcurrency  ErrorKind = "concurrency"
	ErrorKindHandler      ErrorKind = "handler"
	ErrorKindUndo         ErrorKind = "undo"
	ErrorKindNotFound     ErrorKind = "not_found"
	ErrorKindInvalidState ErrorKind = "invalid_state"
)

// Undo failure reasons, carried inside an ErrorKindUndo EngineError.
const (
	UndoReasonEmptyStack     = "EmptyStack"
	UndoReasonNotUndoable    = "ActionNotUndoable"
	UndoReasonInvalidPayload = "InvalidPayload"
)

// EngineError is the typed error returned from engine entry points. Only
// validation and concurrency errors are visible to the caller of Start;
// handler failures are absorbed into per-item results and never propagate
// as errors.
type EngineError struct {
	Kind    ErrorKind      `json:"kind"`
	Reason  string         `json:"reason,omitempty"`
	Message string         `json:"message"`
	Cause   error          `json:"-"`
	Context map[string]any `json:"context,omitempty"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e == nil {
		return "unknown engine error"
	}
	if e.Reason != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Kind, e.Reason, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error.
func (e *EngineError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewValidationError creates a validation error rejected synchronously from Start.
func NewValidationError(message string) *EngineError {
	return &EngineError{
		Kind:    ErrorKindValidation,
		Message: message,
	}
}

// NewConcurrencyError creates the error returned when an operation is already
// in progress for the given item type.
func NewConcurrencyError(itemType ItemType) *EngineError {
	return &EngineError{
		Kind:    ErrorKindConcurrency,
		Message: fmt.Sprintf("an operation is already in progress for item type %q", itemType),
		Context: map[string]any{"item_type": string(itemType)},
	}
}

// NewUndoError creates an undo/redo failure with one of the Undo* reasons.
func NewUndoError(reason, message string) *EngineError {
	return &EngineError{
		Kind:    ErrorKindUndo,
		Reason:  reason,
		Message: message,
	}
}

// NewNotFoundError creates the error for an unknown operation id.
func NewNotFoundError(operationID string) *EngineError {
	return &EngineError{
		Kind:    ErrorKindNotFound,
		Message: fmt.Sprintf("operation %s not found", operationID),
	}
}

// NewInvalidStateError creates the error for a transition attempted on an
// operation that is not in the required status.
func NewInvalidStateError(operationID string, status OperationStatus) *EngineError {
	return &EngineError{
		Kind:    ErrorKindInvalidState,
		Message: fmt.Sprintf("operation %s is not in progress (status: %s)", operationID, status),
		Context: map[string]any{"status": string(status)},
	}
}

// KindOf returns the classification of err, or an empty kind for non-engine
// errors.
func KindOf(err error) ErrorKind {
	var engineErr *EngineError
	if errors.As(err, &engineErr) {
		return engineErr.Kind
	}
	return ""
}

// UndoReasonOf returns the undo failure reason of err, or an empty string if
// err is not an undo error.
func UndoReasonOf(err error) string {
	var engineErr *EngineError
	if errors.As(err, &engineErr) && engineErr.Kind == ErrorKindUndo {
		return engineErr.Reason
	}
	return ""
}
