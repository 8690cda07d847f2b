package errors

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"deskops/internal/bulk"
)

func TestFromEngineMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "validation",
			err:        bulk.NewValidationError("no items selected"),
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_FAILED",
		},
		{
			name:       "concurrency",
			err:        bulk.NewConcurrencyError(bulk.ItemTypePosition),
			wantStatus: http.StatusConflict,
			wantCode:   "OPERATION_IN_PROGRESS",
		},
		{
			name:       "not found",
			err:        bulk.NewNotFoundError("op-1"),
			wantStatus: http.StatusNotFound,
			wantCode:   "OPERATION_NOT_FOUND",
		},
		{
			name:       "invalid state",
			err:        bulk.NewInvalidStateError("op-1", bulk.StatusCompleted),
			wantStatus: http.StatusConflict,
			wantCode:   "INVALID_STATE",
		},
		{
			name:       "undo empty stack",
			err:        bulk.NewUndoError(bulk.UndoReasonEmptyStack, "undo history is empty"),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "UNDO_EMPTY_STACK",
		},
		{
			name:       "undo not undoable",
			err:        bulk.NewUndoError(bulk.UndoReasonNotUndoable, "export is not undoable"),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "UNDO_NOT_UNDOABLE",
		},
		{
			name:       "undo invalid payload",
			err:        bulk.NewUndoError(bulk.UndoReasonInvalidPayload, "rollback failed"),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "UNDO_INVALID_PAYLOAD",
		},
		{
			name:       "plain error",
			err:        stderrors.New("something broke"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_SERVER_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := FromEngine(tt.err)
			assert.Equal(t, tt.wantStatus, apiErr.StatusCode)
			assert.Equal(t, tt.wantCode, apiErr.ErrorCode)
			assert.NotEmpty(t, apiErr.Message)
		})
	}
}

func TestAPIErrorImplementsError(t *testing.T) {
	err := New(http.StatusBadRequest, "INVALID_REQUEST", "bad input")
	assert.Equal(t, "bad input", err.Error())
}
