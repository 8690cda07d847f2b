package bulk

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func closeAction(id string) UndoableAction {
	return UndoableAction{
		ID:         id,
		ActionType: ActionClose,
		ItemType:   ItemTypePosition,
		Timestamp:  time.Now(),
		ItemIDs:    []string{"a"},
		Payload: RollbackPayload{
			Kind:  ActionClose,
			Close: &CloseRollback{PriorStatus: map[string]string{"a": "open"}},
		},
		CanUndo: true,
	}
}

func noopRollback() RollbackHandler {
	return RollbackHandler{
		Undo: func(ctx context.Context, action UndoableAction) error { return nil },
		Redo: func(ctx context.Context, action UndoableAction) error { return nil },
	}
}

func TestUndoStackPushValidatesPayload(t *testing.T) {
	stack := NewUndoStack(10)

	err := stack.Push(UndoableAction{
		ActionType: ActionClose,
		Payload:    RollbackPayload{Kind: ActionClose},
	})
	require.Error(t, err)
	assert.Equal(t, UndoReasonInvalidPayload, UndoReasonOf(err))
	assert.Equal(t, 0, stack.UndoDepth())
}

func TestUndoStackPushRejectsNonUndoableKind(t *testing.T) {
	stack := NewUndoStack(10)

	err := stack.Push(UndoableAction{
		ActionType: ActionExport,
		Payload:    RollbackPayload{Kind: ActionExport},
	})
	require.Error(t, err)
	assert.Equal(t, UndoReasonNotUndoable, UndoReasonOf(err))
}

func TestUndoStackBoundedEviction(t *testing.T) {
	stack := NewUndoStack(3)

	for i := 0; i < 5; i++ {
		require.NoError(t, stack.Push(closeAction(fmt.Sprintf("u-%d", i))))
	}

	assert.Equal(t, 3, stack.UndoDepth())
	recent := stack.RecentUndoHistory(0)
	require.Len(t, recent, 3)
	// Newest first; the two oldest entries were evicted.
	assert.Equal(t, "u-4", recent[0].ID)
	assert.Equal(t, "u-2", recent[2].ID)
}

func TestUndoRedoRoundTrip(t *testing.T) {
	stack := NewUndoStack(10)

	var undone, redone []string
	stack.RegisterHandler(ActionClose, RollbackHandler{
		Undo: func(ctx context.Context, action UndoableAction) error {
			undone = append(undone, action.ID)
			return nil
		},
		Redo: func(ctx context.Context, action UndoableAction) error {
			redone = append(redone, action.ID)
			return nil
		},
	})

	require.NoError(t, stack.Push(closeAction("u-1")))
	require.NoError(t, stack.Push(closeAction("u-2")))

	action, err := stack.Undo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u-2", action.ID)
	assert.Equal(t, 1, stack.UndoDepth())
	assert.Equal(t, 1, stack.RedoDepth())

	action, err = stack.Redo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u-2", action.ID)
	assert.Equal(t, 2, stack.UndoDepth())
	assert.Equal(t, 0, stack.RedoDepth())

	assert.Equal(t, []string{"u-2"}, undone)
	assert.Equal(t, []string{"u-2"}, redone)
}

func TestUndoEmptyStack(t *testing.T) {
	stack := NewUndoStack(10)

	_, err := stack.Undo(context.Background())
	require.Error(t, err)
	assert.Equal(t, UndoReasonEmptyStack, UndoReasonOf(err))

	_, err = stack.Redo(context.Background())
	require.Error(t, err)
	assert.Equal(t, UndoReasonEmptyStack, UndoReasonOf(err))
}

func TestUndoNonUndoableRestoredEntry(t *testing.T) {
	stack := NewUndoStack(10)
	stack.RegisterHandler(ActionClose, noopRollback())

	// Restored histories may carry entries for actions that cannot be
	// reversed; they surface as not-undoable, leaving the stack intact.
	stack.RestoreUndoHistory([]UndoableAction{{
		ID:         "u-export",
		ActionType: ActionExport,
		Payload:    RollbackPayload{Kind: ActionExport},
	}})

	_, err := stack.Undo(context.Background())
	require.Error(t, err)
	assert.Equal(t, UndoReasonNotUndoable, UndoReasonOf(err))
	assert.Equal(t, 1, stack.UndoDepth())
}

func TestUndoHandlerFailureLeavesStackIntact(t *testing.T) {
	stack := NewUndoStack(10)
	stack.RegisterHandler(ActionClose, RollbackHandler{
		Undo: func(ctx context.Context, action UndoableAction) error {
			return errors.New("item missing")
		},
	})

	require.NoError(t, stack.Push(closeAction("u-1")))

	_, err := stack.Undo(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, stack.UndoDepth())
	assert.Equal(t, 0, stack.RedoDepth())
}

func TestPushClearsRedo(t *testing.T) {
	stack := NewUndoStack(10)
	stack.RegisterHandler(ActionClose, noopRollback())

	require.NoError(t, stack.Push(closeAction("u-1")))
	_, err := stack.Undo(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, stack.RedoDepth())

	require.NoError(t, stack.Push(closeAction("u-2")))
	assert.Equal(t, 0, stack.RedoDepth())
}

func TestBuildRollbackPayload(t *testing.T) {
	enabled := true
	tests := []struct {
		name    string
		action  ActionType
		results []ItemResult
		check   func(t *testing.T, p *RollbackPayload)
	}{
		{
			name:   "close collects prior statuses",
			action: ActionClose,
			results: []ItemResult{
				{ItemID: "a", Success: true, Rollback: &RollbackEntry{PriorStatus: "open"}},
				{ItemID: "b", Success: false, Rollback: &RollbackEntry{PriorStatus: "open"}},
			},
			check: func(t *testing.T, p *RollbackPayload) {
				require.NotNil(t, p.Close)
				assert.Equal(t, map[string]string{"a": "open"}, p.Close.PriorStatus)
			},
		},
		{
			name:   "tag keeps prior and applied",
			action: ActionTag,
			results: []ItemResult{
				{ItemID: "a", Success: true, Rollback: &RollbackEntry{
					PriorTags:   []string{"old"},
					AppliedTags: []string{"new"},
				}},
			},
			check: func(t *testing.T, p *RollbackPayload) {
				require.NotNil(t, p.Tag)
				assert.Equal(t, []string{"old"}, p.Tag.PriorTags["a"])
				assert.Equal(t, []string{"new"}, p.Tag.Applied["a"])
			},
		},
		{
			name:   "disable records prior flag",
			action: ActionDisable,
			results: []ItemResult{
				{ItemID: "a", Success: true, Rollback: &RollbackEntry{PriorEnabled: &enabled}},
			},
			check: func(t *testing.T, p *RollbackPayload) {
				require.NotNil(t, p.Disable)
				assert.True(t, p.Disable.PriorEnabled["a"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := BuildRollbackPayload(tt.action, tt.results)
			require.NotNil(t, payload)
			assert.Equal(t, tt.action, payload.Kind)
			require.NoError(t, payload.Validate())
			tt.check(t, payload)
		})
	}
}

func TestBuildRollbackPayloadNilCases(t *testing.T) {
	assert.Nil(t, BuildRollbackPayload(ActionExport, []ItemResult{{ItemID: "a", Success: true}}))
	assert.Nil(t, BuildRollbackPayload(ActionClose, []ItemResult{{ItemID: "a", Success: true}}))
	assert.Nil(t, BuildRollbackPayload(ActionClose, nil))
}

func TestRestoreUndoHistoryTruncates(t *testing.T) {
	stack := NewUndoStack(2)

	// Persisted entries arrive newest first; overflow drops the oldest tail.
	stack.RestoreUndoHistory([]UndoableAction{
		closeAction("u-3"), closeAction("u-2"), closeAction("u-1"),
	})

	recent := stack.RecentUndoHistory(0)
	require.Len(t, recent, 2)
	assert.Equal(t, "u-3", recent[0].ID)
	assert.Equal(t, "u-2", recent[1].ID)
}

func TestRestoredHistoryUndoesNewestFirst(t *testing.T) {
	stack := NewUndoStack(10)

	var undone []string
	stack.RegisterHandler(ActionClose, RollbackHandler{
		Undo: func(ctx context.Context, action UndoableAction) error {
			undone = append(undone, action.ID)
			return nil
		},
	})

	require.NoError(t, stack.Push(closeAction("u-older")))
	require.NoError(t, stack.Push(closeAction("u-newer")))

	// Round trip through the persisted representation, as a restart does.
	restored := NewUndoStack(10)
	restored.RegisterHandler(ActionClose, RollbackHandler{
		Undo: func(ctx context.Context, action UndoableAction) error {
			undone = append(undone, action.ID)
			return nil
		},
	})
	restored.RestoreUndoHistory(stack.RecentUndoHistory(20))

	action, err := restored.Undo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u-newer", action.ID)

	action, err = restored.Undo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u-older", action.ID)
	assert.Equal(t, []string{"u-newer", "u-older"}, undone)
}
