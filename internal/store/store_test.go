package store

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deskops/internal/bulk"
)

func sampleOperation(id string) *bulk.Operation {
	op := bulk.NewOperation(id, bulk.ActionClose, bulk.ItemTypePosition, []string{"p-1", "p-2"})
	op.AppendResults([]bulk.ItemResult{
		{ItemID: "p-1", Success: true, Rollback: &bulk.RollbackEntry{PriorStatus: "open"}},
		{ItemID: "p-2", Success: false, Error: "locked"},
	})
	op.UpdateProgress(2, 1)
	op.Complete()
	return op
}

func sampleUndo(id string) bulk.UndoableAction {
	return bulk.UndoableAction{
		ID:         id,
		ActionType: bulk.ActionClose,
		ItemType:   bulk.ItemTypePosition,
		Timestamp:  time.Now().UTC(),
		ItemIDs:    []string{"p-1"},
		Payload: bulk.RollbackPayload{
			Kind:  bulk.ActionClose,
			Close: &bulk.CloseRollback{PriorStatus: map[string]string{"p-1": "open"}},
		},
		CanUndo: true,
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := NewFileStore(path)
	require.NoError(t, err)

	op := sampleOperation("op-1")
	require.NoError(t, s.SaveHistory([]*bulk.Operation{op}))
	require.NoError(t, s.SaveUndoHistory([]bulk.UndoableAction{sampleUndo("u-1")}))

	history, err := s.LoadHistory()
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "op-1", history[0].ID)
	assert.Equal(t, bulk.StatusCompleted, history[0].Status)
	assert.Equal(t, 2, history[0].ProcessedItems)
	assert.Len(t, history[0].Results, 2)
	assert.Equal(t, "open", history[0].Results[0].Rollback.PriorStatus)

	undo, err := s.LoadUndoHistory()
	require.NoError(t, err)
	require.Len(t, undo, 1)
	assert.Equal(t, "u-1", undo[0].ID)
	require.NotNil(t, undo[0].Payload.Close)
	assert.Equal(t, "open", undo[0].Payload.Close.PriorStatus["p-1"])
}

func TestFileStoreSavesDoNotClobberEachOther(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := NewFileStore(path)
	require.NoError(t, err)

	require.NoError(t, s.SaveHistory([]*bulk.Operation{sampleOperation("op-1")}))
	require.NoError(t, s.SaveUndoHistory([]bulk.UndoableAction{sampleUndo("u-1")}))
	require.NoError(t, s.SaveHistory([]*bulk.Operation{sampleOperation("op-2")}))

	undo, err := s.LoadUndoHistory()
	require.NoError(t, err)
	assert.Len(t, undo, 1)

	history, err := s.LoadHistory()
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "op-2", history[0].ID)
}

func TestFileStoreMissingFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.json")
	s, err := NewFileStore(path)
	require.NoError(t, err)

	history, err := s.LoadHistory()
	require.NoError(t, err)
	assert.Empty(t, history)

	undo, err := s.LoadUndoHistory()
	require.NoError(t, err)
	assert.Empty(t, undo)
}

func TestFileStoreCreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "state.json")
	_, err := NewFileStore(path)
	require.NoError(t, err)

	_, err = os.Stat(filepath.Dir(path))
	assert.NoError(t, err)
}

func TestFileStoreRejectsEmptyPath(t *testing.T) {
	_, err := NewFileStore("")
	assert.Error(t, err)
}

func TestPersistedOperationCap(t *testing.T) {
	s := NewMemoryStore()

	ops := make([]*bulk.Operation, 0, MaxPersistedOperations+10)
	for i := 0; i < MaxPersistedOperations+10; i++ {
		ops = append(ops, sampleOperation(fmt.Sprintf("op-%d", i)))
	}
	require.NoError(t, s.SaveHistory(ops))

	loaded, err := s.LoadHistory()
	require.NoError(t, err)
	require.Len(t, loaded, MaxPersistedOperations)
	// Oldest entries are dropped; the newest survive.
	assert.Equal(t, fmt.Sprintf("op-%d", MaxPersistedOperations+9), loaded[len(loaded)-1].ID)
}

func TestPersistedUndoCap(t *testing.T) {
	s := NewMemoryStore()

	// The engine hands the store a newest-first slice; the cap keeps the head.
	actions := make([]bulk.UndoableAction, 0, MaxPersistedUndo+5)
	for i := 0; i < MaxPersistedUndo+5; i++ {
		actions = append(actions, sampleUndo(fmt.Sprintf("u-%d", i)))
	}
	require.NoError(t, s.SaveUndoHistory(actions))

	loaded, err := s.LoadUndoHistory()
	require.NoError(t, err)
	require.Len(t, loaded, MaxPersistedUndo)
	assert.Equal(t, "u-0", loaded[0].ID)
}

func TestDecodeGarbageFails(t *testing.T) {
	_, err := decode([]byte("{not json"))
	assert.Error(t, err)
}
