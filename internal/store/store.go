// Package store is the persistence boundary for the bulk engine. It durably
// mirrors a bounded list of terminal operations and a bounded slice of
// recent undo history as plain JSON under namespaced keys. Selection state
// and in-flight operations are never persisted.
package store

import (
	"encoding/json"
	"fmt"

	"deskops/internal/bulk"
)

// Namespaced keys for the persisted document.
const (
	KeyOperations = "deskops:operations"
	KeyUndo       = "deskops:undo"
)

// Caps on the persisted slices. The in-memory engine retains its own bound;
// these only limit what survives a restart.
const (
	MaxPersistedOperations = 50
	MaxPersistedUndo       = 20
)

// document is the on-disk layout, keyed the same way the persisted keys
// name the two slices.
type document struct {
	Operations []*bulk.Operation     `json:"deskops:operations"`
	Undo       []bulk.UndoableAction `json:"deskops:undo"`
}

// encode serializes the persisted document, enforcing the caps by keeping
// the newest entries.
func encode(operations []*bulk.Operation, undo []bulk.UndoableAction) ([]byte, error) {
	if len(operations) > MaxPersistedOperations {
		operations = operations[len(operations)-MaxPersistedOperations:]
	}
	if len(undo) > MaxPersistedUndo {
		undo = undo[:MaxPersistedUndo]
	}

	data, err := json.MarshalIndent(document{Operations: operations, Undo: undo}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode persisted state: %w", err)
	}
	return data, nil
}

// decode deserializes a persisted document. Empty input yields empty state.
func decode(data []byte) (*document, error) {
	doc := &document{}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to decode persisted state: %w", err)
	}
	return doc, nil
}
