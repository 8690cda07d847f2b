package store

import (
	"sync"

	"deskops/internal/bulk"
)

// MemoryStore is the in-memory HistoryStore used by tests and by
// deployments that opt out of durability. It round-trips through the JSON
// codec so it exercises the same serialization path as the file store.
type MemoryStore struct {
	mu   sync.RWMutex
	data []byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// SaveHistory implements bulk.HistoryStore.
func (s *MemoryStore) SaveHistory(operations []*bulk.Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := decode(s.data)
	if err != nil {
		return err
	}
	data, err := encode(operations, doc.Undo)
	if err != nil {
		return err
	}
	s.data = data
	return nil
}

// LoadHistory implements bulk.HistoryStore.
func (s *MemoryStore) LoadHistory() ([]*bulk.Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, err := decode(s.data)
	if err != nil {
		return nil, err
	}
	return doc.Operations, nil
}

// SaveUndoHistory implements bulk.HistoryStore.
func (s *MemoryStore) SaveUndoHistory(actions []bulk.UndoableAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := decode(s.data)
	if err != nil {
		return err
	}
	data, err := encode(doc.Operations, actions)
	if err != nil {
		return err
	}
	s.data = data
	return nil
}

// LoadUndoHistory implements bulk.HistoryStore.
func (s *MemoryStore) LoadUndoHistory() ([]bulk.UndoableAction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, err := decode(s.data)
	if err != nil {
		return nil, err
	}
	return doc.Undo, nil
}
