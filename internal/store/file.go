package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"deskops/internal/bulk"
)

// FileStore persists engine state as a single JSON document on disk. Writes
// go through a temp file and rename so a crash mid-write never corrupts the
// previous state.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a file store at path, creating parent directories as
// needed.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

// SaveHistory implements bulk.HistoryStore.
func (s *FileStore) SaveHistory(operations []*bulk.Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	return s.write(operations, doc.Undo)
}

// LoadHistory implements bulk.HistoryStore.
func (s *FileStore) LoadHistory() ([]*bulk.Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	return doc.Operations, nil
}

// SaveUndoHistory implements bulk.HistoryStore.
func (s *FileStore) SaveUndoHistory(actions []bulk.UndoableAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	return s.write(doc.Operations, actions)
}

// LoadUndoHistory implements bulk.HistoryStore.
func (s *FileStore) LoadUndoHistory() ([]bulk.UndoableAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	return doc.Undo, nil
}

// read loads the current document, treating a missing file as empty state.
// Caller must hold mu.
func (s *FileStore) read() (*document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &document{}, nil
		}
		return nil, fmt.Errorf("failed to read store file: %w", err)
	}
	return decode(data)
}

// write atomically replaces the document. Caller must hold mu.
func (s *FileStore) write(operations []*bulk.Operation, undo []bulk.UndoableAction) error {
	data, err := encode(operations, undo)
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write store file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace store file: %w", err)
	}
	return nil
}
