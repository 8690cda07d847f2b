package bulk

// HistoryStore durably mirrors bounded slices of terminal operation history
// and recent undo history. Selection state and in-flight operations are
// never persisted.
type HistoryStore interface {
	SaveHistory(operations []*Operation) error
	LoadHistory() ([]*Operation, error)
	SaveUndoHistory(actions []UndoableAction) error
	LoadUndoHistory() ([]UndoableAction, error)
}
