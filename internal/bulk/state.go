package bulk

import (
	"fmt"
	"sync"
	"time"
)

// OperationStatus represents the overall operation status enum.
type OperationStatus string

const (
	StatusPending    OperationStatus = "pending"
	StatusInProgress OperationStatus = "in_progress"
	StatusCompleted  OperationStatus = "completed"
	StatusFailed     OperationStatus = "failed"
	StatusCancelled  OperationStatus = "cancelled"
)

// IsTerminal reports whether the status admits no further transitions.
func (s OperationStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Operation is the complete state of one bulk operation. All mutation goes
// through its methods; observers receive copies via Clone. Once the status is
// terminal the operation is immutable.
type Operation struct {
	mu sync.RWMutex

	ID         string          `json:"id"`
	ActionType ActionType      `json:"action_type"`
	ItemType   ItemType        `json:"item_type"`
	ItemIDs    []string        `json:"item_ids"`
	Status     OperationStatus `json:"status"`

	// Progress is derived from ProcessedItems/TotalItems, never authoritative.
	Progress       float64 `json:"progress"`
	TotalItems     int     `json:"total_items"`
	ProcessedItems int     `json:"processed_items"`
	FailedItems    int     `json:"failed_items"`

	Results []ItemResult `json:"results,omitempty"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	CanUndo bool   `json:"can_undo"`
	Error   string `json:"error,omitempty"`

	cancelRequested bool
}

// NewOperation creates an operation in progress over the given ids. The
// lifecycle has no observable pending phase: Start transitions straight to
// in_progress.
func NewOperation(id string, action ActionType, itemType ItemType, itemIDs []string) *Operation {
	ids := make([]string, len(itemIDs))
	copy(ids, itemIDs)

	return &Operation{
		ID:         id,
		ActionType: action,
		ItemType:   itemType,
		ItemIDs:    ids,
		Status:     StatusInProgress,
		TotalItems: len(ids),
		StartedAt:  time.Now(),
	}
}

// UpdateProgress accumulates processed and failed counts after one chunk and
// recomputes the derived percentage. Only legal while in progress.
func (op *Operation) UpdateProgress(processedDelta, failedDelta int) error {
	op.mu.Lock()
	defer op.mu.Unlock()

	if op.Status != StatusInProgress {
		return NewInvalidStateError(op.ID, op.Status)
	}
	if processedDelta < 0 || failedDelta < 0 || failedDelta > processedDelta {
		return NewValidationError(fmt.Sprintf(
			"invalid progress delta: processed=%d failed=%d", processedDelta, failedDelta))
	}
	if op.ProcessedItems+processedDelta > op.TotalItems {
		return NewValidationError(fmt.Sprintf(
			"processed items %d would exceed total %d", op.ProcessedItems+processedDelta, op.TotalItems))
	}

	op.ProcessedItems += processedDelta
	op.FailedItems += failedDelta
	op.recomputeProgress()
	return nil
}

// AppendResults records per-item outcomes for one chunk.
func (op *Operation) AppendResults(results []ItemResult) error {
	op.mu.Lock()
	defer op.mu.Unlock()

	if op.Status != StatusInProgress {
		return NewInvalidStateError(op.ID, op.Status)
	}
	op.Results = append(op.Results, results...)
	return nil
}

// Complete transitions in_progress -> completed. Partial failure is not an
// overall failure; CanUndo is set only when the action type supports reversal
// and at least one item succeeded.
func (op *Operation) Complete() error {
	op.mu.Lock()
	defer op.mu.Unlock()

	if op.Status != StatusInProgress {
		return NewInvalidStateError(op.ID, op.Status)
	}
	now := time.Now()
	op.CompletedAt = &now
	op.Status = StatusCompleted
	op.CanUndo = IsUndoableAction(op.ActionType) && op.FailedItems < op.TotalItems
	op.recomputeProgress()
	return nil
}

// Fail transitions in_progress -> failed. Reserved for cases where the
// operation itself cannot proceed, not for per-item failures.
func (op *Operation) Fail(err error) error {
	op.mu.Lock()
	defer op.mu.Unlock()

	if op.Status != StatusInProgress {
		return NewInvalidStateError(op.ID, op.Status)
	}
	now := time.Now()
	op.CompletedAt = &now
	op.Status = StatusFailed
	if err != nil {
		op.Error = err.Error()
	}
	return nil
}

// RequestCancel sets the cooperative cancellation flag. The transition to
// cancelled happens at the next inter-batch checkpoint in the executor, not
// here.
func (op *Operation) RequestCancel() error {
	op.mu.Lock()
	defer op.mu.Unlock()

	if op.Status != StatusInProgress {
		return NewInvalidStateError(op.ID, op.Status)
	}
	op.cancelRequested = true
	return nil
}

// CancelRequested reports whether cooperative cancellation was requested.
func (op *Operation) CancelRequested() bool {
	op.mu.RLock()
	defer op.mu.RUnlock()
	return op.cancelRequested
}

// MarkCancelled transitions in_progress -> cancelled at an inter-batch
// checkpoint. Unattempted ids stay out of the result set.
func (op *Operation) MarkCancelled() error {
	op.mu.Lock()
	defer op.mu.Unlock()

	if op.Status != StatusInProgress {
		return NewInvalidStateError(op.ID, op.Status)
	}
	now := time.Now()
	op.CompletedAt = &now
	op.Status = StatusCancelled
	return nil
}

// GetStatus returns the current status.
func (op *Operation) GetStatus() OperationStatus {
	op.mu.RLock()
	defer op.mu.RUnlock()
	return op.Status
}

// Duration returns how long the operation ran, or has been running.
func (op *Operation) Duration() time.Duration {
	op.mu.RLock()
	defer op.mu.RUnlock()
	if op.CompletedAt != nil {
		return op.CompletedAt.Sub(op.StartedAt)
	}
	return time.Since(op.StartedAt)
}

// SucceededIDs returns the ids whose recorded result was a success.
func (op *Operation) SucceededIDs() []string {
	op.mu.RLock()
	defer op.mu.RUnlock()

	var ids []string
	for _, res := range op.Results {
		if res.Success {
			ids = append(ids, res.ItemID)
		}
	}
	return ids
}

// FailedIDs returns the ids whose recorded result was a failure.
func (op *Operation) FailedIDs() []string {
	op.mu.RLock()
	defer op.mu.RUnlock()

	var ids []string
	for _, res := range op.Results {
		if !res.Success {
			ids = append(ids, res.ItemID)
		}
	}
	return ids
}

// Clone creates a deep copy of the operation for observers.
func (op *Operation) Clone() *Operation {
	op.mu.RLock()
	defer op.mu.RUnlock()

	clone := &Operation{
		ID:             op.ID,
		ActionType:     op.ActionType,
		ItemType:       op.ItemType,
		ItemIDs:        make([]string, len(op.ItemIDs)),
		Status:         op.Status,
		Progress:       op.Progress,
		TotalItems:     op.TotalItems,
		ProcessedItems: op.ProcessedItems,
		FailedItems:    op.FailedItems,
		StartedAt:      op.StartedAt,
		CanUndo:        op.CanUndo,
		Error:          op.Error,
	}
	copy(clone.ItemIDs, op.ItemIDs)

	if op.CompletedAt != nil {
		completed := *op.CompletedAt
		clone.CompletedAt = &completed
	}

	if len(op.Results) > 0 {
		clone.Results = make([]ItemResult, len(op.Results))
		copy(clone.Results, op.Results)
	}

	return clone
}

// recomputeProgress derives the percentage. Caller must hold the lock.
func (op *Operation) recomputeProgress() {
	if op.TotalItems == 0 {
		op.Progress = 0
		return
	}
	op.Progress = float64(op.ProcessedItems) / float64(op.TotalItems) * 100
}
