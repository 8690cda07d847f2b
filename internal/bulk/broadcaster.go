package bulk

import (
	"log/slog"
	"sync"
	"time"
)

// Hub is the outbound push surface the broadcaster publishes snapshots to.
// Satisfied by the websocket hub; tests supply a recording fake.
type Hub interface {
	BroadcastUpdate(eventType string, payload any)
}

// OperationSnapshot is the observable state of one operation at a point in
// time. This is the only structure sent to the frontend; it is published
// after every chunk boundary, not only at completion.
type OperationSnapshot struct {
	OperationID    string          `json:"operation_id"`
	ActionType     ActionType      `json:"action_type"`
	ItemType       ItemType        `json:"item_type"`
	Status         OperationStatus `json:"status"`
	Progress       float64         `json:"progress"`
	TotalItems     int             `json:"total_items"`
	ProcessedItems int             `json:"processed_items"`
	FailedItems    int             `json:"failed_items"`
	CanUndo        bool            `json:"can_undo"`
	StartedAt      time.Time       `json:"started_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
	Error          string          `json:"error,omitempty"`
}

// StatusBroadcaster is the single authority for operation status updates
// visible to observers. It maintains a snapshot per operation and pushes
// every change over the hub.
type StatusBroadcaster struct {
	mu        sync.RWMutex
	snapshots map[string]*OperationSnapshot
	hub       Hub
	logger    *slog.Logger
}

// NewStatusBroadcaster creates a broadcaster publishing to hub. A nil hub is
// allowed; snapshots are then poll-only.
func NewStatusBroadcaster(hub Hub, logger *slog.Logger) *StatusBroadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusBroadcaster{
		snapshots: make(map[string]*OperationSnapshot),
		hub:       hub,
		logger:    logger.With(slog.String("component", "bulk.broadcaster")),
	}
}

// Publish records the operation's current state and pushes it to the hub.
func (b *StatusBroadcaster) Publish(op *Operation) {
	clone := op.Clone()
	snapshot := &OperationSnapshot{
		OperationID:    clone.ID,
		ActionType:     clone.ActionType,
		ItemType:       clone.ItemType,
		Status:         clone.Status,
		Progress:       clone.Progress,
		TotalItems:     clone.TotalItems,
		ProcessedItems: clone.ProcessedItems,
		FailedItems:    clone.FailedItems,
		CanUndo:        clone.CanUndo,
		StartedAt:      clone.StartedAt,
		UpdatedAt:      time.Now(),
		CompletedAt:    clone.CompletedAt,
		Error:          clone.Error,
	}

	b.mu.Lock()
	b.snapshots[snapshot.OperationID] = snapshot
	b.mu.Unlock()

	if b.hub == nil {
		return
	}

	eventType := EventTypeOperationProgress
	switch snapshot.Status {
	case StatusCompleted, StatusCancelled:
		eventType = EventTypeOperationComplete
	case StatusFailed:
		eventType = EventTypeOperationError
	}

	b.hub.BroadcastUpdate(eventType, snapshot)
	b.logger.Debug("snapshot_broadcast",
		slog.String("operation_id", snapshot.OperationID),
		slog.String("status", string(snapshot.Status)),
		slog.Float64("progress", snapshot.Progress))
}

// GetSnapshot returns the latest snapshot for an operation id.
func (b *StatusBroadcaster) GetSnapshot(operationID string) (*OperationSnapshot, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	snapshot, ok := b.snapshots[operationID]
	if !ok {
		return nil, false
	}
	clone := *snapshot
	return &clone, true
}

// ListSnapshots returns every tracked snapshot.
func (b *StatusBroadcaster) ListSnapshots() []*OperationSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	snapshots := make([]*OperationSnapshot, 0, len(b.snapshots))
	for _, snapshot := range b.snapshots {
		clone := *snapshot
		snapshots = append(snapshots, &clone)
	}
	return snapshots
}

// Remove drops the snapshot for an operation id, mirroring history eviction.
func (b *StatusBroadcaster) Remove(operationID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.snapshots, operationID)
}
