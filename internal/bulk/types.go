package bulk

import (
	"context"
	"time"
)

// ItemType is the domain category a bulk operation targets. Selection state
// and operation concurrency are namespaced by item type.
type ItemType string

const (
	ItemTypePosition ItemType = "position"
	ItemTypeTrade    ItemType = "trade"
	ItemTypeAlert    ItemType = "alert"
	ItemTypeOrder    ItemType = "order"
)

// KnownItemTypes lists every item type the engine accepts.
var KnownItemTypes = []ItemType{
	ItemTypePosition,
	ItemTypeTrade,
	ItemTypeAlert,
	ItemTypeOrder,
}

// IsValidItemType reports whether t is one of the known item types.
func IsValidItemType(t ItemType) bool {
	for _, known := range KnownItemTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ActionType identifies the bulk action applied to every selected item.
type ActionType string

const (
	ActionClose        ActionType = "close"
	ActionCancel       ActionType = "cancel"
	ActionTag          ActionType = "tag"
	ActionExport       ActionType = "export"
	ActionDelete       ActionType = "delete"
	ActionEnable       ActionType = "enable"
	ActionDisable      ActionType = "disable"
	ActionDuplicate    ActionType = "duplicate"
	ActionUpdateStatus ActionType = "update_status"
	ActionUpdateTags   ActionType = "update_tags"
	ActionUpdateNotes  ActionType = "update_notes"
)

// KnownActionTypes lists every action type the engine accepts.
var KnownActionTypes = []ActionType{
	ActionClose,
	ActionCancel,
	ActionTag,
	ActionExport,
	ActionDelete,
	ActionEnable,
	ActionDisable,
	ActionDuplicate,
	ActionUpdateStatus,
	ActionUpdateTags,
	ActionUpdateNotes,
}

// IsValidActionType reports whether a is one of the known action types.
func IsValidActionType(a ActionType) bool {
	for _, known := range KnownActionTypes {
		if a == known {
			return true
		}
	}
	return false
}

// undoableActions is the closed set of action types that capture a rollback
// payload and are eligible for undo.
var undoableActions = map[ActionType]bool{
	ActionClose:   true,
	ActionDelete:  true,
	ActionTag:     true,
	ActionEnable:  true,
	ActionDisable: true,
}

// IsUndoableAction reports whether the action type supports reversal.
func IsUndoableAction(a ActionType) bool {
	return undoableActions[a]
}

// ActionMeta describes UI-facing metadata for one action type. The engine
// never enforces RequiresConfirmation; the UI layer decides whether to open
// a confirmation dialog before calling Start.
type ActionMeta struct {
	Action               ActionType `json:"action"`
	Label                string     `json:"label"`
	Undoable             bool       `json:"undoable"`
	RequiresConfirmation bool       `json:"requires_confirmation"`
}

// ActionCatalog returns the metadata for every known action type.
func ActionCatalog() []ActionMeta {
	labels := map[ActionType]string{
		ActionClose:        "Close",
		ActionCancel:       "Cancel",
		ActionTag:          "Tag",
		ActionExport:       "Export",
		ActionDelete:       "Delete",
		ActionEnable:       "Enable",
		ActionDisable:      "Disable",
		ActionDuplicate:    "Duplicate",
		ActionUpdateStatus: "Update Status",
		ActionUpdateTags:   "Update Tags",
		ActionUpdateNotes:  "Update Notes",
	}
	confirm := map[ActionType]bool{
		ActionClose:  true,
		ActionCancel: true,
		ActionDelete: true,
	}

	catalog := make([]ActionMeta, 0, len(KnownActionTypes))
	for _, a := range KnownActionTypes {
		catalog = append(catalog, ActionMeta{
			Action:               a,
			Label:                labels[a],
			Undoable:             IsUndoableAction(a),
			RequiresConfirmation: confirm[a],
		})
	}
	return catalog
}

// Event types carried in the websocket envelope
const (
	EventTypeOperationStatus   = "bulk:status"
	EventTypeOperationProgress = "bulk:progress"
	EventTypeOperationComplete = "bulk:complete"
	EventTypeOperationError    = "bulk:error"
)

// Execution defaults
const (
	DefaultBatchSize       = 10
	DefaultInterBatchDelay = 100 * time.Millisecond
	DefaultHistoryLimit    = 50
	DefaultUndoDepth       = 50
	DefaultPersistedUndo   = 20
)

// ItemResult records the per-item outcome of one bulk operation.
type ItemResult struct {
	ItemID   string         `json:"item_id"`
	Success  bool           `json:"success"`
	Error    string         `json:"error,omitempty"`
	Rollback *RollbackEntry `json:"rollback,omitempty"`
}

// RollbackEntry is the per-item fragment of a rollback payload, captured by
// the action handler before the destructive change was applied. It must be
// plain serializable data; the engine never snapshots live objects itself.
type RollbackEntry struct {
	PriorStatus  string         `json:"prior_status,omitempty"`
	PriorTags    []string       `json:"prior_tags,omitempty"`
	AppliedTags  []string       `json:"applied_tags,omitempty"`
	PriorEnabled *bool          `json:"prior_enabled,omitempty"`
	Item         map[string]any `json:"item,omitempty"`
}

// ExecuteOptions controls batching behavior for one operation.
type ExecuteOptions struct {
	BatchSize       int           `json:"batch_size"`
	InterBatchDelay time.Duration `json:"inter_batch_delay"`
}

// withDefaults fills unset options from the package defaults.
func (o ExecuteOptions) withDefaults() ExecuteOptions {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.InterBatchDelay < 0 {
		o.InterBatchDelay = DefaultInterBatchDelay
	}
	return o
}

// Handler executes one action against one chunk of item ids. It may return a
// structured per-item outcome list, which the engine uses verbatim; a nil
// list with a nil error, which the engine treats as success for the whole
// chunk; or an error, which the engine converts into a failure result for
// every id in the chunk. A handler error never aborts the operation.
type Handler func(ctx context.Context, ids []string) ([]ItemResult, error)
