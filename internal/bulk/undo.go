package bulk

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// RollbackPayload is a tagged union keyed by action type, one payload shape
// per undoable action. Every shape is plain serializable data keyed by item
// id; payloads are validated at push time rather than trusted as opaque.
type RollbackPayload struct {
	Kind    ActionType      `json:"kind"`
	Close   *CloseRollback  `json:"close,omitempty"`
	Delete  *DeleteRollback `json:"delete,omitempty"`
	Tag     *TagRollback    `json:"tag,omitempty"`
	Enable  *ToggleRollback `json:"enable,omitempty"`
	Disable *ToggleRollback `json:"disable,omitempty"`
}

// CloseRollback restores the status each item held before it was closed.
type CloseRollback struct {
	PriorStatus map[string]string `json:"prior_status"`
}

// DeleteRollback restores full snapshots of deleted items.
type DeleteRollback struct {
	Items map[string]map[string]any `json:"items"`
}

// TagRollback restores the tag list each item held before tagging. Applied
// keeps the tags the action added so redo can re-apply them.
type TagRollback struct {
	PriorTags map[string][]string `json:"prior_tags"`
	Applied   map[string][]string `json:"applied,omitempty"`
}

// ToggleRollback restores the enabled flag each item held before the toggle.
type ToggleRollback struct {
	PriorEnabled map[string]bool `json:"prior_enabled"`
}

// Validate checks that exactly the shape matching Kind is populated.
func (p *RollbackPayload) Validate() error {
	if p == nil {
		return NewUndoError(UndoReasonInvalidPayload, "rollback payload is nil")
	}

	switch p.Kind {
	case ActionClose:
		if p.Close == nil || len(p.Close.PriorStatus) == 0 {
			return NewUndoError(UndoReasonInvalidPayload, "close payload missing prior statuses")
		}
	case ActionDelete:
		if p.Delete == nil || len(p.Delete.Items) == 0 {
			return NewUndoError(UndoReasonInvalidPayload, "delete payload missing item snapshots")
		}
	case ActionTag:
		if p.Tag == nil || len(p.Tag.PriorTags) == 0 {
			return NewUndoError(UndoReasonInvalidPayload, "tag payload missing prior tags")
		}
	case ActionEnable:
		if p.Enable == nil || len(p.Enable.PriorEnabled) == 0 {
			return NewUndoError(UndoReasonInvalidPayload, "enable payload missing prior flags")
		}
	case ActionDisable:
		if p.Disable == nil || len(p.Disable.PriorEnabled) == 0 {
			return NewUndoError(UndoReasonInvalidPayload, "disable payload missing prior flags")
		}
	default:
		return NewUndoError(UndoReasonNotUndoable,
			fmt.Sprintf("action type %q does not support rollback", p.Kind))
	}
	return nil
}

// BuildRollbackPayload assembles the action-level payload from the per-item
// rollback fragments of succeeded results. Returns nil when the action type
// is not undoable or no fragment was captured.
func BuildRollbackPayload(action ActionType, results []ItemResult) *RollbackPayload {
	if !IsUndoableAction(action) {
		return nil
	}

	payload := &RollbackPayload{Kind: action}
	captured := false

	for _, res := range results {
		if !res.Success || res.Rollback == nil {
			continue
		}
		entry := res.Rollback
		switch action {
		case ActionClose:
			if payload.Close == nil {
				payload.Close = &CloseRollback{PriorStatus: make(map[string]string)}
			}
			payload.Close.PriorStatus[res.ItemID] = entry.PriorStatus
		case ActionDelete:
			if payload.Delete == nil {
				payload.Delete = &DeleteRollback{Items: make(map[string]map[string]any)}
			}
			payload.Delete.Items[res.ItemID] = entry.Item
		case ActionTag:
			if payload.Tag == nil {
				payload.Tag = &TagRollback{
					PriorTags: make(map[string][]string),
					Applied:   make(map[string][]string),
				}
			}
			payload.Tag.PriorTags[res.ItemID] = entry.PriorTags
			if len(entry.AppliedTags) > 0 {
				payload.Tag.Applied[res.ItemID] = entry.AppliedTags
			}
		case ActionEnable, ActionDisable:
			enabled := false
			if entry.PriorEnabled != nil {
				enabled = *entry.PriorEnabled
			}
			toggle := payload.Enable
			if action == ActionDisable {
				toggle = payload.Disable
			}
			if toggle == nil {
				toggle = &ToggleRollback{PriorEnabled: make(map[string]bool)}
				if action == ActionEnable {
					payload.Enable = toggle
				} else {
					payload.Disable = toggle
				}
			}
			toggle.PriorEnabled[res.ItemID] = enabled
		}
		captured = true
	}

	if !captured {
		return nil
	}
	return payload
}

// UndoableAction is one reversible entry in the undo history. The payload
// must already be fully serializable; no live object references.
type UndoableAction struct {
	ID          string          `json:"id"`
	ActionType  ActionType      `json:"action_type"`
	ItemType    ItemType        `json:"item_type"`
	Timestamp   time.Time       `json:"timestamp"`
	Description string          `json:"description"`
	ItemIDs     []string        `json:"item_ids"`
	Payload     RollbackPayload `json:"payload"`
	CanUndo     bool            `json:"can_undo"`
}

// RollbackHandler applies and re-applies one action type's rollback payload.
// Undo restores the captured pre-action state; Redo re-applies the original
// action to the same items.
type RollbackHandler struct {
	Undo func(ctx context.Context, action UndoableAction) error
	Redo func(ctx context.Context, action UndoableAction) error
}

// UndoStack is the bounded undo/redo history. Pushing beyond the maximum
// evicts the oldest entry; pushing always clears the redo sequence.
type UndoStack struct {
	mu       sync.RWMutex
	undo     []UndoableAction
	redo     []UndoableAction
	maxSize  int
	handlers map[ActionType]RollbackHandler
}

// NewUndoStack creates an undo stack bounded at maxSize entries per sequence.
func NewUndoStack(maxSize int) *UndoStack {
	if maxSize <= 0 {
		maxSize = DefaultUndoDepth
	}
	return &UndoStack{
		maxSize:  maxSize,
		handlers: make(map[ActionType]RollbackHandler),
	}
}

// RegisterHandler installs the rollback handler for one action type.
func (s *UndoStack) RegisterHandler(action ActionType, handler RollbackHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[action] = handler
}

// Push appends an action to the undo history, evicting the oldest entry on
// overflow and clearing the redo history. The payload is validated here.
func (s *UndoStack) Push(action UndoableAction) error {
	if err := action.Payload.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.undo = append(s.undo, action)
	if len(s.undo) > s.maxSize {
		s.undo = s.undo[len(s.undo)-s.maxSize:]
	}
	s.redo = nil
	return nil
}

// Undo pops the most recent entry, applies its rollback payload through the
// type-keyed handler, and pushes the entry onto the redo history. The stack
// is left unmodified on failure.
func (s *UndoStack) Undo(ctx context.Context) (*UndoableAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.undo) == 0 {
		return nil, NewUndoError(UndoReasonEmptyStack, "undo history is empty")
	}

	action := s.undo[len(s.undo)-1]
	if !action.CanUndo || !IsUndoableAction(action.ActionType) {
		return nil, NewUndoError(UndoReasonNotUndoable,
			fmt.Sprintf("action type %q is not undoable", action.ActionType))
	}

	handler, ok := s.handlers[action.ActionType]
	if !ok || handler.Undo == nil {
		return nil, NewUndoError(UndoReasonNotUndoable,
			fmt.Sprintf("no rollback handler registered for %q", action.ActionType))
	}

	if err := handler.Undo(ctx, action); err != nil {
		return nil, NewUndoError(UndoReasonInvalidPayload,
			fmt.Sprintf("rollback failed: %v", err))
	}

	s.undo = s.undo[:len(s.undo)-1]
	s.redo = append(s.redo, action)
	if len(s.redo) > s.maxSize {
		s.redo = s.redo[len(s.redo)-s.maxSize:]
	}
	return &action, nil
}

// Redo pops the most recent undone entry, re-applies the action, and pushes
// it back onto the undo history. Symmetric failure modes with Undo.
func (s *UndoStack) Redo(ctx context.Context) (*UndoableAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.redo) == 0 {
		return nil, NewUndoError(UndoReasonEmptyStack, "redo history is empty")
	}

	action := s.redo[len(s.redo)-1]
	if !action.CanUndo || !IsUndoableAction(action.ActionType) {
		return nil, NewUndoError(UndoReasonNotUndoable,
			fmt.Sprintf("action type %q is not undoable", action.ActionType))
	}

	handler, ok := s.handlers[action.ActionType]
	if !ok || handler.Redo == nil {
		return nil, NewUndoError(UndoReasonNotUndoable,
			fmt.Sprintf("no rollback handler registered for %q", action.ActionType))
	}

	if err := handler.Redo(ctx, action); err != nil {
		return nil, NewUndoError(UndoReasonInvalidPayload,
			fmt.Sprintf("redo failed: %v", err))
	}

	s.redo = s.redo[:len(s.redo)-1]
	s.undo = append(s.undo, action)
	if len(s.undo) > s.maxSize {
		s.undo = s.undo[len(s.undo)-s.maxSize:]
	}
	return &action, nil
}

// UndoDepth returns the number of entries in the undo history.
func (s *UndoStack) UndoDepth() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.undo)
}

// RedoDepth returns the number of entries in the redo history.
func (s *UndoStack) RedoDepth() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.redo)
}

// RecentUndoHistory returns up to limit entries of undo history, newest
// first. This bounded slice is what the persistence layer durably mirrors.
func (s *UndoStack) RecentUndoHistory(limit int) []UndoableAction {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.undo) {
		limit = len(s.undo)
	}
	recent := make([]UndoableAction, 0, limit)
	for i := len(s.undo) - 1; i >= len(s.undo)-limit; i-- {
		recent = append(recent, s.undo[i])
	}
	return recent
}

// RestoreUndoHistory seeds the undo history from persisted entries, newest
// first as RecentUndoHistory wrote them. Used once at startup; entries beyond
// the maximum are dropped oldest first. The first restored entry is the next
// one Undo reverses.
func (s *UndoStack) RestoreUndoHistory(actions []UndoableAction) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(actions) > s.maxSize {
		actions = actions[:s.maxSize]
	}
	s.undo = make([]UndoableAction, 0, len(actions))
	for i := len(actions) - 1; i >= 0; i-- {
		s.undo = append(s.undo, actions[i])
	}
	s.redo = nil
}
