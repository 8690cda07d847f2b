package items

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"deskops/internal/bulk"
)

// Exporter renders a set of items into a downloadable artifact. Implemented
// by the excelize-backed workbook writer in internal/export.
type Exporter interface {
	Export(itemType bulk.ItemType, items []Item) (string, error)
}

// HandlerSet builds the built-in bulk.Handler per (item type, action type)
// pair and the rollback handlers for the undoable actions.
type HandlerSet struct {
	service  *Service
	exporter Exporter

	// Defaults applied by the parameterless bulk actions.
	DefaultTag    string
	DefaultStatus string
	DefaultNote   string
}

// NewHandlerSet creates the built-in handler set over the given service.
func NewHandlerSet(service *Service, exporter Exporter) *HandlerSet {
	return &HandlerSet{
		service:       service,
		exporter:      exporter,
		DefaultTag:    "bulk-reviewed",
		DefaultStatus: StatusArchived,
		DefaultNote:   "updated via bulk action",
	}
}

// RegisterAll wires every built-in handler and rollback handler into the
// engine.
func (h *HandlerSet) RegisterAll(engine *bulk.Engine) {
	for _, itemType := range bulk.KnownItemTypes {
		engine.RegisterHandler(itemType, bulk.ActionClose, h.closeHandler(itemType))
		engine.RegisterHandler(itemType, bulk.ActionCancel, h.cancelHandler(itemType))
		engine.RegisterHandler(itemType, bulk.ActionTag, h.tagHandler(itemType))
		engine.RegisterHandler(itemType, bulk.ActionExport, h.exportHandler(itemType))
		engine.RegisterHandler(itemType, bulk.ActionDelete, h.deleteHandler(itemType))
		engine.RegisterHandler(itemType, bulk.ActionEnable, h.toggleHandler(itemType, true))
		engine.RegisterHandler(itemType, bulk.ActionDisable, h.toggleHandler(itemType, false))
		engine.RegisterHandler(itemType, bulk.ActionDuplicate, h.duplicateHandler(itemType))
		engine.RegisterHandler(itemType, bulk.ActionUpdateStatus, h.updateStatusHandler(itemType))
		engine.RegisterHandler(itemType, bulk.ActionUpdateTags, h.tagHandler(itemType))
		engine.RegisterHandler(itemType, bulk.ActionUpdateNotes, h.updateNotesHandler(itemType))
	}

	engine.RegisterRollback(bulk.ActionClose, h.closeRollback())
	engine.RegisterRollback(bulk.ActionDelete, h.deleteRollback())
	engine.RegisterRollback(bulk.ActionTag, h.tagRollback())
	engine.RegisterRollback(bulk.ActionEnable, h.toggleRollback(true))
	engine.RegisterRollback(bulk.ActionDisable, h.toggleRollback(false))
}

// closeHandler closes open items, capturing the prior status per item.
// Already-closed and unknown items are reported as per-item failures.
func (h *HandlerSet) closeHandler(itemType bulk.ItemType) bulk.Handler {
	return func(ctx context.Context, ids []string) ([]bulk.ItemResult, error) {
		results := make([]bulk.ItemResult, 0, len(ids))
		for _, id := range ids {
			item, ok := h.service.Get(itemType, id)
			if !ok {
				results = append(results, failure(id, "item not found"))
				continue
			}
			if item.Status == StatusClosed {
				results = append(results, failure(id, fmt.Sprintf("%s already closed", itemType)))
				continue
			}

			prior := item.Status
			h.service.update(itemType, id, func(it *Item) {
				it.Status = StatusClosed
			})
			results = append(results, bulk.ItemResult{
				ItemID:   id,
				Success:  true,
				Rollback: &bulk.RollbackEntry{PriorStatus: prior},
			})
		}
		return results, nil
	}
}

// cancelHandler marks items cancelled. Not undoable; no rollback captured.
func (h *HandlerSet) cancelHandler(itemType bulk.ItemType) bulk.Handler {
	return func(ctx context.Context, ids []string) ([]bulk.ItemResult, error) {
		results := make([]bulk.ItemResult, 0, len(ids))
		for _, id := range ids {
			item, ok := h.service.Get(itemType, id)
			if !ok {
				results = append(results, failure(id, "item not found"))
				continue
			}
			if item.Status == StatusCancelled {
				results = append(results, failure(id, fmt.Sprintf("%s already cancelled", itemType)))
				continue
			}
			h.service.update(itemType, id, func(it *Item) {
				it.Status = StatusCancelled
			})
			results = append(results, bulk.ItemResult{ItemID: id, Success: true})
		}
		return results, nil
	}
}

// tagHandler appends the default tag, capturing prior and applied tags so
// the action can be undone and redone.
func (h *HandlerSet) tagHandler(itemType bulk.ItemType) bulk.Handler {
	return func(ctx context.Context, ids []string) ([]bulk.ItemResult, error) {
		results := make([]bulk.ItemResult, 0, len(ids))
		for _, id := range ids {
			item, ok := h.service.Get(itemType, id)
			if !ok {
				results = append(results, failure(id, "item not found"))
				continue
			}

			prior := append([]string(nil), item.Tags...)
			if contains(item.Tags, h.DefaultTag) {
				// Idempotent: tagging an already-tagged item succeeds
				// without capturing a rollback fragment.
				results = append(results, bulk.ItemResult{ItemID: id, Success: true})
				continue
			}

			h.service.update(itemType, id, func(it *Item) {
				it.Tags = append(it.Tags, h.DefaultTag)
			})
			results = append(results, bulk.ItemResult{
				ItemID:  id,
				Success: true,
				Rollback: &bulk.RollbackEntry{
					PriorTags:   prior,
					AppliedTags: []string{h.DefaultTag},
				},
			})
		}
		return results, nil
	}
}

// exportHandler renders the chunk's items through the exporter. The export
// artifact is per chunk; a missing exporter fails the whole chunk.
func (h *HandlerSet) exportHandler(itemType bulk.ItemType) bulk.Handler {
	return func(ctx context.Context, ids []string) ([]bulk.ItemResult, error) {
		if h.exporter == nil {
			return nil, fmt.Errorf("no exporter configured")
		}

		var toExport []Item
		results := make([]bulk.ItemResult, 0, len(ids))
		var exported []string
		for _, id := range ids {
			item, ok := h.service.Get(itemType, id)
			if !ok {
				results = append(results, failure(id, "item not found"))
				continue
			}
			toExport = append(toExport, item)
			exported = append(exported, id)
		}

		if len(toExport) > 0 {
			if _, err := h.exporter.Export(itemType, toExport); err != nil {
				return nil, fmt.Errorf("export failed: %w", err)
			}
		}
		for _, id := range exported {
			results = append(results, bulk.ItemResult{ItemID: id, Success: true})
		}
		return results, nil
	}
}

// deleteHandler removes items, capturing full snapshots for restore.
func (h *HandlerSet) deleteHandler(itemType bulk.ItemType) bulk.Handler {
	return func(ctx context.Context, ids []string) ([]bulk.ItemResult, error) {
		results := make([]bulk.ItemResult, 0, len(ids))
		for _, id := range ids {
			item, ok := h.service.Get(itemType, id)
			if !ok {
				results = append(results, failure(id, "item not found"))
				continue
			}

			snap, err := snapshot(item)
			if err != nil {
				results = append(results, failure(id, err.Error()))
				continue
			}
			h.service.Delete(itemType, id)
			results = append(results, bulk.ItemResult{
				ItemID:   id,
				Success:  true,
				Rollback: &bulk.RollbackEntry{Item: snap},
			})
		}
		return results, nil
	}
}

// toggleHandler enables or disables items, capturing the prior flag.
func (h *HandlerSet) toggleHandler(itemType bulk.ItemType, enabled bool) bulk.Handler {
	return func(ctx context.Context, ids []string) ([]bulk.ItemResult, error) {
		results := make([]bulk.ItemResult, 0, len(ids))
		for _, id := range ids {
			item, ok := h.service.Get(itemType, id)
			if !ok {
				results = append(results, failure(id, "item not found"))
				continue
			}

			prior := item.Enabled
			h.service.update(itemType, id, func(it *Item) {
				it.Enabled = enabled
			})
			results = append(results, bulk.ItemResult{
				ItemID:   id,
				Success:  true,
				Rollback: &bulk.RollbackEntry{PriorEnabled: &prior},
			})
		}
		return results, nil
	}
}

// duplicateHandler copies items under fresh ids. Not undoable.
func (h *HandlerSet) duplicateHandler(itemType bulk.ItemType) bulk.Handler {
	return func(ctx context.Context, ids []string) ([]bulk.ItemResult, error) {
		results := make([]bulk.ItemResult, 0, len(ids))
		for _, id := range ids {
			item, ok := h.service.Get(itemType, id)
			if !ok {
				results = append(results, failure(id, "item not found"))
				continue
			}

			dup := item
			dup.ID = uuid.New().String()
			h.service.Put(dup)
			results = append(results, bulk.ItemResult{ItemID: id, Success: true})
		}
		return results, nil
	}
}

// updateStatusHandler sets the default status on every item.
func (h *HandlerSet) updateStatusHandler(itemType bulk.ItemType) bulk.Handler {
	return func(ctx context.Context, ids []string) ([]bulk.ItemResult, error) {
		results := make([]bulk.ItemResult, 0, len(ids))
		for _, id := range ids {
			if !h.service.update(itemType, id, func(it *Item) {
				it.Status = h.DefaultStatus
			}) {
				results = append(results, failure(id, "item not found"))
				continue
			}
			results = append(results, bulk.ItemResult{ItemID: id, Success: true})
		}
		return results, nil
	}
}

// updateNotesHandler appends the default note on every item.
func (h *HandlerSet) updateNotesHandler(itemType bulk.ItemType) bulk.Handler {
	return func(ctx context.Context, ids []string) ([]bulk.ItemResult, error) {
		results := make([]bulk.ItemResult, 0, len(ids))
		for _, id := range ids {
			if !h.service.update(itemType, id, func(it *Item) {
				if it.Notes == "" {
					it.Notes = h.DefaultNote
					return
				}
				it.Notes = strings.TrimSpace(it.Notes + "\n" + h.DefaultNote)
			}) {
				results = append(results, failure(id, "item not found"))
				continue
			}
			results = append(results, bulk.ItemResult{ItemID: id, Success: true})
		}
		return results, nil
	}
}

// closeRollback restores captured prior statuses on undo and re-closes on
// redo.
func (h *HandlerSet) closeRollback() bulk.RollbackHandler {
	return bulk.RollbackHandler{
		Undo: func(ctx context.Context, action bulk.UndoableAction) error {
			for id, prior := range action.Payload.Close.PriorStatus {
				status := prior
				if !h.service.update(action.ItemType, id, func(it *Item) {
					it.Status = status
				}) {
					return fmt.Errorf("item %s no longer exists", id)
				}
			}
			return nil
		},
		Redo: func(ctx context.Context, action bulk.UndoableAction) error {
			for id := range action.Payload.Close.PriorStatus {
				if !h.service.update(action.ItemType, id, func(it *Item) {
					it.Status = StatusClosed
				}) {
					return fmt.Errorf("item %s no longer exists", id)
				}
			}
			return nil
		},
	}
}

// deleteRollback restores deleted items from snapshots on undo and deletes
// them again on redo.
func (h *HandlerSet) deleteRollback() bulk.RollbackHandler {
	return bulk.RollbackHandler{
		Undo: func(ctx context.Context, action bulk.UndoableAction) error {
			for id, snap := range action.Payload.Delete.Items {
				item, err := itemFromSnapshot(snap)
				if err != nil {
					return fmt.Errorf("item %s: %w", id, err)
				}
				h.service.Put(item)
			}
			return nil
		},
		Redo: func(ctx context.Context, action bulk.UndoableAction) error {
			for id := range action.Payload.Delete.Items {
				h.service.Delete(action.ItemType, id)
			}
			return nil
		},
	}
}

// tagRollback restores prior tag lists on undo and re-applies the added tags
// on redo.
func (h *HandlerSet) tagRollback() bulk.RollbackHandler {
	return bulk.RollbackHandler{
		Undo: func(ctx context.Context, action bulk.UndoableAction) error {
			for id, prior := range action.Payload.Tag.PriorTags {
				tags := append([]string(nil), prior...)
				if !h.service.update(action.ItemType, id, func(it *Item) {
					it.Tags = tags
				}) {
					return fmt.Errorf("item %s no longer exists", id)
				}
			}
			return nil
		},
		Redo: func(ctx context.Context, action bulk.UndoableAction) error {
			for id, applied := range action.Payload.Tag.Applied {
				tags := applied
				if !h.service.update(action.ItemType, id, func(it *Item) {
					for _, tag := range tags {
						if !contains(it.Tags, tag) {
							it.Tags = append(it.Tags, tag)
						}
					}
				}) {
					return fmt.Errorf("item %s no longer exists", id)
				}
			}
			return nil
		},
	}
}

// toggleRollback restores prior enabled flags on undo and re-applies the
// toggle on redo.
func (h *HandlerSet) toggleRollback(enabled bool) bulk.RollbackHandler {
	payloadOf := func(action bulk.UndoableAction) map[string]bool {
		if enabled {
			return action.Payload.Enable.PriorEnabled
		}
		return action.Payload.Disable.PriorEnabled
	}

	return bulk.RollbackHandler{
		Undo: func(ctx context.Context, action bulk.UndoableAction) error {
			for id, prior := range payloadOf(action) {
				flag := prior
				if !h.service.update(action.ItemType, id, func(it *Item) {
					it.Enabled = flag
				}) {
					return fmt.Errorf("item %s no longer exists", id)
				}
			}
			return nil
		},
		Redo: func(ctx context.Context, action bulk.UndoableAction) error {
			for id := range payloadOf(action) {
				if !h.service.update(action.ItemType, id, func(it *Item) {
					it.Enabled = enabled
				}) {
					return fmt.Errorf("item %s no longer exists", id)
				}
			}
			return nil
		},
	}
}

func failure(id, message string) bulk.ItemResult {
	return bulk.ItemResult{ItemID: id, Success: false, Error: message}
}

func contains(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
