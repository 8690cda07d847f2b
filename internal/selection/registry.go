// Package selection tracks which item ids the operator has selected,
// namespaced by item type. Every mutation is idempotent pure set arithmetic
// with no side effects beyond the registry's own state.
package selection

import (
	"sort"
	"sync"
)

// Mode describes a selection relative to a caller-supplied total id list.
type Mode string

const (
	ModeNone    Mode = "none"
	ModePartial Mode = "partial"
	ModeAll     Mode = "all"
)

// Registry holds one independent id set per item type key.
type Registry struct {
	mu       sync.RWMutex
	selected map[string]map[string]bool
}

// NewRegistry creates an empty selection registry.
func NewRegistry() *Registry {
	return &Registry{
		selected: make(map[string]map[string]bool),
	}
}

// Select adds id to the item type's set. Selecting an already-selected id is
// a no-op.
func (r *Registry) Select(itemType, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.selected[itemType]
	if !ok {
		set = make(map[string]bool)
		r.selected[itemType] = set
	}
	set[id] = true
}

// Deselect removes id from the item type's set. Deselecting an absent id is
// a no-op.
func (r *Registry) Deselect(itemType, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if set, ok := r.selected[itemType]; ok {
		delete(set, id)
	}
}

// Toggle flips the membership of id in the item type's set.
func (r *Registry) Toggle(itemType, id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.selected[itemType]
	if !ok {
		set = make(map[string]bool)
		r.selected[itemType] = set
	}
	if set[id] {
		delete(set, id)
	} else {
		set[id] = true
	}
}

// SelectAll replaces the item type's set with every id in allIDs.
func (r *Registry) SelectAll(itemType string, allIDs []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set := make(map[string]bool, len(allIDs))
	for _, id := range allIDs {
		set[id] = true
	}
	r.selected[itemType] = set
}

// DeselectAll empties the item type's set.
func (r *Registry) DeselectAll(itemType string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.selected, itemType)
}

// Clear is an alias of DeselectAll kept for the engine's post-completion
// cleanup path.
func (r *Registry) Clear(itemType string) {
	r.DeselectAll(itemType)
}

// IsSelected reports whether id is in the item type's set.
func (r *Registry) IsSelected(itemType, id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.selected[itemType]
	return ok && set[id]
}

// SelectedIDs returns the selected ids for the item type in sorted order.
func (r *Registry) SelectedIDs(itemType string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.selected[itemType]
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Count returns the number of selected ids for the item type.
func (r *Registry) Count(itemType string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.selected[itemType])
}

// Mode derives the selection mode relative to the caller-supplied total id
// list.
func (r *Registry) Mode(itemType string, allIDs []string) Mode {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.selected[itemType]
	if len(set) == 0 {
		return ModeNone
	}

	selectedFromAll := 0
	for _, id := range allIDs {
		if set[id] {
			selectedFromAll++
		}
	}
	if len(allIDs) > 0 && selectedFromAll == len(allIDs) {
		return ModeAll
	}
	return ModePartial
}

// Retain narrows the item type's set to only the given ids, dropping
// everything else. Used to keep failed items selected after a partially
// failed operation so the operator can retry just those.
func (r *Registry) Retain(itemType string, ids []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.selected[itemType]
	if !ok {
		return
	}

	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		if set[id] {
			keep[id] = true
		}
	}
	r.selected[itemType] = keep
}
