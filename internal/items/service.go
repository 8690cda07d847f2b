// Package items provides the in-memory item book behind the bulk engine's
// built-in action handlers: positions, trades, alerts, and orders with the
// per-item mutations each bulk action performs. Deployments that act against
// a remote system register their own handlers instead.
package items

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"deskops/internal/bulk"
)

// Item is one entry in the book. Fields cover what every bulk action can
// touch; which ones are meaningful depends on the item type.
type Item struct {
	ID        string        `json:"id"`
	Type      bulk.ItemType `json:"type"`
	Symbol    string        `json:"symbol"`
	Status    string        `json:"status"`
	Enabled   bool          `json:"enabled"`
	Tags      []string      `json:"tags,omitempty"`
	Notes     string        `json:"notes,omitempty"`
	Quantity  float64       `json:"quantity,omitempty"`
	Price     float64       `json:"price,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Item statuses used by the built-in handlers.
const (
	StatusOpen      = "open"
	StatusClosed    = "closed"
	StatusCancelled = "cancelled"
	StatusArchived  = "archived"
)

// Service owns the item book. All access is mutex-guarded; handlers mutate
// items only through the service.
type Service struct {
	mu     sync.RWMutex
	books  map[bulk.ItemType]map[string]*Item
	logger *slog.Logger
}

// NewService creates an empty item service.
func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	books := make(map[bulk.ItemType]map[string]*Item, len(bulk.KnownItemTypes))
	for _, itemType := range bulk.KnownItemTypes {
		books[itemType] = make(map[string]*Item)
	}
	return &Service{
		books:  books,
		logger: logger.With(slog.String("component", "items.service")),
	}
}

// Put inserts or replaces an item in its type's book.
func (s *Service) Put(item Item) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	item.UpdatedAt = time.Now()

	book, ok := s.books[item.Type]
	if !ok {
		book = make(map[string]*Item)
		s.books[item.Type] = book
	}
	stored := item
	book[item.ID] = &stored
}

// Get returns a copy of one item.
func (s *Service) Get(itemType bulk.ItemType, id string) (Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.books[itemType][id]
	if !ok {
		return Item{}, false
	}
	return cloneItem(item), true
}

// List returns copies of every item of the given type, sorted by id.
func (s *Service) List(itemType bulk.ItemType) []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()

	book := s.books[itemType]
	items := make([]Item, 0, len(book))
	for _, item := range book {
		items = append(items, cloneItem(item))
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

// IDs returns every id of the given type, sorted.
func (s *Service) IDs(itemType bulk.ItemType) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	book := s.books[itemType]
	ids := make([]string, 0, len(book))
	for id := range book {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Delete removes an item, returning its final state.
func (s *Service) Delete(itemType bulk.ItemType, id string) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.books[itemType][id]
	if !ok {
		return Item{}, false
	}
	delete(s.books[itemType], id)
	return cloneItem(item), true
}

// update applies fn to one item under the lock. Returns false when the item
// does not exist.
func (s *Service) update(itemType bulk.ItemType, id string, fn func(*Item)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.books[itemType][id]
	if !ok {
		return false
	}
	fn(item)
	item.UpdatedAt = time.Now()
	return true
}

// cloneItem deep-copies an item.
func cloneItem(item *Item) Item {
	clone := *item
	if len(item.Tags) > 0 {
		clone.Tags = append([]string(nil), item.Tags...)
	}
	return clone
}

// snapshot converts an item into the plain serializable map carried in a
// delete rollback payload.
func snapshot(item Item) (map[string]any, error) {
	data, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot item %s: %w", item.ID, err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to snapshot item %s: %w", item.ID, err)
	}
	return m, nil
}

// itemFromSnapshot rebuilds an item from a delete rollback snapshot.
func itemFromSnapshot(m map[string]any) (Item, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return Item{}, fmt.Errorf("failed to restore item snapshot: %w", err)
	}
	var item Item
	if err := json.Unmarshal(data, &item); err != nil {
		return Item{}, fmt.Errorf("failed to restore item snapshot: %w", err)
	}
	return item, nil
}
