// Package store holds the live set of overlay items keyed by producer id.
//
// The store is not safe for concurrent use. It is owned by the overlay engine
// loop, which is the only goroutine that mutates or reads it.
package store

import "time"

// Store is an insertion-ordered, TTL-aware table of items.
// Re-upserting an existing id replaces the item but keeps its position.
type Store struct {
	items map[string]Item
	order []string
}

// New creates an empty store.
func New() *Store {
	return &Store{
		items: make(map[string]Item),
	}
}

// Get returns the item with the given id.
func (s *Store) Get(id string) (Item, bool) {
	item, ok := s.items[id]
	return item, ok
}

// Upsert stores the item, overwriting any item with the same id.
func (s *Store) Upsert(item Item) {
	if _, exists := s.items[item.ID]; !exists {
		s.order = append(s.order, item.ID)
	}
	s.items[item.ID] = item
}

// Delete removes the item with the given id. Returns false if it was not present.
func (s *Store) Delete(id string) bool {
	if _, exists := s.items[id]; !exists {
		return false
	}
	delete(s.items, id)
	s.compact()
	return true
}

// Clear removes every item.
func (s *Store) Clear() {
	s.items = make(map[string]Item)
	s.order = nil
}

// PurgeExpired removes every item that is stale at now and reports whether
// anything was removed. Calling it again with the same now is a no-op.
func (s *Store) PurgeExpired(now time.Time) bool {
	removed := false
	for id, item := range s.items {
		if item.Expired(now) {
			delete(s.items, id)
			removed = true
		}
	}
	if removed {
		s.compact()
	}
	return removed
}

// Len returns the number of live items.
func (s *Store) Len() int {
	return len(s.items)
}

// IDs returns live ids in iteration order.
func (s *Store) IDs() []string {
	ids := make([]string, len(s.order))
	copy(ids, s.order)
	return ids
}

// Items returns a snapshot of live items in iteration order.
func (s *Store) Items() []Item {
	items := make([]Item, 0, len(s.order))
	for _, id := range s.order {
		items = append(items, s.items[id])
	}
	return items
}

// compact drops ids from the order slice that no longer have an item.
func (s *Store) compact() {
	kept := s.order[:0]
	for _, id := range s.order {
		if _, ok := s.items[id]; ok {
			kept = append(kept, id)
		}
	}
	s.order = kept
}
