package registry

import (
	"sync"
)

// Entry is a live watcher handle held by the registry.
type Entry interface {
	// ID identifies the handle; it must be stable for the handle's lifetime.
	ID() string
	// Unwatch tears the handle down. It must be idempotent and is expected
	// to call Registry.Unregister.
	Unwatch()
}

// Registry keeps the bound watchers of one application so they can be torn
// down together. It is an owned object, not a global: every Observer has its own.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
	order   []string
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]Entry),
	}
}

// Register adds an entry. It returns false if the ID is already registered.
func (r *Registry) Register(e Entry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := e.ID()
	if _, exists := r.entries[id]; exists {
		return false
	}
	r.entries[id] = e
	r.order = append(r.order, id)
	return true
}

// Unregister removes the entry with the given ID. It returns false if it
// was not registered.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[id]; !exists {
		return false
	}
	delete(r.entries, id)
	for i, other := range r.order {
		if other == id {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// List returns the registered entries in registration order.
func (r *Registry) List() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id])
	}
	return out
}

// Len returns the number of registered entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// UnwatchAll unwatches every registered entry and empties the registry.
// Entries are released outside the lock, so Unwatch may call Unregister.
// It returns the number of entries torn down.
func (r *Registry) UnwatchAll() int {
	entries := r.List()
	for _, e := range entries {
		e.Unwatch()
	}

	r.mu.Lock()
	r.entries = make(map[string]Entry)
	r.order = nil
	r.mu.Unlock()
	return len(entries)
}
