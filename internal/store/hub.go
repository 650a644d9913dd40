package store

import (
	"sync"
	"time"
)

// Hub fans change events out to per-table subscribers. Stores embed one to
// implement OnChange.
type Hub struct {
	mu   sync.RWMutex
	next int
	subs map[Table]map[int]ChangeHandler
}

func NewHub() *Hub {
	return &Hub{subs: make(map[Table]map[int]ChangeHandler)}
}

// Subscribe registers handler for table and returns the unsubscribe function.
func (h *Hub) Subscribe(table Table, handler ChangeHandler) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.next++
	id := h.next
	if h.subs[table] == nil {
		h.subs[table] = make(map[int]ChangeHandler)
	}
	h.subs[table][id] = handler

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[table], id)
		})
	}
}

// Publish delivers ev to every subscriber of ev.Table. Handlers run synchronously
// outside the hub lock.
func (h *Hub) Publish(ev ChangeEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	h.mu.RLock()
	handlers := make([]ChangeHandler, 0, len(h.subs[ev.Table]))
	for _, fn := range h.subs[ev.Table] {
		handlers = append(handlers, fn)
	}
	h.mu.RUnlock()

	for _, fn := range handlers {
		fn(ev)
	}
}

// Subscribers returns the number of handlers registered for table.
func (h *Hub) Subscribers(table Table) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[table])
}
