package sensor

import "sync"

// History is a bounded in-memory list of processed readings, oldest first.
type History struct {
	mu    sync.RWMutex
	limit int
	items []Processed
}

// NewHistory creates a History holding at most limit entries (minimum 1).
func NewHistory(limit int) *History {
	if limit < 1 {
		limit = 1
	}

	return &History{limit: limit}
}

// Add appends p, evicting the oldest entry when full.
func (h *History) Add(p Processed) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.items) == h.limit {
		copy(h.items, h.items[1:])
		h.items = h.items[:len(h.items)-1]
	}

	h.items = append(h.items, p)
}

// Latest returns the newest entry.
func (h *History) Latest() (Processed, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.items) == 0 {
		return Processed{}, false
	}

	return h.items[len(h.items)-1], true
}

// All returns a copy of every entry.
func (h *History) All() []Processed {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Processed, len(h.items))
	copy(out, h.items)

	return out
}

// Len returns the number of stored entries.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.items)
}

// Clear drops every entry and returns how many were removed.
func (h *History) Clear() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := len(h.items)
	h.items = nil

	return n
}
