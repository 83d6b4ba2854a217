package command

import (
	"slices"
	"sync"
)

// defaultHistorySize bounds a History created with a non-positive capacity.
const defaultHistorySize = 100

// History remembers executed command IDs, most recent first. Search uses it
// to rank recently run commands ahead of equal matches.
type History struct {
	mu   sync.Mutex
	ids  []string
	size int
}

// NewHistory creates a history holding at most size IDs.
func NewHistory(size int) *History {
	if size <= 0 {
		size = defaultHistorySize
	}
	return &History{size: size}
}

// Add moves id to the front, dropping the oldest entry when full.
func (h *History) Add(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if i := slices.Index(h.ids, id); i >= 0 {
		h.ids = slices.Delete(h.ids, i, i+1)
	}
	h.ids = slices.Insert(h.ids, 0, id)
	if len(h.ids) > h.size {
		h.ids = h.ids[:h.size]
	}
}

// Recent returns up to n IDs, newest first. n <= 0 returns all.
func (h *History) Recent(n int) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n <= 0 || n > len(h.ids) {
		n = len(h.ids)
	}
	return slices.Clone(h.ids[:n])
}

// Position returns the rank of id (0 = most recent), or -1.
func (h *History) Position(id string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Index(h.ids, id)
}

// Len returns the number of remembered IDs.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.ids)
}
