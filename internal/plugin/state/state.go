// Package state persists which plugins are enabled across restarts.
//
// Plugins are enabled unless their identifier is in the disabled set.
// Every change is written to the Store before SetEnabled returns.
package state

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// Store persists the disabled set.
type Store interface {
	// Load returns the persisted disabled identifiers. A store that was
	// never written returns an empty set.
	Load() ([]string, error)

	// Save replaces the persisted disabled set.
	Save(disabled []string) error

	Close() error
}

// Manager tracks enabled state in memory and persists every change.
type Manager struct {
	mu       sync.RWMutex
	store    Store
	disabled map[string]struct{}
	logger   *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a manager backed by store, reading the persisted set.
// A store that cannot be read is logged and treated as empty. A nil store
// keeps state in memory only.
func NewManager(store Store, opts ...Option) *Manager {
	if store == nil {
		store = NewMemoryStore()
	}
	m := &Manager{
		store:    store,
		disabled: make(map[string]struct{}),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}

	ids, err := store.Load()
	if err != nil {
		m.logger.Warn("plugin state unreadable, all plugins enabled", "error", err)
		return m
	}
	for _, id := range ids {
		m.disabled[id] = struct{}{}
	}
	return m
}

// IsEnabled reports whether id is enabled. Unknown identifiers are enabled.
func (m *Manager) IsEnabled(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, disabled := m.disabled[id]
	return !disabled
}

// SetEnabled records the enabled state of id and persists the disabled set.
// On a persistence error the in-memory change stands and the error is
// returned.
func (m *Manager) SetEnabled(id string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, disabled := m.disabled[id]
	if disabled != enabled {
		return nil
	}
	if enabled {
		delete(m.disabled, id)
	} else {
		m.disabled[id] = struct{}{}
	}

	if err := m.store.Save(m.sortedLocked()); err != nil {
		m.logger.Warn("failed to persist plugin state", "plugin", id, "enabled", enabled, "error", err)
		return fmt.Errorf("persist plugin state: %w", err)
	}
	return nil
}

// Disabled returns the disabled identifiers, sorted.
func (m *Manager) Disabled() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sortedLocked()
}

func (m *Manager) sortedLocked() []string {
	ids := make([]string, 0, len(m.disabled))
	for id := range m.disabled {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Close closes the store.
func (m *Manager) Close() error {
	return m.store.Close()
}

// MemoryStore keeps the disabled set in memory.
type MemoryStore struct {
	mu  sync.Mutex
	ids []string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(disabled ...string) *MemoryStore {
	return &MemoryStore{ids: slices.Clone(disabled)}
}

// Load implements Store.
func (s *MemoryStore) Load() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.ids), nil
}

// Save implements Store.
func (s *MemoryStore) Save(disabled []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = slices.Clone(disabled)
	return nil
}

// Close implements Store.
func (s *MemoryStore) Close() error { return nil }
