package command

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Entry is anything a Registry can hold.
type Entry interface {
	// Key identifies the entry within its registry (command id or slash name).
	Key() string

	// Source tags the owner of the entry (e.g., "core", "plugin:com.example.foo").
	Source() string
}

// Policy decides what happens when a second source registers an existing key.
type Policy uint8

const (
	// PolicyLastWins lets the newest registration shadow earlier ones.
	// Removing the newest restores the previous entry.
	PolicyLastWins Policy = iota

	// PolicyReject refuses registrations whose key is held by another source.
	PolicyReject
)

// String returns the configuration name of the policy.
func (p Policy) String() string {
	switch p {
	case PolicyLastWins:
		return "last-wins"
	case PolicyReject:
		return "reject"
	default:
		return "unknown"
	}
}

// ParsePolicy converts a configuration string to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "last-wins":
		return PolicyLastWins, nil
	case "reject":
		return PolicyReject, nil
	default:
		return PolicyLastWins, fmt.Errorf("unknown collision policy %q", s)
	}
}

// Registry errors.
var (
	ErrEmptyKey      = errors.New("command key cannot be empty")
	ErrEmptySource   = errors.New("command source cannot be empty")
	ErrCommandExists = errors.New("command already registered by another source")
)

// Registry is a source-tagged store of entries. Each key holds a stack of
// entries from distinct sources; the top of the stack is the visible one.
type Registry[T Entry] struct {
	mu       sync.RWMutex
	policy   Policy
	stacks   map[string][]T
	bySource map[string]map[string]struct{}

	// onChange callbacks are called when entries are added/removed.
	onChange []func()
}

// NewRegistry creates an empty registry with the given collision policy.
func NewRegistry[T Entry](policy Policy) *Registry[T] {
	return &Registry[T]{
		policy:   policy,
		stacks:   make(map[string][]T),
		bySource: make(map[string]map[string]struct{}),
	}
}

// Policy returns the registry's collision policy.
func (r *Registry[T]) Policy() Policy {
	return r.policy
}

// Register adds an entry. Registering a key again from the same source is a
// no-op. A key held by a different source is shadowed or rejected according
// to the policy.
func (r *Registry[T]) Register(entry T) error {
	key, source := entry.Key(), entry.Source()
	if key == "" {
		return ErrEmptyKey
	}
	if source == "" {
		return ErrEmptySource
	}

	r.mu.Lock()
	stack := r.stacks[key]
	for _, existing := range stack {
		if existing.Source() == source {
			r.mu.Unlock()
			return nil
		}
	}
	if len(stack) > 0 && r.policy == PolicyReject {
		owner := stack[len(stack)-1].Source()
		r.mu.Unlock()
		return fmt.Errorf("%w: %q is owned by %s", ErrCommandExists, key, owner)
	}

	r.stacks[key] = append(stack, entry)
	keys, ok := r.bySource[source]
	if !ok {
		keys = make(map[string]struct{})
		r.bySource[source] = keys
	}
	keys[key] = struct{}{}
	r.mu.Unlock()

	r.notifyChange()
	return nil
}

// Unregister removes the entry a source holds for key.
func (r *Registry[T]) Unregister(key, source string) bool {
	r.mu.Lock()
	removed := r.removeLocked(key, source)
	r.mu.Unlock()

	if removed {
		r.notifyChange()
	}
	return removed
}

// UnregisterBySource removes every entry registered by source and returns
// how many were removed. Cost is proportional to the source's entries.
func (r *Registry[T]) UnregisterBySource(source string) int {
	r.mu.Lock()
	keys := r.bySource[source]
	count := 0
	for key := range keys {
		if r.removeLocked(key, source) {
			count++
		}
	}
	r.mu.Unlock()

	if count > 0 {
		r.notifyChange()
	}
	return count
}

func (r *Registry[T]) removeLocked(key, source string) bool {
	stack := r.stacks[key]
	idx := -1
	for i, e := range stack {
		if e.Source() == source {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}

	stack = append(stack[:idx], stack[idx+1:]...)
	if len(stack) == 0 {
		delete(r.stacks, key)
	} else {
		r.stacks[key] = stack
	}

	if keys := r.bySource[source]; keys != nil {
		delete(keys, key)
		if len(keys) == 0 {
			delete(r.bySource, source)
		}
	}
	return true
}

// Get returns the visible entry for key.
func (r *Registry[T]) Get(key string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stack := r.stacks[key]
	if len(stack) == 0 {
		var zero T
		return zero, false
	}
	return stack[len(stack)-1], true
}

// Has checks if key has a visible entry.
func (r *Registry[T]) Has(key string) bool {
	_, ok := r.Get(key)
	return ok
}

// All returns the visible entries sorted by key.
func (r *Registry[T]) All() []T {
	r.mu.RLock()
	result := make([]T, 0, len(r.stacks))
	for _, stack := range r.stacks {
		result = append(result, stack[len(stack)-1])
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].Key() < result[j].Key()
	})
	return result
}

// BySource returns every entry a source registered, shadowed or not,
// sorted by key.
func (r *Registry[T]) BySource(source string) []T {
	r.mu.RLock()
	result := make([]T, 0, len(r.bySource[source]))
	for key := range r.bySource[source] {
		for _, e := range r.stacks[key] {
			if e.Source() == source {
				result = append(result, e)
			}
		}
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].Key() < result[j].Key()
	})
	return result
}

// Sources returns every source with at least one entry.
func (r *Registry[T]) Sources() []string {
	r.mu.RLock()
	result := make([]string, 0, len(r.bySource))
	for source := range r.bySource {
		result = append(result, source)
	}
	r.mu.RUnlock()

	sort.Strings(result)
	return result
}

// Count returns the number of visible keys.
func (r *Registry[T]) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.stacks)
}

// OnChange registers a callback for registry changes.
// Callbacks run without the registry lock held.
func (r *Registry[T]) OnChange(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = append(r.onChange, fn)
}

func (r *Registry[T]) notifyChange() {
	r.mu.RLock()
	callbacks := make([]func(), len(r.onChange))
	copy(callbacks, r.onChange)
	r.mu.RUnlock()

	for _, fn := range callbacks {
		fn()
	}
}

// ErrNoRegistry is returned by a Registrar that lacks the target registry.
var ErrNoRegistry = errors.New("registry not available")
