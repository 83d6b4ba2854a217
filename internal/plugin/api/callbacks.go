package api

import (
	"errors"
	"sync"

	lua "github.com/yuin/gopher-lua"
)

// ErrPluginUnloaded is returned when a callback outlives its plugin.
var ErrPluginUnloaded = errors.New("plugin unloaded")

// callbacks tracks the keys a module registered and the Lua functions
// backing them.
type callbacks struct {
	mu   sync.Mutex
	keys map[string]struct{}
	fns  map[string]*lua.LFunction
}

func newCallbacks() *callbacks {
	return &callbacks{
		keys: make(map[string]struct{}),
		fns:  make(map[string]*lua.LFunction),
	}
}

// claim records key and returns false if it was already registered.
func (c *callbacks) claim(key string, fn *lua.LFunction) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.keys[key]; exists {
		return false
	}
	c.keys[key] = struct{}{}
	if fn != nil {
		c.fns[key] = fn
	}
	return true
}

// release forgets key.
func (c *callbacks) release(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.keys, key)
	delete(c.fns, key)
}

func (c *callbacks) get(key string) (*lua.LFunction, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn, ok := c.fns[key]
	return fn, ok
}

func (c *callbacks) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.fns)
}

func (c *callbacks) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = make(map[string]struct{})
	c.fns = make(map[string]*lua.LFunction)
}
