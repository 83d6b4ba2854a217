package api

import (
	"context"
	"fmt"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/tibok/tibok/internal/command"
	"github.com/tibok/tibok/internal/editor"
	"github.com/tibok/tibok/internal/plugin/hostthread"
	plua "github.com/tibok/tibok/internal/plugin/lua"
	"github.com/tibok/tibok/internal/plugin/security"
)

// GlobalName is the Lua global holding the capability table.
const GlobalName = "tibok"

// Module is one capability installed into the tibok table.
type Module interface {
	// Name returns the module name (e.g., "slash", "editor.insert").
	Name() string

	// RequiredPermission returns the permission that unlocks this module.
	// Empty means the module is always installed.
	RequiredPermission() security.Permission

	// Register installs the module's functions into the tibok table.
	Register(L *lua.LState, tibok *lua.LTable) error
}

// Cleaner is implemented by modules that hold references to plugin callbacks.
type Cleaner interface {
	Cleanup()
}

// Dispatcher runs callback work on the host thread.
type Dispatcher interface {
	Execute(ctx context.Context, fn hostthread.Func) error
}

// Context provides modules with the services they forward to.
type Context struct {
	// State is the plugin's Lua state, used to invoke stored callbacks.
	State *plua.State

	// Registrar registers commands under the plugin's source tag.
	Registrar *command.Registrar

	// Editor and Document are the active document services. Either may be nil.
	Editor   editor.Editor
	Document editor.Document

	// Dispatch runs callbacks on the host thread.
	Dispatch Dispatcher
}

// Registry holds the modules offered to a plugin.
type Registry struct {
	mu      sync.RWMutex
	modules map[string]Module
}

// NewRegistry creates a new API registry.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]Module)}
}

// Register adds a module to the registry.
func (r *Registry) Register(mod Module) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.modules[mod.Name()]; exists {
		return fmt.Errorf("module %q already registered", mod.Name())
	}
	r.modules[mod.Name()] = mod
	return nil
}

// Get returns a module by name.
func (r *Registry) Get(name string) (Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mod, ok := r.modules[name]
	return mod, ok
}

// List returns all registered module names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.modules))
	for name := range r.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// InjectAll builds the tibok table from the modules granted permits and
// installs it as a global. Modules gated on an elevated permission are never
// installed. Returns the names of installed modules.
func (r *Registry) InjectAll(L *lua.LState, pluginID string, granted security.PermissionSet) ([]string, error) {
	tibok := L.NewTable()
	tibok.RawSetString("plugin", lua.LString(pluginID))
	tibok.RawSetString("apiVersion", lua.LNumber(APIVersion))

	var installed []string
	for _, name := range r.List() {
		mod, _ := r.Get(name)
		if perm := mod.RequiredPermission(); perm != "" {
			if security.IsElevated(perm) || !granted.Has(perm) {
				continue
			}
		}
		if err := mod.Register(L, tibok); err != nil {
			return installed, fmt.Errorf("failed to register module %q: %w", name, err)
		}
		installed = append(installed, name)
	}

	L.SetGlobal(GlobalName, tibok)
	return installed, nil
}

// Cleanup calls Cleanup on every module that holds callbacks.
func (r *Registry) Cleanup() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, mod := range r.modules {
		if c, ok := mod.(Cleaner); ok {
			c.Cleanup()
		}
	}
}

// APIVersion is exposed to plugins as tibok.apiVersion.
const APIVersion = 1

// DefaultRegistry creates a registry with every standard module.
func DefaultRegistry(ctx *Context) (*Registry, error) {
	r := NewRegistry()

	modules := []Module{
		NewLogModule(ctx),
		NewSlashModule(ctx),
		NewCommandModule(ctx),
		NewInsertModule(ctx),
		NewSelectionModule(ctx),
		NewContentModule(ctx),
		NewDocumentModule(ctx),
	}
	for _, mod := range modules {
		if err := r.Register(mod); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// subTable returns tibok[name], creating it if needed.
func subTable(L *lua.LState, tibok *lua.LTable, name string) *lua.LTable {
	if t, ok := tibok.RawGetString(name).(*lua.LTable); ok {
		return t
	}
	t := L.NewTable()
	tibok.RawSetString(name, t)
	return t
}

// dispatch runs fn on the host thread, or inline when no dispatcher is set.
func (c *Context) dispatch(ctx context.Context, fn hostthread.Func) error {
	if c.Dispatch == nil {
		return fn(ctx)
	}
	return c.Dispatch.Execute(ctx, fn)
}
