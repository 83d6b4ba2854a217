package api

import (
	"context"

	lua "github.com/yuin/gopher-lua"

	"github.com/tibok/tibok/internal/command"
	plua "github.com/tibok/tibok/internal/plugin/lua"
	"github.com/tibok/tibok/internal/plugin/security"
)

// CommandModule implements tibok.commands.
type CommandModule struct {
	ctx      *Context
	handlers *callbacks
}

// NewCommandModule creates a new command palette module.
func NewCommandModule(ctx *Context) *CommandModule {
	return &CommandModule{ctx: ctx, handlers: newCallbacks()}
}

// Name returns the module name.
func (m *CommandModule) Name() string { return "commands" }

// RequiredPermission returns the permission required for this module.
func (m *CommandModule) RequiredPermission() security.Permission {
	return security.PermissionCommandPalette
}

// Register installs tibok.commands.
func (m *CommandModule) Register(L *lua.LState, tibok *lua.LTable) error {
	mod := subTable(L, tibok, "commands")
	L.SetField(mod, "register", L.NewFunction(m.register))
	L.SetField(mod, "unregister", L.NewFunction(m.unregister))
	L.SetField(mod, "list", L.NewFunction(m.list))
	return nil
}

// Cleanup drops every stored callback.
func (m *CommandModule) Cleanup() {
	m.handlers.clear()
}

// HandlerCount returns the number of stored callbacks.
func (m *CommandModule) HandlerCount() int {
	return m.handlers.len()
}

// register(opts) -> nil
// opts must include id, title and action. opts can include description
// and category.
func (m *CommandModule) register(L *lua.LState) int {
	opts := L.CheckTable(1)

	id := plua.StringField(opts, "id")
	title := plua.StringField(opts, "title")
	action, ok := plua.FuncField(opts, "action")

	if id == "" {
		L.ArgError(1, "id is required")
		return 0
	}
	if title == "" {
		L.ArgError(1, "title is required")
		return 0
	}
	if !ok {
		L.ArgError(1, "action must be a function")
		return 0
	}
	if m.ctx.Registrar == nil {
		L.RaiseError("register: no command registry available")
		return 0
	}

	if !m.handlers.claim(id, action) {
		return 0
	}

	cmd := &command.Command{
		ID:          id,
		Title:       title,
		Description: plua.StringField(opts, "description"),
		Category:    plua.StringField(opts, "category"),
		Handler:     m.handler(id),
	}
	if err := m.ctx.Registrar.RegisterCommand(cmd); err != nil {
		m.handlers.release(id)
		L.RaiseError("register: %v", err)
		return 0
	}
	return 0
}

// unregister(id) -> bool
func (m *CommandModule) unregister(L *lua.LState) int {
	id := L.CheckString(1)
	if m.ctx.Registrar == nil {
		L.Push(lua.LFalse)
		return 1
	}
	m.handlers.release(id)
	L.Push(lua.LBool(m.ctx.Registrar.UnregisterCommand(id)))
	return 1
}

// list() -> {ids...}
// Lists the commands this plugin registered.
func (m *CommandModule) list(L *lua.LState) int {
	result := L.NewTable()
	if m.ctx.Registrar != nil {
		for _, cmd := range m.ctx.Registrar.Commands() {
			result.Append(lua.LString(cmd.ID))
		}
	}
	L.Push(result)
	return 1
}

// handler creates a Go handler that calls the stored Lua action.
func (m *CommandModule) handler(id string) command.Handler {
	return func(ctx context.Context) error {
		fn, ok := m.handlers.get(id)
		if !ok {
			return ErrPluginUnloaded
		}
		return m.ctx.dispatch(ctx, func(ctx context.Context) error {
			_, err := m.ctx.State.Call(ctx, "command "+id, fn)
			return err
		})
	}
}
