package api

import (
	"context"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/tibok/tibok/internal/command"
	plua "github.com/tibok/tibok/internal/plugin/lua"
	"github.com/tibok/tibok/internal/plugin/security"
)

// SlashModule implements tibok.slash.
type SlashModule struct {
	ctx      *Context
	handlers *callbacks
}

// NewSlashModule creates a new slash-command module.
func NewSlashModule(ctx *Context) *SlashModule {
	return &SlashModule{ctx: ctx, handlers: newCallbacks()}
}

// Name returns the module name.
func (m *SlashModule) Name() string { return "slash" }

// RequiredPermission returns the permission required for this module.
func (m *SlashModule) RequiredPermission() security.Permission {
	return security.PermissionSlashCommands
}

// Register installs tibok.slash.
func (m *SlashModule) Register(L *lua.LState, tibok *lua.LTable) error {
	mod := subTable(L, tibok, "slash")
	L.SetField(mod, "register", L.NewFunction(m.register))
	L.SetField(mod, "unregister", L.NewFunction(m.unregister))
	return nil
}

// Cleanup drops every stored callback.
func (m *SlashModule) Cleanup() {
	m.handlers.clear()
}

// HandlerCount returns the number of stored callbacks.
func (m *SlashModule) HandlerCount() int {
	return m.handlers.len()
}

// register(opts) -> nil
// opts must include name and either insert (template string) or action
// (function returning the text to insert). opts can include description,
// icon, keywords and category.
func (m *SlashModule) register(L *lua.LState) int {
	opts := L.CheckTable(1)

	name := strings.TrimPrefix(plua.StringField(opts, "name"), "/")
	if name == "" {
		L.ArgError(1, "name is required")
		return 0
	}
	template := plua.StringField(opts, "insert")
	action, hasAction := plua.FuncField(opts, "action")
	if template == "" && !hasAction {
		L.ArgError(1, "insert or action is required")
		return 0
	}
	if m.ctx.Registrar == nil {
		L.RaiseError("register: no slash-command registry available")
		return 0
	}

	var stored *lua.LFunction
	if template == "" {
		stored = action
	}
	if !m.handlers.claim(name, stored) {
		return 0
	}

	cmd := &command.SlashCommand{
		Name:        name,
		Description: plua.StringField(opts, "description"),
		Icon:        plua.StringField(opts, "icon"),
		Keywords:    plua.StringsField(opts, "keywords"),
		Category:    plua.StringField(opts, "category"),
		Template:    template,
	}
	if stored != nil {
		cmd.Handler = m.handler(name)
	}

	if err := m.ctx.Registrar.RegisterSlash(cmd); err != nil {
		m.handlers.release(name)
		L.RaiseError("register: %v", err)
		return 0
	}
	return 0
}

// unregister(name) -> bool
func (m *SlashModule) unregister(L *lua.LState) int {
	name := strings.TrimPrefix(L.CheckString(1), "/")
	if m.ctx.Registrar == nil {
		L.Push(lua.LFalse)
		return 1
	}
	m.handlers.release(name)
	L.Push(lua.LBool(m.ctx.Registrar.UnregisterSlash(name)))
	return 1
}

// handler creates a Go handler that calls the stored Lua action.
func (m *SlashModule) handler(name string) command.SlashHandler {
	return func(ctx context.Context) (string, error) {
		fn, ok := m.handlers.get(name)
		if !ok {
			return "", ErrPluginUnloaded
		}

		var text string
		err := m.ctx.dispatch(ctx, func(ctx context.Context) error {
			results, err := m.ctx.State.Call(ctx, "slash /"+name, fn)
			if err != nil {
				return err
			}
			if len(results) > 0 {
				if s, ok := results[0].(lua.LString); ok {
					text = string(s)
				}
			}
			return nil
		})
		return text, err
	}
}
