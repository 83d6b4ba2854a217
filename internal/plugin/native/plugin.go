package native

import (
	"fmt"
	"log/slog"

	"github.com/tibok/tibok/internal/command"
	"github.com/tibok/tibok/internal/editor"
	"github.com/tibok/tibok/internal/plugin/security"
)

// Plugin is the contract a compiled plugin implements.
type Plugin interface {
	// Register is called once after instantiation. Everything the plugin
	// adds to the host goes through ctx.Registrar.
	Register(ctx *Context) error

	// Deactivate is called before the plugin's registrations are removed.
	Deactivate() error
}

// Factory instantiates a plugin. Bundles export a symbol of this type.
type Factory func() Plugin

// Context is handed to a plugin at registration.
type Context struct {
	PluginID    string
	Permissions security.PermissionSet
	Registrar   *command.Registrar
	Editor      editor.Editor
	Document    editor.Document
	Logger      *slog.Logger
}

// Activate instantiates a plugin from factory and calls Register.
// Panics raised by plugin code are returned as errors.
func Activate(factory Factory, ctx *Context) (p Plugin, err error) {
	defer func() {
		if r := recover(); r != nil {
			p = nil
			err = fmt.Errorf("plugin %s panicked during activation: %v", ctx.PluginID, r)
		}
	}()

	p = factory()
	if p == nil {
		return nil, fmt.Errorf("plugin %s: factory returned nil", ctx.PluginID)
	}
	if err := p.Register(ctx); err != nil {
		return nil, fmt.Errorf("plugin %s: register: %w", ctx.PluginID, err)
	}
	return p, nil
}

// Deactivate calls p.Deactivate, converting a panic into an error.
func Deactivate(p Plugin) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("plugin panicked during deactivation: %v", r)
		}
	}()
	return p.Deactivate()
}
