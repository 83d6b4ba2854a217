package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tibok/tibok/internal/command"
	"github.com/tibok/tibok/internal/editor"
	"github.com/tibok/tibok/internal/plugin/api"
	plua "github.com/tibok/tibok/internal/plugin/lua"
	"github.com/tibok/tibok/internal/plugin/manifest"
	"github.com/tibok/tibok/internal/plugin/security"
)

// ScriptHost runs one script plugin in its own sandboxed Lua state.
type ScriptHost struct {
	mu sync.Mutex

	manifest *manifest.Manifest
	granted  security.PermissionSet

	registrar *command.Registrar
	editor    editor.Editor
	document  editor.Document
	dispatch  api.Dispatcher

	state     *plua.State
	registry  *api.Registry
	installed []string

	logger      *slog.Logger
	callTimeout time.Duration
}

// ScriptHostOption configures a ScriptHost.
type ScriptHostOption func(*ScriptHost)

// WithHostEditor sets the editor and document services forwarded to the plugin.
func WithHostEditor(ed editor.Editor, doc editor.Document) ScriptHostOption {
	return func(h *ScriptHost) {
		h.editor = ed
		h.document = doc
	}
}

// WithHostDispatcher sets the dispatcher stored callbacks run through.
func WithHostDispatcher(d api.Dispatcher) ScriptHostOption {
	return func(h *ScriptHost) {
		h.dispatch = d
	}
}

// WithHostCallTimeout bounds every script call. Zero means unbounded.
func WithHostCallTimeout(d time.Duration) ScriptHostOption {
	return func(h *ScriptHost) {
		h.callTimeout = d
	}
}

// WithHostLogger sets the logger.
func WithHostLogger(logger *slog.Logger) ScriptHostOption {
	return func(h *ScriptHost) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewScriptHost creates a host for a script plugin. Registrations are made
// through registrar, which carries the plugin's source tag.
func NewScriptHost(m *manifest.Manifest, granted security.PermissionSet, registrar *command.Registrar, opts ...ScriptHostOption) *ScriptHost {
	h := &ScriptHost{
		manifest:  m,
		granted:   granted,
		registrar: registrar,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Load builds the sandbox, installs the capability table for the granted
// permissions, runs the entry script and calls its activate function.
// On failure the Lua state is closed; registrations made before the
// failure are left for the caller to remove.
func (h *ScriptHost) Load(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != nil {
		return nil
	}
	if h.manifest.PluginType != security.PluginTypeScript {
		return ErrNoScript
	}
	if !security.IsScriptCompatible(h.granted, security.PluginTypeScript) {
		return fmt.Errorf("%w: %v", ErrScriptIncompatible, h.granted.Elevated())
	}

	state, err := plua.NewState(h.manifest.Identifier,
		plua.WithLogger(h.logger),
		plua.WithCallTimeout(h.callTimeout),
	)
	if err != nil {
		return err
	}

	registry, err := api.DefaultRegistry(&api.Context{
		State:     state,
		Registrar: h.registrar,
		Editor:    h.editor,
		Document:  h.document,
		Dispatch:  h.dispatch,
	})
	if err != nil {
		state.Close()
		return err
	}

	fail := func(err error) error {
		registry.Cleanup()
		state.Close()
		return err
	}

	installed, err := registry.InjectAll(state.L, h.manifest.Identifier, h.granted)
	if err != nil {
		return fail(err)
	}
	if err := state.Sandbox().Check(); err != nil {
		return fail(err)
	}
	if err := state.DoFile(ctx, h.manifest.EntryPath()); err != nil {
		return fail(err)
	}
	if _, err := state.CallGlobal(ctx, "activate"); err != nil {
		return fail(err)
	}

	h.state = state
	h.registry = registry
	h.installed = installed
	return nil
}

// Deactivate calls the plugin's deactivate function, drops every stored
// callback and closes the Lua state. Registry entries are not removed.
func (h *ScriptHost) Deactivate(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == nil {
		return nil
	}

	_, err := h.state.CallGlobal(ctx, "deactivate")
	h.registry.Cleanup()
	h.state.Close()
	h.state = nil
	h.registry = nil
	h.installed = nil
	return err
}

// IsLoaded returns true between a successful Load and Deactivate.
func (h *ScriptHost) IsLoaded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state != nil
}

// Installed returns the capability modules installed for the plugin.
func (h *ScriptHost) Installed() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.installed...)
}

// Eval runs code in the plugin's state.
func (h *ScriptHost) Eval(ctx context.Context, code string) error {
	h.mu.Lock()
	state := h.state
	h.mu.Unlock()

	if state == nil {
		return errors.New("script host not loaded")
	}
	return state.DoString(ctx, code)
}
