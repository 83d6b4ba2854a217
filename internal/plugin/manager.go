package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tibok/tibok/internal/command"
	"github.com/tibok/tibok/internal/editor"
	"github.com/tibok/tibok/internal/plugin/api"
	"github.com/tibok/tibok/internal/plugin/hostthread"
	"github.com/tibok/tibok/internal/plugin/manifest"
	"github.com/tibok/tibok/internal/plugin/native"
	"github.com/tibok/tibok/internal/plugin/security"
	"github.com/tibok/tibok/internal/plugin/signing"
	"github.com/tibok/tibok/internal/plugin/state"
)

// Config configures a Manager.
type Config struct {
	// BuiltinRoot holds script plugins shipped with the host. Optional.
	BuiltinRoot string

	// ThirdPartyRoot is the user-writable install root. Required.
	ThirdPartyRoot string

	// HostVersion is compared against minimum_tibok_version.
	HostVersion string

	// CallbackTimeout bounds every script call. Zero means unbounded.
	CallbackTimeout time.Duration

	// MaxBundleSize caps native framework size. Zero uses the loader default.
	MaxBundleSize int64
}

// EventHandler handles plugin manager events.
// Handlers run on the calling goroutine, often the host thread, and must
// not call Manager mutators. Panics in handlers are recovered.
type EventHandler func(event Event)

// Event represents a plugin manager event.
type Event struct {
	Type   EventType
	Plugin string
	Error  error
}

// EventType is the type of manager event.
type EventType int

const (
	// EventPluginLoaded is emitted when a plugin becomes active.
	EventPluginLoaded EventType = iota
	// EventPluginUnloaded is emitted when a plugin has been torn down.
	EventPluginUnloaded
	// EventPluginDenied is emitted when validation, trust or loading fails.
	EventPluginDenied
	// EventPluginError is emitted for runtime errors in plugin code.
	EventPluginError
)

// String returns a string representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventPluginLoaded:
		return "loaded"
	case EventPluginUnloaded:
		return "unloaded"
	case EventPluginDenied:
		return "denied"
	case EventPluginError:
		return "error"
	default:
		return "unknown"
	}
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

// WithStateManager sets the enabled-state store.
func WithStateManager(s *state.Manager) Option {
	return func(m *Manager) { m.states = s }
}

// WithVerifier sets the signature verifier.
func WithVerifier(v *signing.Verifier) Option {
	return func(m *Manager) { m.verifier = v }
}

// WithRegistries sets the command and slash-command registries plugins
// register into.
func WithRegistries(commands *command.Commands, slash *command.SlashCommands) Option {
	return func(m *Manager) {
		m.commands = commands
		m.slash = slash
	}
}

// WithEditor sets the editor services forwarded to plugins.
func WithEditor(ed editor.Editor, doc editor.Document) Option {
	return func(m *Manager) {
		m.editor = ed
		m.document = doc
	}
}

// WithExecutor sets the host thread. The caller keeps ownership.
func WithExecutor(exec *hostthread.Executor) Option {
	return func(m *Manager) { m.exec = exec }
}

// WithNativeOptions passes options to the native loader.
func WithNativeOptions(opts ...native.Option) Option {
	return func(m *Manager) { m.nativeOpts = append(m.nativeOpts, opts...) }
}

// record is the host's bookkeeping for one plugin identifier.
type record struct {
	id       string
	dir      string
	builtin  bool // compiled in
	shipped  bool // found under the built-in root
	factory  native.Factory
	manifest *manifest.Manifest
	state    State
	err      error
	inst     *Instance
}

// Manager discovers, trust-gates, loads and unloads plugins. Every
// mutation runs on the host thread.
type Manager struct {
	mu sync.RWMutex

	cfg    Config
	logger *slog.Logger

	exec     *hostthread.Executor
	ownsExec bool

	states     *state.Manager
	verifier   *signing.Verifier
	natives    *native.Loader
	nativeOpts []native.Option

	commands *command.Commands
	slash    *command.SlashCommands
	editor   editor.Editor
	document editor.Document

	records   map[string]*record
	order     []string
	loadOrder []string

	handlers []EventHandler

	initialized bool
}

// NewManager creates a plugin manager.
func NewManager(cfg Config, opts ...Option) (*Manager, error) {
	if cfg.ThirdPartyRoot == "" {
		return nil, errors.New("plugin manager: third-party root is required")
	}

	m := &Manager{
		cfg:     cfg,
		logger:  slog.Default(),
		records: make(map[string]*record),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.exec == nil {
		m.exec = hostthread.New(0)
		m.ownsExec = true
	}
	if m.states == nil {
		m.states = state.NewManager(nil, state.WithLogger(m.logger))
	}
	if m.verifier == nil {
		m.verifier = signing.NewVerifier(nil, signing.WithLogger(m.logger))
	}
	if m.commands == nil {
		m.commands = command.NewCommands(command.PolicyLastWins)
	}
	if m.slash == nil {
		m.slash = command.NewSlashCommands(command.PolicyLastWins)
	}

	nativeOpts := append([]native.Option{
		native.WithMaxSize(cfg.MaxBundleSize),
		native.WithLogger(m.logger),
	}, m.nativeOpts...)
	loader, err := native.NewLoader(cfg.ThirdPartyRoot, nativeOpts...)
	if err != nil {
		return nil, err
	}
	m.natives = loader
	return m, nil
}

// Initialize creates the install root, discovers on-disk plugins and loads
// every enabled plugin, built-ins included. A second call is a no-op.
func (m *Manager) Initialize(ctx context.Context) error {
	return m.exec.Execute(ctx, func(ctx context.Context) error {
		if m.initialized {
			return nil
		}
		if err := os.MkdirAll(m.cfg.ThirdPartyRoot, 0o755); err != nil {
			return fmt.Errorf("create plugin root: %w", err)
		}

		m.discover()
		m.initialized = true

		for _, id := range m.ids() {
			rec := m.record(id)
			if m.states.IsEnabled(id) {
				m.load(ctx, rec)
			}
		}
		m.logger.Info("plugin host initialized", "plugins", len(m.ids()), "active", len(m.LoadedIDs()))
		return nil
	})
}

// RegisterBuiltin adds a compiled-in plugin. Built-ins must claim the
// official tier. After Initialize, an enabled built-in loads immediately.
func (m *Manager) RegisterBuiltin(ctx context.Context, man *manifest.Manifest, factory native.Factory) error {
	if err := man.Validate(); err != nil {
		return err
	}
	if man.ResolvedTrustTier() != manifest.TrustOfficial {
		return fmt.Errorf("built-in plugin %s must use the official tier", man.Identifier)
	}
	if factory == nil {
		return fmt.Errorf("built-in plugin %s: nil factory", man.Identifier)
	}

	return m.exec.Execute(ctx, func(ctx context.Context) error {
		if m.record(man.Identifier) != nil {
			return fmt.Errorf("%w: %s", ErrDuplicatePlugin, man.Identifier)
		}
		rec := &record{
			id:       man.Identifier,
			builtin:  true,
			factory:  factory,
			manifest: man,
			state:    StateValidated,
		}
		m.add(rec)
		if m.initialized && m.states.IsEnabled(rec.id) {
			m.load(ctx, rec)
		}
		return nil
	})
}

// EnablePlugin marks id enabled and loads it if it is not loaded. Load
// failures are recorded, not returned.
func (m *Manager) EnablePlugin(ctx context.Context, id string) error {
	return m.exec.Execute(ctx, func(ctx context.Context) error {
		rec := m.record(id)
		if rec == nil {
			return fmt.Errorf("%w: %s", ErrPluginNotFound, id)
		}
		if err := m.states.SetEnabled(id, true); err != nil {
			m.logger.Warn("enabled state not persisted", "plugin", id, "error", err)
		}
		if m.initialized {
			m.load(ctx, rec)
		}
		return nil
	})
}

// DisablePlugin marks id disabled and unloads it if it is loaded.
func (m *Manager) DisablePlugin(ctx context.Context, id string) error {
	return m.exec.Execute(ctx, func(ctx context.Context) error {
		rec := m.record(id)
		if rec == nil {
			return fmt.Errorf("%w: %s", ErrPluginNotFound, id)
		}
		if err := m.states.SetEnabled(id, false); err != nil {
			m.logger.Warn("enabled state not persisted", "plugin", id, "error", err)
		}
		m.unload(ctx, rec)
		return nil
	})
}

// UnloadPlugin deactivates id and removes everything it registered.
// Unloading a plugin that is not loaded is a no-op.
func (m *Manager) UnloadPlugin(ctx context.Context, id string) error {
	return m.exec.Execute(ctx, func(ctx context.Context) error {
		rec := m.record(id)
		if rec == nil {
			return fmt.Errorf("%w: %s", ErrPluginNotFound, id)
		}
		m.unload(ctx, rec)
		return nil
	})
}

// DeactivateAll unloads every loaded plugin in reverse load order. A
// plugin failing to deactivate does not stop the others.
func (m *Manager) DeactivateAll(ctx context.Context) error {
	return m.exec.Execute(ctx, func(ctx context.Context) error {
		m.mu.RLock()
		ids := slices.Clone(m.loadOrder)
		m.mu.RUnlock()

		slices.Reverse(ids)
		for _, id := range ids {
			if rec := m.record(id); rec != nil {
				m.unload(ctx, rec)
			}
		}
		return nil
	})
}

// Rescan rediscovers the install roots. New plugins are loaded if enabled,
// plugins whose directory vanished are unloaded and forgotten, and enabled
// plugins that were denied are retried.
func (m *Manager) Rescan(ctx context.Context) error {
	return m.exec.Execute(ctx, func(ctx context.Context) error {
		if !m.initialized {
			return nil
		}

		before := m.ids()
		seen := m.discover()

		for _, id := range before {
			rec := m.record(id)
			if rec.builtin || seen[rec.dir] {
				continue
			}
			m.unload(ctx, rec)
			m.remove(id)
			m.logger.Info("plugin removed", "plugin", id, "dir", rec.dir)
		}

		for _, id := range m.ids() {
			rec := m.record(id)
			if rec.inst == nil && m.states.IsEnabled(id) && (rec.state == StateValidated || rec.state == StateDenied) {
				m.load(ctx, rec)
			}
		}
		return nil
	})
}

// Shutdown unloads every plugin and releases the host thread and state store.
// It must not be called from the host thread.
func (m *Manager) Shutdown(ctx context.Context) error {
	err := m.DeactivateAll(ctx)
	if m.ownsExec {
		m.exec.Close()
	}
	if cerr := m.states.Close(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	return err
}

// discover scans both roots and adds unseen plugins. It returns the set of
// directories found.
func (m *Manager) discover() map[string]bool {
	seen := make(map[string]bool)
	roots := []struct {
		dir     string
		shipped bool
	}{
		{m.cfg.BuiltinRoot, true},
		{m.cfg.ThirdPartyRoot, false},
	}
	for _, root := range roots {
		if root.dir == "" {
			continue
		}
		found, err := Discover(root.dir)
		if err != nil {
			m.logger.Warn("plugin discovery failed", "root", root.dir, "error", err)
			continue
		}
		for _, c := range found {
			seen[c.Dir] = true
			m.addCandidate(c, root.shipped)
		}
	}
	return seen
}

func (m *Manager) addCandidate(c *Candidate, shipped bool) {
	if existing := m.record(c.Identifier); existing != nil {
		if existing.dir != c.Dir {
			m.logger.Warn("duplicate plugin identifier ignored",
				"plugin", c.Identifier, "dir", c.Dir, "existing", existing.dir)
		}
		return
	}

	rec := &record{
		id:       c.Identifier,
		dir:      c.Dir,
		shipped:  shipped,
		manifest: c.Manifest,
		state:    StateValidated,
	}
	if c.Err != nil {
		rec.state = StateDenied
		rec.err = c.Err
		m.logger.Warn("invalid plugin manifest", "plugin", c.Identifier, "dir", c.Dir, "error", c.Err)
	}
	m.add(rec)
}

// load runs the validation pipeline and instantiates rec. Failures leave
// rec Denied and never propagate.
func (m *Manager) load(ctx context.Context, rec *record) {
	if rec.inst != nil {
		return
	}
	m.setState(rec, StateLoading, nil)

	inst, err := m.instantiate(ctx, rec)
	if err != nil {
		m.setState(rec, StateDenied, err)
		m.logger.Warn("plugin denied", "plugin", rec.id, "error", err)
		m.emit(Event{Type: EventPluginDenied, Plugin: rec.id, Error: err})
		return
	}

	m.mu.Lock()
	rec.inst = inst
	rec.state = StateActive
	rec.err = nil
	m.loadOrder = append(m.loadOrder, rec.id)
	m.mu.Unlock()

	m.logger.Info("plugin loaded",
		"plugin", rec.id, "instance", inst.InstanceID, "kind", inst.Kind,
		"permissions", inst.Permissions.String())
	m.emit(Event{Type: EventPluginLoaded, Plugin: rec.id})
}

func (m *Manager) instantiate(ctx context.Context, rec *record) (*Instance, error) {
	if !rec.builtin {
		// Validation reruns from disk on every attempt.
		c := Inspect(rec.dir)
		if c.Err != nil {
			return nil, c.Err
		}
		if c.Identifier != rec.id {
			return nil, fmt.Errorf("manifest identifier changed to %s", c.Identifier)
		}
		m.mu.Lock()
		rec.manifest = c.Manifest
		m.mu.Unlock()
	}
	man := rec.manifest

	if err := man.CheckHostVersion(m.cfg.HostVersion); err != nil {
		return nil, err
	}
	granted, err := m.authorize(rec, man)
	if err != nil {
		return nil, err
	}

	registrar := command.NewRegistrar(command.PluginSource(rec.id), m.commands, m.slash,
		command.WithGrantedPermissions(granted))
	inst := &Instance{
		PluginID:    rec.id,
		InstanceID:  uuid.NewString(),
		Manifest:    man,
		Permissions: granted,
		LoadedAt:    time.Now(),
		registrar:   registrar,
	}
	logger := m.logger.With("plugin", rec.id, "instance", inst.InstanceID)

	switch {
	case rec.builtin:
		inst.Kind = KindBuiltin
		inst.native, err = native.Activate(rec.factory, m.nativeContext(inst, logger))

	case man.PluginType == security.PluginTypeNative:
		inst.Kind = KindNative
		var (
			ni *native.Instance
			fw string
		)
		fw, err = frameworkPath(rec.dir, man.EntryPoint)
		if err == nil {
			ni, err = m.natives.Load(fw, man.EntryPoint, m.nativeContext(inst, logger))
		}
		if err == nil {
			inst.native = ni.Plugin
			inst.framework = ni.Path
		}

	default:
		inst.Kind = KindScript
		inst.script = NewScriptHost(man, granted, inst.registrar,
			WithHostEditor(m.editor, m.document),
			WithHostDispatcher(pluginDispatcher{m: m, id: rec.id}),
			WithHostCallTimeout(m.cfg.CallbackTimeout),
			WithHostLogger(logger),
		)
		err = inst.script.Load(ctx)
	}

	if err != nil {
		// Registrations made before the failure do not outlive it.
		inst.registrar.UnregisterAll()
		return nil, err
	}
	return inst, nil
}

// authorize applies the trust tier and returns the permissions granted.
func (m *Manager) authorize(rec *record, man *manifest.Manifest) (security.PermissionSet, error) {
	perms := man.Permissions

	switch man.ResolvedTrustTier() {
	case manifest.TrustOfficial:
		if !rec.builtin && !rec.shipped {
			return security.PermissionSet{}, ErrOfficialOnDisk
		}
		return perms, nil

	case manifest.TrustVerified:
		result, err := m.verifier.Verify(rec.dir, man)
		if err != nil {
			return security.PermissionSet{}, fmt.Errorf("verify signature: %w", err)
		}
		if result != signing.Valid {
			return security.PermissionSet{}, fmt.Errorf("%w: %s", ErrSignatureRequired, result)
		}
		return perms, nil

	default:
		if !perms.HasElevated() {
			return perms, nil
		}
		if man.Signature != nil {
			result, err := m.verifier.Verify(rec.dir, man)
			if err == nil && result == signing.Valid {
				return perms, nil
			}
			m.logger.Info("community signature not valid", "plugin", rec.id, "result", result, "error", err)
		}
		clamped := perms.Clamp()
		m.logger.Info("community plugin clamped to safe permissions",
			"plugin", rec.id, "dropped", security.NewPermissionSet(perms.Elevated()...).String())
		return clamped, nil
	}
}

func (m *Manager) nativeContext(inst *Instance, logger *slog.Logger) *native.Context {
	return &native.Context{
		PluginID:    inst.PluginID,
		Permissions: inst.Permissions,
		Registrar:   inst.registrar,
		Editor:      m.editor,
		Document:    m.document,
		Logger:      logger,
	}
}

// frameworkPath returns <entry>.framework in dir when it exists, otherwise
// the only *.framework directory in dir. With neither, the named path is
// returned and the loader reports it missing.
func frameworkPath(dir, entry string) (string, error) {
	named := filepath.Join(dir, entry+native.FrameworkExt)
	if info, err := os.Stat(named); err == nil && info.IsDir() {
		return named, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("list native bundles: %w", err)
	}
	var found []string
	for _, e := range entries {
		if filepath.Ext(e.Name()) != native.FrameworkExt {
			continue
		}
		if info, err := os.Stat(filepath.Join(dir, e.Name())); err == nil && info.IsDir() {
			found = append(found, filepath.Join(dir, e.Name()))
		}
	}
	if len(found) == 1 {
		return found[0], nil
	}
	return named, nil
}

// unload deactivates rec, then removes every registry entry carrying its
// source tag. Deactivation runs first so it can still reach the registries.
func (m *Manager) unload(ctx context.Context, rec *record) {
	inst := rec.inst
	if inst == nil {
		return
	}
	m.setState(rec, StateDeactivating, nil)

	var err error
	switch inst.Kind {
	case KindScript:
		err = inst.script.Deactivate(ctx)
	case KindBuiltin:
		err = native.Deactivate(inst.native)
	case KindNative:
		err = m.natives.Unload(inst.framework)
	}
	removed := inst.registrar.UnregisterAll()

	m.mu.Lock()
	rec.inst = nil
	rec.state = StateUnloaded
	rec.err = nil
	if err != nil {
		rec.err = fmt.Errorf("deactivate: %w", err)
	}
	if i := slices.Index(m.loadOrder, rec.id); i >= 0 {
		m.loadOrder = slices.Delete(m.loadOrder, i, i+1)
	}
	m.mu.Unlock()

	if err != nil {
		m.logger.Warn("plugin deactivate failed", "plugin", rec.id, "error", err)
		m.emit(Event{Type: EventPluginError, Plugin: rec.id, Error: err})
	}
	m.logger.Info("plugin unloaded", "plugin", rec.id, "instance", inst.InstanceID, "registrations", removed)
	m.emit(Event{Type: EventPluginUnloaded, Plugin: rec.id})
}

func (m *Manager) setState(rec *record, s State, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec.state = s
	rec.err = err
}

func (m *Manager) add(rec *record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.id] = rec
	m.order = append(m.order, rec.id)
}

func (m *Manager) remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, id)
	if i := slices.Index(m.order, id); i >= 0 {
		m.order = slices.Delete(m.order, i, i+1)
	}
}

func (m *Manager) record(id string) *record {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.records[id]
}

func (m *Manager) ids() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.order)
}

// Subscribe adds an event handler.
// Returns an unsubscribe function to remove the handler.
func (m *Manager) Subscribe(handler EventHandler) func() {
	if handler == nil {
		return func() {}
	}

	m.mu.Lock()
	m.handlers = append(m.handlers, handler)
	index := len(m.handlers) - 1
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		// Set to nil instead of removing to avoid index shifting issues
		if index < len(m.handlers) {
			m.handlers[index] = nil
		}
	}
}

// emit sends an event to all handlers outside any lock.
func (m *Manager) emit(event Event) {
	m.mu.RLock()
	handlers := slices.Clone(m.handlers)
	m.mu.RUnlock()

	for _, handler := range handlers {
		if handler == nil {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.logger.Error("plugin event handler panicked", "event", event.Type, "panic", r)
				}
			}()
			handler(event)
		}()
	}
}

// pluginDispatcher runs a plugin's callbacks on the host thread and reports
// their failures as events.
type pluginDispatcher struct {
	m  *Manager
	id string
}

func (d pluginDispatcher) Execute(ctx context.Context, fn hostthread.Func) error {
	err := d.m.exec.Execute(ctx, fn)
	if err != nil && !errors.Is(err, api.ErrPluginUnloaded) {
		d.m.emit(Event{Type: EventPluginError, Plugin: d.id, Error: err})
	}
	return err
}

// Info describes a known plugin for presentation.
type Info struct {
	Identifier  string
	Name        string
	Version     string
	Description string
	PluginType  security.PluginType
	TrustTier   manifest.TrustTier
	Builtin     bool
	Path        string

	State   State
	Loaded  bool
	Enabled bool

	// Permissions are the granted set when loaded, the declared set otherwise.
	Permissions []string

	InstanceID    string
	Commands      []string
	SlashCommands []string

	Error error
}

func (m *Manager) infoLocked(rec *record) Info {
	info := Info{
		Identifier: rec.id,
		Name:       rec.id,
		Builtin:    rec.builtin,
		Path:       rec.dir,
		State:      rec.state,
		Loaded:     rec.inst != nil,
		Enabled:    m.states.IsEnabled(rec.id),
		Error:      rec.err,
	}
	if man := rec.manifest; man != nil {
		info.Name = man.Name
		info.Version = man.Version
		info.Description = man.Description
		info.PluginType = man.PluginType
		info.TrustTier = man.ResolvedTrustTier()
		info.Permissions = man.Permissions.Strings()
	}
	if inst := rec.inst; inst != nil {
		info.Permissions = inst.Permissions.Strings()
		info.InstanceID = inst.InstanceID
		info.Commands = inst.Commands()
		info.SlashCommands = inst.SlashCommands()
	}
	return info
}

// IsLoaded returns true if id is active.
func (m *Manager) IsLoaded(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	return ok && rec.inst != nil
}

// State returns the lifecycle state of id.
func (m *Manager) State(id string) (State, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return StateDiscovered, false
	}
	return rec.state, true
}

// Instance returns the loaded instance of id.
func (m *Manager) Instance(id string) (*Instance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok || rec.inst == nil {
		return nil, false
	}
	return rec.inst, true
}

// PluginInfo describes a loaded plugin.
func (m *Manager) PluginInfo(id string) (Info, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok || rec.inst == nil {
		return Info{}, false
	}
	return m.infoLocked(rec), true
}

// AllPluginInfo describes every known plugin, loaded or not, sorted by
// identifier.
func (m *Manager) AllPluginInfo() []Info {
	m.mu.RLock()
	defer m.mu.RUnlock()

	infos := make([]Info, 0, len(m.records))
	for _, rec := range m.records {
		infos = append(infos, m.infoLocked(rec))
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Identifier < infos[j].Identifier })
	return infos
}

// LoadedIDs returns the identifiers of active plugins in load order.
func (m *Manager) LoadedIDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.loadOrder)
}

// PluginErrors returns the recorded error of every plugin that has one.
func (m *Manager) PluginErrors() map[string]error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	errs := make(map[string]error)
	for id, rec := range m.records {
		if rec.err != nil {
			errs[id] = rec.err
		}
	}
	return errs
}

// Commands returns the command palette registry.
func (m *Manager) Commands() *command.Commands {
	return m.commands
}

// SlashCommands returns the slash-command registry.
func (m *Manager) SlashCommands() *command.SlashCommands {
	return m.slash
}

// Executor returns the host thread.
func (m *Manager) Executor() *hostthread.Executor {
	return m.exec
}

// IsEnabled reports the persisted enabled state of id.
func (m *Manager) IsEnabled(id string) bool {
	return m.states.IsEnabled(id)
}
