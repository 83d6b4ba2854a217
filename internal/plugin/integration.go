package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/tibok/tibok/internal/command"
	"github.com/tibok/tibok/internal/config"
	"github.com/tibok/tibok/internal/editor"
	"github.com/tibok/tibok/internal/plugin/builtin/coreslash"
	"github.com/tibok/tibok/internal/plugin/native"
	"github.com/tibok/tibok/internal/plugin/signing"
	"github.com/tibok/tibok/internal/plugin/state"
	"github.com/tibok/tibok/internal/plugin/watcher"
)

// ErrAlreadyStarted is returned by Start on a running system.
var ErrAlreadyStarted = errors.New("plugin system already started")

// System assembles a plugin host from configuration: registries, the
// enabled-state store, the trusted keyring, built-in plugins and the
// optional install-root watcher.
//
// System is the primary entry point for the editor to interact with plugins.
type System struct {
	mu sync.Mutex

	cfg     *config.Config
	logger  *slog.Logger
	manager *Manager
	watcher *watcher.Watcher

	started bool
}

// SystemOption configures a System.
type SystemOption func(*systemOptions)

type systemOptions struct {
	logger     *slog.Logger
	editor     editor.Editor
	document   editor.Document
	store      state.Store
	builtins   bool
	nativeOpts []native.Option
}

// WithSystemLogger sets the logger.
func WithSystemLogger(logger *slog.Logger) SystemOption {
	return func(o *systemOptions) { o.logger = logger }
}

// WithSystemEditor sets the editor services forwarded to plugins.
func WithSystemEditor(ed editor.Editor, doc editor.Document) SystemOption {
	return func(o *systemOptions) {
		o.editor = ed
		o.document = doc
	}
}

// WithSystemStore replaces the configured enabled-state store.
func WithSystemStore(store state.Store) SystemOption {
	return func(o *systemOptions) { o.store = store }
}

// WithoutBuiltins skips registering the compiled-in plugins.
func WithoutBuiltins() SystemOption {
	return func(o *systemOptions) { o.builtins = false }
}

// WithSystemNativeOptions passes options to the native loader.
func WithSystemNativeOptions(opts ...native.Option) SystemOption {
	return func(o *systemOptions) { o.nativeOpts = append(o.nativeOpts, opts...) }
}

// NewSystem builds a plugin system. Nothing is loaded until Start.
func NewSystem(cfg *config.Config, opts ...SystemOption) (*System, error) {
	o := systemOptions{logger: slog.Default(), builtins: true}
	for _, opt := range opts {
		opt(&o)
	}
	pc := cfg.Plugins

	policy, err := command.ParsePolicy(pc.CollisionPolicy)
	if err != nil {
		return nil, err
	}

	keyring, err := signing.LoadKeyring(pc.TrustedKeysDir)
	if err != nil {
		// Unreadable keys are skipped; the rest of the keyring stays usable.
		o.logger.Warn("trusted keys partially loaded", "dir", pc.TrustedKeysDir, "error", err)
	}
	if keyring == nil {
		keyring, _ = signing.NewKeyring()
	}

	store := o.store
	if store == nil {
		store, err = OpenStore(pc.StateBackend, pc.StatePath)
		if err != nil {
			// Persistence failures degrade to in-memory state.
			o.logger.Warn("plugin state store unavailable, using memory", "backend", pc.StateBackend, "error", err)
			store = state.NewMemoryStore()
		}
	}

	manager, err := NewManager(Config{
		BuiltinRoot:     pc.BuiltinRoot,
		ThirdPartyRoot:  pc.ThirdPartyRoot,
		HostVersion:     pc.HostVersion,
		CallbackTimeout: pc.CallbackTimeout.Std(),
		MaxBundleSize:   pc.MaxBundleSize,
	},
		WithLogger(o.logger),
		WithStateManager(state.NewManager(store, state.WithLogger(o.logger))),
		WithVerifier(signing.NewVerifier(keyring, signing.WithLogger(o.logger))),
		WithRegistries(command.NewCommands(policy), command.NewSlashCommands(policy)),
		WithEditor(o.editor, o.document),
		WithNativeOptions(o.nativeOpts...),
	)
	if err != nil {
		store.Close()
		return nil, err
	}

	s := &System{cfg: cfg, logger: o.logger, manager: manager}
	if o.builtins {
		if err := manager.RegisterBuiltin(context.Background(), coreslash.Manifest(), coreslash.New); err != nil {
			manager.Shutdown(context.Background())
			return nil, fmt.Errorf("register built-in plugin: %w", err)
		}
	}
	return s, nil
}

// OpenStore opens the enabled-state store for backend.
func OpenStore(backend, path string) (state.Store, error) {
	switch backend {
	case config.BackendMemory:
		return state.NewMemoryStore(), nil
	case config.BackendFile, "":
		return state.NewFileStore(path), nil
	case config.BackendSQLite:
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		return state.NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown state backend %q", backend)
	}
}

// Start initializes the manager and, if configured, starts watching the
// third-party root.
func (s *System) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return ErrAlreadyStarted
	}
	if err := s.manager.Initialize(ctx); err != nil {
		return err
	}

	if s.cfg.Plugins.Watch {
		w, err := watcher.New(s.cfg.Plugins.ThirdPartyRoot, s.rescan, watcher.WithLogger(s.logger))
		if err != nil {
			s.logger.Warn("plugin root not watched", "root", s.cfg.Plugins.ThirdPartyRoot, "error", err)
		} else {
			s.watcher = w
		}
	}
	s.started = true
	return nil
}

func (s *System) rescan() {
	if err := s.manager.Rescan(context.Background()); err != nil {
		s.logger.Warn("plugin rescan failed", "error", err)
	}
}

// Shutdown stops the watcher and unloads every plugin.
func (s *System) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.watcher != nil {
		err = s.watcher.Close()
		s.watcher = nil
	}
	s.started = false
	return errors.Join(err, s.manager.Shutdown(ctx))
}

// Manager returns the lifecycle manager.
func (s *System) Manager() *Manager {
	return s.manager
}

// Watching reports whether the install root is being watched.
func (s *System) Watching() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.watcher != nil
}
