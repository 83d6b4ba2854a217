package native

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"plugin"
	"runtime"
	"slices"
	"strings"
	"sync"
)

// DefaultMaxSize is the default ceiling on a framework's total size.
const DefaultMaxSize int64 = 100 << 20

// FrameworkExt is the directory suffix of a native bundle.
const FrameworkExt = ".framework"

// Symbols looks up exported symbols in an opened binary.
type Symbols interface {
	Lookup(name string) (any, error)
}

// Opener opens a plugin binary.
type Opener interface {
	Open(path string) (Symbols, error)
}

// GoPluginOpener opens binaries built with -buildmode=plugin.
type GoPluginOpener struct{}

// Open implements Opener.
func (GoPluginOpener) Open(path string) (Symbols, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, err
	}
	return goPlugin{p}, nil
}

type goPlugin struct{ p *plugin.Plugin }

func (g goPlugin) Lookup(name string) (any, error) {
	return g.p.Lookup(name)
}

// Instance is a loaded framework.
type Instance struct {
	PluginID string
	Path     string
	Plugin   Plugin
}

// Loader validates and loads frameworks from the third-party root.
type Loader struct {
	mu     sync.Mutex
	root   string
	max    int64
	arch   string
	opener Opener
	logger *slog.Logger
	loaded map[string]*Instance
}

// Option configures a Loader.
type Option func(*Loader)

// WithMaxSize sets the framework size ceiling in bytes.
func WithMaxSize(n int64) Option {
	return func(l *Loader) {
		if n > 0 {
			l.max = n
		}
	}
}

// WithOpener replaces the binary opener.
func WithOpener(o Opener) Option {
	return func(l *Loader) { l.opener = o }
}

// WithArchitecture overrides the host architecture frameworks must match.
func WithArchitecture(arch string) Option {
	return func(l *Loader) { l.arch = arch }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoader creates a loader trusting only frameworks under root.
func NewLoader(root string, opts ...Option) (*Loader, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("native loader root: %w", err)
	}
	l := &Loader{
		root:   filepath.Clean(abs),
		max:    DefaultMaxSize,
		arch:   runtime.GOARCH,
		opener: GoPluginOpener{},
		logger: slog.Default(),
		loaded: make(map[string]*Instance),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Root returns the trusted install root.
func (l *Loader) Root() string {
	return l.root
}

// BinaryPath returns the binary inside a framework: <Name>.framework/<Name>.
func BinaryPath(framework string) string {
	name := strings.TrimSuffix(filepath.Base(framework), FrameworkExt)
	return filepath.Join(framework, name)
}

// Load validates the framework at path, looks up entry and registers the
// plugin. Loading an already-loaded path returns the existing instance.
func (l *Loader) Load(path, entry string, ctx *Context) (*Instance, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	framework, err := l.checkLocation(path)
	if err != nil {
		return nil, err
	}
	if inst, ok := l.loaded[framework]; ok {
		return inst, nil
	}

	binary, err := l.checkExists(framework)
	if err != nil {
		return nil, err
	}
	if err := l.checkSize(framework); err != nil {
		return nil, err
	}
	if err := l.checkArchitecture(framework, binary); err != nil {
		return nil, err
	}
	factory, err := l.lookup(framework, binary, entry)
	if err != nil {
		return nil, err
	}

	p, err := Activate(factory, ctx)
	if err != nil {
		return nil, err
	}

	inst := &Instance{PluginID: ctx.PluginID, Path: framework, Plugin: p}
	l.loaded[framework] = inst
	l.logger.Info("native plugin loaded", "plugin", ctx.PluginID, "path", framework)
	return inst, nil
}

// Unload deactivates the plugin loaded from path. Unknown paths are a no-op.
// The instance is forgotten even if Deactivate fails.
func (l *Loader) Unload(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	framework, err := l.absolute(path)
	if err != nil {
		return nil
	}
	inst, ok := l.loaded[framework]
	if !ok {
		return nil
	}
	delete(l.loaded, framework)
	return Deactivate(inst.Plugin)
}

// IsLoaded reports whether the framework at path is loaded.
func (l *Loader) IsLoaded(path string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	framework, err := l.absolute(path)
	if err != nil {
		return false
	}
	_, ok := l.loaded[framework]
	return ok
}

// Loaded returns the paths of loaded frameworks, sorted.
func (l *Loader) Loaded() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	paths := make([]string, 0, len(l.loaded))
	for p := range l.loaded {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

func (l *Loader) absolute(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}

// within reports whether path lies strictly inside root.
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

func (l *Loader) checkLocation(path string) (string, error) {
	framework, err := l.absolute(path)
	if err != nil || !within(l.root, framework) {
		return "", &LoadError{Kind: InvalidFrameworkLocation, Path: path, Err: err}
	}
	return framework, nil
}

func (l *Loader) checkExists(framework string) (string, error) {
	info, err := os.Stat(framework)
	if err != nil || !info.IsDir() || !strings.HasSuffix(framework, FrameworkExt) {
		return "", &LoadError{Kind: FrameworkNotFound, Path: framework, Err: err}
	}
	binary := BinaryPath(framework)
	if info, err := os.Stat(binary); err != nil || !info.Mode().IsRegular() {
		return "", &LoadError{Kind: FrameworkNotFound, Path: framework, Err: err}
	}

	// Symlinks must not lead out of the trusted root.
	root, err := filepath.EvalSymlinks(l.root)
	if err != nil {
		return "", &LoadError{Kind: InvalidFrameworkLocation, Path: framework, Err: err}
	}
	for _, p := range []string{framework, binary} {
		resolved, err := filepath.EvalSymlinks(p)
		if err != nil || !within(root, resolved) {
			return "", &LoadError{Kind: InvalidFrameworkLocation, Path: framework, Err: err}
		}
	}
	return binary, nil
}

// checkSize totals the framework's files. Symlinked files count at their
// target's size; links to directories or out of the root are rejected.
func (l *Loader) checkSize(framework string) error {
	root, err := filepath.EvalSymlinks(l.root)
	if err != nil {
		return &LoadError{Kind: InvalidFrameworkLocation, Path: framework, Err: err}
	}
	dir, err := filepath.EvalSymlinks(framework)
	if err != nil {
		return &LoadError{Kind: FrameworkNotFound, Path: framework, Err: err}
	}

	var total int64
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 {
			target, err := filepath.EvalSymlinks(path)
			if err != nil || !within(root, target) {
				return &LoadError{Kind: InvalidFrameworkLocation, Path: framework, Err: err}
			}
		}
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		if info.IsDir() {
			return &LoadError{Kind: InvalidFrameworkLocation, Path: framework,
				Err: fmt.Errorf("directory link %s", path)}
		}
		if info.Mode().IsRegular() {
			total += info.Size()
		}
		return nil
	})
	var le *LoadError
	if errors.As(err, &le) {
		return le
	}
	if err != nil {
		return &LoadError{Kind: FrameworkNotFound, Path: framework, Err: err}
	}
	if total > l.max {
		return &LoadError{Kind: FrameworkTooLarge, Path: framework, Actual: total, Limit: l.max}
	}
	return nil
}

func (l *Loader) checkArchitecture(framework, binary string) error {
	archs, err := Architectures(binary)
	if err != nil {
		return &LoadError{Kind: ArchitectureMismatch, Path: framework, Want: l.arch, Got: "unknown", Err: err}
	}
	if !slices.Contains(archs, l.arch) {
		return &LoadError{Kind: ArchitectureMismatch, Path: framework, Want: l.arch, Got: strings.Join(archs, ",")}
	}
	return nil
}

func (l *Loader) lookup(framework, binary, entry string) (Factory, error) {
	syms, err := l.opener.Open(binary)
	if err != nil {
		return nil, &LoadError{Kind: OpenFailed, Path: framework, Err: err}
	}
	sym, err := syms.Lookup(entry)
	if err != nil {
		return nil, &LoadError{Kind: ClassNotFound, Path: framework, Entry: entry, Err: err}
	}

	var factory Factory
	switch fn := sym.(type) {
	case func() Plugin:
		factory = fn
	case *func() Plugin:
		if fn != nil {
			factory = *fn
		}
	case Factory:
		factory = fn
	case *Factory:
		if fn != nil {
			factory = *fn
		}
	}
	if factory == nil {
		return nil, &LoadError{Kind: InvalidPluginType, Path: framework, Entry: entry,
			Err: fmt.Errorf("symbol has type %T, want func() native.Plugin", sym)}
	}
	return factory, nil
}
