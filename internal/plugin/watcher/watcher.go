// Package watcher watches a plugin install root and signals when its
// contents change.
//
// The root and each immediate subdirectory are watched, so adding or
// removing a plugin directory and editing a manifest or script are all
// seen. Bursts of filesystem events are coalesced into a single callback
// once the root has been quiet for the debounce delay.
package watcher

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period before a change is reported.
const DefaultDebounce = 250 * time.Millisecond

// ErrWatcherClosed is returned when operating on a closed watcher.
var ErrWatcherClosed = errors.New("watcher is closed")

// Handler is called once per coalesced burst of changes.
type Handler func()

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.delay = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// Watcher reports changes below a plugin root.
type Watcher struct {
	mu sync.Mutex

	root    string
	watcher *fsnotify.Watcher
	handler Handler
	delay   time.Duration
	logger  *slog.Logger

	paths map[string]bool
	timer *time.Timer

	closed   bool
	closeCh  chan struct{}
	closedWg sync.WaitGroup
}

// New starts watching root. The root must exist.
func New(root string, handler Handler, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, errors.New("watcher: nil handler")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		root:    abs,
		watcher: fsw,
		handler: handler,
		delay:   DefaultDebounce,
		logger:  slog.Default(),
		paths:   make(map[string]bool),
		closeCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := w.add(abs); err != nil {
		fsw.Close()
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		fsw.Close()
		return nil, err
	}
	for _, e := range entries {
		if e.IsDir() && !hidden(e.Name()) {
			if err := w.add(filepath.Join(abs, e.Name())); err != nil {
				w.logger.Warn("plugin directory not watched", "dir", e.Name(), "error", err)
			}
		}
	}

	w.closedWg.Add(1)
	go w.processLoop()
	return w, nil
}

// Root returns the watched root.
func (w *Watcher) Root() string {
	return w.root
}

// WatchedPaths returns the watched directories, sorted.
func (w *Watcher) WatchedPaths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	paths := make([]string, 0, len(w.paths))
	for p := range w.paths {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Close stops the watcher. A pending callback is dropped.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	w.closedWg.Wait()
	return w.watcher.Close()
}

func (w *Watcher) add(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWatcherClosed
	}
	if w.paths[path] {
		return nil
	}
	if err := w.watcher.Add(path); err != nil {
		return err
	}
	w.paths[path] = true
	return nil
}

func (w *Watcher) forget(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.paths[path] && path != w.root {
		// fsnotify drops watches on removed directories itself.
		_ = w.watcher.Remove(path)
		delete(w.paths, path)
	}
}

func (w *Watcher) processLoop() {
	defer w.closedWg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("plugin watcher error", "root", w.root, "error", err)
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if ev.Op == fsnotify.Chmod || hidden(filepath.Base(ev.Name)) {
		return
	}

	// New plugin directories directly under the root get their own watch.
	if ev.Op.Has(fsnotify.Create) && filepath.Dir(ev.Name) == w.root {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.add(ev.Name); err != nil && !errors.Is(err, ErrWatcherClosed) {
				w.logger.Warn("plugin directory not watched", "dir", ev.Name, "error", err)
			}
		}
	}
	if ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename) {
		w.forget(ev.Name)
	}

	w.schedule()
}

// schedule restarts the debounce timer.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.delay, w.fire)
}

func (w *Watcher) fire() {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("plugin watcher handler panicked", "panic", r)
		}
	}()
	w.handler()
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
