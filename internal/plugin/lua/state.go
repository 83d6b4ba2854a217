package lua

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// State wraps a gopher-lua VM opened with only the safe standard libraries.
//
// gopher-lua's LState is not goroutine-safe. Callers serialize access through
// the host thread; the mutex guards against misuse from Go code.
type State struct {
	L *lua.LState

	mu sync.Mutex

	pluginID    string
	logger      *slog.Logger
	callTimeout time.Duration

	sandbox *Sandbox
	closed  bool
}

// StateOption configures a State.
type StateOption func(*State)

// WithLogger sets the logger for print output and contained errors.
func WithLogger(logger *slog.Logger) StateOption {
	return func(s *State) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCallTimeout bounds every chunk and callback run. Zero means unbounded.
func WithCallTimeout(d time.Duration) StateOption {
	return func(s *State) {
		s.callTimeout = d
	}
}

// NewState creates a sandboxed Lua state for a plugin.
func NewState(pluginID string, opts ...StateOption) (*State, error) {
	s := &State{
		pluginID: pluginID,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("plugin", pluginID)

	L := lua.NewState(lua.Options{
		SkipOpenLibs:        true,
		IncludeGoStackTrace: false,
	})
	s.L = L

	if err := openSafeLibraries(L); err != nil {
		L.Close()
		return nil, err
	}

	s.sandbox = NewSandbox(L, s.logger)
	s.sandbox.Install()
	if err := s.sandbox.Check(); err != nil {
		L.Close()
		return nil, err
	}
	return s, nil
}

// safeLibraries are the only standard libraries a plugin VM receives.
// io, os, debug, package and channel are never opened.
var safeLibraries = []struct {
	name string
	fn   lua.LGFunction
}{
	{lua.BaseLibName, lua.OpenBase},
	{lua.TabLibName, lua.OpenTable},
	{lua.StringLibName, lua.OpenString},
	{lua.MathLibName, lua.OpenMath},
}

func openSafeLibraries(L *lua.LState) error {
	for _, lib := range safeLibraries {
		if err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(lib.fn),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name)); err != nil {
			return fmt.Errorf("open %s library: %w", lib.name, err)
		}
	}
	return nil
}

// PluginID returns the identifier of the plugin owning this state.
func (s *State) PluginID() string {
	return s.pluginID
}

// Logger returns the plugin-scoped logger.
func (s *State) Logger() *slog.Logger {
	return s.logger
}

// DoFile executes a Lua file.
func (s *State) DoFile(ctx context.Context, path string) error {
	return s.run(ctx, "load "+path, func(L *lua.LState) error {
		return L.DoFile(path)
	})
}

// DoString executes a Lua chunk.
func (s *State) DoString(ctx context.Context, code string) error {
	return s.run(ctx, "chunk", func(L *lua.LState) error {
		return L.DoString(code)
	})
}

// HasFunction returns true if the named global is a function.
func (s *State) HasFunction(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	return s.L.GetGlobal(name).Type() == lua.LTFunction
}

// CallGlobal calls a global function. A missing global is not an error.
func (s *State) CallGlobal(ctx context.Context, name string, args ...lua.LValue) ([]lua.LValue, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrStateClosed
	}
	fn := s.L.GetGlobal(name)
	s.mu.Unlock()

	if fn == lua.LNil {
		return []lua.LValue{}, nil
	}
	if fn.Type() != lua.LTFunction {
		return nil, fmt.Errorf("%q is not a function (got %s)", name, fn.Type())
	}
	return s.Call(ctx, name, fn, args...)
}

// Call invokes fn with args and returns its results. Errors and panics are
// contained, logged with the plugin identifier and returned as *ScriptError.
func (s *State) Call(ctx context.Context, op string, fn lua.LValue, args ...lua.LValue) ([]lua.LValue, error) {
	var results []lua.LValue
	err := s.run(ctx, op, func(L *lua.LState) error {
		top := L.GetTop()
		L.Push(fn)
		for _, arg := range args {
			L.Push(arg)
		}
		if err := L.PCall(len(args), lua.MultRet, nil); err != nil {
			L.SetTop(top)
			return err
		}

		n := L.GetTop() - top
		results = make([]lua.LValue, n)
		for i := 0; i < n; i++ {
			results[i] = L.Get(top + i + 1)
		}
		L.Pop(n)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// run executes fn under the state lock with timeout, panic recovery and
// error logging.
func (s *State) run(ctx context.Context, op string, fn func(L *lua.LState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}

	if s.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.callTimeout)
		defer cancel()
	}
	if ctx.Done() != nil {
		s.L.SetContext(ctx)
		defer s.L.RemoveContext()
	}

	err := s.doWithRecovery(fn)
	if err == nil {
		return nil
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %v", ErrExecutionTimeout, err)
	}
	scriptErr := &ScriptError{PluginID: s.pluginID, Op: op, Err: err}
	s.logger.Error("plugin script error", "op", op, "error", err)
	return scriptErr
}

// doWithRecovery executes a function with panic recovery.
func (s *State) doWithRecovery(fn func(L *lua.LState) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn(s.L)
}

// Sandbox returns the sandbox guarding this state.
func (s *State) Sandbox() *Sandbox {
	return s.sandbox
}

// IsClosed returns true if the state has been closed.
func (s *State) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases the VM. Later calls return ErrStateClosed.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.L.Close()
	s.closed = true
	return nil
}
