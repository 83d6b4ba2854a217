package lua

import (
	"fmt"
	"log/slog"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// ForbiddenGlobals must never be reachable from plugin code. Libraries in
// this list are never opened; functions are removed after the base library
// is installed.
var ForbiddenGlobals = []string{
	"io",
	"os",
	"debug",
	"package",
	"channel",
	"coroutine",
	"require",
	"module",
	"dofile",
	"loadfile",
	"load",
	"loadstring",
	"_printregs",
}

// Sandbox strips a Lua state down to pure computation plus whatever the
// capability table adds.
type Sandbox struct {
	L      *lua.LState
	logger *slog.Logger
}

// NewSandbox creates a new sandbox for the Lua state.
func NewSandbox(L *lua.LState, logger *slog.Logger) *Sandbox {
	return &Sandbox{L: L, logger: logger}
}

// Install removes forbidden globals and routes print to the logger.
func (s *Sandbox) Install() {
	for _, name := range ForbiddenGlobals {
		s.L.SetGlobal(name, lua.LNil)
	}
	s.L.SetGlobal("print", s.L.NewFunction(s.print))
}

// print joins its arguments with tabs, like the stock print, and logs them.
func (s *Sandbox) print(L *lua.LState) int {
	n := L.GetTop()
	parts := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		parts = append(parts, L.ToStringMeta(L.Get(i)).String())
	}
	s.logger.Info(strings.Join(parts, "\t"), "source", "print")
	return 0
}

// Check returns ErrSandboxBreach if any forbidden global is reachable.
func (s *Sandbox) Check() error {
	for _, name := range ForbiddenGlobals {
		if s.L.GetGlobal(name) != lua.LNil {
			return fmt.Errorf("%w: %q is defined", ErrSandboxBreach, name)
		}
	}
	return nil
}
