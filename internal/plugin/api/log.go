package api

import (
	"context"
	"log/slog"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/tibok/tibok/internal/plugin/security"
)

// LogModule implements tibok.log. It is installed for every plugin.
type LogModule struct {
	ctx *Context
}

// NewLogModule creates a new log module.
func NewLogModule(ctx *Context) *LogModule {
	return &LogModule{ctx: ctx}
}

// Name returns the module name.
func (m *LogModule) Name() string { return "log" }

// RequiredPermission returns empty; logging is always available.
func (m *LogModule) RequiredPermission() security.Permission { return "" }

// Register installs tibok.log.
func (m *LogModule) Register(L *lua.LState, tibok *lua.LTable) error {
	L.SetField(tibok, "log", L.NewFunction(m.log))
	return nil
}

// log(message, level?) -> nil
// level is one of "debug", "info" (default), "warn", "error".
func (m *LogModule) log(L *lua.LState) int {
	msg := L.CheckString(1)
	level := slog.LevelInfo
	switch strings.ToLower(L.OptString(2, "info")) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	logger := slog.Default()
	if m.ctx.State != nil {
		logger = m.ctx.State.Logger()
	}
	ctx := L.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger.Log(ctx, level, msg, "source", "tibok.log")
	return 0
}
