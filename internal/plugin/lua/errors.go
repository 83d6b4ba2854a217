package lua

import (
	"errors"
	"fmt"
)

// Errors for Lua state operations.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrExecutionTimeout is returned when a call exceeds the call timeout.
	ErrExecutionTimeout = errors.New("lua execution timeout")

	// ErrSandboxBreach is returned when a forbidden global is reachable.
	ErrSandboxBreach = errors.New("lua sandbox breach")
)

// ScriptError is an error raised by plugin code, caught at the sandbox boundary.
type ScriptError struct {
	PluginID string
	Op       string
	Err      error
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("plugin %s: %s: %v", e.PluginID, e.Op, e.Err)
}

func (e *ScriptError) Unwrap() error {
	return e.Err
}
