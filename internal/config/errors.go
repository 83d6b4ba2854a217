package config

import (
	"errors"
	"fmt"
)

// Errors returned by configuration operations.
var (
	// ErrUnknownKey indicates an environment override for a key that does not exist.
	ErrUnknownKey = errors.New("unknown setting")

	// ErrInvalidValue indicates a setting value that cannot be used.
	ErrInvalidValue = errors.New("invalid setting value")
)

// ParseError reports a config file that is not valid TOML, or whose values
// do not fit the setting types. Line and Column are zero when go-toml could
// not locate the problem.
type ParseError struct {
	Path    string
	Line    int
	Column  int
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	switch {
	case e.Line > 0 && e.Column > 0:
		return fmt.Sprintf("config %s:%d:%d: %s", e.Path, e.Line, e.Column, e.Message)
	case e.Line > 0:
		return fmt.Sprintf("config %s:%d: %s", e.Path, e.Line, e.Message)
	default:
		return fmt.Sprintf("config %s: %s", e.Path, e.Message)
	}
}

func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError reports a setting that parsed but is not acceptable.
type ValidationError struct {
	Key   string
	Value any
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s = %v: %v", e.Key, e.Value, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
