package native

import (
	"errors"
	"fmt"
)

// ErrorKind identifies which pre-instantiation check failed.
type ErrorKind int

// Load failure kinds, in the order the checks run.
const (
	InvalidFrameworkLocation ErrorKind = iota + 1
	FrameworkNotFound
	FrameworkTooLarge
	ArchitectureMismatch
	OpenFailed
	ClassNotFound
	InvalidPluginType
)

var kindNames = map[ErrorKind]string{
	InvalidFrameworkLocation: "invalid framework location",
	FrameworkNotFound:        "framework not found",
	FrameworkTooLarge:        "framework too large",
	ArchitectureMismatch:     "architecture mismatch",
	OpenFailed:               "framework could not be opened",
	ClassNotFound:            "entry point not found",
	InvalidPluginType:        "invalid plugin type",
}

// String returns the kind description.
func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Sentinels matched by errors.Is against a *LoadError of the same kind.
var (
	ErrInvalidFrameworkLocation = errors.New(InvalidFrameworkLocation.String())
	ErrFrameworkNotFound        = errors.New(FrameworkNotFound.String())
	ErrFrameworkTooLarge        = errors.New(FrameworkTooLarge.String())
	ErrArchitectureMismatch     = errors.New(ArchitectureMismatch.String())
	ErrOpenFailed               = errors.New(OpenFailed.String())
	ErrClassNotFound            = errors.New(ClassNotFound.String())
	ErrInvalidPluginType        = errors.New(InvalidPluginType.String())
)

var kindSentinels = map[ErrorKind]error{
	InvalidFrameworkLocation: ErrInvalidFrameworkLocation,
	FrameworkNotFound:        ErrFrameworkNotFound,
	FrameworkTooLarge:        ErrFrameworkTooLarge,
	ArchitectureMismatch:     ErrArchitectureMismatch,
	OpenFailed:               ErrOpenFailed,
	ClassNotFound:            ErrClassNotFound,
	InvalidPluginType:        ErrInvalidPluginType,
}

// LoadError describes a framework that failed validation or lookup.
type LoadError struct {
	Kind ErrorKind
	Path string

	// Actual and Limit are set for FrameworkTooLarge, in bytes.
	Actual int64
	Limit  int64

	// Want and Got are set for ArchitectureMismatch.
	Want string
	Got  string

	// Entry is set for ClassNotFound and InvalidPluginType.
	Entry string

	Err error
}

func (e *LoadError) Error() string {
	msg := fmt.Sprintf("native plugin %s: %s", e.Path, e.Kind)
	switch e.Kind {
	case FrameworkTooLarge:
		msg += fmt.Sprintf(" (%s, limit %s)", formatSize(e.Actual), formatSize(e.Limit))
	case ArchitectureMismatch:
		msg += fmt.Sprintf(" (host %s, bundle %s)", e.Want, e.Got)
	case ClassNotFound, InvalidPluginType:
		msg += fmt.Sprintf(" (%q)", e.Entry)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the kind sentinel and the underlying cause.
func (e *LoadError) Unwrap() []error {
	errs := []error{kindSentinels[e.Kind]}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func formatSize(n int64) string {
	const mib = 1 << 20
	if n%mib == 0 {
		return fmt.Sprintf("%dMB", n/mib)
	}
	return fmt.Sprintf("%.1fMB", float64(n)/mib)
}
