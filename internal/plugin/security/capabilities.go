// Package security provides the permission vocabulary for the plugin system.
package security

import (
	"fmt"
	"sort"
)

// PermissionInfo provides metadata about a permission.
type PermissionInfo struct {
	// Name is the permission token.
	Name Permission

	// DisplayName is a human-readable name.
	DisplayName string

	// Description explains what the permission allows.
	Description string

	// Class is the fixed safe/elevated classification.
	Class Class

	// RiskLevel indicates how dangerous this permission is.
	RiskLevel RiskLevel
}

// RiskLevel indicates the security risk of a permission.
type RiskLevel int

const (
	// RiskLow indicates minimal security risk.
	RiskLow RiskLevel = iota

	// RiskMedium indicates moderate security risk.
	RiskMedium

	// RiskHigh indicates significant security risk.
	RiskHigh

	// RiskCritical indicates maximum security risk.
	RiskCritical
)

// String returns a string representation of the risk level.
func (r RiskLevel) String() string {
	switch r {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	case RiskCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// permissionRegistry holds metadata about all known permissions.
var permissionRegistry = map[Permission]PermissionInfo{
	PermissionSlashCommands: {
		Name:        PermissionSlashCommands,
		DisplayName: "Slash Commands",
		Description: "Register slash commands in the editor",
		Class:       ClassSafe,
		RiskLevel:   RiskLow,
	},
	PermissionCommandPalette: {
		Name:        PermissionCommandPalette,
		DisplayName: "Command Palette",
		Description: "Register commands in the command palette",
		Class:       ClassSafe,
		RiskLevel:   RiskLow,
	},
	PermissionReadCurrentDocument: {
		Name:        PermissionReadCurrentDocument,
		DisplayName: "Read Document",
		Description: "Read the current document content and caret position",
		Class:       ClassSafe,
		RiskLevel:   RiskLow,
	},
	PermissionInsertText: {
		Name:        PermissionInsertText,
		DisplayName: "Insert Text",
		Description: "Insert text at the caret or replace the selection",
		Class:       ClassSafe,
		RiskLevel:   RiskLow,
	},
	PermissionReadSelection: {
		Name:        PermissionReadSelection,
		DisplayName: "Read Selection",
		Description: "Read and change the current selection",
		Class:       ClassSafe,
		RiskLevel:   RiskLow,
	},
	PermissionReadDocumentMetadata: {
		Name:        PermissionReadDocumentMetadata,
		DisplayName: "Document Metadata",
		Description: "Read filename, path, word count and modified state",
		Class:       ClassSafe,
		RiskLevel:   RiskLow,
	},
	PermissionWriteDocument: {
		Name:        PermissionWriteDocument,
		DisplayName: "Write Document",
		Description: "Replace the whole document content",
		Class:       ClassElevated,
		RiskLevel:   RiskMedium,
	},
	PermissionWorkspaceAccess: {
		Name:        PermissionWorkspaceAccess,
		DisplayName: "Workspace Access",
		Description: "Read workspace files and state",
		Class:       ClassElevated,
		RiskLevel:   RiskMedium,
	},
	PermissionNetworkAccess: {
		Name:        PermissionNetworkAccess,
		DisplayName: "Network Access",
		Description: "Make network requests",
		Class:       ClassElevated,
		RiskLevel:   RiskHigh,
	},
	PermissionFilesystemAccess: {
		Name:        PermissionFilesystemAccess,
		DisplayName: "Filesystem Access",
		Description: "Read and write arbitrary files",
		Class:       ClassElevated,
		RiskLevel:   RiskHigh,
	},
	PermissionExecuteProcess: {
		Name:        PermissionExecuteProcess,
		DisplayName: "Execute Process",
		Description: "Spawn external processes",
		Class:       ClassElevated,
		RiskLevel:   RiskCritical,
	},
}

// GetPermissionInfo returns information about a permission.
func GetPermissionInfo(p Permission) (PermissionInfo, bool) {
	info, ok := permissionRegistry[p]
	return info, ok
}

// AllPermissions returns every known permission, sorted.
func AllPermissions() []Permission {
	perms := make([]Permission, 0, len(permissionRegistry))
	for p := range permissionRegistry {
		perms = append(perms, p)
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i] < perms[j] })
	return perms
}

// MaxRisk returns the highest risk level in set. An empty set is RiskLow.
func MaxRisk(set PermissionSet) RiskLevel {
	level := RiskLow
	for _, p := range set.Slice() {
		if info := permissionRegistry[p]; info.RiskLevel > level {
			level = info.RiskLevel
		}
	}
	return level
}

// PermissionError is returned when an operation needs a permission that
// was not granted.
type PermissionError struct {
	Permission Permission
	Operation  string
	Message    string
}

// Error implements the error interface.
func (e *PermissionError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("permission %q required for %s: %s", e.Permission, e.Operation, e.Message)
	}
	return fmt.Sprintf("permission %q: %s", e.Permission, e.Message)
}

// NewPermissionError creates a new permission error.
func NewPermissionError(p Permission, operation, message string) *PermissionError {
	return &PermissionError{
		Permission: p,
		Operation:  operation,
		Message:    message,
	}
}
