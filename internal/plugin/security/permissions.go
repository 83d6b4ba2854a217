package security

import (
	"sort"
	"strings"
)

// Permission is a single host-granted right to use one narrow API surface.
type Permission string

// Safe permissions.
const (
	// PermissionSlashCommands allows registering slash commands.
	PermissionSlashCommands Permission = "slash-commands"

	// PermissionCommandPalette allows registering command palette entries.
	PermissionCommandPalette Permission = "command-palette"

	// PermissionReadCurrentDocument allows reading the document content and caret.
	PermissionReadCurrentDocument Permission = "read-current-document"

	// PermissionInsertText allows inserting text and replacing the selection.
	PermissionInsertText Permission = "insert-text"

	// PermissionReadSelection allows reading and setting the selection.
	PermissionReadSelection Permission = "read-selection"

	// PermissionReadDocumentMetadata allows reading filename, path, word count and modified state.
	PermissionReadDocumentMetadata Permission = "read-document-metadata"
)

// Elevated permissions.
const (
	// PermissionWriteDocument allows rewriting the whole document.
	PermissionWriteDocument Permission = "write-document"

	// PermissionWorkspaceAccess allows reading workspace state.
	PermissionWorkspaceAccess Permission = "workspace-access"

	// PermissionNetworkAccess allows network I/O.
	PermissionNetworkAccess Permission = "network-access"

	// PermissionFilesystemAccess allows filesystem I/O.
	PermissionFilesystemAccess Permission = "filesystem-access"

	// PermissionExecuteProcess allows spawning processes.
	PermissionExecuteProcess Permission = "execute-process"
)

// Class partitions permissions into safe and elevated.
type Class int

const (
	// ClassUnknown is returned for tokens outside the vocabulary.
	ClassUnknown Class = iota

	// ClassSafe permissions may be granted to any plugin.
	ClassSafe

	// ClassElevated permissions are never exposed to script plugins.
	ClassElevated
)

// String returns a string representation of the class.
func (c Class) String() string {
	switch c {
	case ClassSafe:
		return "safe"
	case ClassElevated:
		return "elevated"
	default:
		return "unknown"
	}
}

// PluginType identifies how a plugin's code is executed.
type PluginType string

// Plugin types.
const (
	PluginTypeNative PluginType = "native"
	PluginTypeScript PluginType = "script"
)

// Valid returns true for a known plugin type.
func (t PluginType) Valid() bool {
	return t == PluginTypeNative || t == PluginTypeScript
}

// Classify returns the class of p. It is total over the vocabulary; tokens
// outside it return ClassUnknown.
func Classify(p Permission) Class {
	info, ok := permissionRegistry[p]
	if !ok {
		return ClassUnknown
	}
	return info.Class
}

// IsElevated returns true if p is an elevated permission.
func IsElevated(p Permission) bool {
	return Classify(p) == ClassElevated
}

// IsKnown returns true if p is part of the vocabulary.
func IsKnown(p Permission) bool {
	_, ok := permissionRegistry[p]
	return ok
}

// PermissionSet is an immutable set of known permissions.
// The zero value is an empty set.
type PermissionSet struct {
	perms map[Permission]struct{}
}

// NewPermissionSet builds a set from perms. Unknown tokens are dropped.
func NewPermissionSet(perms ...Permission) PermissionSet {
	s := PermissionSet{perms: make(map[Permission]struct{}, len(perms))}
	for _, p := range perms {
		if IsKnown(p) {
			s.perms[p] = struct{}{}
		}
	}
	return s
}

// ParsePermissions converts raw manifest tokens into a set. Unrecognized
// tokens are returned separately so callers can log them.
func ParsePermissions(tokens []string) (PermissionSet, []string) {
	var dropped []string
	perms := make([]Permission, 0, len(tokens))
	for _, tok := range tokens {
		p := Permission(strings.TrimSpace(tok))
		if !IsKnown(p) {
			dropped = append(dropped, tok)
			continue
		}
		perms = append(perms, p)
	}
	return NewPermissionSet(perms...), dropped
}

// Has returns true if p is in the set.
func (s PermissionSet) Has(p Permission) bool {
	_, ok := s.perms[p]
	return ok
}

// Len returns the number of permissions in the set.
func (s PermissionSet) Len() int {
	return len(s.perms)
}

// HasElevated returns true if any permission in the set is elevated.
func (s PermissionSet) HasElevated() bool {
	for p := range s.perms {
		if IsElevated(p) {
			return true
		}
	}
	return false
}

// Elevated returns the elevated permissions in the set, sorted.
func (s PermissionSet) Elevated() []Permission {
	var out []Permission
	for p := range s.perms {
		if IsElevated(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Clamp returns a copy of the set with every elevated permission removed.
func (s PermissionSet) Clamp() PermissionSet {
	out := PermissionSet{perms: make(map[Permission]struct{}, len(s.perms))}
	for p := range s.perms {
		if !IsElevated(p) {
			out.perms[p] = struct{}{}
		}
	}
	return out
}

// Slice returns the permissions sorted by token.
func (s PermissionSet) Slice() []Permission {
	out := make([]Permission, 0, len(s.perms))
	for p := range s.perms {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Strings returns the sorted permission tokens.
func (s PermissionSet) Strings() []string {
	perms := s.Slice()
	out := make([]string, len(perms))
	for i, p := range perms {
		out[i] = string(p)
	}
	return out
}

// Equal reports whether both sets hold the same permissions.
func (s PermissionSet) Equal(other PermissionSet) bool {
	if len(s.perms) != len(other.perms) {
		return false
	}
	for p := range s.perms {
		if !other.Has(p) {
			return false
		}
	}
	return true
}

// String returns a comma separated list of permissions.
func (s PermissionSet) String() string {
	return strings.Join(s.Strings(), ",")
}

// IsScriptCompatible reports whether a plugin of type t may run with set:
// it must be a script plugin and request nothing elevated.
func IsScriptCompatible(set PermissionSet, t PluginType) bool {
	return t == PluginTypeScript && !set.HasElevated()
}
