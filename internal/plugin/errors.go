package plugin

import "errors"

// Plugin host errors.
var (
	// ErrPluginNotFound is returned for an identifier the host has never seen.
	ErrPluginNotFound = errors.New("plugin not found")

	// ErrDuplicatePlugin is returned when two plugins claim one identifier.
	ErrDuplicatePlugin = errors.New("duplicate plugin identifier")

	// ErrOfficialOnDisk is returned for an on-disk plugin claiming the
	// official tier, which is reserved for compiled-in plugins.
	ErrOfficialOnDisk = errors.New("official tier is reserved for built-in plugins")

	// ErrSignatureRequired is returned when a verified plugin's signature
	// does not verify.
	ErrSignatureRequired = errors.New("verified tier requires a valid signature")

	// ErrScriptIncompatible is returned when a script plugin would be
	// granted an elevated permission.
	ErrScriptIncompatible = errors.New("script plugins cannot hold elevated permissions")

	// ErrNoScript is returned when a script host is asked to run a native plugin.
	ErrNoScript = errors.New("plugin is not a script plugin")
)
