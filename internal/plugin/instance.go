package plugin

import (
	"time"

	"github.com/tibok/tibok/internal/command"
	"github.com/tibok/tibok/internal/plugin/manifest"
	"github.com/tibok/tibok/internal/plugin/native"
	"github.com/tibok/tibok/internal/plugin/security"
)

// Kind is how a loaded plugin executes.
type Kind int

// Plugin kinds.
const (
	KindScript Kind = iota
	KindNative
	KindBuiltin
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindScript:
		return "script"
	case KindNative:
		return "native"
	case KindBuiltin:
		return "builtin"
	default:
		return "unknown"
	}
}

// Instance is a loaded plugin. It exclusively owns its execution handle:
// a script host for script plugins, a native plugin object otherwise.
type Instance struct {
	PluginID    string
	InstanceID  string
	Kind        Kind
	Manifest    *manifest.Manifest
	Permissions security.PermissionSet
	LoadedAt    time.Time

	registrar *command.Registrar
	script    *ScriptHost
	native    native.Plugin
	framework string
}

// Source returns the registry source tag of everything the plugin registered.
func (i *Instance) Source() string {
	return i.registrar.Source()
}

// Commands returns the IDs of the palette commands the plugin registered.
func (i *Instance) Commands() []string {
	cmds := i.registrar.Commands()
	ids := make([]string, len(cmds))
	for n, c := range cmds {
		ids[n] = c.ID
	}
	return ids
}

// SlashCommands returns the names of the slash commands the plugin registered.
func (i *Instance) SlashCommands() []string {
	cmds := i.registrar.SlashCommands()
	names := make([]string, len(cmds))
	for n, c := range cmds {
		names[n] = c.Name
	}
	return names
}

// Script returns the script host, or nil for native plugins.
func (i *Instance) Script() *ScriptHost {
	return i.script
}
