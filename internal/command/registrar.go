package command

import "github.com/tibok/tibok/internal/plugin/security"

// SourcePrefix is prepended to plugin identifiers to form registry sources.
const SourcePrefix = "plugin:"

// PluginSource returns the registry source tag for a plugin identifier.
func PluginSource(identifier string) string {
	return SourcePrefix + identifier
}

// Registrar registers commands on behalf of a single source. Every entry it
// registers is stamped with that source.
type Registrar struct {
	source   string
	commands *Commands
	slash    *SlashCommands

	guarded bool
	granted security.PermissionSet
}

// RegistrarOption configures a Registrar.
type RegistrarOption func(*Registrar)

// WithGrantedPermissions restricts the registrar to the registries the
// source was granted: slash-commands for RegisterSlash and command-palette
// for RegisterCommand. Without it every registration is allowed.
func WithGrantedPermissions(granted security.PermissionSet) RegistrarOption {
	return func(r *Registrar) {
		r.guarded = true
		r.granted = granted
	}
}

// NewRegistrar creates a registrar for source. Either registry may be nil,
// in which case registrations against it fail.
func NewRegistrar(source string, commands *Commands, slash *SlashCommands, opts ...RegistrarOption) *Registrar {
	r := &Registrar{source: source, commands: commands, slash: slash}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// require fails with a *security.PermissionError when the registrar is
// guarded and p was not granted.
func (r *Registrar) require(p security.Permission, operation string) error {
	if !r.guarded || r.granted.Has(p) {
		return nil
	}
	msg := "not granted to " + r.source
	if info, ok := security.GetPermissionInfo(p); ok {
		msg = info.DisplayName + " not granted to " + r.source
	}
	return security.NewPermissionError(p, operation, msg)
}

// Source returns the source tag.
func (r *Registrar) Source() string {
	return r.source
}

// RegisterCommand adds a palette command owned by the registrar's source.
func (r *Registrar) RegisterCommand(cmd *Command) error {
	if err := r.require(security.PermissionCommandPalette, "register command "+cmd.ID); err != nil {
		return err
	}
	if r.commands == nil {
		return ErrNoRegistry
	}
	cmd.Owner = r.source
	return r.commands.Register(cmd)
}

// RegisterSlash adds a slash command owned by the registrar's source.
func (r *Registrar) RegisterSlash(cmd *SlashCommand) error {
	if err := r.require(security.PermissionSlashCommands, "register slash command /"+cmd.Name); err != nil {
		return err
	}
	if r.slash == nil {
		return ErrNoRegistry
	}
	cmd.Owner = r.source
	return r.slash.Register(cmd)
}

// UnregisterAll removes everything the source registered in both registries
// and returns how many entries were removed.
func (r *Registrar) UnregisterAll() int {
	n := 0
	if r.commands != nil {
		n += r.commands.UnregisterBySource(r.source)
	}
	if r.slash != nil {
		n += r.slash.UnregisterBySource(r.source)
	}
	return n
}

// UnregisterCommand removes one of the source's palette commands.
func (r *Registrar) UnregisterCommand(id string) bool {
	if r.commands == nil {
		return false
	}
	return r.commands.Unregister(id, r.source)
}

// UnregisterSlash removes one of the source's slash commands.
func (r *Registrar) UnregisterSlash(name string) bool {
	if r.slash == nil {
		return false
	}
	return r.slash.Unregister(name, r.source)
}

// Commands returns the palette commands registered by the source.
func (r *Registrar) Commands() []*Command {
	if r.commands == nil {
		return nil
	}
	return r.commands.BySource(r.source)
}

// SlashCommands returns the slash commands registered by the source.
func (r *Registrar) SlashCommands() []*SlashCommand {
	if r.slash == nil {
		return nil
	}
	return r.slash.BySource(r.source)
}
