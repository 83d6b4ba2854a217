// Package coreslash is the compiled-in plugin providing the core markdown
// slash commands.
package coreslash

import (
	"errors"
	"fmt"

	"github.com/tibok/tibok/internal/command"
	"github.com/tibok/tibok/internal/plugin/manifest"
	"github.com/tibok/tibok/internal/plugin/native"
	"github.com/tibok/tibok/internal/plugin/security"
)

// Identifier is the plugin's manifest identifier.
const Identifier = "app.tibok.core-slash"

// Manifest returns the plugin's manifest.
func Manifest() *manifest.Manifest {
	return &manifest.Manifest{
		Identifier:  Identifier,
		Name:        "Core Slash Commands",
		Version:     "1.0.0",
		Description: "Headings, emphasis, code, lists and tables from the slash menu.",
		Author:      "tibok",
		PluginType:  security.PluginTypeNative,
		EntryPoint:  "New",
		Permissions: security.NewPermissionSet(security.PermissionSlashCommands),
		TrustTier:   manifest.TrustOfficial,
	}
}

// entry is one slash command template. {{cursor}} marks where the caret goes.
type entry struct {
	name        string
	description string
	icon        string
	keywords    []string
	category    string
	template    string
}

var entries = []entry{
	{"h1", "Heading 1", "textformat.size.larger", []string{"heading", "title"}, "Headings", "# {{cursor}}"},
	{"h2", "Heading 2", "textformat.size", []string{"heading", "subtitle"}, "Headings", "## {{cursor}}"},
	{"h3", "Heading 3", "textformat.size.smaller", []string{"heading"}, "Headings", "### {{cursor}}"},
	{"bold", "Bold text", "bold", []string{"strong", "emphasis"}, "Formatting", "**{{cursor}}**"},
	{"italic", "Italic text", "italic", []string{"emphasis"}, "Formatting", "*{{cursor}}*"},
	{"code", "Code block", "chevron.left.forwardslash.chevron.right", []string{"fence", "snippet"}, "Blocks", "```\n{{cursor}}\n```"},
	{"quote", "Block quote", "text.quote", []string{"blockquote", "citation"}, "Blocks", "> {{cursor}}"},
	{"list", "Bulleted list", "list.bullet", []string{"bullet", "unordered"}, "Blocks", "- {{cursor}}"},
	{"table", "Table", "tablecells", []string{"grid"}, "Blocks", "| {{cursor}} | Column |\n| --- | --- |\n|  |  |"},
	{"date", "Today's date", "calendar", []string{"today", "time"}, "Insert", "{{date}}{{cursor}}"},
}

// ErrPermissionDenied is returned when the plugin lacks slash-commands.
var ErrPermissionDenied = errors.New("coreslash: slash-commands permission not granted")

// Plugin registers the core slash commands.
type Plugin struct {
	registrar *command.Registrar
}

// New is the plugin factory.
func New() native.Plugin {
	return &Plugin{}
}

// Register adds every core command.
func (p *Plugin) Register(ctx *native.Context) error {
	if !ctx.Permissions.Has(security.PermissionSlashCommands) {
		return ErrPermissionDenied
	}
	p.registrar = ctx.Registrar

	for _, e := range entries {
		err := ctx.Registrar.RegisterSlash(&command.SlashCommand{
			Name:        e.name,
			Description: e.description,
			Icon:        e.icon,
			Keywords:    e.keywords,
			Category:    e.category,
			Template:    e.template,
		})
		if err != nil {
			return fmt.Errorf("register /%s: %w", e.name, err)
		}
	}
	if ctx.Logger != nil {
		ctx.Logger.Debug("core slash commands registered", "count", len(entries))
	}
	return nil
}

// Deactivate drops the registrar. Registrations are removed by the host.
func (p *Plugin) Deactivate() error {
	p.registrar = nil
	return nil
}

// Names returns the slash command names, in menu order.
func Names() []string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.name
	}
	return names
}
