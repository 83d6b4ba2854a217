package cli

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tibok/tibok/internal/editor"
	"github.com/tibok/tibok/internal/plugin"
	"github.com/tibok/tibok/internal/plugin/builtin/coreslash"
	"github.com/tibok/tibok/internal/plugin/security"
	"github.com/tibok/tibok/internal/plugin/state"
)

// ErrUnknownPlugin is returned when an identifier matches no installed plugin.
var ErrUnknownPlugin = errors.New("unknown plugin")

// startSystem builds and starts a plugin system for one command.
func (a *app) startSystem(ctx context.Context, opts ...plugin.SystemOption) (*plugin.System, error) {
	cfg := *a.cfg
	// One-shot commands never watch the install root.
	cfg.Plugins.Watch = false

	opts = append([]plugin.SystemOption{plugin.WithSystemLogger(a.logger)}, opts...)
	sys, err := plugin.NewSystem(&cfg, opts...)
	if err != nil {
		return nil, err
	}
	if err := sys.Start(ctx); err != nil {
		sys.Shutdown(ctx)
		return nil, err
	}
	return sys, nil
}

func (a *app) newListCommand() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List installed plugins",
		Long: `Load the configured plugins and print each one with its trust tier,
lifecycle state and contributions. Denied plugins show their error.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sys, err := a.startSystem(ctx)
			if err != nil {
				return err
			}
			defer sys.Shutdown(ctx)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "IDENTIFIER\tVERSION\tTYPE\tTRUST\tRISK\tSTATE\tCONTRIBUTES")
			for _, info := range sys.Manager().AllPluginInfo() {
				if !all && info.Builtin {
					continue
				}
				perms, _ := security.ParsePermissions(info.Permissions)
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					info.Identifier, orDash(info.Version), orDash(string(info.PluginType)),
					orDash(string(info.TrustTier)), security.MaxRisk(perms), info.State, contributions(info))
			}
			if err := w.Flush(); err != nil {
				return err
			}

			errs := sys.Manager().PluginErrors()
			for _, id := range slices.Sorted(maps.Keys(errs)) {
				printf(cmd, "\n%s: %v", id, errs[id])
			}
			if len(errs) > 0 {
				printf(cmd, "\n")
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "include built-in plugins")
	return cmd
}

func (a *app) newPermissionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "permissions",
		Short: "Describe the permissions a plugin can request",
		Long: `List every permission token with its class and risk. Script plugins
may only request safe permissions. Elevated permissions need a native
plugin with a verified signature or the official tier.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "PERMISSION\tNAME\tCLASS\tRISK\tDESCRIPTION")
			for _, p := range security.AllPermissions() {
				info, _ := security.GetPermissionInfo(p)
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					p, info.DisplayName, info.Class, info.RiskLevel, info.Description)
			}
			return w.Flush()
		},
	}
}

func contributions(info plugin.Info) string {
	parts := append([]string(nil), info.Commands...)
	for _, s := range info.SlashCommands {
		parts = append(parts, "/"+s)
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ",")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func (a *app) newEnableCommand(enable bool) *cobra.Command {
	use, short, verb := "disable <identifier>", "Disable a plugin", "Disabled"
	if enable {
		use, short, verb = "enable <identifier>", "Enable a plugin", "Enabled"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Long: short + `. The choice is persisted to the configured state
store and takes effect the next time the host starts.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			known, err := a.installedIDs()
			if err != nil {
				return err
			}
			if !known[id] {
				return fmt.Errorf("%w: %s", ErrUnknownPlugin, id)
			}

			pc := a.cfg.Plugins
			store, err := plugin.OpenStore(pc.StateBackend, pc.StatePath)
			if err != nil {
				return err
			}
			states := state.NewManager(store, state.WithLogger(a.logger))
			defer states.Close()

			if err := states.SetEnabled(id, enable); err != nil {
				return err
			}
			printf(cmd, "%s %s\n", verb, id)
			return nil
		},
	}
}

// installedIDs returns every identifier found under the configured roots
// plus the compiled-in plugins.
func (a *app) installedIDs() (map[string]bool, error) {
	ids := map[string]bool{coreslash.Identifier: true}
	for _, root := range []string{a.cfg.Plugins.BuiltinRoot, a.cfg.Plugins.ThirdPartyRoot} {
		if root == "" {
			continue
		}
		candidates, err := plugin.Discover(root)
		if err != nil {
			return nil, err
		}
		for _, c := range candidates {
			ids[c.Identifier] = true
		}
	}
	return ids, nil
}

func (a *app) newRunCommand() *cobra.Command {
	var (
		file  string
		write bool
	)

	cmd := &cobra.Command{
		Use:   "run <command>",
		Short: "Run a plugin command against a document",
		Long: `Load the configured plugins and run one command against a document.
A name starting with "/" runs a slash command and inserts its expansion at
the end of the document. Any other name runs a palette command.

The resulting document is printed, or saved back with --write.`,
		Example: `  tibok-plugin run /date --file notes.md
  tibok-plugin run wordcount.show --file notes.md`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			buf := editor.NewBuffer("")
			if file != "" {
				var err error
				if buf, err = editor.Open(file); err != nil {
					return err
				}
			} else if write {
				return errors.New("--write requires --file")
			}

			sys, err := a.startSystem(ctx, plugin.WithSystemEditor(buf, buf))
			if err != nil {
				return err
			}
			defer sys.Shutdown(ctx)

			if err := runCommand(ctx, sys.Manager(), buf, args[0]); err != nil {
				return err
			}

			if write {
				if err := buf.Save(); err != nil {
					return err
				}
				printf(cmd, "Wrote %s\n", file)
				return nil
			}
			printf(cmd, "%s", buf.Content())
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "document to open")
	cmd.Flags().BoolVarP(&write, "write", "w", false, "save the document instead of printing it")
	return cmd
}

func runCommand(ctx context.Context, m *plugin.Manager, buf *editor.Buffer, name string) error {
	slash, ok := strings.CutPrefix(name, "/")
	if !ok {
		return m.Commands().Execute(ctx, name)
	}

	ins, err := m.SlashCommands().Execute(ctx, slash)
	if err != nil {
		return err
	}
	start := buf.CursorPosition()
	buf.InsertText(ins.Text)
	if ins.Cursor >= 0 {
		return buf.SetCursorPosition(start + ins.Cursor)
	}
	return nil
}
