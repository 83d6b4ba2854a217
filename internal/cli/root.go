// Package cli implements the tibok-plugin command line tool.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tibok/tibok/internal/config"
	tlog "github.com/tibok/tibok/internal/log"
)

// Version is set via ldflags during build.
var Version = "dev"

// app holds state shared by every subcommand.
type app struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "tibok-plugin",
		Short: "Sign, verify and manage tibok plugins",
		Long: `tibok-plugin signs and verifies plugin bundles and manages the
plugins installed for the tibok editor.

Signing:
  generate-keys   create an Ed25519 signing key pair
  sign            sign a plugin directory in place
  verify          check a plugin directory's signature
  hash            print a plugin directory's content hash

Management:
  list            show installed plugins and their state
  permissions     describe the permission vocabulary
  enable/disable  toggle a plugin
  run             run a slash or palette command against a document`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default "+config.DefaultPath()+")")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		a.newGenerateKeysCommand(),
		a.newSignCommand(),
		a.newVerifyCommand(),
		a.newHashCommand(),
		a.newListCommand(),
		a.newPermissionsCommand(),
		a.newEnableCommand(true),
		a.newEnableCommand(false),
		a.newRunCommand(),
	)
	return root
}

// Execute runs the command tree with ctx.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	a.cfg = cfg
	// Logs go to stderr so command output stays parseable.
	a.logger = tlog.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	return nil
}

// ExitError carries a process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string { return e.Err.Error() }

func (e *ExitError) Unwrap() error { return e.Err }

func defaultKeyDir() string {
	if dir, err := os.UserHomeDir(); err == nil {
		return dir + string(os.PathSeparator) + ".tibok"
	}
	return "."
}

func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}
