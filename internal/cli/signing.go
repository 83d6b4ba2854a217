package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tibok/tibok/internal/plugin/manifest"
	"github.com/tibok/tibok/internal/plugin/signing"
)

func (a *app) newGenerateKeysCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "generate-keys",
		Short: "Generate an Ed25519 signing key pair",
		Long: `Generate an Ed25519 key pair for signing plugins.

The private key is written with mode 0600. Copy the public key into the
trusted keys directory of every host that should accept your plugins.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			privPath, pubPath, err := signing.WriteKeyPair(output)
			if err != nil {
				return err
			}
			pub, err := signing.LoadPublicKey(pubPath)
			if err != nil {
				return err
			}
			id, err := signing.KeyID(pub)
			if err != nil {
				return err
			}

			printf(cmd, "Private key: %s\n", privPath)
			printf(cmd, "Public key:  %s\n", pubPath)
			printf(cmd, "Key ID:      %s\n", id)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", defaultKeyDir(), "directory for the key files")
	return cmd
}

func (a *app) newSignCommand() *cobra.Command {
	var keyPath string

	cmd := &cobra.Command{
		Use:   "sign <plugin-dir>",
		Short: "Sign a plugin directory",
		Long: `Hash the plugin directory, sign the hash and write the signature
block into its manifest.json. Other manifest keys are left as written.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			priv, err := signing.LoadPrivateKey(keyPath)
			if err != nil {
				return err
			}
			sig, err := signing.SignDir(args[0], priv)
			if err != nil {
				return err
			}
			a.logger.Info("plugin signed", "dir", args[0], "key", sig.PublicKeyID)

			printf(cmd, "Signed %s\n", args[0])
			printf(cmd, "Content hash: %s\n", sig.ContentHash)
			printf(cmd, "Key ID:       %s\n", sig.PublicKeyID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&keyPath, "key", "k", filepath.Join(defaultKeyDir(), signing.PrivateKeyFile), "private key file")
	return cmd
}

func (a *app) newVerifyCommand() *cobra.Command {
	var (
		keysDir string
		keyPath string
	)

	cmd := &cobra.Command{
		Use:   "verify <plugin-dir>",
		Short: "Verify a plugin directory's signature",
		Long: `Recompute the content hash and check the signature against the
trusted keys. Prints Valid, ContentMismatch, SignatureInvalid or Unsigned
and exits non-zero for anything but Valid.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if keysDir == "" {
				keysDir = a.cfg.Plugins.TrustedKeysDir
			}
			keyring, err := signing.LoadKeyring(keysDir)
			if err != nil {
				a.logger.Warn("some trusted keys could not be read", "dir", keysDir, "error", err)
			}
			if keyring == nil {
				keyring, _ = signing.NewKeyring()
			}
			if keyPath != "" {
				pub, err := signing.LoadPublicKey(keyPath)
				if err != nil {
					return err
				}
				if _, err := keyring.Add(pub); err != nil {
					return err
				}
			}

			verifier := signing.NewVerifier(keyring, signing.WithLogger(a.logger))
			result, m, err := verifier.VerifyDir(args[0])
			if err != nil {
				return &ExitError{Code: 1, Err: err}
			}

			printf(cmd, "%s %s: %s\n", m.Identifier, m.Version, result)
			if err := result.AsError(); err != nil {
				return &ExitError{Code: 1, Err: err}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&keysDir, "keys", "", "trusted keys directory (default from config)")
	cmd.Flags().StringVar(&keyPath, "key", "", "additional trusted public key file")
	return cmd
}

func (a *app) newHashCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash <plugin-dir>",
		Short: "Print a plugin directory's content hash",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := manifest.LoadFromDir(args[0])
			if err != nil {
				return err
			}
			hash, err := signing.ComputeContentHash(args[0], m)
			if err != nil {
				return fmt.Errorf("hash %s: %w", args[0], err)
			}
			printf(cmd, "%s\n", hash)
			return nil
		},
	}
}
