package signing

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
)

// Default key file names written by WriteKeyPair.
const (
	PrivateKeyFile = "tibok_plugin_signing.key"
	PublicKeyFile  = "tibok_plugin_signing.pub"
)

// ErrInvalidKey is returned for key files that do not decode to Ed25519 keys.
var ErrInvalidKey = errors.New("signing: invalid key")

// GenerateKeys creates a new Ed25519 key pair.
func GenerateKeys() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("generate key: %w", err)
	}
	return pub, priv, nil
}

// KeyID returns the SSH SHA256 fingerprint of a public key.
func KeyID(pub ed25519.PublicKey) (string, error) {
	sshKey, err := ssh.NewPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return ssh.FingerprintSHA256(sshKey), nil
}

// WriteKeyPair generates a key pair and writes it into dir. The private key
// file holds the base64 seed and is created with mode 0600.
func WriteKeyPair(dir string) (privPath, pubPath string, err error) {
	pub, priv, err := GenerateKeys()
	if err != nil {
		return "", "", err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", "", fmt.Errorf("create key directory: %w", err)
	}

	privPath = filepath.Join(dir, PrivateKeyFile)
	pubPath = filepath.Join(dir, PublicKeyFile)

	seed := base64.StdEncoding.EncodeToString(priv.Seed())
	if err := os.WriteFile(privPath, []byte(seed+"\n"), 0600); err != nil {
		return "", "", fmt.Errorf("write private key: %w", err)
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(privPath, 0600); err != nil {
		return "", "", fmt.Errorf("restrict private key: %w", err)
	}

	encoded := base64.StdEncoding.EncodeToString(pub)
	if err := os.WriteFile(pubPath, []byte(encoded+"\n"), 0644); err != nil {
		return "", "", fmt.Errorf("write public key: %w", err)
	}
	return privPath, pubPath, nil
}

// LoadPrivateKey reads a base64 seed file.
func LoadPrivateKey(path string) (ed25519.PrivateKey, error) {
	raw, err := readKeyFile(path, ed25519.SeedSize)
	if err != nil {
		return nil, err
	}
	return ed25519.NewKeyFromSeed(raw), nil
}

// LoadPublicKey reads a base64 public key file.
func LoadPublicKey(path string) (ed25519.PublicKey, error) {
	raw, err := readKeyFile(path, ed25519.PublicKeySize)
	if err != nil {
		return nil, err
	}
	return ed25519.PublicKey(raw), nil
}

func readKeyFile(path string, size int) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key: %w", err)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidKey, path, err)
	}
	if len(raw) != size {
		return nil, fmt.Errorf("%w: %s: want %d bytes, got %d", ErrInvalidKey, path, size, len(raw))
	}
	return raw, nil
}
