// Package signing computes plugin content hashes and produces and verifies
// Ed25519 signatures binding a plugin's identifier, version and content.
package signing

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/tidwall/sjson"

	"github.com/tibok/tibok/internal/plugin/manifest"
)

// Algorithm is the only supported signature algorithm.
const Algorithm = "ed25519"

// Result is the outcome of verifying a plugin.
type Result int

// Verification results.
const (
	// Valid means the content hash matches and the signature verifies.
	Valid Result = iota

	// ContentMismatch means files or manifest changed after signing.
	ContentMismatch

	// SignatureInvalid means the content matches but the signature does not
	// verify against a trusted key.
	SignatureInvalid

	// Unsigned means the manifest carries no signature.
	Unsigned
)

// String returns the result name.
func (r Result) String() string {
	switch r {
	case Valid:
		return "Valid"
	case ContentMismatch:
		return "ContentMismatch"
	case SignatureInvalid:
		return "SignatureInvalid"
	case Unsigned:
		return "Unsigned"
	default:
		return "Unknown"
	}
}

// Message returns the signed message for a plugin version and content hash.
func Message(identifier, version, contentHash string) []byte {
	return []byte(fmt.Sprintf("plugin-v1:%s:%s:%s", identifier, version, contentHash))
}

// Sign hashes the plugin at root and signs it. Nothing is written to disk.
func Sign(root string, m *manifest.Manifest, priv ed25519.PrivateKey) (*manifest.Signature, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, ErrInvalidKey
	}
	keyID, err := KeyID(priv.Public().(ed25519.PublicKey))
	if err != nil {
		return nil, err
	}

	hash, err := ComputeContentHash(root, m)
	if err != nil {
		return nil, err
	}

	sig := ed25519.Sign(priv, Message(m.Identifier, m.Version, hash))
	return &manifest.Signature{
		Algorithm:   Algorithm,
		PublicKeyID: keyID,
		Signature:   base64.StdEncoding.EncodeToString(sig),
		SignedAt:    time.Now().UTC().Truncate(time.Second),
		ContentHash: hash,
	}, nil
}

// WriteSignature replaces the signature block of a manifest file, leaving
// every other key as written.
func WriteSignature(manifestPath string, sig *manifest.Signature) error {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}
	encoded, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("encode signature: %w", err)
	}
	updated, err := sjson.SetRawBytes(data, "signature", encoded)
	if err != nil {
		return fmt.Errorf("update manifest: %w", err)
	}

	tmp := manifestPath + ".tmp"
	if err := os.WriteFile(tmp, updated, 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmp, manifestPath); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace manifest: %w", err)
	}
	return nil
}

// SignDir signs the plugin in dir with priv and persists the signature.
func SignDir(dir string, priv ed25519.PrivateKey) (*manifest.Signature, error) {
	m, err := manifest.LoadFromDir(dir)
	if err != nil {
		return nil, err
	}
	sig, err := Sign(dir, m, priv)
	if err != nil {
		return nil, err
	}
	if err := WriteSignature(filepath.Join(dir, manifest.FileName), sig); err != nil {
		return nil, err
	}
	return sig, nil
}

// Verifier checks plugin signatures against a keyring.
type Verifier struct {
	keyring *Keyring
	logger  *slog.Logger
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithLogger sets the logger used for verification diagnostics.
func WithLogger(logger *slog.Logger) VerifierOption {
	return func(v *Verifier) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// NewVerifier creates a verifier trusting the keys in keyring.
func NewVerifier(keyring *Keyring, opts ...VerifierOption) *Verifier {
	if keyring == nil {
		keyring, _ = NewKeyring()
	}
	v := &Verifier{
		keyring: keyring,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Keyring returns the verifier's keyring.
func (v *Verifier) Keyring() *Keyring {
	return v.keyring
}

// Verify recomputes the content hash of the plugin at root and checks the
// manifest's signature. The hash is compared before any cryptographic check.
// A non-nil error means verification could not run.
func (v *Verifier) Verify(root string, m *manifest.Manifest) (Result, error) {
	if m.Signature == nil {
		return Unsigned, nil
	}
	sig := m.Signature

	hash, err := ComputeContentHash(root, m)
	if err != nil {
		return SignatureInvalid, fmt.Errorf("cannot verify %s: %w", m.Identifier, err)
	}
	if hash != sig.ContentHash {
		v.logger.Debug("content hash mismatch",
			"plugin", m.Identifier,
			"expected", sig.ContentHash,
			"actual", hash)
		return ContentMismatch, nil
	}

	if sig.Algorithm != Algorithm {
		v.logger.Debug("unsupported signature algorithm", "plugin", m.Identifier, "algorithm", sig.Algorithm)
		return SignatureInvalid, nil
	}
	pub, ok := v.keyring.Lookup(sig.PublicKeyID)
	if !ok {
		v.logger.Debug("unknown signing key", "plugin", m.Identifier, "key", sig.PublicKeyID)
		return SignatureInvalid, nil
	}
	raw, err := base64.StdEncoding.DecodeString(sig.Signature)
	if err != nil || len(raw) != ed25519.SignatureSize {
		return SignatureInvalid, nil
	}
	if !ed25519.Verify(pub, Message(m.Identifier, m.Version, hash), raw) {
		return SignatureInvalid, nil
	}
	return Valid, nil
}

// VerifyDir loads the manifest in dir and verifies it.
func (v *Verifier) VerifyDir(dir string) (Result, *manifest.Manifest, error) {
	m, err := manifest.LoadFromDir(dir)
	if err != nil {
		return SignatureInvalid, nil, err
	}
	result, err := v.Verify(dir, m)
	return result, m, err
}

// ErrNotValid is wrapped by AsError for any result other than Valid.
var ErrNotValid = errors.New("signature verification failed")

// AsError converts a non-Valid result to an error.
func (r Result) AsError() error {
	if r == Valid {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrNotValid, r)
}
