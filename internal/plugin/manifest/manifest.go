// Package manifest parses and validates plugin manifests and models trust tiers.
package manifest

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/tibok/tibok/internal/plugin/security"
)

// FileName is the manifest file expected at the root of every plugin directory.
const FileName = "manifest.json"

// DefaultScriptEntryPoint is used when a script manifest omits entry_point.
const DefaultScriptEntryPoint = "main.lua"

// TrustTier classifies how much a plugin may request.
type TrustTier string

// Trust tiers.
const (
	// TrustOfficial is reserved for plugins compiled into the host.
	TrustOfficial TrustTier = "official"

	// TrustVerified requires a present, valid signature.
	TrustVerified TrustTier = "verified"

	// TrustCommunity is the default. Unsigned community plugins are clamped
	// to safe permissions.
	TrustCommunity TrustTier = "community"
)

// Valid returns true for a known tier.
func (t TrustTier) Valid() bool {
	return t == TrustOfficial || t == TrustVerified || t == TrustCommunity
}

// Signature binds (identifier, version, content hash) to an Ed25519 key.
type Signature struct {
	Algorithm   string    `json:"algorithm"`
	PublicKeyID string    `json:"public_key_id"`
	Signature   string    `json:"signature"` // base64
	SignedAt    time.Time `json:"signed_at"`
	ContentHash string    `json:"content_hash"` // hex
}

// Manifest describes a plugin's identity, permissions and trust metadata.
type Manifest struct {
	// Identity
	Identifier  string // Reverse-DNS (e.g., "com.example.wordcount")
	Name        string // Display name
	Version     string // Semver (e.g., "1.2.0")
	Description string
	Author      string
	Icon        string

	// Requirements
	MinimumTibokVersion string

	// Execution
	PluginType security.PluginType
	EntryPoint string // Script path relative to the plugin root, or native symbol name

	// Trust
	Permissions security.PermissionSet
	TrustTier   TrustTier // As declared; see ResolvedTrustTier
	Signature   *Signature

	// Internal: plugin directory and permission tokens dropped while parsing
	path    string
	dropped []string
}

// rawManifest is the on-disk JSON shape.
type rawManifest struct {
	Identifier          string     `json:"identifier"`
	Name                string     `json:"name"`
	Version             string     `json:"version"`
	Description         string     `json:"description,omitempty"`
	Author              string     `json:"author,omitempty"`
	Icon                string     `json:"icon,omitempty"`
	MinimumTibokVersion string     `json:"minimum_tibok_version,omitempty"`
	PluginType          string     `json:"plugin_type,omitempty"`
	Permissions         []string   `json:"permissions,omitempty"`
	TrustTier           string     `json:"trust_tier,omitempty"`
	Signature           *Signature `json:"signature,omitempty"`
	EntryPoint          string     `json:"entry_point,omitempty"`
}

// Validation errors.
var (
	ErrMissingIdentifier = errors.New("manifest: identifier is required")
	ErrInvalidIdentifier = errors.New("manifest: identifier must be reverse-DNS")
	ErrMissingName       = errors.New("manifest: name is required")
	ErrMissingVersion    = errors.New("manifest: version is required")
	ErrInvalidVersion    = errors.New("manifest: version must be valid semver")
	ErrInvalidPluginType = errors.New("manifest: plugin_type must be native or script")
	ErrInvalidEntryPoint = errors.New("manifest: invalid entry_point")
	ErrScriptElevated    = errors.New("manifest: script plugins cannot request elevated permissions")
	ErrOfficialSigned    = errors.New("manifest: official plugins never carry a signature")
	ErrIncompatibleHost  = errors.New("manifest: plugin requires a newer host")
	ErrSchema            = errors.New("manifest: schema violation")
)

// identifierPattern validates reverse-DNS identifiers.
var identifierPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9-]*(\.[A-Za-z0-9][A-Za-z0-9_-]*)+$`)

// symbolPattern validates native entry points (exported Go identifiers).
var symbolPattern = regexp.MustCompile(`^[A-Z][A-Za-z0-9_]*$`)

//go:embed schema.json
var schemaText string

var manifestSchema = jsonschema.MustCompileString("manifest.schema.json", schemaText)

// Parse decodes manifest JSON. Only identifier, name and version are
// required; everything else falls back to a default. Unknown permission
// tokens are dropped.
func Parse(data []byte) (*Manifest, error) {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if err := manifestSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}

	var raw rawManifest
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	if strings.TrimSpace(raw.Identifier) == "" {
		return nil, ErrMissingIdentifier
	}
	if strings.TrimSpace(raw.Name) == "" {
		return nil, ErrMissingName
	}
	if strings.TrimSpace(raw.Version) == "" {
		return nil, ErrMissingVersion
	}

	perms, dropped := security.ParsePermissions(raw.Permissions)
	m := &Manifest{
		Identifier:          raw.Identifier,
		Name:                raw.Name,
		Version:             raw.Version,
		Description:         raw.Description,
		Author:              raw.Author,
		Icon:                raw.Icon,
		MinimumTibokVersion: raw.MinimumTibokVersion,
		PluginType:          security.PluginType(raw.PluginType),
		EntryPoint:          raw.EntryPoint,
		Permissions:         perms,
		TrustTier:           TrustTier(raw.TrustTier),
		Signature:           raw.Signature,
		dropped:             dropped,
	}
	m.applyDefaults()
	return m, nil
}

// Load reads and parses a manifest file. The plugin path is the file's directory.
func Load(file string) (*Manifest, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, err
	}
	m.path = filepath.Dir(file)
	return m, nil
}

// LoadFromDir loads manifest.json from a plugin directory.
func LoadFromDir(dir string) (*Manifest, error) {
	return Load(filepath.Join(dir, FileName))
}

// applyDefaults sets default values for optional fields.
func (m *Manifest) applyDefaults() {
	if m.PluginType == "" {
		m.PluginType = security.PluginTypeScript
	}
	if m.EntryPoint == "" && m.PluginType == security.PluginTypeScript {
		m.EntryPoint = DefaultScriptEntryPoint
	}
}

// Validate checks the manifest beyond the required fields.
func (m *Manifest) Validate() error {
	if m.Identifier == "" {
		return ErrMissingIdentifier
	}
	if !identifierPattern.MatchString(m.Identifier) {
		return fmt.Errorf("%w: %s", ErrInvalidIdentifier, m.Identifier)
	}
	if m.Name == "" {
		return ErrMissingName
	}
	if m.Version == "" {
		return ErrMissingVersion
	}
	if _, err := semver.StrictNewVersion(m.Version); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidVersion, m.Version)
	}
	if m.MinimumTibokVersion != "" {
		if _, err := semver.NewVersion(m.MinimumTibokVersion); err != nil {
			return fmt.Errorf("%w: minimum_tibok_version %s", ErrInvalidVersion, m.MinimumTibokVersion)
		}
	}

	if !m.PluginType.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPluginType, m.PluginType)
	}

	switch m.PluginType {
	case security.PluginTypeScript:
		if m.Permissions.HasElevated() {
			return fmt.Errorf("%w: %v", ErrScriptElevated, m.Permissions.Elevated())
		}
		if err := validateScriptEntry(m.EntryPoint); err != nil {
			return err
		}
	case security.PluginTypeNative:
		if !symbolPattern.MatchString(m.EntryPoint) {
			return fmt.Errorf("%w: native entry_point %q must be an exported symbol", ErrInvalidEntryPoint, m.EntryPoint)
		}
	}

	if m.TrustTier == TrustOfficial && m.Signature != nil {
		return ErrOfficialSigned
	}

	return nil
}

// validateScriptEntry requires a relative .lua path that stays inside the plugin root.
func validateScriptEntry(entry string) error {
	if entry == "" || filepath.IsAbs(entry) || strings.HasPrefix(entry, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidEntryPoint, entry)
	}
	clean := path.Clean(filepath.ToSlash(entry))
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("%w: %q escapes the plugin directory", ErrInvalidEntryPoint, entry)
	}
	if path.Ext(clean) != ".lua" {
		return fmt.Errorf("%w: %q must be a .lua file", ErrInvalidEntryPoint, entry)
	}
	return nil
}

// CheckHostVersion returns ErrIncompatibleHost if hostVersion is older than
// the manifest's minimum_tibok_version. An empty requirement always passes.
func (m *Manifest) CheckHostVersion(hostVersion string) error {
	if m.MinimumTibokVersion == "" || hostVersion == "" {
		return nil
	}
	minimum, err := semver.NewVersion(m.MinimumTibokVersion)
	if err != nil {
		return fmt.Errorf("%w: minimum_tibok_version %s", ErrInvalidVersion, m.MinimumTibokVersion)
	}
	host, err := semver.NewVersion(hostVersion)
	if err != nil {
		return fmt.Errorf("invalid host version %q: %w", hostVersion, err)
	}
	if host.LessThan(minimum) {
		return fmt.Errorf("%w: needs %s, host is %s", ErrIncompatibleHost, minimum, host)
	}
	return nil
}

// ResolvedTrustTier returns the declared tier, or community when the tier is
// missing or unrecognized.
func (m *Manifest) ResolvedTrustTier() TrustTier {
	if m.TrustTier.Valid() {
		return m.TrustTier
	}
	return TrustCommunity
}

// IsVerified returns true if the manifest is signed and claims the verified tier.
func (m *Manifest) IsVerified() bool {
	return m.Signature != nil && m.ResolvedTrustTier() == TrustVerified
}

// IsScriptCompatible reports whether the declared permissions can run in the script sandbox.
func (m *Manifest) IsScriptCompatible() bool {
	return security.IsScriptCompatible(m.Permissions, m.PluginType)
}

// DroppedPermissions returns permission tokens ignored while parsing.
func (m *Manifest) DroppedPermissions() []string {
	return append([]string(nil), m.dropped...)
}

// Path returns the plugin directory. Empty for built-in plugins.
func (m *Manifest) Path() string {
	return m.path
}

// SetPath records the plugin directory.
func (m *Manifest) SetPath(dir string) {
	m.path = dir
}

// EntryPath returns the absolute path of a script entry point.
func (m *Manifest) EntryPath() string {
	return filepath.Join(m.path, filepath.FromSlash(m.EntryPoint))
}

// String returns a string representation of the manifest.
func (m *Manifest) String() string {
	return fmt.Sprintf("%s (%s) v%s", m.Name, m.Identifier, m.Version)
}

// MarshalJSON implements json.Marshaler using the on-disk key names.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.toRaw(true))
}

func (m *Manifest) toRaw(withSignature bool) rawManifest {
	raw := rawManifest{
		Identifier:          m.Identifier,
		Name:                m.Name,
		Version:             m.Version,
		Description:         m.Description,
		Author:              m.Author,
		Icon:                m.Icon,
		MinimumTibokVersion: m.MinimumTibokVersion,
		PluginType:          string(m.PluginType),
		Permissions:         m.Permissions.Strings(),
		TrustTier:           string(m.TrustTier),
		EntryPoint:          m.EntryPoint,
	}
	if withSignature {
		raw.Signature = m.Signature
	}
	return raw
}

// Clone creates a deep copy of the manifest.
func (m *Manifest) Clone() *Manifest {
	clone := *m
	if m.Signature != nil {
		sig := *m.Signature
		clone.Signature = &sig
	}
	if m.dropped != nil {
		clone.dropped = append([]string(nil), m.dropped...)
	}
	return &clone
}
