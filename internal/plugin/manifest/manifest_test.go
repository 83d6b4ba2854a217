package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tibok/tibok/internal/plugin/security"
)

const validScriptManifest = `{
	"identifier": "com.test.sample",
	"name": "Sample",
	"version": "1.0.0",
	"plugin_type": "script",
	"permissions": ["slash-commands", "insert-text"],
	"trust_tier": "community",
	"entry_point": "main.lua"
}`

func TestParseValid(t *testing.T) {
	m, err := Parse([]byte(validScriptManifest))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if m.Identifier != "com.test.sample" {
		t.Errorf("Identifier = %q", m.Identifier)
	}
	if m.PluginType != security.PluginTypeScript {
		t.Errorf("PluginType = %q", m.PluginType)
	}
	if !m.Permissions.Has(security.PermissionSlashCommands) || !m.Permissions.Has(security.PermissionInsertText) {
		t.Errorf("Permissions = %v", m.Permissions)
	}
	if err := m.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestParseRequiredFields(t *testing.T) {
	tests := []struct {
		name string
		json string
		want error
	}{
		{"missing identifier", `{"name": "x", "version": "1.0.0"}`, ErrMissingIdentifier},
		{"missing name", `{"identifier": "com.x.y", "version": "1.0.0"}`, ErrMissingName},
		{"missing version", `{"identifier": "com.x.y", "name": "x"}`, ErrMissingVersion},
		{"blank name", `{"identifier": "com.x.y", "name": "  ", "version": "1.0.0"}`, ErrMissingName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.json))
			if !errors.Is(err, tt.want) {
				t.Errorf("Parse() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseRejectsWrongTypes(t *testing.T) {
	_, err := Parse([]byte(`{"identifier": "com.x.y", "name": "x", "version": "1.0.0", "permissions": "insert-text"}`))
	if !errors.Is(err, ErrSchema) {
		t.Errorf("Parse() error = %v, want ErrSchema", err)
	}

	_, err = Parse([]byte(`{not json`))
	if err == nil {
		t.Error("Parse() of invalid JSON should fail")
	}
}

func TestParseDefaults(t *testing.T) {
	m, err := Parse([]byte(`{"identifier": "com.x.y", "name": "x", "version": "1.0.0", "future_field": 42}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if m.PluginType != security.PluginTypeScript {
		t.Errorf("default PluginType = %q, want script", m.PluginType)
	}
	if m.EntryPoint != DefaultScriptEntryPoint {
		t.Errorf("default EntryPoint = %q", m.EntryPoint)
	}
	if m.ResolvedTrustTier() != TrustCommunity {
		t.Errorf("ResolvedTrustTier() = %q, want community", m.ResolvedTrustTier())
	}
	if m.IsVerified() {
		t.Error("IsVerified() = true for unsigned manifest")
	}
}

func TestParseDropsUnknownPermissions(t *testing.T) {
	m, err := Parse([]byte(`{"identifier": "com.x.y", "name": "x", "version": "1.0.0", "permissions": ["insert-text", "mind-reading"]}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if m.Permissions.Len() != 1 {
		t.Errorf("Permissions = %v, want only insert-text", m.Permissions)
	}
	if got := m.DroppedPermissions(); len(got) != 1 || got[0] != "mind-reading" {
		t.Errorf("DroppedPermissions() = %v", got)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Manifest {
		m, err := Parse([]byte(validScriptManifest))
		if err != nil {
			t.Fatal(err)
		}
		return m
	}

	tests := []struct {
		name   string
		modify func(*Manifest)
		want   error
	}{
		{"bad identifier", func(m *Manifest) { m.Identifier = "sample" }, ErrInvalidIdentifier},
		{"bad version", func(m *Manifest) { m.Version = "one" }, ErrInvalidVersion},
		{"bad min version", func(m *Manifest) { m.MinimumTibokVersion = "x.y" }, ErrInvalidVersion},
		{"bad type", func(m *Manifest) { m.PluginType = "wasm" }, ErrInvalidPluginType},
		{"script elevated", func(m *Manifest) {
			m.Permissions = security.NewPermissionSet(security.PermissionNetworkAccess)
		}, ErrScriptElevated},
		{"script escapes root", func(m *Manifest) { m.EntryPoint = "../evil.lua" }, ErrInvalidEntryPoint},
		{"script absolute", func(m *Manifest) { m.EntryPoint = "/tmp/evil.lua" }, ErrInvalidEntryPoint},
		{"script not lua", func(m *Manifest) { m.EntryPoint = "main.js" }, ErrInvalidEntryPoint},
		{"native bad symbol", func(m *Manifest) {
			m.PluginType = security.PluginTypeNative
			m.EntryPoint = "lowercase"
		}, ErrInvalidEntryPoint},
		{"official signed", func(m *Manifest) {
			m.TrustTier = TrustOfficial
			m.Signature = &Signature{Algorithm: "ed25519"}
		}, ErrOfficialSigned},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := base()
			tt.modify(m)
			if err := m.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestValidateNativeElevatedAllowed(t *testing.T) {
	m, err := Parse([]byte(`{
		"identifier": "com.test.native",
		"name": "Native",
		"version": "2.0.0",
		"plugin_type": "native",
		"permissions": ["network-access"],
		"entry_point": "NewPlugin"
	}`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if err := m.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	if m.IsScriptCompatible() {
		t.Error("native manifest should not be script compatible")
	}
}

func TestCheckHostVersion(t *testing.T) {
	m, _ := Parse([]byte(validScriptManifest))
	m.MinimumTibokVersion = "1.4.0"

	if err := m.CheckHostVersion("1.4.0"); err != nil {
		t.Errorf("CheckHostVersion(1.4.0) error = %v", err)
	}
	if err := m.CheckHostVersion("2.0.0"); err != nil {
		t.Errorf("CheckHostVersion(2.0.0) error = %v", err)
	}
	err := m.CheckHostVersion("1.3.9")
	if !errors.Is(err, ErrIncompatibleHost) {
		t.Errorf("CheckHostVersion(1.3.9) error = %v, want ErrIncompatibleHost", err)
	}
	if err != nil && !strings.Contains(err.Error(), "1.4.0") {
		t.Errorf("error %q should name the required version", err)
	}
}

func TestIsVerified(t *testing.T) {
	m, _ := Parse([]byte(validScriptManifest))
	m.TrustTier = TrustVerified
	if m.IsVerified() {
		t.Error("IsVerified() = true without signature")
	}
	m.Signature = &Signature{Algorithm: "ed25519"}
	if !m.IsVerified() {
		t.Error("IsVerified() = false with signature and verified tier")
	}
	m.TrustTier = TrustCommunity
	if m.IsVerified() {
		t.Error("IsVerified() = true for community tier")
	}
}

func TestCanonicalExcludesSignature(t *testing.T) {
	m, _ := Parse([]byte(validScriptManifest))
	before, err := m.Canonical()
	if err != nil {
		t.Fatal(err)
	}

	m.Signature = &Signature{Algorithm: "ed25519", Signature: "abc", ContentHash: "def"}
	after, err := m.Canonical()
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Errorf("Canonical() changed with signature:\n%s\n%s", before, after)
	}
	if strings.Contains(string(after), "signature") {
		t.Errorf("Canonical() = %s, contains signature", after)
	}

	want := `{"identifier":"com.test.sample","name":"Sample","version":"1.0.0","description":"","author":"","icon":"","minimum_tibok_version":"","plugin_type":"script","permissions":["insert-text","slash-commands"],"trust_tier":"community","entry_point":"main.lua"}`
	if string(before) != want {
		t.Errorf("Canonical() =\n%s\nwant\n%s", before, want)
	}
}

func TestLoadFromDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(validScriptManifest), 0644); err != nil {
		t.Fatal(err)
	}

	m, err := LoadFromDir(dir)
	if err != nil {
		t.Fatalf("LoadFromDir() error = %v", err)
	}
	if m.Path() != dir {
		t.Errorf("Path() = %q, want %q", m.Path(), dir)
	}
	if m.EntryPath() != filepath.Join(dir, "main.lua") {
		t.Errorf("EntryPath() = %q", m.EntryPath())
	}

	if _, err := LoadFromDir(t.TempDir()); err == nil {
		t.Error("LoadFromDir() on empty dir should fail")
	}
}

func TestClone(t *testing.T) {
	m, _ := Parse([]byte(validScriptManifest))
	m.Signature = &Signature{Algorithm: "ed25519", PublicKeyID: "SHA256:x"}

	clone := m.Clone()
	clone.Signature.PublicKeyID = "changed"
	if m.Signature.PublicKeyID != "SHA256:x" {
		t.Error("Clone() shares the signature pointer")
	}
}
