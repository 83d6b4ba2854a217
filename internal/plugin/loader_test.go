package plugin

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/tibok/tibok/internal/plugin/manifest"
)

func TestDiscover_MissingRoot(t *testing.T) {
	found, err := Discover(filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatalf("Discover error = %v", err)
	}
	if len(found) != 0 {
		t.Errorf("Discover = %v, want none", found)
	}
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	writePlugin(t, root, "zeta", testManifest("com.test.zeta"), "")
	writePlugin(t, root, "alpha", testManifest("com.test.alpha"), "")
	if err := os.Mkdir(filepath.Join(root, "no-manifest"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "stray.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	found, err := Discover(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 2 {
		t.Fatalf("Discover found %d, want 2", len(found))
	}
	if found[0].Identifier != "com.test.alpha" || found[1].Identifier != "com.test.zeta" {
		t.Errorf("order = %s, %s", found[0].Identifier, found[1].Identifier)
	}
	for _, c := range found {
		if c.Err != nil {
			t.Errorf("%s: %v", c.Identifier, c.Err)
		}
		if c.Manifest.Path() != c.Dir {
			t.Errorf("manifest path %q, dir %q", c.Manifest.Path(), c.Dir)
		}
	}
}

func TestInspect_Salvage(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantID  string
		wantErr error
	}{
		{
			name:    "missing version",
			content: `{"identifier": "com.test.partial", "name": "Partial"}`,
			wantID:  "com.test.partial",
			wantErr: manifest.ErrMissingVersion,
		},
		{
			name:    "bad identifier",
			content: `{"identifier": "nodots", "name": "Bad", "version": "1.0.0"}`,
			wantID:  "nodots",
			wantErr: manifest.ErrInvalidIdentifier,
		},
		{
			name:    "schema violation",
			content: `{"identifier": "com.test.schema", "name": "S", "version": 1}`,
			wantID:  "com.test.schema",
			wantErr: manifest.ErrSchema,
		},
		{
			name:    "not json",
			content: `not json`,
			wantID:  "plugin-dir",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeRawManifest(t, t.TempDir(), "plugin-dir", tt.content)
			c := Inspect(dir)
			if c.Err == nil {
				t.Fatal("Inspect accepted an invalid manifest")
			}
			if tt.wantErr != nil && !errors.Is(c.Err, tt.wantErr) {
				t.Errorf("Err = %v, want %v", c.Err, tt.wantErr)
			}
			if c.Identifier != tt.wantID {
				t.Errorf("Identifier = %q, want %q", c.Identifier, tt.wantID)
			}
			if c.Manifest != nil {
				t.Error("Manifest set for an invalid plugin")
			}
		})
	}
}
