package plugin

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/tibok/tibok/internal/editor"
	tlog "github.com/tibok/tibok/internal/log"
)

// testManifest builds manifest.json content for a script plugin.
func testManifest(id string, perms ...string) map[string]any {
	return map[string]any{
		"identifier":  id,
		"name":        id,
		"version":     "1.0.0",
		"plugin_type": "script",
		"permissions": perms,
	}
}

// writePlugin creates root/dir with the manifest and an optional main.lua.
func writePlugin(t *testing.T, root, dir string, manifest map[string]any, script string) string {
	t.Helper()
	path := filepath.Join(root, dir)
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatal(err)
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(path, "manifest.json"), data, 0o644); err != nil {
		t.Fatal(err)
	}
	if script != "" {
		if err := os.WriteFile(filepath.Join(path, "main.lua"), []byte(script), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return path
}

func writeRawManifest(t *testing.T, root, dir, content string) string {
	t.Helper()
	path := filepath.Join(root, dir)
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(path, "manifest.json"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// newTestManager creates and initializes a manager over root.
func newTestManager(t *testing.T, cfg Config, opts ...Option) *Manager {
	t.Helper()
	if cfg.HostVersion == "" {
		cfg.HostVersion = "1.0.0"
	}
	buf := editor.NewBuffer("hello world")
	opts = append([]Option{
		WithLogger(tlog.Discard()),
		WithEditor(buf, buf),
	}, opts...)

	m, err := NewManager(cfg, opts...)
	if err != nil {
		t.Fatalf("NewManager error = %v", err)
	}
	t.Cleanup(func() { m.Shutdown(context.Background()) })
	return m
}

func initialize(t *testing.T, m *Manager) {
	t.Helper()
	if err := m.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize error = %v", err)
	}
}

func mustState(t *testing.T, m *Manager, id string, want State) {
	t.Helper()
	got, ok := m.State(id)
	if !ok {
		t.Fatalf("plugin %s unknown", id)
	}
	if got != want {
		t.Fatalf("State(%s) = %v, want %v (error: %v)", id, got, want, m.PluginErrors()[id])
	}
}

// eventRecorder collects manager events.
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) handle(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) count(typ EventType, id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == typ && e.Plugin == id {
			n++
		}
	}
	return n
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
