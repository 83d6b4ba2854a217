package plugin

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/tibok/tibok/internal/config"
	tlog "github.com/tibok/tibok/internal/log"
	"github.com/tibok/tibok/internal/plugin/builtin/coreslash"
)

func testSystemConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Plugins.ThirdPartyRoot = filepath.Join(dir, "plugins")
	cfg.Plugins.StateBackend = config.BackendFile
	cfg.Plugins.StatePath = filepath.Join(dir, "state.yaml")
	cfg.Plugins.TrustedKeysDir = filepath.Join(dir, "keys")
	return cfg
}

func startSystem(t *testing.T, cfg *config.Config) *System {
	t.Helper()
	sys, err := NewSystem(cfg, WithSystemLogger(tlog.Discard()))
	if err != nil {
		t.Fatalf("NewSystem error = %v", err)
	}
	if err := sys.Start(context.Background()); err != nil {
		t.Fatalf("Start error = %v", err)
	}
	t.Cleanup(func() { sys.Shutdown(context.Background()) })
	return sys
}

func TestSystem_StartLoadsBuiltins(t *testing.T) {
	sys := startSystem(t, testSystemConfig(t))
	m := sys.Manager()

	mustState(t, m, coreslash.Identifier, StateActive)
	for _, name := range coreslash.Names() {
		if !m.SlashCommands().Has(name) {
			t.Errorf("/%s not registered", name)
		}
	}
	if err := sys.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start error = %v", err)
	}
}

func TestSystem_DisablePersists(t *testing.T) {
	cfg := testSystemConfig(t)
	writePlugin(t, cfg.Plugins.ThirdPartyRoot, "sample", testManifest("com.test.sample", "slash-commands"), sampleScript)
	ctx := context.Background()

	sys, err := NewSystem(cfg, WithSystemLogger(tlog.Discard()))
	if err != nil {
		t.Fatal(err)
	}
	if err := sys.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := sys.Manager().DisablePlugin(ctx, "com.test.sample"); err != nil {
		t.Fatal(err)
	}
	if err := sys.Shutdown(ctx); err != nil {
		t.Fatal(err)
	}

	// A new system over the same state file keeps the plugin disabled.
	sys = startSystem(t, cfg)
	mustState(t, sys.Manager(), "com.test.sample", StateValidated)
	if sys.Manager().SlashCommands().Has("foo") {
		t.Error("disabled plugin loaded after restart")
	}
}

func TestSystem_SQLiteBackend(t *testing.T) {
	cfg := testSystemConfig(t)
	cfg.Plugins.StateBackend = config.BackendSQLite
	cfg.Plugins.StatePath = filepath.Join(t.TempDir(), "nested", "state.db")

	sys := startSystem(t, cfg)
	if err := sys.Manager().DisablePlugin(context.Background(), coreslash.Identifier); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(cfg.Plugins.StatePath); err != nil {
		t.Errorf("sqlite state file missing: %v", err)
	}
}

func TestSystem_RejectPolicy(t *testing.T) {
	cfg := testSystemConfig(t)
	cfg.Plugins.CollisionPolicy = "reject"
	writePlugin(t, cfg.Plugins.ThirdPartyRoot, "clash", testManifest("com.test.clash", "slash-commands"),
		`tibok.slash.register({ name = "h1", insert = "mine" })`)

	sys := startSystem(t, cfg)
	mustState(t, sys.Manager(), "com.test.clash", StateDenied)

	ins, err := sys.Manager().SlashCommands().Execute(context.Background(), "h1")
	if err != nil || ins.Text != "# " {
		t.Errorf("/h1 = %+v, %v", ins, err)
	}
}

func TestSystem_WithoutBuiltins(t *testing.T) {
	sys, err := NewSystem(testSystemConfig(t), WithSystemLogger(tlog.Discard()), WithoutBuiltins())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { sys.Shutdown(context.Background()) })
	if err := sys.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if sys.Manager().SlashCommands().Count() != 0 {
		t.Error("built-ins registered")
	}
}

func TestSystem_WatchLoadsNewPlugins(t *testing.T) {
	cfg := testSystemConfig(t)
	cfg.Plugins.Watch = true

	sys := startSystem(t, cfg)
	if !sys.Watching() {
		t.Fatal("system not watching the plugin root")
	}

	writePlugin(t, cfg.Plugins.ThirdPartyRoot, "late", testManifest("com.test.late", "slash-commands"), sampleScript)
	waitUntil(t, func() bool { return sys.Manager().IsLoaded("com.test.late") })
}

func TestOpenStore(t *testing.T) {
	dir := t.TempDir()
	for _, backend := range []string{config.BackendMemory, config.BackendFile, config.BackendSQLite} {
		store, err := OpenStore(backend, filepath.Join(dir, backend, "state"))
		if err != nil {
			t.Fatalf("%s: %v", backend, err)
		}
		if err := store.Save([]string{"com.test.x"}); err != nil {
			t.Errorf("%s Save: %v", backend, err)
		}
		got, err := store.Load()
		if err != nil || len(got) != 1 {
			t.Errorf("%s Load = %v, %v", backend, got, err)
		}
		store.Close()
	}
	if _, err := OpenStore("etcd", ""); err == nil {
		t.Error("unknown backend accepted")
	}
}
