package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tibok/tibok/internal/plugin/builtin/coreslash"
	"github.com/tibok/tibok/internal/plugin/signing"
)

type env struct {
	dir        string
	configPath string
	pluginRoot string
	statePath  string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	e := &env{
		dir:        dir,
		configPath: filepath.Join(dir, "config.toml"),
		pluginRoot: filepath.Join(dir, "plugins"),
		statePath:  filepath.Join(dir, "state.yaml"),
	}
	require.NoError(t, os.MkdirAll(e.pluginRoot, 0o755))

	cfg := fmt.Sprintf(`[plugins]
third_party_root = '%s'
state_path = '%s'
trusted_keys_dir = '%s'

[log]
level = "error"
`, e.pluginRoot, e.statePath, filepath.Join(dir, "keys"))
	require.NoError(t, os.WriteFile(e.configPath, []byte(cfg), 0o644))
	return e
}

func (e *env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (e *env) writePlugin(t *testing.T, dir, id, script string, perms ...string) string {
	t.Helper()
	path := filepath.Join(e.pluginRoot, dir)
	require.NoError(t, os.MkdirAll(path, 0o755))
	data, err := json.Marshal(map[string]any{
		"identifier":  id,
		"name":        id,
		"version":     "1.0.0",
		"plugin_type": "script",
		"permissions": perms,
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(path, "manifest.json"), data, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(path, "main.lua"), []byte(script), 0o644))
	return path
}

func TestGenerateKeys(t *testing.T) {
	e := newEnv(t)
	keys := filepath.Join(e.dir, "out")

	out, err := e.run(t, "generate-keys", "--output", keys)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(keys, signing.PrivateKeyFile))
	assert.FileExists(t, filepath.Join(keys, signing.PublicKeyFile))
	assert.Contains(t, out, "Key ID:")
}

func TestSignAndVerify(t *testing.T) {
	e := newEnv(t)
	keys := filepath.Join(e.dir, "out")
	_, err := e.run(t, "generate-keys", "--output", keys)
	require.NoError(t, err)
	pub := filepath.Join(keys, signing.PublicKeyFile)

	dir := e.writePlugin(t, "greet", "com.test.greet", `tibok.log("hi")`)

	_, err = e.run(t, "verify", dir, "--key", pub)
	var exit *ExitError
	require.ErrorAs(t, err, &exit)
	assert.Equal(t, 1, exit.Code)

	out, err := e.run(t, "sign", dir, "--key", filepath.Join(keys, signing.PrivateKeyFile))
	require.NoError(t, err)
	assert.Contains(t, out, "Signed "+dir)

	out, err = e.run(t, "verify", dir, "--key", pub)
	require.NoError(t, err)
	assert.Contains(t, out, "com.test.greet 1.0.0: Valid")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.lua"), []byte(`tibok.log("changed")`), 0o644))
	out, err = e.run(t, "verify", dir, "--key", pub)
	require.ErrorIs(t, err, signing.ErrNotValid)
	assert.Contains(t, out, "ContentMismatch")
}

func TestVerify_UnknownKey(t *testing.T) {
	e := newEnv(t)
	keys := filepath.Join(e.dir, "out")
	_, err := e.run(t, "generate-keys", "--output", keys)
	require.NoError(t, err)

	dir := e.writePlugin(t, "greet", "com.test.greet", `tibok.log("hi")`)
	_, err = e.run(t, "sign", dir, "--key", filepath.Join(keys, signing.PrivateKeyFile))
	require.NoError(t, err)

	out, err := e.run(t, "verify", dir)
	require.Error(t, err)
	assert.Contains(t, out, "SignatureInvalid")
}

func TestHash(t *testing.T) {
	e := newEnv(t)
	dir := e.writePlugin(t, "greet", "com.test.greet", `tibok.log("hi")`)

	first, err := e.run(t, "hash", dir)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{64}\n$`), first)

	second, err := e.run(t, "hash", dir)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestList(t *testing.T) {
	e := newEnv(t)
	e.writePlugin(t, "greet", "com.test.greet",
		`tibok.slash.register({ name = "greet", insert = "hello" })`, "slash-commands")

	out, err := e.run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "RISK")
	assert.Regexp(t, regexp.MustCompile(`com\.test\.greet\s+1\.0\.0\s+script\s+community\s+low\s+active\s+/greet`), out)
	assert.NotContains(t, out, coreslash.Identifier)

	out, err = e.run(t, "list", "--all")
	require.NoError(t, err)
	assert.Contains(t, out, coreslash.Identifier)
}

func TestPermissions(t *testing.T) {
	e := newEnv(t)

	out, err := e.run(t, "permissions")
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`execute-process\s+Execute Process\s+elevated\s+critical`), out)
	assert.Regexp(t, regexp.MustCompile(`slash-commands\s+Slash Commands\s+safe\s+low`), out)
}

func TestList_ShowsDenied(t *testing.T) {
	e := newEnv(t)
	e.writePlugin(t, "broken", "com.test.broken", `error("boom")`)

	out, err := e.run(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "denied")
	assert.Contains(t, out, "com.test.broken:")
}

func TestEnableDisable(t *testing.T) {
	e := newEnv(t)
	e.writePlugin(t, "greet", "com.test.greet",
		`tibok.slash.register({ name = "greet", insert = "hello" })`, "slash-commands")

	out, err := e.run(t, "disable", "com.test.greet")
	require.NoError(t, err)
	assert.Equal(t, "Disabled com.test.greet\n", out)

	_, err = e.run(t, "run", "/greet")
	require.Error(t, err)

	_, err = e.run(t, "enable", "com.test.greet")
	require.NoError(t, err)

	out, err = e.run(t, "run", "/greet")
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestEnableDisable_UnknownPlugin(t *testing.T) {
	e := newEnv(t)

	_, err := e.run(t, "disable", "com.test.missing")
	require.ErrorIs(t, err, ErrUnknownPlugin)

	_, err = e.run(t, "disable", coreslash.Identifier)
	require.NoError(t, err)
}

func TestRun_SlashCommand(t *testing.T) {
	e := newEnv(t)
	doc := filepath.Join(e.dir, "notes.md")
	require.NoError(t, os.WriteFile(doc, []byte("intro\n"), 0o644))

	out, err := e.run(t, "run", "/h1", "--file", doc)
	require.NoError(t, err)
	assert.Equal(t, "intro\n# ", out)

	out, err = e.run(t, "run", "/h2", "--file", doc, "--write")
	require.NoError(t, err)
	assert.Equal(t, "Wrote "+doc+"\n", out)

	data, err := os.ReadFile(doc)
	require.NoError(t, err)
	assert.Equal(t, "intro\n## ", string(data))
}

func TestRun_PaletteCommand(t *testing.T) {
	e := newEnv(t)
	e.writePlugin(t, "stamp", "com.test.stamp", `
tibok.commands.register({
  id = "stamp.words",
  title = "Stamp",
  action = function()
    tibok.editor.insertText(" [" .. tibok.document.wordCount() .. "]")
  end,
})
`, "command-palette", "read-document-metadata", "insert-text")

	doc := filepath.Join(e.dir, "notes.md")
	require.NoError(t, os.WriteFile(doc, []byte("one two three"), 0o644))

	out, err := e.run(t, "run", "stamp.words", "--file", doc)
	require.NoError(t, err)
	assert.Equal(t, "one two three [3]", out)
}

func TestRun_Errors(t *testing.T) {
	e := newEnv(t)

	_, err := e.run(t, "run", "/nope")
	require.Error(t, err)

	_, err = e.run(t, "run", "/h1", "--write")
	require.Error(t, err)
}
