package config

import (
	"os"
	"strings"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "TIBOK_"

// sections are the known top-level keys. The first underscore-separated
// part of a variable name after the prefix must be one of them.
var sections = map[string]bool{
	"plugins": true,
	"log":     true,
}

// EnvLoader reads configuration overrides from environment variables.
type EnvLoader struct {
	prefix  string
	environ func() []string
}

// NewEnvLoader creates a loader for variables starting with prefix.
// The prefix should include the trailing underscore.
func NewEnvLoader(prefix string) *EnvLoader {
	return &EnvLoader{prefix: prefix, environ: os.Environ}
}

// Load returns dotted keys mapped to raw values. Empty values count as
// set. Variables outside a known section are skipped.
func (l *EnvLoader) Load() map[string]string {
	out := make(map[string]string)
	for _, env := range l.environ() {
		name, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(name, l.prefix) {
			continue
		}
		if key, ok := l.envToPath(name); ok {
			out[key] = value
		}
	}
	return out
}

// envToPath converts TIBOK_PLUGINS_THIRD_PARTY_ROOT to plugins.third_party_root.
func (l *EnvLoader) envToPath(env string) (string, bool) {
	name := strings.ToLower(strings.TrimPrefix(env, l.prefix))
	section, setting, ok := strings.Cut(name, "_")
	if !ok || setting == "" || !sections[section] {
		return "", false
	}
	return section + "." + setting, true
}
