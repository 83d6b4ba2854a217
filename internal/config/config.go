package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Storage backends for the enabled-state store.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// DefaultMaxBundleSize is the default native framework size ceiling.
const DefaultMaxBundleSize int64 = 100 << 20

// Config holds all plugin host settings.
type Config struct {
	Plugins PluginsConfig `toml:"plugins"`
	Log     LogConfig     `toml:"log"`
}

// PluginsConfig is the [plugins] section.
type PluginsConfig struct {
	BuiltinRoot     string   `toml:"builtin_root"`
	ThirdPartyRoot  string   `toml:"third_party_root"`
	StateBackend    string   `toml:"state_backend"`
	StatePath       string   `toml:"state_path"`
	TrustedKeysDir  string   `toml:"trusted_keys_dir"`
	CallbackTimeout Duration `toml:"callback_timeout"`
	CollisionPolicy string   `toml:"collision_policy"`
	Watch           bool     `toml:"watch"`
	MaxBundleSize   int64    `toml:"max_bundle_size"`
	HostVersion     string   `toml:"host_version"`
}

// LogConfig is the [log] section.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Duration is a time.Duration written as a Go duration string ("2s").
// A bare "0" is accepted and means zero.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	if v < 0 {
		return fmt.Errorf("negative duration %s", text)
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// DefaultDir returns the tibok configuration directory.
func DefaultDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "tibok")
	}
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "tibok")
	}
	return filepath.Join(".", ".tibok")
}

// DefaultPath returns the default configuration file path.
func DefaultPath() string {
	return filepath.Join(DefaultDir(), "config.toml")
}

// dataDir returns the directory for installed plugins and state.
func dataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "tibok")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "tibok")
	}
	return filepath.Join(".", ".tibok")
}

// Default returns the built-in settings.
func Default() *Config {
	data := dataDir()
	return &Config{
		Plugins: PluginsConfig{
			ThirdPartyRoot:  filepath.Join(data, "plugins"),
			StateBackend:    BackendFile,
			StatePath:       filepath.Join(data, "plugin-state.yaml"),
			TrustedKeysDir:  filepath.Join(DefaultDir(), "trusted-keys"),
			CollisionPolicy: "last-wins",
			MaxBundleSize:   DefaultMaxBundleSize,
			HostVersion:     "1.0.0",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads path over the defaults, applies TIBOK_ environment overrides
// and validates the result. An empty path uses DefaultPath. A missing file
// is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultPath()
	}

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(NewEnvLoader(EnvPrefix).Load()); err != nil {
		return nil, err
	}
	cfg.expandPaths()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFile decodes path into c. Keys absent from the file keep their
// current values.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	return c.parse(path, data)
}

func (c *Config) parse(source string, data []byte) error {
	if err := toml.Unmarshal(data, c); err != nil {
		perr := &ParseError{Path: source, Message: err.Error(), Err: err}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			perr.Line, perr.Column = derr.Position()
		}
		return perr
	}
	return nil
}

// applyEnv sets each dotted key in overrides.
func (c *Config) applyEnv(overrides map[string]string) error {
	for key, raw := range overrides {
		if err := c.Set(key, raw); err != nil {
			return err
		}
	}
	return nil
}

// Set assigns a setting from its string form.
func (c *Config) Set(key, raw string) error {
	p := &c.Plugins
	switch key {
	case "plugins.builtin_root":
		p.BuiltinRoot = raw
	case "plugins.third_party_root":
		p.ThirdPartyRoot = raw
	case "plugins.state_backend":
		p.StateBackend = raw
	case "plugins.state_path":
		p.StatePath = raw
	case "plugins.trusted_keys_dir":
		p.TrustedKeysDir = raw
	case "plugins.collision_policy":
		p.CollisionPolicy = raw
	case "plugins.host_version":
		p.HostVersion = raw
	case "plugins.callback_timeout":
		var d Duration
		if err := d.UnmarshalText([]byte(raw)); err != nil {
			return &ValidationError{Key: key, Value: raw, Err: fmt.Errorf("%w: %v", ErrInvalidValue, err)}
		}
		p.CallbackTimeout = d
	case "plugins.watch":
		b, ok := parseBool(raw)
		if !ok {
			return &ValidationError{Key: key, Value: raw, Err: ErrInvalidValue}
		}
		p.Watch = b
	case "plugins.max_bundle_size":
		var n int64
		if _, err := fmt.Sscan(raw, &n); err != nil {
			return &ValidationError{Key: key, Value: raw, Err: fmt.Errorf("%w: %v", ErrInvalidValue, err)}
		}
		p.MaxBundleSize = n
	case "log.level":
		c.Log.Level = raw
	case "log.format":
		c.Log.Format = raw
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return nil
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "true", "yes", "on", "1":
		return true, true
	case "false", "no", "off", "0":
		return false, true
	}
	return false, false
}

// expandPaths replaces a leading ~ with the home directory.
func (c *Config) expandPaths() {
	for _, p := range []*string{
		&c.Plugins.BuiltinRoot,
		&c.Plugins.ThirdPartyRoot,
		&c.Plugins.StatePath,
		&c.Plugins.TrustedKeysDir,
	} {
		*p = expandHome(*p)
	}
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// Validate checks enumerated and required settings.
func (c *Config) Validate() error {
	p := c.Plugins
	if p.ThirdPartyRoot == "" {
		return &ValidationError{Key: "plugins.third_party_root", Value: "", Err: ErrInvalidValue}
	}
	switch p.StateBackend {
	case BackendFile, BackendSQLite, BackendMemory:
	default:
		return &ValidationError{Key: "plugins.state_backend", Value: p.StateBackend, Err: ErrInvalidValue}
	}
	if p.StateBackend != BackendMemory && p.StatePath == "" {
		return &ValidationError{Key: "plugins.state_path", Value: "", Err: ErrInvalidValue}
	}
	switch p.CollisionPolicy {
	case "last-wins", "reject":
	default:
		return &ValidationError{Key: "plugins.collision_policy", Value: p.CollisionPolicy, Err: ErrInvalidValue}
	}
	if p.MaxBundleSize < 0 {
		return &ValidationError{Key: "plugins.max_bundle_size", Value: p.MaxBundleSize, Err: ErrInvalidValue}
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return &ValidationError{Key: "log.format", Value: c.Log.Format, Err: ErrInvalidValue}
	}
	return nil
}

// Encode renders c as TOML.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}
