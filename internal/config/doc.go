// Package config loads tibok plugin host settings.
//
// Settings come from three layers, each overriding the one before:
//
//  1. Built-in defaults (Default)
//  2. A TOML file, by default $XDG_CONFIG_HOME/tibok/config.toml
//  3. Environment variables prefixed with TIBOK_
//
// A missing file is not an error. Environment variables map onto keys by
// section: TIBOK_PLUGINS_THIRD_PARTY_ROOT sets plugins.third_party_root and
// TIBOK_LOG_LEVEL sets log.level.
//
// Example file:
//
//	[plugins]
//	third_party_root = "~/.local/share/tibok/plugins"
//	state_backend = "sqlite"
//	callback_timeout = "2s"
//	collision_policy = "reject"
//	watch = true
//
//	[log]
//	level = "debug"
//	format = "json"
package config
