// Package config loads the daemon settings file (JSON, YAML or TOML), applies
// defaults and a small set of environment overrides, and validates the result.
// The returned Config is treated as immutable for the life of the process.
package config
