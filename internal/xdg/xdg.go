// Package xdg resolves XDG Base Directory paths for Quill.
package xdg

import (
	"fmt"
	"os"
	"path/filepath"
)

const appName = "quill"

// resolve reads an XDG base environment variable and appends the app
// segment, falling back to the given home-relative path when the
// variable is unset.
func resolve(envVar string, fallback ...string) string {
	base := os.Getenv(envVar)
	if base == "" {
		base = filepath.Join(append([]string{os.Getenv("HOME")}, fallback...)...)
	}
	return filepath.Join(base, appName)
}

// ConfigDir returns the quill config directory: $XDG_CONFIG_HOME/quill
// or ~/.config/quill.
func ConfigDir() string {
	return resolve("XDG_CONFIG_HOME", ".config")
}

// DataDir returns the quill data directory: $XDG_DATA_HOME/quill or
// ~/.local/share/quill.
func DataDir() string {
	return resolve("XDG_DATA_HOME", ".local", "share")
}

// StateDir returns the quill state directory: $XDG_STATE_HOME/quill or
// ~/.local/state/quill.
func StateDir() string {
	return resolve("XDG_STATE_HOME", ".local", "state")
}

// PluginsDir returns the default plugin installation directory.
func PluginsDir() string {
	return filepath.Join(DataDir(), "plugins")
}

// EnsureDir creates path and any missing parents with 0700 permissions.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return nil
}
