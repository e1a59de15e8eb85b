// Package plugin provides plugin discovery, manifests, and lifecycle
// control.
package plugin

import (
	"fmt"
	"regexp"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// Type identifies the plugin runtime.
type Type string

// Plugin types supported by the host.
const (
	TypeNative Type = "native"
	TypeLua    Type = "lua"
	TypeBinary Type = "binary"
)

// Manifest represents a plugin.yaml file.
type Manifest struct {
	Name        string         `yaml:"name" json:"name" jsonschema:"pattern=^[a-z][a-z0-9]*(-[a-z0-9]+)*$,maxLength=64"`
	Version     string         `yaml:"version" json:"version"`
	Type        Type           `yaml:"type" json:"type" jsonschema:"enum=native,enum=lua,enum=binary"`
	Description string         `yaml:"description,omitempty" json:"description,omitempty"`
	Author      string         `yaml:"author,omitempty" json:"author,omitempty"`
	Hooks       []string       `yaml:"hooks,omitempty" json:"hooks,omitempty"`
	Settings    map[string]any `yaml:"settings,omitempty" json:"settings,omitempty"`
	Lua         *LuaConfig     `yaml:"lua,omitempty" json:"lua,omitempty"`
	Binary      *BinaryConfig  `yaml:"binary,omitempty" json:"binary,omitempty"`
}

// LuaConfig holds Lua-specific configuration. Bindings declare which
// hooks the script handles; the host registers them on activation.
type LuaConfig struct {
	Entry    string       `yaml:"entry" json:"entry"`
	Bindings []LuaBinding `yaml:"bindings,omitempty" json:"bindings,omitempty"`
}

// LuaBinding maps one hook to a global function in the entry script.
type LuaBinding struct {
	Hook     string `yaml:"hook" json:"hook"`
	Kind     string `yaml:"kind" json:"kind" jsonschema:"enum=action,enum=filter"`
	Function string `yaml:"function" json:"function"`
	Priority int    `yaml:"priority,omitempty" json:"priority,omitempty"`
}

// BinaryConfig holds binary plugin configuration.
type BinaryConfig struct {
	Executable string `yaml:"executable" json:"executable"`
}

// maxNameLength is the maximum allowed length for plugin names.
const maxNameLength = 64

// namePattern validates plugin names: lowercase letters and digits in
// hyphen-separated runs, starting with a letter. No leading, trailing,
// or consecutive hyphens.
var namePattern = regexp.MustCompile(`^[a-z][a-z0-9]*(-[a-z0-9]+)*$`)

// ParseManifest parses and validates a plugin.yaml file.
func ParseManifest(data []byte) (*Manifest, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("manifest data is empty")
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// Validate checks manifest constraints.
func (m *Manifest) Validate() error {
	if m.Name == "" || !namePattern.MatchString(m.Name) {
		return fmt.Errorf("name %q must start with a-z and contain only a-z, 0-9, and single hyphens between runs", m.Name)
	}
	if len(m.Name) > maxNameLength {
		return fmt.Errorf("name must be %d characters or less, got %d", maxNameLength, len(m.Name))
	}

	if m.Version == "" {
		return fmt.Errorf("version is required")
	}
	if _, err := semver.NewVersion(m.Version); err != nil {
		return fmt.Errorf("version %q is not valid semver: %w", m.Version, err)
	}

	for i, pattern := range m.Hooks {
		if pattern == "" {
			return fmt.Errorf("hooks[%d]: empty grant pattern", i)
		}
	}

	switch m.Type {
	case TypeNative:
		// The unit factory is resolved at load time.
	case TypeLua:
		if m.Lua == nil {
			return fmt.Errorf("lua is required when type is lua")
		}
		if m.Lua.Entry == "" {
			return fmt.Errorf("lua.entry is required")
		}
		for i, b := range m.Lua.Bindings {
			if b.Hook == "" {
				return fmt.Errorf("lua.bindings[%d]: hook is required", i)
			}
			if b.Function == "" {
				return fmt.Errorf("lua.bindings[%d]: function is required", i)
			}
			if b.Kind != "action" && b.Kind != "filter" {
				return fmt.Errorf("lua.bindings[%d]: kind must be 'action' or 'filter', got %q", i, b.Kind)
			}
		}
	case TypeBinary:
		if m.Binary == nil {
			return fmt.Errorf("binary is required when type is binary")
		}
		if m.Binary.Executable == "" {
			return fmt.Errorf("binary.executable is required")
		}
	default:
		return fmt.Errorf("type must be 'native', 'lua', or 'binary', got %q", m.Type)
	}

	return nil
}
