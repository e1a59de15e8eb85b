// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package config

import (
	"github.com/knadh/koanf/v2"

	"github.com/quillcms/quill/pkg/quill"
)

// Settings resolves a plugin's configuration keys. Host config under
// plugins.<name> wins; manifest defaults fill the gaps.
type Settings struct {
	k        *koanf.Koanf
	defaults map[string]any
}

var _ quill.Settings = (*Settings)(nil)

// PluginSettings builds the settings view for the named plugin.
// defaults is the manifest's settings block and may be nil.
func (c *Config) PluginSettings(name string, defaults map[string]any) *Settings {
	s := &Settings{defaults: defaults}
	if c.k != nil {
		s.k = c.k.Cut("plugins." + name)
	}
	return s
}

// StaticSettings builds a settings view backed only by defaults, for
// hosts running without a config tree.
func StaticSettings(defaults map[string]any) *Settings {
	return &Settings{defaults: defaults}
}

// Get returns the value for key and whether it was found.
func (s *Settings) Get(key string) (any, bool) {
	if s.k != nil && s.k.Exists(key) {
		return s.k.Get(key), true
	}
	if v, ok := s.defaults[key]; ok {
		return v, true
	}
	return nil, false
}

// String returns the value for key as a string, or "" when the key is
// absent or not a string.
func (s *Settings) String(key string) string {
	v, ok := s.Get(key)
	if !ok {
		return ""
	}
	str, _ := v.(string)
	return str
}

// Bool returns the value for key as a bool, or false when the key is
// absent or not a bool.
func (s *Settings) Bool(key string) bool {
	v, ok := s.Get(key)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// All returns the effective settings as a flat map with dotted keys,
// manifest defaults overlaid by host config.
func (s *Settings) All() map[string]any {
	out := make(map[string]any, len(s.defaults))
	for k, v := range s.defaults {
		out[k] = v
	}
	if s.k != nil {
		for k, v := range s.k.All() {
			out[k] = v
		}
	}
	return out
}

// Int returns the value for key as an int, or 0 when the key is absent
// or not numeric. YAML and JSON decoders disagree on integer types, so
// the common widths are all accepted.
func (s *Settings) Int(key string) int {
	v, ok := s.Get(key)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
