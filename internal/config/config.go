// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

// Package config loads host configuration from YAML files and command
// line flags, layered file over defaults and flags over file.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/quillcms/quill/internal/xdg"
)

// Error codes for configuration failures.
const (
	CodeConfigLoad    = "CONFIG_LOAD_FAILED"
	CodeConfigInvalid = "CONFIG_INVALID"
)

// Defaults applied when neither file nor flags set a key.
const (
	DefaultMetricsAddr = "127.0.0.1:9600"
	DefaultLogFormat   = "json"
	DefaultLogLevel    = "info"
)

// Config is the host configuration tree.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Logging LoggingConfig `koanf:"logging"`
	Plugins PluginsConfig `koanf:"plugins"`

	k *koanf.Koanf
}

// ServerConfig configures the observability endpoint.
type ServerConfig struct {
	MetricsAddr string `koanf:"metrics_addr"`
}

// LoggingConfig configures slog output.
type LoggingConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// PluginsConfig configures plugin discovery and dispatch.
type PluginsConfig struct {
	Dir            string        `koanf:"dir"`
	Disabled       []string      `koanf:"disabled"`
	HandlerTimeout time.Duration `koanf:"handler_timeout"`
}

// DefaultPath returns the conventional config file location.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigDir(), "config.yaml")
}

// Load reads configuration from path (empty means DefaultPath, which
// may be absent) and overlays any changed flags. Flag names follow the
// config tree with dots, e.g. --plugins.dir.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// A missing default file is fine; a named one is not.
	if path == "" {
		if candidate := DefaultPath(); fileExists(candidate) {
			path = candidate
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.
				Code(CodeConfigLoad).
				With("path", path).
				Wrapf(err, "load config file")
		}
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, oops.
				Code(CodeConfigLoad).
				Wrapf(err, "load config flags")
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			MetricsAddr: DefaultMetricsAddr,
		},
		Logging: LoggingConfig{
			Format: DefaultLogFormat,
			Level:  DefaultLogLevel,
		},
		Plugins: PluginsConfig{
			Dir: xdg.PluginsDir(),
		},
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, oops.
			Code(CodeConfigInvalid).
			With("path", path).
			Wrapf(err, "unmarshal config")
	}
	cfg.normalize()
	cfg.k = k

	return cfg, nil
}

// normalize restores defaults for keys explicitly set to empty.
func (c *Config) normalize() {
	if c.Server.MetricsAddr == "" {
		c.Server.MetricsAddr = DefaultMetricsAddr
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Plugins.Dir == "" {
		c.Plugins.Dir = xdg.PluginsDir()
	}
}

// PluginDisabled reports whether name appears in plugins.disabled.
func (c *Config) PluginDisabled(name string) bool {
	for _, d := range c.Plugins.Disabled {
		if d == name {
			return true
		}
	}
	return false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
