// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package quill

import (
	"context"
	"log/slog"

	"github.com/invopop/jsonschema"
	"github.com/oklog/ulid/v2"

	"github.com/quillcms/quill/pkg/hook"
)

// Info identifies a plugin to the host and to admin tooling.
type Info struct {
	Name        string
	Version     string // semver
	Description string
	Author      string
}

// Unit is the contract every plugin implements. The host drives the
// lifecycle: a unit is loaded, then activated, then eventually
// deactivated and unloaded. Activate and Deactivate receive the same
// Host facade; handlers registered during Activate are removed by the
// host when the unit deactivates, so Deactivate only needs to release
// resources the unit acquired itself.
type Unit interface {
	Info() Info
	Activate(ctx context.Context, host Host) error
	Deactivate(ctx context.Context, host Host) error
}

// ConfigSchemer is an optional Unit capability. When implemented, the
// host validates the plugin's merged settings against the returned
// schema during activation and fails activation on violations.
type ConfigSchemer interface {
	ConfigSchema() *jsonschema.Schema
}

// Host is the facade a unit sees. Implementations are bound to one
// plugin: hook binds are attributed to it, settings resolve against
// its configuration section, and the logger carries its name.
type Host interface {
	Hooks() HookBinder
	Settings() Settings
	Logger() *slog.Logger
}

// ActionFunc handles an action hook event.
type ActionFunc func(ctx context.Context, ev hook.Event) error

// FilterFunc handles a filter hook event and returns the payload to
// pass to the next handler.
type FilterFunc func(ctx context.Context, ev hook.Event) (any, error)

// HookBinder registers handlers on behalf of one plugin. Every bind is
// checked against the plugin's hook grants. The returned ID is the
// caller's capability to Unbind that single handler; the host removes
// all of a plugin's handlers on deactivation regardless.
type HookBinder interface {
	OnAction(hookName, handlerName string, fn ActionFunc, opts ...BindOption) (ulid.ULID, error)
	OnFilter(hookName, handlerName string, fn FilterFunc, opts ...BindOption) (ulid.ULID, error)

	// Shortcode defines shortcode.<tag> if needed and registers fn as
	// its filter. The handler receives a ShortcodePayload and returns
	// the rendered replacement string.
	Shortcode(tag string, fn FilterFunc) (ulid.ULID, error)

	// Widget defines widget.<id> if needed and registers fn as its
	// filter. The handler receives the widget's current body (a
	// string) and returns the rendered body.
	Widget(id string, fn FilterFunc) (ulid.ULID, error)

	Unbind(id ulid.ULID)
}

// Settings is the read contract for plugin configuration: host
// configuration under plugins.<name> overlaid on the manifest's
// declared defaults.
type Settings interface {
	// Get reports the value for key and whether any layer defines it.
	Get(key string) (any, bool)

	String(key string) string
	Bool(key string) bool
	Int(key string) int

	// All returns the effective settings as a flat map, keys dotted for
	// nested values. The host validates this map against a unit's
	// ConfigSchema.
	All() map[string]any
}

// BindConfig collects the options applied to one bind call.
type BindConfig struct {
	Priority int
}

// BindOption adjusts how a handler is registered.
type BindOption func(*BindConfig)

// WithPriority orders the handler within its hook. Lower runs earlier;
// omitted means hook.DefaultPriority.
func WithPriority(priority int) BindOption {
	return func(c *BindConfig) {
		c.Priority = priority
	}
}

// NewBindConfig evaluates opts into a BindConfig.
func NewBindConfig(opts ...BindOption) BindConfig {
	var cfg BindConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
