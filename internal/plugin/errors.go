// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package plugin

import (
	"github.com/samber/oops"
)

// Error codes for plugin lifecycle and manifest failures.
const (
	CodeActivationState  = "ACTIVATION_STATE"
	CodeHookGrantDenied  = "HOOK_GRANT_DENIED"
	CodePluginNotFound   = "PLUGIN_NOT_FOUND"
	CodeFactoryMissing   = "FACTORY_MISSING"
	CodeManifestMismatch = "MANIFEST_MISMATCH"
	CodeSettingsInvalid  = "SETTINGS_INVALID"
	CodeManifestInvalid  = "MANIFEST_INVALID"
)

// ErrActivationState creates an error for a lifecycle operation that is
// illegal in the plugin's current state.
func ErrActivationState(plugin, op string, from State) error {
	return oops.Code(CodeActivationState).
		With("plugin", plugin).
		With("operation", op).
		With("state", from.String()).
		Errorf("cannot %s plugin %s in state %s", op, plugin, from)
}

// ErrHookGrantDenied creates an error for a bind on a hook outside the
// plugin's manifest grants.
func ErrHookGrantDenied(plugin, hook string) error {
	return oops.Code(CodeHookGrantDenied).
		With("plugin", plugin).
		With("hook", hook).
		Errorf("plugin %s has no grant for hook %s", plugin, hook)
}

// ErrPluginNotFound creates an error for an operation on a plugin the
// manager does not hold.
func ErrPluginNotFound(name string) error {
	return oops.Code(CodePluginNotFound).
		With("plugin", name).
		Errorf("plugin not found: %s", name)
}

// ErrFactoryMissing creates an error for a native manifest whose unit
// factory was never registered.
func ErrFactoryMissing(name string) error {
	return oops.Code(CodeFactoryMissing).
		With("plugin", name).
		Errorf("no factory registered for native plugin %s", name)
}

// ErrManifestMismatch creates an error for a unit whose Info disagrees
// with its manifest.
func ErrManifestMismatch(name, field, manifest, unit string) error {
	return oops.Code(CodeManifestMismatch).
		With("plugin", name).
		With("field", field).
		With("manifest", manifest).
		With("unit", unit).
		Errorf("plugin %s: manifest %s %q does not match unit %q", name, field, manifest, unit)
}

// ErrSettingsInvalid wraps a settings schema violation found during
// activation.
func ErrSettingsInvalid(plugin string, cause error) error {
	return oops.Code(CodeSettingsInvalid).
		With("plugin", plugin).
		Wrapf(cause, "plugin %s settings rejected by config schema", plugin)
}

// ErrManifestInvalid wraps a manifest parse or validation failure.
func ErrManifestInvalid(path string, cause error) error {
	return oops.Code(CodeManifestInvalid).
		With("path", path).
		Wrapf(cause, "invalid plugin manifest")
}
