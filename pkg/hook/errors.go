// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package hook

import (
	"errors"

	"github.com/samber/oops"
)

// Error codes for hook registration and dispatch failures.
const (
	CodeUnknownHook             = "UNKNOWN_HOOK"
	CodeKindMismatch            = "HOOK_KIND_MISMATCH"
	CodeDuplicateRegistration   = "DUPLICATE_REGISTRATION"
	CodeCriticalHookFailure     = "CRITICAL_HOOK_FAILURE"
	CodeHandlerPanic            = "HANDLER_PANIC"
	CodeInvalidHookName         = "INVALID_HOOK_NAME"
	CodeHookRedefined           = "HOOK_REDEFINED"
	CodeInvalidNamespaceVersion = "INVALID_NAMESPACE_VERSION"
)

// Sentinel errors for host programming mistakes.
var (
	ErrNilNamespace = errors.New("hook: namespace is required")
	ErrNilHandler   = errors.New("hook: handler function is required")
)

// ErrUnknownHook creates an error for a hook name absent from the
// namespace.
func ErrUnknownHook(name string) error {
	return oops.Code(CodeUnknownHook).
		With("hook", name).
		Errorf("unknown hook: %s", name)
}

// ErrKindMismatch creates an error for a registration whose declared
// kind disagrees with the hook's definition.
func ErrKindMismatch(hook string, want, got Kind) error {
	return oops.Code(CodeKindMismatch).
		With("hook", hook).
		With("defined_kind", want.String()).
		With("registered_kind", got.String()).
		Errorf("hook %s is %s, handler registered as %s", hook, want, got)
}

// ErrDuplicateRegistration creates an error for a second registration
// of the same (owner, hook, handler name) triple.
func ErrDuplicateRegistration(owner, hook, handler string) error {
	return oops.Code(CodeDuplicateRegistration).
		With("plugin", owner).
		With("hook", hook).
		With("handler", handler).
		Errorf("handler %s already registered by %s on hook %s", handler, owner, hook)
}

// ErrCriticalHookFailure wraps the handler error that aborted a
// critical hook's dispatch.
func ErrCriticalHookFailure(hook, owner, handler string, cause error) error {
	return oops.Code(CodeCriticalHookFailure).
		With("hook", hook).
		With("plugin", owner).
		With("handler", handler).
		Wrapf(cause, "critical hook %s aborted by handler %s/%s", hook, owner, handler)
}

// ErrHandlerPanic converts a recovered panic value into a handler
// failure.
func ErrHandlerPanic(hook, handler string, v any) error {
	return oops.Code(CodeHandlerPanic).
		With("hook", hook).
		With("handler", handler).
		Errorf("handler %s panicked on hook %s: %v", handler, hook, v)
}

// ErrInvalidHookName creates an error for a name outside the hook name
// grammar.
func ErrInvalidHookName(name string) error {
	return oops.Code(CodeInvalidHookName).
		With("hook", name).
		Errorf("invalid hook name: %q", name)
}

// ErrHookRedefined creates an error for a Define call colliding with an
// existing hook.
func ErrHookRedefined(name string) error {
	return oops.Code(CodeHookRedefined).
		With("hook", name).
		Errorf("hook already defined: %s", name)
}

// ErrInvalidNamespaceVersion creates an error for a non-semver
// namespace version.
func ErrInvalidNamespaceVersion(version string, cause error) error {
	return oops.Code(CodeInvalidNamespaceVersion).
		With("version", version).
		Wrapf(cause, "invalid namespace version %q", version)
}

// ErrorCode extracts the error code from err, or "" when err carries
// none.
func ErrorCode(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	return oopsErr.Code()
}
