// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package quill

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillcms/quill/pkg/hook"
)

func TestDefaultNamespace_PublishesAllHooks(t *testing.T) {
	ns := DefaultNamespace()
	assert.Equal(t, NamespaceVersion, ns.Version())

	actions := []string{
		HookStartup, HookShutdown, HookActivate, HookDeactivate,
		HookRequest, HookRequestAbort, HookContentSaved, HookHeadRender,
	}
	for _, name := range actions {
		def, ok := ns.Lookup(name)
		require.True(t, ok, "missing hook %s", name)
		assert.Equal(t, hook.KindAction, def.Kind, "hook %s", name)
	}

	filters := []string{HookContentRender, HookAdminMenu}
	for _, name := range filters {
		def, ok := ns.Lookup(name)
		require.True(t, ok, "missing hook %s", name)
		assert.Equal(t, hook.KindFilter, def.Kind, "hook %s", name)
	}
}

func TestDefaultNamespace_RequestAbortIsCritical(t *testing.T) {
	ns := DefaultNamespace()

	abort, ok := ns.Lookup(HookRequestAbort)
	require.True(t, ok)
	assert.True(t, abort.Critical)

	// Everything else is isolated.
	for _, def := range ns.All() {
		if def.Name == HookRequestAbort {
			continue
		}
		assert.False(t, def.Critical, "hook %s should not be critical", def.Name)
	}
}

func TestDefaultNamespace_AcceptsDynamicFamilies(t *testing.T) {
	ns := DefaultNamespace()

	err := ns.Define(hook.Definition{Name: ShortcodeHook("gallery"), Kind: hook.KindFilter})
	require.NoError(t, err)
	err = ns.Define(hook.Definition{Name: WidgetHook("recent-posts"), Kind: hook.KindFilter})
	require.NoError(t, err)
}

func TestHookFamilyHelpers(t *testing.T) {
	assert.Equal(t, "shortcode.hello", ShortcodeHook("hello"))
	assert.Equal(t, "widget.hello-world", WidgetHook("hello-world"))
}
