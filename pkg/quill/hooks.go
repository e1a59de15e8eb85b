// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package quill

import (
	"fmt"

	"github.com/quillcms/quill/pkg/hook"
)

// NamespaceVersion is the published version of the default hook set.
// It moves with the compatibility rules of semver: payload or kind
// changes to an existing hook bump the major version.
const NamespaceVersion = "1.0.0"

// Hook names published by DefaultNamespace.
const (
	HookStartup       = "on_startup"
	HookShutdown      = "on_shutdown"
	HookActivate      = "on_activate"
	HookDeactivate    = "on_deactivate"
	HookRequest       = "on_request"
	HookRequestAbort  = "on_request_abort"
	HookContentSaved  = "on_content_saved"
	HookContentRender = "on_content_render"
	HookHeadRender    = "on_head_render"
	HookAdminMenu     = "on_admin_menu"
)

// Prefixes of the dynamic hook families. Hooks under these are defined
// on first use rather than at construction.
const (
	ShortcodePrefix = "shortcode."
	WidgetPrefix    = "widget."
)

// ShortcodeHook returns the hook name for a shortcode tag.
func ShortcodeHook(tag string) string {
	return ShortcodePrefix + tag
}

// WidgetHook returns the hook name for a widget ID.
func WidgetHook(id string) string {
	return WidgetPrefix + id
}

// DefaultNamespace builds the hook set a stock Quill host publishes.
func DefaultNamespace() *hook.Namespace {
	ns, err := hook.NewNamespace(NamespaceVersion,
		hook.Definition{
			Name:        HookStartup,
			Kind:        hook.KindAction,
			Description: "host finished booting and all plugins are active",
		},
		hook.Definition{
			Name:        HookShutdown,
			Kind:        hook.KindAction,
			Description: "host is shutting down",
		},
		hook.Definition{
			Name:        HookActivate,
			Kind:        hook.KindAction,
			Description: "a plugin was activated",
			Payload:     PluginPayload{},
		},
		hook.Definition{
			Name:        HookDeactivate,
			Kind:        hook.KindAction,
			Description: "a plugin is about to deactivate",
			Payload:     PluginPayload{},
		},
		hook.Definition{
			Name:        HookRequest,
			Kind:        hook.KindAction,
			Description: "an incoming request was accepted",
			Payload:     RequestPayload{},
		},
		hook.Definition{
			Name:        HookRequestAbort,
			Kind:        hook.KindAction,
			Critical:    true,
			Description: "last chance to veto a request; a handler error aborts it",
			Payload:     RequestPayload{},
		},
		hook.Definition{
			Name:        HookContentSaved,
			Kind:        hook.KindAction,
			Description: "a content item was persisted",
			Payload:     ContentPayload{},
		},
		hook.Definition{
			Name:        HookContentRender,
			Kind:        hook.KindFilter,
			Description: "transforms the rendered content body",
		},
		hook.Definition{
			Name:        HookHeadRender,
			Kind:        hook.KindAction,
			Description: "collects document head tags; handlers mutate the payload",
			Payload:     &HeadPayload{},
		},
		hook.Definition{
			Name:        HookAdminMenu,
			Kind:        hook.KindFilter,
			Description: "transforms the admin menu item list",
			Payload:     []MenuItem{},
		},
	)
	if err != nil {
		panic(fmt.Sprintf("building default namespace: %v", err))
	}
	return ns
}
