// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

// Package quill provides the plugin SDK for the Quill host.
//
// A plugin is a [Unit]: it reports its [Info], registers hook handlers
// when the host calls Activate, and releases them on Deactivate. The
// [Host] facade passed to both calls is the plugin's only window into
// the host: hook binding through [HookBinder], configuration through
// [Settings], and a plugin-scoped logger.
//
//   - Hook names, payload types, and the published hook set live here
//     (see [DefaultNamespace]); the dispatch machinery lives in
//     package hook.
//   - Handlers on action hooks observe; handlers on filter hooks
//     transform the payload and must return it.
//   - Payloads are read-only unless their type says otherwise
//     ([HeadPayload] is the mutable exception).
//
// Go plugins import this package directly. Lua plugins reach the same
// surface through host function bindings.
package quill
