// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package plugin

import (
	"context"
	"log/slog"

	"github.com/oklog/ulid/v2"

	"github.com/quillcms/quill/internal/plugin/capability"
	"github.com/quillcms/quill/pkg/hook"
	"github.com/quillcms/quill/pkg/quill"
)

// hostContext is the quill.Host handed to one plugin. Hook binds are
// attributed to the plugin and checked against its grants.
type hostContext struct {
	plugin   string
	registry *hook.Registry
	enforcer *capability.Enforcer
	settings quill.Settings
	log      *slog.Logger
}

var _ quill.Host = (*hostContext)(nil)

func (h *hostContext) Hooks() quill.HookBinder { return &binder{host: h} }

func (h *hostContext) Settings() quill.Settings { return h.settings }

func (h *hostContext) Logger() *slog.Logger { return h.log }

// binder implements quill.HookBinder for one plugin.
type binder struct {
	host *hostContext
}

var _ quill.HookBinder = (*binder)(nil)

func (b *binder) OnAction(hookName, handlerName string, fn quill.ActionFunc, opts ...quill.BindOption) (ulid.ULID, error) {
	if !b.host.enforcer.Check(b.host.plugin, hookName) {
		return ulid.ULID{}, ErrHookGrantDenied(b.host.plugin, hookName)
	}
	cfg := quill.NewBindConfig(opts...)
	return b.host.registry.Register(hook.Entry{
		Hook:     hookName,
		Owner:    b.host.plugin,
		Name:     handlerName,
		Kind:     hook.KindAction,
		Priority: cfg.Priority,
		Fn: func(ctx context.Context, ev hook.Event) (any, error) {
			return nil, fn(ctx, ev)
		},
	})
}

func (b *binder) OnFilter(hookName, handlerName string, fn quill.FilterFunc, opts ...quill.BindOption) (ulid.ULID, error) {
	if !b.host.enforcer.Check(b.host.plugin, hookName) {
		return ulid.ULID{}, ErrHookGrantDenied(b.host.plugin, hookName)
	}
	cfg := quill.NewBindConfig(opts...)
	return b.host.registry.Register(hook.Entry{
		Hook:     hookName,
		Owner:    b.host.plugin,
		Name:     handlerName,
		Kind:     hook.KindFilter,
		Priority: cfg.Priority,
		Fn:       hook.HandlerFunc(fn),
	})
}

func (b *binder) Shortcode(tag string, fn quill.FilterFunc) (ulid.ULID, error) {
	return b.family(quill.ShortcodeHook(tag), "shortcode tag "+tag, fn)
}

func (b *binder) Widget(id string, fn quill.FilterFunc) (ulid.ULID, error) {
	return b.family(quill.WidgetHook(id), "widget "+id, fn)
}

// family defines the dynamic hook if needed and registers fn as its
// filter. A concurrent Define by another plugin is not an error.
func (b *binder) family(hookName, description string, fn quill.FilterFunc) (ulid.ULID, error) {
	if !b.host.enforcer.Check(b.host.plugin, hookName) {
		return ulid.ULID{}, ErrHookGrantDenied(b.host.plugin, hookName)
	}
	err := b.host.registry.Namespace().Define(hook.Definition{
		Name:        hookName,
		Kind:        hook.KindFilter,
		Description: description,
	})
	if err != nil && hook.ErrorCode(err) != hook.CodeHookRedefined {
		return ulid.ULID{}, err
	}
	return b.host.registry.Register(hook.Entry{
		Hook:  hookName,
		Owner: b.host.plugin,
		Name:  "render",
		Kind:  hook.KindFilter,
		Fn:    hook.HandlerFunc(fn),
	})
}

func (b *binder) Unbind(id ulid.ULID) {
	b.host.registry.Unregister(id)
}

// staticSettings serves manifest defaults when the host runs without a
// config tree.
type staticSettings map[string]any

var _ quill.Settings = (staticSettings)(nil)

func (s staticSettings) Get(key string) (any, bool) {
	v, ok := s[key]
	return v, ok
}

func (s staticSettings) String(key string) string {
	v, _ := s[key].(string)
	return v
}

func (s staticSettings) Bool(key string) bool {
	v, _ := s[key].(bool)
	return v
}

func (s staticSettings) Int(key string) int {
	switch n := s[key].(type) {
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

func (s staticSettings) All() map[string]any {
	out := make(map[string]any, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
