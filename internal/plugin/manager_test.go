// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package plugin_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/invopop/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/quillcms/quill/internal/config"
	"github.com/quillcms/quill/internal/plugin"
	"github.com/quillcms/quill/pkg/errutil"
	"github.com/quillcms/quill/pkg/hook"
	"github.com/quillcms/quill/pkg/quill"
)

// testUnit is a scriptable quill.Unit for lifecycle tests.
type testUnit struct {
	info         quill.Info
	onActivate   func(ctx context.Context, host quill.Host) error
	onDeactivate func(ctx context.Context, host quill.Host) error
}

func (u *testUnit) Info() quill.Info { return u.info }

func (u *testUnit) Activate(ctx context.Context, host quill.Host) error {
	if u.onActivate != nil {
		return u.onActivate(ctx, host)
	}
	return nil
}

func (u *testUnit) Deactivate(ctx context.Context, host quill.Host) error {
	if u.onDeactivate != nil {
		return u.onDeactivate(ctx, host)
	}
	return nil
}

// schemaUnit additionally publishes a settings schema.
type schemaUnit struct {
	testUnit
	schema *jsonschema.Schema
}

func (u *schemaUnit) ConfigSchema() *jsonschema.Schema { return u.schema }

// fakeBuilder satisfies plugin.UnitBuilder for lua load tests.
type fakeBuilder struct {
	unit quill.Unit
	err  error
}

func (b *fakeBuilder) Build(_ context.Context, _ *plugin.Manifest, _ string) (quill.Unit, error) {
	return b.unit, b.err
}

func newTestRegistry(t *testing.T) *hook.Registry {
	t.Helper()
	reg, err := hook.NewRegistry(quill.DefaultNamespace())
	require.NoError(t, err)
	return reg
}

func writePlugin(t *testing.T, root, dir, manifest string) string {
	t.Helper()
	pluginDir := filepath.Join(root, dir)
	require.NoError(t, os.MkdirAll(pluginDir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(pluginDir, "plugin.yaml"), []byte(manifest), 0o600))
	return pluginDir
}

func installUnit(t *testing.T, m *plugin.Manager, unit quill.Unit) {
	t.Helper()
	require.NoError(t, m.Install(unit))
}

func passthrough(_ context.Context, ev hook.Event) (any, error) {
	return ev.Payload, nil
}

func TestManager_Discover(t *testing.T) {
	root := t.TempDir()
	validDir := writePlugin(t, root, "hello-world", `
name: hello-world
version: 1.0.0
type: native
`)
	writePlugin(t, root, "broken", "name: [unclosed")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "no-manifest"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(root, "stray-file"), []byte("x"), 0o600))

	m := plugin.NewManager(root, newTestRegistry(t))
	discovered, err := m.Discover(context.Background())
	require.NoError(t, err)

	require.Len(t, discovered, 1, "only the valid plugin should be discovered")
	assert.Equal(t, "hello-world", discovered[0].Manifest.Name)
	assert.Equal(t, validDir, discovered[0].Dir)
}

func TestManager_Discover_MissingDirectory(t *testing.T) {
	m := plugin.NewManager(filepath.Join(t.TempDir(), "nope"), newTestRegistry(t))
	discovered, err := m.Discover(context.Background())
	require.NoError(t, err, "a missing plugins directory is not an error")
	assert.Empty(t, discovered)
}

func TestManager_Load_Native(t *testing.T) {
	plugin.RegisterFactory("mgr-native", func() quill.Unit {
		return &testUnit{info: quill.Info{Name: "mgr-native", Version: "1.0.0"}}
	})

	m := plugin.NewManager(t.TempDir(), newTestRegistry(t))
	err := m.Load(context.Background(), &plugin.Discovered{
		Manifest: &plugin.Manifest{
			Name:    "mgr-native",
			Version: "1.0.0",
			Type:    plugin.TypeNative,
			Hooks:   []string{"on_content_render"},
		},
	})
	require.NoError(t, err)

	desc, ok := m.Get("mgr-native")
	require.True(t, ok)
	assert.Equal(t, plugin.StateLoaded, desc.State)
	assert.Equal(t, []string{"on_content_render"}, m.Grants("mgr-native"))
}

func TestManager_Load_FactoryMissing(t *testing.T) {
	m := plugin.NewManager(t.TempDir(), newTestRegistry(t))
	err := m.Load(context.Background(), &plugin.Discovered{
		Manifest: &plugin.Manifest{Name: "mgr-unregistered", Version: "1.0.0", Type: plugin.TypeNative},
	})
	errutil.AssertErrorCode(t, err, plugin.CodeFactoryMissing)
}

func TestManager_Load_ManifestMismatch(t *testing.T) {
	plugin.RegisterFactory("mgr-mismatch", func() quill.Unit {
		return &testUnit{info: quill.Info{Name: "somebody-else", Version: "1.0.0"}}
	})

	m := plugin.NewManager(t.TempDir(), newTestRegistry(t))
	err := m.Load(context.Background(), &plugin.Discovered{
		Manifest: &plugin.Manifest{Name: "mgr-mismatch", Version: "1.0.0", Type: plugin.TypeNative},
	})
	errutil.AssertErrorCode(t, err, plugin.CodeManifestMismatch)
	errutil.AssertErrorContext(t, err, "field", "name")
}

func TestManager_Load_VersionMismatch(t *testing.T) {
	plugin.RegisterFactory("mgr-version", func() quill.Unit {
		return &testUnit{info: quill.Info{Name: "mgr-version", Version: "2.0.0"}}
	})

	m := plugin.NewManager(t.TempDir(), newTestRegistry(t))
	err := m.Load(context.Background(), &plugin.Discovered{
		Manifest: &plugin.Manifest{Name: "mgr-version", Version: "1.0.0", Type: plugin.TypeNative},
	})
	errutil.AssertErrorCode(t, err, plugin.CodeManifestMismatch)
	errutil.AssertErrorContext(t, err, "field", "version")
}

func TestManager_Load_InvalidGrantPattern(t *testing.T) {
	plugin.RegisterFactory("mgr-badgrant", func() quill.Unit {
		return &testUnit{info: quill.Info{Name: "mgr-badgrant", Version: "1.0.0"}}
	})

	m := plugin.NewManager(t.TempDir(), newTestRegistry(t))
	err := m.Load(context.Background(), &plugin.Discovered{
		Manifest: &plugin.Manifest{
			Name:    "mgr-badgrant",
			Version: "1.0.0",
			Type:    plugin.TypeNative,
			Hooks:   []string{"[unclosed"},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid hook grants")

	_, ok := m.Get("mgr-badgrant")
	assert.False(t, ok, "plugin with invalid grants should not be registered")
}

func TestManager_Load_AlreadyLoaded(t *testing.T) {
	m := plugin.NewManager(t.TempDir(), newTestRegistry(t))
	unit := &testUnit{info: quill.Info{Name: "mgr-twice", Version: "1.0.0"}}
	installUnit(t, m, unit)

	err := m.Install(unit)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already loaded")
}

func TestManager_Load_Lua(t *testing.T) {
	unit := &testUnit{info: quill.Info{Name: "mgr-lua", Version: "0.1.0"}}
	m := plugin.NewManager(t.TempDir(), newTestRegistry(t),
		plugin.WithLuaHost(&fakeBuilder{unit: unit}))

	err := m.Load(context.Background(), &plugin.Discovered{
		Manifest: &plugin.Manifest{
			Name:    "mgr-lua",
			Version: "0.1.0",
			Type:    plugin.TypeLua,
			Lua:     &plugin.LuaConfig{Entry: "main.lua"},
		},
	})
	require.NoError(t, err)

	desc, ok := m.Get("mgr-lua")
	require.True(t, ok)
	assert.Equal(t, plugin.TypeLua, desc.Type)
	assert.Equal(t, plugin.StateLoaded, desc.State)
}

func TestManager_Load_Lua_BuildError(t *testing.T) {
	m := plugin.NewManager(t.TempDir(), newTestRegistry(t),
		plugin.WithLuaHost(&fakeBuilder{err: errors.New("syntax error")}))

	err := m.Load(context.Background(), &plugin.Discovered{
		Manifest: &plugin.Manifest{
			Name:    "mgr-lua-broken",
			Version: "0.1.0",
			Type:    plugin.TypeLua,
			Lua:     &plugin.LuaConfig{Entry: "main.lua"},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build lua unit")
}

func TestManager_Load_Lua_NoHost(t *testing.T) {
	m := plugin.NewManager(t.TempDir(), newTestRegistry(t))
	err := m.Load(context.Background(), &plugin.Discovered{
		Manifest: &plugin.Manifest{
			Name:    "mgr-lua-skipped",
			Version: "0.1.0",
			Type:    plugin.TypeLua,
			Lua:     &plugin.LuaConfig{Entry: "main.lua"},
		},
	})
	require.NoError(t, err, "lua plugins are skipped, not fatal, without a lua host")

	_, ok := m.Get("mgr-lua-skipped")
	assert.False(t, ok)
}

func TestManager_Load_Binary_Skipped(t *testing.T) {
	m := plugin.NewManager(t.TempDir(), newTestRegistry(t))
	err := m.Load(context.Background(), &plugin.Discovered{
		Manifest: &plugin.Manifest{
			Name:    "mgr-binary",
			Version: "1.0.0",
			Type:    plugin.TypeBinary,
			Binary:  &plugin.BinaryConfig{Executable: "mgr-binary"},
		},
	})
	require.NoError(t, err)

	_, ok := m.Get("mgr-binary")
	assert.False(t, ok)
}

func TestManager_LoadAll_SkipsDisabled(t *testing.T) {
	root := t.TempDir()
	writePlugin(t, root, "disabled-one", `
name: disabled-one
version: 1.0.0
type: lua
lua:
  entry: main.lua
`)

	m := plugin.NewManager(root, newTestRegistry(t),
		plugin.WithLuaHost(&fakeBuilder{unit: &testUnit{info: quill.Info{Name: "disabled-one"}}}),
		plugin.WithDisabled([]string{"disabled-one"}))
	require.NoError(t, m.LoadAll(context.Background()))

	_, ok := m.Get("disabled-one")
	assert.False(t, ok, "disabled plugin should not load")
}

func TestManager_Install_InvalidName(t *testing.T) {
	m := plugin.NewManager(t.TempDir(), newTestRegistry(t))
	err := m.Install(&testUnit{info: quill.Info{Name: "Not A Name"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid unit name")
}

func TestManager_Activate(t *testing.T) {
	reg := newTestRegistry(t)
	m := plugin.NewManager(t.TempDir(), reg)

	var activations []quill.PluginPayload
	unit := &testUnit{
		info: quill.Info{Name: "act-basic", Version: "1.2.0"},
		onActivate: func(_ context.Context, host quill.Host) error {
			_, err := host.Hooks().OnAction("on_activate", "observe", func(_ context.Context, ev hook.Event) error {
				activations = append(activations, ev.Payload.(quill.PluginPayload))
				return nil
			})
			return err
		},
	}
	installUnit(t, m, unit)

	require.NoError(t, m.Activate(context.Background(), "act-basic"))

	desc, ok := m.Get("act-basic")
	require.True(t, ok)
	assert.Equal(t, plugin.StateActive, desc.State)

	require.Len(t, activations, 1, "on_activate should fire once the plugin is active")
	assert.Equal(t, quill.PluginPayload{Name: "act-basic", Version: "1.2.0"}, activations[0])
}

func TestManager_Activate_NotFound(t *testing.T) {
	m := plugin.NewManager(t.TempDir(), newTestRegistry(t))
	err := m.Activate(context.Background(), "ghost")
	errutil.AssertErrorCode(t, err, plugin.CodePluginNotFound)
}

func TestManager_Activate_AlreadyActive(t *testing.T) {
	m := plugin.NewManager(t.TempDir(), newTestRegistry(t))
	installUnit(t, m, &testUnit{info: quill.Info{Name: "act-twice"}})
	require.NoError(t, m.Activate(context.Background(), "act-twice"))

	err := m.Activate(context.Background(), "act-twice")
	errutil.AssertErrorCode(t, err, plugin.CodeActivationState)
	errutil.AssertErrorContext(t, err, "state", "active")
	errutil.AssertErrorContext(t, err, "operation", "activate")
}

func TestManager_Activate_SettingsInvalid(t *testing.T) {
	m := plugin.NewManager(t.TempDir(), newTestRegistry(t))
	unit := &schemaUnit{
		testUnit: testUnit{info: quill.Info{Name: "act-schema"}},
		schema:   jsonschema.Reflect(&greeterSettings{}),
	}
	installUnit(t, m, unit)

	err := m.Activate(context.Background(), "act-schema")
	errutil.AssertErrorCode(t, err, plugin.CodeSettingsInvalid)

	desc, _ := m.Get("act-schema")
	assert.Equal(t, plugin.StateLoaded, desc.State, "failed validation should leave the plugin loaded")
}

func TestManager_Activate_UnitError(t *testing.T) {
	reg := newTestRegistry(t)
	m := plugin.NewManager(t.TempDir(), reg)

	fail := true
	unit := &testUnit{
		info: quill.Info{Name: "act-fails"},
		onActivate: func(_ context.Context, host quill.Host) error {
			if _, err := host.Hooks().OnFilter("on_content_render", "half-bound", passthrough); err != nil {
				return err
			}
			if fail {
				return errors.New("activation exploded")
			}
			return nil
		},
	}
	installUnit(t, m, unit)

	err := m.Activate(context.Background(), "act-fails")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "activation exploded")

	desc, _ := m.Get("act-fails")
	assert.Equal(t, plugin.StateLoaded, desc.State)
	assert.Empty(t, reg.Handlers("on_content_render"), "handlers bound before the failure should be rolled back")

	fail = false
	require.NoError(t, m.Activate(context.Background(), "act-fails"), "a failed activation should be retryable")
	assert.Len(t, reg.Handlers("on_content_render"), 1)
}

func TestManager_Activate_GrantDenied(t *testing.T) {
	var bindErr error
	plugin.RegisterFactory("act-ungranted", func() quill.Unit {
		return &testUnit{
			info: quill.Info{Name: "act-ungranted", Version: "1.0.0"},
			onActivate: func(_ context.Context, host quill.Host) error {
				_, bindErr = host.Hooks().OnAction("on_startup", "sneaky", func(context.Context, hook.Event) error {
					return nil
				})
				return bindErr
			},
		}
	})

	m := plugin.NewManager(t.TempDir(), newTestRegistry(t))
	require.NoError(t, m.Load(context.Background(), &plugin.Discovered{
		Manifest: &plugin.Manifest{
			Name:    "act-ungranted",
			Version: "1.0.0",
			Type:    plugin.TypeNative,
			Hooks:   []string{"on_content_render"},
		},
	}))

	err := m.Activate(context.Background(), "act-ungranted")
	require.Error(t, err)
	errutil.AssertErrorCode(t, bindErr, plugin.CodeHookGrantDenied)
	errutil.AssertErrorContext(t, bindErr, "hook", "on_startup")
}

func TestManager_Deactivate(t *testing.T) {
	reg := newTestRegistry(t)
	m := plugin.NewManager(t.TempDir(), reg)

	deactivateSeen := 0
	unit := &testUnit{
		info: quill.Info{Name: "deact-basic", Version: "1.0.0"},
		onActivate: func(_ context.Context, host quill.Host) error {
			if _, err := host.Hooks().OnFilter("on_content_render", "render", passthrough); err != nil {
				return err
			}
			_, err := host.Hooks().OnAction("on_deactivate", "observe", func(context.Context, hook.Event) error {
				deactivateSeen++
				return nil
			})
			return err
		},
	}
	installUnit(t, m, unit)
	require.NoError(t, m.Activate(context.Background(), "deact-basic"))
	require.Len(t, reg.Handlers("on_content_render"), 1)

	require.NoError(t, m.Deactivate(context.Background(), "deact-basic"))

	desc, _ := m.Get("deact-basic")
	assert.Equal(t, plugin.StateInactive, desc.State)
	assert.Empty(t, reg.Handlers("on_content_render"), "deactivation should strip the plugin's handlers")
	assert.Equal(t, 1, deactivateSeen, "on_deactivate should fire while handlers are still bound")
}

func TestManager_Deactivate_NotActive(t *testing.T) {
	m := plugin.NewManager(t.TempDir(), newTestRegistry(t))
	installUnit(t, m, &testUnit{info: quill.Info{Name: "deact-loaded"}})

	err := m.Deactivate(context.Background(), "deact-loaded")
	errutil.AssertErrorCode(t, err, plugin.CodeActivationState)
	errutil.AssertErrorContext(t, err, "state", "loaded")
}

func TestManager_Deactivate_UnitError(t *testing.T) {
	reg := newTestRegistry(t)
	m := plugin.NewManager(t.TempDir(), reg)

	unit := &testUnit{
		info: quill.Info{Name: "deact-fails"},
		onActivate: func(_ context.Context, host quill.Host) error {
			_, err := host.Hooks().OnFilter("on_content_render", "render", passthrough)
			return err
		},
		onDeactivate: func(context.Context, quill.Host) error {
			return errors.New("cleanup failed")
		},
	}
	installUnit(t, m, unit)
	require.NoError(t, m.Activate(context.Background(), "deact-fails"))

	err := m.Deactivate(context.Background(), "deact-fails")
	require.Error(t, err)

	desc, _ := m.Get("deact-fails")
	assert.Equal(t, plugin.StateInactive, desc.State, "a failing Deactivate still lands in inactive")
	assert.Empty(t, reg.Handlers("on_content_render"), "handlers are removed even when the unit errors")
}

func TestManager_Reactivate(t *testing.T) {
	reg := newTestRegistry(t)
	m := plugin.NewManager(t.TempDir(), reg)

	unit := &testUnit{
		info: quill.Info{Name: "react"},
		onActivate: func(_ context.Context, host quill.Host) error {
			_, err := host.Hooks().OnFilter("on_content_render", "render", passthrough)
			return err
		},
	}
	installUnit(t, m, unit)

	ctx := context.Background()
	require.NoError(t, m.Activate(ctx, "react"))
	require.NoError(t, m.Deactivate(ctx, "react"))
	require.NoError(t, m.Activate(ctx, "react"), "inactive plugins can activate again")

	desc, _ := m.Get("react")
	assert.Equal(t, plugin.StateActive, desc.State)
	assert.Len(t, reg.Handlers("on_content_render"), 1)
}

func TestManager_Unload(t *testing.T) {
	m := plugin.NewManager(t.TempDir(), newTestRegistry(t))
	installUnit(t, m, &testUnit{info: quill.Info{Name: "unload-me"}})

	ctx := context.Background()
	require.NoError(t, m.Activate(ctx, "unload-me"))
	require.NoError(t, m.Deactivate(ctx, "unload-me"))
	require.NoError(t, m.Unload(ctx, "unload-me"))

	_, ok := m.Get("unload-me")
	assert.False(t, ok)
	assert.Nil(t, m.Grants("unload-me"), "unload should drop the plugin's grants")
}

func TestManager_Unload_WhileActive(t *testing.T) {
	m := plugin.NewManager(t.TempDir(), newTestRegistry(t))
	installUnit(t, m, &testUnit{info: quill.Info{Name: "unload-active"}})
	require.NoError(t, m.Activate(context.Background(), "unload-active"))

	err := m.Unload(context.Background(), "unload-active")
	errutil.AssertErrorCode(t, err, plugin.CodeActivationState)
	errutil.AssertErrorContext(t, err, "operation", "unload")
}

func TestManager_ActivateAll_ContinuesPastFailures(t *testing.T) {
	m := plugin.NewManager(t.TempDir(), newTestRegistry(t))
	installUnit(t, m, &testUnit{
		info: quill.Info{Name: "all-bad"},
		onActivate: func(context.Context, quill.Host) error {
			return errors.New("nope")
		},
	})
	installUnit(t, m, &testUnit{info: quill.Info{Name: "all-good"}})

	m.ActivateAll(context.Background())

	bad, _ := m.Get("all-bad")
	good, _ := m.Get("all-good")
	assert.Equal(t, plugin.StateLoaded, bad.State)
	assert.Equal(t, plugin.StateActive, good.State)
}

func TestManager_DeactivateAll(t *testing.T) {
	m := plugin.NewManager(t.TempDir(), newTestRegistry(t))
	installUnit(t, m, &testUnit{info: quill.Info{Name: "down-a"}})
	installUnit(t, m, &testUnit{info: quill.Info{Name: "down-b"}})

	ctx := context.Background()
	m.ActivateAll(ctx)
	m.DeactivateAll(ctx)

	for _, name := range []string{"down-a", "down-b"} {
		desc, _ := m.Get(name)
		assert.Equal(t, plugin.StateInactive, desc.State, "plugin %s", name)
	}
}

func TestManager_List_Sorted(t *testing.T) {
	m := plugin.NewManager(t.TempDir(), newTestRegistry(t))
	installUnit(t, m, &testUnit{info: quill.Info{Name: "list-b", Version: "1.0.0"}})
	installUnit(t, m, &testUnit{info: quill.Info{Name: "list-a", Version: "2.0.0"}})

	list := m.List()
	require.Len(t, list, 2)
	assert.Equal(t, "list-a", list[0].Name)
	assert.Equal(t, "list-b", list[1].Name)
	assert.Equal(t, "2.0.0", list[0].Version)
	assert.Equal(t, plugin.TypeNative, list[0].Type)
}

func TestManager_Close(t *testing.T) {
	m := plugin.NewManager(t.TempDir(), newTestRegistry(t))
	installUnit(t, m, &testUnit{info: quill.Info{Name: "close-me"}})
	require.NoError(t, m.Activate(context.Background(), "close-me"))

	require.NoError(t, m.Close(context.Background()))

	assert.Empty(t, m.List())
	assert.Nil(t, m.Grants("close-me"))
}

func TestManager_Shortcode(t *testing.T) {
	reg := newTestRegistry(t)
	m := plugin.NewManager(t.TempDir(), reg)

	unit := &testUnit{
		info: quill.Info{Name: "shortcodes"},
		onActivate: func(_ context.Context, host quill.Host) error {
			_, err := host.Hooks().Shortcode("hello", func(context.Context, hook.Event) (any, error) {
				return "<em>hi</em>", nil
			})
			return err
		},
	}
	installUnit(t, m, unit)
	require.NoError(t, m.Activate(context.Background(), "shortcodes"))

	def, ok := reg.Namespace().Lookup("shortcode.hello")
	require.True(t, ok, "binding a shortcode should define its hook")
	assert.Equal(t, hook.KindFilter, def.Kind)

	res, err := reg.Dispatch(context.Background(), "shortcode.hello", quill.ShortcodePayload{Tag: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "<em>hi</em>", res.Payload)
}

func TestManager_Shortcode_SharedTag(t *testing.T) {
	reg := newTestRegistry(t)
	m := plugin.NewManager(t.TempDir(), reg)

	bind := func(name, out string) *testUnit {
		return &testUnit{
			info: quill.Info{Name: name},
			onActivate: func(_ context.Context, host quill.Host) error {
				_, err := host.Hooks().Shortcode("badge", func(_ context.Context, ev hook.Event) (any, error) {
					s, _ := ev.Payload.(string)
					return s + out, nil
				})
				return err
			},
		}
	}
	installUnit(t, m, bind("badge-one", "1"))
	installUnit(t, m, bind("badge-two", "2"))

	ctx := context.Background()
	require.NoError(t, m.Activate(ctx, "badge-one"))
	require.NoError(t, m.Activate(ctx, "badge-two"), "a second plugin may handle the same shortcode")

	res, err := reg.Dispatch(ctx, "shortcode.badge", "")
	require.NoError(t, err)
	assert.Equal(t, "12", res.Payload, "both handlers should run in registration order")
}

func TestManager_Unbind(t *testing.T) {
	reg := newTestRegistry(t)
	m := plugin.NewManager(t.TempDir(), reg)

	unit := &testUnit{
		info: quill.Info{Name: "unbind-one"},
		onActivate: func(_ context.Context, host quill.Host) error {
			id, err := host.Hooks().OnFilter("on_content_render", "render", passthrough)
			if err != nil {
				return err
			}
			host.Hooks().Unbind(id)
			return nil
		},
	}
	installUnit(t, m, unit)
	require.NoError(t, m.Activate(context.Background(), "unbind-one"))

	assert.Empty(t, reg.Handlers("on_content_render"))
}

func TestManager_ManifestSettingsDefaults(t *testing.T) {
	plugin.RegisterFactory("mgr-settings", func() quill.Unit {
		unit := &testUnit{info: quill.Info{Name: "mgr-settings", Version: "1.0.0"}}
		unit.onActivate = func(_ context.Context, host quill.Host) error {
			s := host.Settings()
			if got := s.String("greeting_text"); got != "Hello from manifest" {
				return errors.New("unexpected greeting_text: " + got)
			}
			if got := s.Int("max_items"); got != 5 {
				return errors.New("unexpected max_items")
			}
			if _, ok := s.Get("missing"); ok {
				return errors.New("missing key should not resolve")
			}
			return nil
		}
		return unit
	})

	m := plugin.NewManager(t.TempDir(), newTestRegistry(t))
	require.NoError(t, m.Load(context.Background(), &plugin.Discovered{
		Manifest: &plugin.Manifest{
			Name:    "mgr-settings",
			Version: "1.0.0",
			Type:    plugin.TypeNative,
			Hooks:   []string{"**"},
			Settings: map[string]any{
				"greeting_text": "Hello from manifest",
				"max_items":     5,
			},
		},
	}))
	require.NoError(t, m.Activate(context.Background(), "mgr-settings"))
}

func TestManager_WithSettings(t *testing.T) {
	var sawName string
	resolver := func(name string, defaults map[string]any) quill.Settings {
		sawName = name
		merged := map[string]any{"greeting_text": "from host"}
		for k, v := range defaults {
			if _, ok := merged[k]; !ok {
				merged[k] = v
			}
		}
		return config.StaticSettings(merged)
	}

	m := plugin.NewManager(t.TempDir(), newTestRegistry(t), plugin.WithSettings(resolver))

	var got string
	unit := &testUnit{
		info: quill.Info{Name: "host-settings"},
		onActivate: func(_ context.Context, host quill.Host) error {
			got = host.Settings().String("greeting_text")
			return nil
		},
	}
	installUnit(t, m, unit)
	require.NoError(t, m.Activate(context.Background(), "host-settings"))

	assert.Equal(t, "host-settings", sawName)
	assert.Equal(t, "from host", got)
}

func TestManager_Activate_WhileActivating(t *testing.T) {
	defer goleak.VerifyNone(t)

	m := plugin.NewManager(t.TempDir(), newTestRegistry(t))

	started := make(chan struct{})
	release := make(chan struct{})
	unit := &testUnit{
		info: quill.Info{Name: "slow-start"},
		onActivate: func(context.Context, quill.Host) error {
			close(started)
			<-release
			return nil
		},
	}
	installUnit(t, m, unit)

	done := make(chan error, 1)
	go func() {
		done <- m.Activate(context.Background(), "slow-start")
	}()
	<-started

	err := m.Activate(context.Background(), "slow-start")
	errutil.AssertErrorCode(t, err, plugin.CodeActivationState)

	desc, ok := m.Get("slow-start")
	require.True(t, ok, "introspection must not block on an in-flight activation")
	assert.Equal(t, plugin.StateLoaded, desc.State)

	close(release)
	require.NoError(t, <-done)

	desc, _ = m.Get("slow-start")
	assert.Equal(t, plugin.StateActive, desc.State)
}
