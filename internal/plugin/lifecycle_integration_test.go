// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

//go:build integration

package plugin_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/samber/oops"

	"github.com/quillcms/quill/internal/plugin"
	pluginlua "github.com/quillcms/quill/internal/plugin/lua"
	"github.com/quillcms/quill/pkg/hook"
	"github.com/quillcms/quill/pkg/quill"
)

// writeScriptPlugin writes a Lua plugin directory under root.
func writeScriptPlugin(root, name, manifest, script string) {
	dir := filepath.Join(root, name)
	Expect(os.MkdirAll(dir, 0o750)).To(Succeed())
	Expect(os.WriteFile(filepath.Join(dir, "plugin.yaml"), []byte(manifest), 0o600)).To(Succeed())
	Expect(os.WriteFile(filepath.Join(dir, "main.lua"), []byte(script), 0o600)).To(Succeed())
}

var _ = Describe("Plugin lifecycle", func() {
	const pluginName = "heartbeat"

	var (
		ctx      context.Context
		root     string
		registry *hook.Registry
		manager  *plugin.Manager
	)

	expectCode := func(err error, code string) {
		GinkgoHelper()
		Expect(err).To(HaveOccurred())
		oopsErr, ok := oops.AsOops(err)
		Expect(ok).To(BeTrue(), "expected oops error, got %T", err)
		Expect(oopsErr.Code()).To(Equal(code))
	}

	stateOf := func(name string) plugin.State {
		GinkgoHelper()
		d, ok := manager.Get(name)
		Expect(ok).To(BeTrue(), "plugin %s not managed", name)
		return d.State
	}

	BeforeEach(func() {
		ctx = context.Background()

		root = GinkgoT().TempDir()
		writeScriptPlugin(root, pluginName, `name: heartbeat
version: 0.1.0
type: lua
description: Lifecycle probe
hooks:
  - on_content_render
lua:
  entry: main.lua
  bindings:
    - hook: on_content_render
      kind: filter
      function: stamp
`, `function stamp(event)
  return event.payload .. " *"
end
`)

		var err error
		registry, err = hook.NewRegistry(quill.DefaultNamespace())
		Expect(err).NotTo(HaveOccurred())

		manager = plugin.NewManager(root, registry,
			plugin.WithLuaHost(pluginlua.NewHost()),
		)
		Expect(manager.LoadAll(ctx)).To(Succeed())
	})

	AfterEach(func() {
		Expect(manager.Close(ctx)).To(Succeed())
	})

	It("loads the plugin into the loaded state", func() {
		Expect(stateOf(pluginName)).To(Equal(plugin.StateLoaded))
		Expect(registry.Handlers(quill.HookContentRender)).To(BeEmpty())
	})

	It("activates a loaded plugin and binds its handlers", func() {
		Expect(manager.Activate(ctx, pluginName)).To(Succeed())
		Expect(stateOf(pluginName)).To(Equal(plugin.StateActive))

		res, err := registry.Dispatch(ctx, quill.HookContentRender, "tick")
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Payload).To(Equal("tick *"))
	})

	It("rejects a second activation while active", func() {
		Expect(manager.Activate(ctx, pluginName)).To(Succeed())
		expectCode(manager.Activate(ctx, pluginName), plugin.CodeActivationState)
		Expect(stateOf(pluginName)).To(Equal(plugin.StateActive))
	})

	It("rejects unload while active", func() {
		Expect(manager.Activate(ctx, pluginName)).To(Succeed())
		expectCode(manager.Unload(ctx, pluginName), plugin.CodeActivationState)
	})

	It("rejects deactivation before activation", func() {
		expectCode(manager.Deactivate(ctx, pluginName), plugin.CodeActivationState)
	})

	It("deactivates an active plugin and unbinds its handlers", func() {
		Expect(manager.Activate(ctx, pluginName)).To(Succeed())
		Expect(manager.Deactivate(ctx, pluginName)).To(Succeed())

		Expect(stateOf(pluginName)).To(Equal(plugin.StateInactive))
		Expect(registry.Handlers(quill.HookContentRender)).To(BeEmpty())
	})

	It("reactivates an inactive plugin", func() {
		Expect(manager.Activate(ctx, pluginName)).To(Succeed())
		Expect(manager.Deactivate(ctx, pluginName)).To(Succeed())
		Expect(manager.Activate(ctx, pluginName)).To(Succeed())

		res, err := registry.Dispatch(ctx, quill.HookContentRender, "tock")
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Payload).To(Equal("tock *"))
	})

	It("unloads an inactive plugin and drops its grants", func() {
		Expect(manager.Activate(ctx, pluginName)).To(Succeed())
		Expect(manager.Deactivate(ctx, pluginName)).To(Succeed())
		Expect(manager.Unload(ctx, pluginName)).To(Succeed())

		_, ok := manager.Get(pluginName)
		Expect(ok).To(BeFalse())
		Expect(manager.Grants(pluginName)).To(BeEmpty())
	})

	It("reports unknown plugins distinctly", func() {
		expectCode(manager.Activate(ctx, "nobody"), plugin.CodePluginNotFound)
	})

	Context("with a binding outside the manifest grants", func() {
		const rogueName = "rogue"

		BeforeEach(func() {
			writeScriptPlugin(root, rogueName, `name: rogue
version: 0.1.0
type: lua
hooks:
  - on_startup
lua:
  entry: main.lua
  bindings:
    - hook: on_content_render
      kind: filter
      function: sneak
`, `function sneak(event)
  return event.payload
end
`)

			discovered, err := manager.Discover(ctx)
			Expect(err).NotTo(HaveOccurred())
			for _, d := range discovered {
				if d.Manifest.Name == rogueName {
					Expect(manager.Load(ctx, d)).To(Succeed())
				}
			}
		})

		It("fails activation and leaves no handlers bound", func() {
			err := manager.Activate(ctx, rogueName)
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("no grant"))

			Expect(stateOf(rogueName)).To(Equal(plugin.StateLoaded))
			Expect(registry.Handlers(quill.HookContentRender)).To(BeEmpty())
		})
	})
})
