// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

// Package helloworld is the bundled starter plugin. It appends a
// greeting footer to rendered content, contributes a [hello] shortcode
// and a sidebar widget, and carries a settings schema, which makes it
// a working reference for the full native plugin surface.
package helloworld

import (
	"context"
	"time"

	"github.com/invopop/jsonschema"

	"github.com/quillcms/quill/internal/plugin"
	"github.com/quillcms/quill/pkg/hook"
	"github.com/quillcms/quill/pkg/quill"
)

const pluginName = "hello-world"

func init() {
	plugin.RegisterFactory(pluginName, func() quill.Unit { return New() })
}

// settings mirrors the keys the plugin reads. The derived schema gates
// activation.
type settings struct {
	GreetingText string `json:"greeting_text" jsonschema:"title=Greeting text,maxLength=120"`
	ShowDate     bool   `json:"show_date,omitempty"`
	CustomCSS    string `json:"custom_css,omitempty"`
}

// Plugin greets readers wherever the host lets it.
type Plugin struct{}

var (
	_ quill.Unit          = (*Plugin)(nil)
	_ quill.ConfigSchemer = (*Plugin)(nil)
)

// New creates the plugin unit.
func New() *Plugin {
	return &Plugin{}
}

func (p *Plugin) Info() quill.Info {
	return quill.Info{
		Name:        pluginName,
		Version:     "1.0.0",
		Description: "Greets readers with a configurable footer, shortcode, and widget",
		Author:      "Quill Contributors",
	}
}

// ConfigSchema declares the settings the plugin accepts.
func (p *Plugin) ConfigSchema() *jsonschema.Schema {
	return jsonschema.Reflect(&settings{})
}

func (p *Plugin) Activate(_ context.Context, host quill.Host) error {
	hooks := host.Hooks()
	cfg := host.Settings()

	if _, err := hooks.OnAction(quill.HookActivate, "announce", p.announce(host)); err != nil {
		return err
	}
	if _, err := hooks.OnFilter(quill.HookContentRender, "footer", p.footer(cfg)); err != nil {
		return err
	}
	if _, err := hooks.OnAction(quill.HookHeadRender, "inject-css", p.injectCSS(cfg)); err != nil {
		return err
	}
	if _, err := hooks.Shortcode("hello", p.shortcode(cfg)); err != nil {
		return err
	}
	if _, err := hooks.Widget(pluginName, p.widget(cfg)); err != nil {
		return err
	}
	return nil
}

func (p *Plugin) Deactivate(_ context.Context, host quill.Host) error {
	host.Logger().Info("waving goodbye")
	return nil
}

// announce logs once the host commits this plugin's activation.
func (p *Plugin) announce(host quill.Host) quill.ActionFunc {
	return func(_ context.Context, ev hook.Event) error {
		payload, ok := ev.Payload.(quill.PluginPayload)
		if !ok || payload.Name != pluginName {
			return nil
		}
		host.Logger().Info("hello-world is live", "version", payload.Version)
		return nil
	}
}

// footer appends the greeting line to rendered content.
func (p *Plugin) footer(cfg quill.Settings) quill.FilterFunc {
	return func(_ context.Context, ev hook.Event) (any, error) {
		body, ok := ev.Payload.(string)
		if !ok {
			return ev.Payload, nil
		}
		return body + "\n" + p.greeting(cfg), nil
	}
}

// greeting renders the footer element from the plugin settings.
func (p *Plugin) greeting(cfg quill.Settings) string {
	text := cfg.String("greeting_text")
	if cfg.Bool("show_date") {
		text += " (" + time.Now().Format("January 2, 2006") + ")"
	}
	return `<p class="hello-world-footer">` + text + `</p>`
}

// injectCSS contributes a style tag when custom_css is set.
func (p *Plugin) injectCSS(cfg quill.Settings) quill.ActionFunc {
	return func(_ context.Context, ev hook.Event) error {
		head, ok := ev.Payload.(*quill.HeadPayload)
		if !ok {
			return nil
		}
		if css := cfg.String("custom_css"); css != "" {
			head.Add("<style>" + css + "</style>")
		}
		return nil
	}
}

// shortcode renders [hello] and [hello name="..."].
func (p *Plugin) shortcode(cfg quill.Settings) quill.FilterFunc {
	return func(_ context.Context, ev hook.Event) (any, error) {
		sc, ok := ev.Payload.(quill.ShortcodePayload)
		if !ok {
			return ev.Payload, nil
		}
		if name := sc.Attrs["name"]; name != "" {
			return "Hello, " + name + "!", nil
		}
		return cfg.String("greeting_text"), nil
	}
}

// widget renders the sidebar box.
func (p *Plugin) widget(cfg quill.Settings) quill.FilterFunc {
	return func(_ context.Context, _ hook.Event) (any, error) {
		return `<div class="hello-world-widget">` + cfg.String("greeting_text") + `</div>`, nil
	}
}
