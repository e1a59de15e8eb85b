// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package quill

import (
	"strings"
	"time"
)

// PluginPayload accompanies on_activate and on_deactivate.
type PluginPayload struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ContentPayload accompanies on_content_saved.
type ContentPayload struct {
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	Body    string    `json:"body"`
	Author  string    `json:"author"`
	SavedAt time.Time `json:"saved_at"`
}

// RequestPayload accompanies on_request and on_request_abort.
type RequestPayload struct {
	Method     string `json:"method"`
	Path       string `json:"path"`
	RemoteAddr string `json:"remote_addr"`
}

// MenuItem is one entry of the on_admin_menu filter payload.
type MenuItem struct {
	Title  string `json:"title"`
	Slug   string `json:"slug"`
	Parent string `json:"parent,omitempty"`
}

// ShortcodePayload is what shortcode.<tag> filters receive. Raw holds
// the original bracket text so an unhandled shortcode can be emitted
// unchanged.
type ShortcodePayload struct {
	Tag   string            `json:"tag"`
	Attrs map[string]string `json:"attrs,omitempty"`
	Raw   string            `json:"raw"`
}

// HeadPayload accompanies on_head_render. Unlike other payloads it is
// mutable by contract: handlers call Add to contribute tags and the
// host renders the collected set after dispatch. Dispatch is
// synchronous, so no locking is needed.
type HeadPayload struct {
	tags []string
}

// Add appends a head tag (a meta, link, style, or script element).
// Empty strings are ignored.
func (p *HeadPayload) Add(tag string) {
	if tag == "" {
		return
	}
	p.tags = append(p.tags, tag)
}

// Tags returns the collected tags in insertion order. The slice is a
// copy and safe to modify.
func (p *HeadPayload) Tags() []string {
	tags := make([]string, len(p.tags))
	copy(tags, p.tags)
	return tags
}

// HTML renders the collected tags joined by newlines.
func (p *HeadPayload) HTML() string {
	return strings.Join(p.tags, "\n")
}
