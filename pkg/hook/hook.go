// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

// Package hook implements the extension-point table that connects a
// Quill host to its plugins: named hooks, ordered handler registration,
// and synchronous dispatch with per-handler failure isolation.
package hook

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
)

// Kind distinguishes the two dispatch disciplines a hook can have.
type Kind uint8

const (
	// KindAction hooks notify handlers of something that happened.
	// Handler return values are discarded.
	KindAction Kind = iota
	// KindFilter hooks thread the payload through each handler in
	// turn; every handler receives the previous handler's output.
	KindFilter
)

func (k Kind) String() string {
	switch k {
	case KindAction:
		return "action"
	case KindFilter:
		return "filter"
	default:
		return "unknown"
	}
}

// DefaultPriority is assigned when an Entry leaves Priority at zero.
// Lower priorities run earlier; ties run in registration order.
const DefaultPriority = 10

// Definition declares a single hook in a Namespace.
type Definition struct {
	Name        string
	Kind        Kind
	Description string

	// Critical marks hooks where a handler failure aborts the
	// remaining handlers and fails the dispatch.
	Critical bool

	// AllowDuplicates permits one plugin to register two handlers
	// under the same handler name on this hook.
	AllowDuplicates bool

	// Payload is an optional prototype value for the hook's payload
	// type, used for schema generation. Nil for undocumented payloads.
	Payload any
}

// Event is what a handler receives on dispatch. Payload is shared with
// the host and must not be mutated unless the hook's payload type
// explicitly supports it.
type Event struct {
	ID      ulid.ULID
	Hook    string
	Kind    Kind
	Time    time.Time
	Payload any
}

// HandlerFunc is the registered callable. Action handlers should
// return a nil value; filter handlers must return the (possibly
// replaced) payload.
type HandlerFunc func(ctx context.Context, ev Event) (any, error)

// Entry describes a registration request.
type Entry struct {
	Hook  string
	Owner string // owning plugin name
	Name  string // handler name, unique per (owner, hook)
	Kind  Kind   // declared intent, checked against the Definition

	// Priority orders handlers within a hook. Zero means
	// DefaultPriority.
	Priority int

	Fn HandlerFunc
}

// HandlerInfo is a read-only view of a registered handler.
type HandlerInfo struct {
	ID       ulid.ULID
	Hook     string
	Owner    string
	Name     string
	Kind     Kind
	Priority int
}
