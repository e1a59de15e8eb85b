// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package hook

import (
	"regexp"
	"sort"
	"sync"

	"github.com/Masterminds/semver/v3"
)

// hookNamePattern: dot-separated segments, leading segment starts with
// a letter; family segments (shortcode tags, widget IDs) also allow
// hyphens.
var hookNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*(\.[a-z0-9][a-z0-9_-]*)*$`)

// Namespace is the versioned set of hooks a host publishes. Hook names
// are case-sensitive and unique. Definitions are fixed at construction
// except through Define, which hosts use for dynamic families such as
// shortcode.<tag>.
type Namespace struct {
	version *semver.Version

	mu   sync.RWMutex
	defs map[string]Definition
}

// NewNamespace builds a namespace from a semver version string and an
// initial set of definitions.
func NewNamespace(version string, defs ...Definition) (*Namespace, error) {
	v, err := semver.NewVersion(version)
	if err != nil {
		return nil, ErrInvalidNamespaceVersion(version, err)
	}
	n := &Namespace{
		version: v,
		defs:    make(map[string]Definition, len(defs)),
	}
	for _, def := range defs {
		if err := n.Define(def); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// Version reports the published namespace version.
func (n *Namespace) Version() string {
	return n.version.String()
}

// Define adds a hook to the namespace. Names must match the hook name
// grammar and must not collide with an existing definition.
func (n *Namespace) Define(def Definition) error {
	if !hookNamePattern.MatchString(def.Name) {
		return ErrInvalidHookName(def.Name)
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.defs[def.Name]; ok {
		return ErrHookRedefined(def.Name)
	}
	n.defs[def.Name] = def
	return nil
}

// Lookup retrieves a definition by exact name.
func (n *Namespace) Lookup(name string) (Definition, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	def, ok := n.defs[name]
	return def, ok
}

// All returns every definition sorted by name. The slice is a copy and
// safe to modify.
func (n *Namespace) All() []Definition {
	n.mu.RLock()
	defer n.mu.RUnlock()

	defs := make([]Definition, 0, len(n.defs))
	for _, def := range n.defs {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}
