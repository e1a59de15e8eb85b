// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Quill Contributors

package plugin

import (
	"sort"
	"sync"

	"github.com/quillcms/quill/pkg/quill"
)

// Factory builds a fresh native unit instance.
type Factory func() quill.Unit

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]Factory)
)

// RegisterFactory makes a native unit available to the manager under
// the manifest name. It is intended to be called from a plugin
// package's init, wired by blank import:
//
//	import _ "github.com/quillcms/quill/plugins/hello-world"
//
// RegisterFactory panics if f is nil or the name is already taken.
func RegisterFactory(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	if f == nil {
		panic("plugin: RegisterFactory factory is nil")
	}
	if _, dup := factories[name]; dup {
		panic("plugin: RegisterFactory called twice for " + name)
	}
	factories[name] = f
}

// lookupFactory returns the factory registered under name.
func lookupFactory(name string) (Factory, bool) {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	f, ok := factories[name]
	return f, ok
}

// Factories returns the sorted names of all registered factories.
func Factories() []string {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
