// Package capability enforces which hooks a plugin may bind.
//
// Grant patterns come from the manifest's hooks block and use
// gobwas/glob with '.' as the segment separator:
//   - '*' matches a single segment (does not cross '.')
//   - '**' matches zero or more segments (crosses '.')
//
// Examples:
//   - "on_content_render" grants exactly that hook
//   - "on_*" grants the fixed lifecycle hooks (single segment)
//   - "shortcode.*" grants any shortcode tag
//   - "**" grants every hook (programmatically installed units)
package capability

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gobwas/glob"
)

// grant is one compiled manifest pattern.
type grant struct {
	pattern string
	match   glob.Glob
}

// compileGrants validates and compiles a manifest hooks block.
func compileGrants(patterns []string) ([]grant, error) {
	out := make([]grant, len(patterns))
	for i, pattern := range patterns {
		if pattern == "" {
			return nil, fmt.Errorf("hook grant %d: empty pattern", i)
		}
		// '.' as separator so '*' stays inside one segment
		g, err := glob.Compile(pattern, '.')
		if err != nil {
			return nil, fmt.Errorf("hook grant %d (%q): %w", i, pattern, err)
		}
		out[i] = grant{pattern: pattern, match: g}
	}
	return out, nil
}

// Enforcer answers whether a plugin may bind a given hook.
//
// Enforcer is safe for concurrent use. The zero value is ready to use
// without calling NewEnforcer.
type Enforcer struct {
	mu     sync.RWMutex
	grants map[string][]grant
}

// NewEnforcer creates a hook grant enforcer.
func NewEnforcer() *Enforcer {
	return &Enforcer{grants: make(map[string][]grant)}
}

// SetGrants replaces the hook patterns a plugin may bind. Returns an
// error if the plugin name is empty or any pattern is invalid; patterns
// are compiled before the enforcer is touched, so a failed call leaves
// previous grants intact.
func (e *Enforcer) SetGrants(plugin string, patterns []string) error {
	if plugin == "" {
		return errors.New("plugin name cannot be empty")
	}
	compiled, err := compileGrants(patterns)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.grants == nil {
		e.grants = make(map[string][]grant)
	}
	e.grants[plugin] = compiled
	return nil
}

// RemoveGrants drops every grant held by a plugin. Unknown plugins and
// the zero-value Enforcer are no-ops.
func (e *Enforcer) RemoveGrants(plugin string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.grants, plugin)
}

// Grants returns a copy of the patterns granted to a plugin, nil if
// the plugin is not registered.
func (e *Enforcer) Grants(plugin string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	gs := e.grants[plugin]
	if gs == nil {
		return nil
	}
	patterns := make([]string, len(gs))
	for i, g := range gs {
		patterns[i] = g.pattern
	}
	return patterns
}

// Check reports whether the plugin may bind the named hook. Empty hook
// names, unknown plugins, and hooks outside the grants all deny.
func (e *Enforcer) Check(plugin, hook string) bool {
	if hook == "" {
		return false
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	for _, g := range e.grants[plugin] {
		if g.match.Match(hook) {
			return true
		}
	}
	return false
}
