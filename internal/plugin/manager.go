package plugin

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/samber/oops"

	"github.com/quillcms/quill/internal/plugin/capability"
	"github.com/quillcms/quill/pkg/hook"
	"github.com/quillcms/quill/pkg/quill"
)

// UnitBuilder builds a Unit from a manifest. The Lua host implements
// this for script plugins.
type UnitBuilder interface {
	Build(ctx context.Context, manifest *Manifest, dir string) (quill.Unit, error)
}

// SettingsFunc resolves a plugin's settings view from its name and
// manifest defaults.
type SettingsFunc func(name string, defaults map[string]any) quill.Settings

// Manager owns plugin lifecycle: discovery, loading, activation, and
// unload. It holds the grant enforcer and attributes every hook bind to
// its plugin.
//
// Lifecycle methods (Load, Activate, Deactivate, Unload, Close) must
// not be called from inside a hook handler: they wait on in-flight
// dispatches, so reentry deadlocks. Introspection (List, Get, Grants)
// is safe anywhere.
type Manager struct {
	pluginsDir string
	registry   *hook.Registry
	enforcer   *capability.Enforcer
	luaHost    UnitBuilder
	settings   SettingsFunc
	disabled   map[string]bool
	log        *slog.Logger

	plugins map[string]*record
	mu      sync.RWMutex
}

// record tracks one managed plugin. busy serializes lifecycle
// operations per plugin while the manager lock is released during the
// unit's own Activate/Deactivate.
type record struct {
	manifest *Manifest
	dir      string
	unit     quill.Unit
	state    State
	host     *hostContext
	busy     bool
}

// Descriptor is a read-only view of a managed plugin.
type Descriptor struct {
	Name        string
	Version     string
	Description string
	Author      string
	Type        Type
	State       State
	Dir         string
}

// ManagerOption configures the Manager.
type ManagerOption func(*Manager)

// WithLuaHost sets the builder for lua-type plugins.
func WithLuaHost(b UnitBuilder) ManagerOption {
	return func(m *Manager) {
		m.luaHost = b
	}
}

// WithLogger sets the manager's logger.
func WithLogger(log *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.log = log
	}
}

// WithSettings sets the resolver for plugin settings views. Without it,
// plugins see only their manifest defaults.
func WithSettings(fn SettingsFunc) ManagerOption {
	return func(m *Manager) {
		m.settings = fn
	}
}

// WithDisabled marks plugin names LoadAll skips.
func WithDisabled(names []string) ManagerOption {
	return func(m *Manager) {
		for _, n := range names {
			m.disabled[n] = true
		}
	}
}

// NewManager creates a plugin manager dispatching through registry.
func NewManager(pluginsDir string, registry *hook.Registry, opts ...ManagerOption) *Manager {
	m := &Manager{
		pluginsDir: pluginsDir,
		registry:   registry,
		enforcer:   capability.NewEnforcer(),
		disabled:   make(map[string]bool),
		log:        slog.Default(),
		plugins:    make(map[string]*record),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Discovered contains a parsed manifest and its directory.
type Discovered struct {
	Manifest *Manifest
	Dir      string
}

// Discover finds all valid plugins in the plugins directory.
// Invalid manifests are logged and skipped.
func (m *Manager) Discover(_ context.Context) ([]*Discovered, error) {
	entries, err := os.ReadDir(m.pluginsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // No plugins directory
		}
		return nil, oops.With("dir", m.pluginsDir).Wrapf(err, "read plugins directory")
	}

	var plugins []*Discovered
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		pluginDir := filepath.Join(m.pluginsDir, entry.Name())
		manifestPath := filepath.Join(pluginDir, "plugin.yaml")

		data, err := os.ReadFile(manifestPath) //nolint:gosec // manifestPath is constructed from ReadDir entries
		if err != nil {
			m.log.Warn("skipping plugin without manifest",
				"dir", entry.Name(),
				"error", err)
			continue
		}

		manifest, err := ParseManifest(data)
		if err != nil {
			m.log.Warn("skipping plugin with invalid manifest",
				"dir", entry.Name(),
				"error", err)
			continue
		}

		plugins = append(plugins, &Discovered{
			Manifest: manifest,
			Dir:      pluginDir,
		})
	}

	return plugins, nil
}

// LoadAll discovers and loads every plugin in the plugins directory,
// skipping disabled names. Individual load failures are logged and do
// not fail the whole pass, so the host starts with whatever subset is
// healthy.
func (m *Manager) LoadAll(ctx context.Context) error {
	discovered, err := m.Discover(ctx)
	if err != nil {
		return err
	}

	for _, d := range discovered {
		if m.disabled[d.Manifest.Name] {
			m.log.Info("skipping disabled plugin", "plugin", d.Manifest.Name)
			continue
		}
		if err := m.Load(ctx, d); err != nil {
			m.log.Error("failed to load plugin",
				"plugin", d.Manifest.Name,
				"error", err)
			continue
		}
	}

	return nil
}

// Load brings one discovered plugin to Loaded. Native units come from
// the factory table, lua units from the Lua host. Binary manifests are
// accepted but skipped until a binary transport exists.
func (m *Manager) Load(ctx context.Context, d *Discovered) error {
	name := d.Manifest.Name

	var unit quill.Unit
	switch d.Manifest.Type {
	case TypeNative:
		factory, ok := lookupFactory(name)
		if !ok {
			return ErrFactoryMissing(name)
		}
		unit = factory()
		if err := checkInfo(d.Manifest, unit.Info()); err != nil {
			return err
		}
	case TypeLua:
		if m.luaHost == nil {
			m.log.Warn("no Lua host configured, skipping Lua plugin",
				"plugin", name)
			return nil
		}
		var err error
		unit, err = m.luaHost.Build(ctx, d.Manifest, d.Dir)
		if err != nil {
			return oops.In("plugin").With("plugin", name).Wrapf(err, "build lua unit")
		}
	case TypeBinary:
		m.log.Warn("binary plugins not yet supported, skipping",
			"plugin", name)
		return nil
	default:
		// Manifest.Validate rejects unknown types before they get here.
		m.log.Warn("unknown plugin type, skipping",
			"plugin", name,
			"type", d.Manifest.Type)
		return nil
	}

	if err := m.enforcer.SetGrants(name, d.Manifest.Hooks); err != nil {
		return oops.In("plugin").With("plugin", name).Wrapf(err, "invalid hook grants")
	}

	m.mu.Lock()
	if _, exists := m.plugins[name]; exists {
		m.mu.Unlock()
		m.enforcer.RemoveGrants(name)
		return oops.In("plugin").With("plugin", name).New("plugin already loaded")
	}
	m.plugins[name] = &record{
		manifest: d.Manifest,
		dir:      d.Dir,
		unit:     unit,
		state:    StateLoaded,
	}
	m.mu.Unlock()

	m.log.Info("loaded plugin",
		"plugin", name,
		"type", d.Manifest.Type,
		"version", d.Manifest.Version)

	return nil
}

// Install loads a unit built in-process, without a plugins directory.
// The unit gets an unrestricted hook grant. Intended for embedded hosts
// and tests.
func (m *Manager) Install(unit quill.Unit) error {
	info := unit.Info()
	if info.Name == "" || !namePattern.MatchString(info.Name) {
		return oops.In("plugin").With("plugin", info.Name).New("invalid unit name")
	}

	if err := m.enforcer.SetGrants(info.Name, []string{"**"}); err != nil {
		return oops.In("plugin").With("plugin", info.Name).Wrapf(err, "set grants")
	}

	m.mu.Lock()
	if _, exists := m.plugins[info.Name]; exists {
		m.mu.Unlock()
		return oops.In("plugin").With("plugin", info.Name).New("plugin already loaded")
	}
	m.plugins[info.Name] = &record{
		manifest: &Manifest{
			Name:        info.Name,
			Version:     info.Version,
			Type:        TypeNative,
			Description: info.Description,
			Author:      info.Author,
			Hooks:       []string{"**"},
		},
		unit:  unit,
		state: StateLoaded,
	}
	m.mu.Unlock()

	m.log.Info("installed plugin", "plugin", info.Name, "version", info.Version)
	return nil
}

// Activate moves a plugin from Loaded or Inactive to Active. The
// unit's settings are validated against its ConfigSchema when it
// publishes one, the unit's Activate runs with the plugin's Host
// facade, and on_activate is dispatched once the plugin is Active.
// A failed activation unregisters any handlers the unit managed to
// bind and leaves the previous state.
func (m *Manager) Activate(ctx context.Context, name string) error {
	m.mu.Lock()

	rec, ok := m.plugins[name]
	if !ok {
		m.mu.Unlock()
		return ErrPluginNotFound(name)
	}
	if rec.busy || !rec.state.canActivate() {
		state := rec.state
		m.mu.Unlock()
		return ErrActivationState(name, "activate", state)
	}
	rec.busy = true

	host := &hostContext{
		plugin:   name,
		registry: m.registry,
		enforcer: m.enforcer,
		settings: m.settingsFor(rec.manifest),
		log:      m.log.With("plugin", name),
	}
	version := rec.manifest.Version
	m.mu.Unlock()

	if cs, ok := rec.unit.(quill.ConfigSchemer); ok {
		if err := ValidateSettings(cs.ConfigSchema(), host.settings.All()); err != nil {
			m.clearBusy(rec)
			return ErrSettingsInvalid(name, err)
		}
	}

	if err := rec.unit.Activate(ctx, host); err != nil {
		m.registry.UnregisterAll(name)
		m.clearBusy(rec)
		return oops.In("plugin").With("plugin", name).Wrapf(err, "activate plugin")
	}

	m.mu.Lock()
	rec.state = StateActive
	rec.host = host
	rec.busy = false
	m.mu.Unlock()

	m.log.Info("activated plugin", "plugin", name, "version", version)
	m.dispatchLifecycle(ctx, quill.HookActivate, name, version)

	return nil
}

// clearBusy releases a record's lifecycle guard without changing state.
func (m *Manager) clearBusy(rec *record) {
	m.mu.Lock()
	rec.busy = false
	m.mu.Unlock()
}

// Deactivate moves an Active plugin to Inactive. on_deactivate is
// dispatched while the plugin's handlers are still bound, then the
// unit's Deactivate runs, and finally every handler the plugin owns is
// unregistered regardless of what the unit did.
func (m *Manager) Deactivate(ctx context.Context, name string) error {
	m.mu.Lock()

	rec, ok := m.plugins[name]
	if !ok {
		m.mu.Unlock()
		return ErrPluginNotFound(name)
	}
	if rec.busy || !rec.state.canDeactivate() {
		state := rec.state
		m.mu.Unlock()
		return ErrActivationState(name, "deactivate", state)
	}
	rec.busy = true

	host := rec.host
	version := rec.manifest.Version
	m.mu.Unlock()

	m.dispatchLifecycle(ctx, quill.HookDeactivate, name, version)

	deactivateErr := rec.unit.Deactivate(ctx, host)

	removed := m.registry.UnregisterAll(name)

	m.mu.Lock()
	rec.state = StateInactive
	rec.host = nil
	rec.busy = false
	m.mu.Unlock()

	if deactivateErr != nil {
		m.log.Warn("plugin deactivate returned error; handlers removed anyway",
			"plugin", name,
			"removed_handlers", removed,
			"error", deactivateErr)
		return oops.In("plugin").With("plugin", name).Wrapf(deactivateErr, "deactivate plugin")
	}

	m.log.Info("deactivated plugin", "plugin", name, "removed_handlers", removed)
	return nil
}

// Unload removes a Loaded or Inactive plugin from the manager and
// drops its grants. Active plugins must deactivate first.
func (m *Manager) Unload(_ context.Context, name string) error {
	m.mu.Lock()

	rec, ok := m.plugins[name]
	if !ok {
		m.mu.Unlock()
		return ErrPluginNotFound(name)
	}
	if rec.busy || !rec.state.canUnload() {
		state := rec.state
		m.mu.Unlock()
		return ErrActivationState(name, "unload", state)
	}

	delete(m.plugins, name)
	m.mu.Unlock()

	m.registry.UnregisterAll(name)
	m.enforcer.RemoveGrants(name)

	m.log.Info("unloaded plugin", "plugin", name)
	return nil
}

// ActivateAll activates every plugin in Loaded state, in name order.
// Failures are logged and skipped so one broken plugin cannot keep the
// rest down.
func (m *Manager) ActivateAll(ctx context.Context) {
	for _, name := range m.namesInState(StateLoaded) {
		if err := m.Activate(ctx, name); err != nil {
			m.log.Error("failed to activate plugin",
				"plugin", name,
				"error", err)
		}
	}
}

// DeactivateAll deactivates every Active plugin in reverse name order.
func (m *Manager) DeactivateAll(ctx context.Context) {
	names := m.namesInState(StateActive)
	for i := len(names) - 1; i >= 0; i-- {
		if err := m.Deactivate(ctx, names[i]); err != nil {
			m.log.Error("failed to deactivate plugin",
				"plugin", names[i],
				"error", err)
		}
	}
}

// List returns descriptors for all managed plugins, sorted by name.
func (m *Manager) List() []Descriptor {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Descriptor, 0, len(m.plugins))
	for name, rec := range m.plugins {
		out = append(out, Descriptor{
			Name:        name,
			Version:     rec.manifest.Version,
			Description: rec.manifest.Description,
			Author:      rec.manifest.Author,
			Type:        rec.manifest.Type,
			State:       rec.state,
			Dir:         rec.dir,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Get returns the descriptor for one plugin.
func (m *Manager) Get(name string) (Descriptor, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.plugins[name]
	if !ok {
		return Descriptor{}, false
	}
	return Descriptor{
		Name:        name,
		Version:     rec.manifest.Version,
		Description: rec.manifest.Description,
		Author:      rec.manifest.Author,
		Type:        rec.manifest.Type,
		State:       rec.state,
		Dir:         rec.dir,
	}, true
}

// Grants returns the hook grant patterns for one plugin.
func (m *Manager) Grants(name string) []string {
	return m.enforcer.Grants(name)
}

// Close deactivates every active plugin and drops all records.
func (m *Manager) Close(ctx context.Context) error {
	m.DeactivateAll(ctx)

	m.mu.Lock()
	names := make([]string, 0, len(m.plugins))
	for name := range m.plugins {
		names = append(names, name)
	}
	m.plugins = make(map[string]*record)
	m.mu.Unlock()

	for _, name := range names {
		m.enforcer.RemoveGrants(name)
	}
	return nil
}

// settingsFor builds the settings view for a manifest.
func (m *Manager) settingsFor(manifest *Manifest) quill.Settings {
	if m.settings != nil {
		return m.settings(manifest.Name, manifest.Settings)
	}
	return staticSettings(manifest.Settings)
}

// namesInState returns sorted names of plugins currently in state.
func (m *Manager) namesInState(state State) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var names []string
	for name, rec := range m.plugins {
		if rec.state == state {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// dispatchLifecycle fires a lifecycle hook for one plugin. Hosts with
// custom namespaces may not define lifecycle hooks; that is not an
// error.
func (m *Manager) dispatchLifecycle(ctx context.Context, hookName, name, version string) {
	res, err := m.registry.Dispatch(ctx, hookName, quill.PluginPayload{
		Name:    name,
		Version: version,
	})
	switch {
	case err != nil && hook.ErrorCode(err) == hook.CodeUnknownHook:
		m.log.Debug("lifecycle hook not defined", "hook", hookName)
	case err != nil:
		m.log.Warn("lifecycle hook dispatch failed",
			"hook", hookName,
			"plugin", name,
			"error", err)
	case res != nil && !res.OK():
		m.log.Warn("lifecycle hook handlers reported failures",
			"hook", hookName,
			"plugin", name,
			"failures", len(res.Failures()))
	}
}

// checkInfo verifies a native unit's Info against its manifest.
func checkInfo(m *Manifest, info quill.Info) error {
	if info.Name != m.Name {
		return ErrManifestMismatch(m.Name, "name", m.Name, info.Name)
	}
	if info.Version != "" && info.Version != m.Version {
		return ErrManifestMismatch(m.Name, "version", m.Version, info.Version)
	}
	return nil
}
