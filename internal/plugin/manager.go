package plugin

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/moosync/exthost/internal/plugin/bridge"
	"github.com/moosync/exthost/internal/plugin/sandbox"
	"github.com/moosync/exthost/internal/plugin/security"
	"github.com/moosync/exthost/internal/protocol"
)

// Manager is the extension registry: the table of loaded instances keyed by
// package identity.
type Manager struct {
	mu sync.RWMutex

	// Loader for plugin discovery
	loader *Loader

	// Runtimes by entry file extension
	runtimes map[string]sandbox.Runtime

	// Loaded plugins by name
	plugins map[string]*Instance

	// Plugin load order (for deterministic iteration)
	loadOrder []string

	// Removed plugins whose modules are still open until CloseAll
	retired []*Instance

	deps instanceDeps
	log  zerolog.Logger
}

// ManagerConfig configures the registry.
type ManagerConfig struct {
	// ExtensionsDir is scanned for manifests.
	ExtensionsDir string

	// Runtimes build modules; one per entry file extension.
	Runtimes []sandbox.Runtime

	Limits security.Limits
	Logger zerolog.Logger
}

// NewManager creates a registry bound to the shared reply table and outbox.
func NewManager(config ManagerConfig, replies *bridge.ReplyTable, outbox *bridge.Outbox) *Manager {
	log := config.Logger.With().Str("component", "registry").Logger()

	runtimes := make(map[string]sandbox.Runtime, len(config.Runtimes))
	exts := make([]string, 0, len(config.Runtimes))
	for _, rt := range config.Runtimes {
		ext := rt.Extension()
		runtimes[ext] = rt
		exts = append(exts, ext)
	}

	return &Manager{
		loader:   NewLoader(config.ExtensionsDir, WithExtensions(exts...), WithLoaderLogger(log)),
		runtimes: runtimes,
		plugins:  make(map[string]*Instance),
		deps: instanceDeps{
			replies: replies,
			outbox:  outbox,
			limits:  config.Limits,
			log:     config.Logger,
		},
		log: log,
	}
}

// Loader returns the manifest loader.
func (m *Manager) Loader() *Loader {
	return m.loader
}

// IsLoaded reports whether a plugin named name is in the table.
func (m *Manager) IsLoaded(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.plugins[name]
	return ok
}

// SpawnExtensions discovers new plugins, builds and starts them, and then
// announces the change on the outbox. A plugin that fails to build is
// skipped; the returned error joins every such failure.
func (m *Manager) SpawnExtensions(ctx context.Context) ([]string, error) {
	manifests := m.loader.Discover(m.IsLoaded)

	var spawned []string
	var spawnErrors []error
	for _, manifest := range manifests {
		inst, err := m.spawn(ctx, manifest)
		if err != nil {
			m.log.Error().Err(err).Str("package", manifest.Name).Msg("failed to spawn extension")
			spawnErrors = append(spawnErrors, err)
			continue
		}
		spawned = append(spawned, inst.Name())
	}

	update := protocol.ExtensionsUpdated()
	update.Channel = uuid.NewString()
	if err := m.deps.outbox.Push(update); err != nil {
		m.log.Error().Err(err).Msg("failed to send extensions update")
	}

	if len(spawnErrors) > 0 {
		return spawned, fmt.Errorf("failed to spawn %d extensions: %w", len(spawnErrors), errors.Join(spawnErrors...))
	}
	return spawned, nil
}

func (m *Manager) spawn(ctx context.Context, manifest *Manifest) (*Instance, error) {
	ext := filepath.Ext(manifest.EntryPath())
	rt, ok := m.runtimes[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoRuntime, manifest.EntryPath())
	}

	inst, err := newInstance(ctx, manifest, rt, m.deps)
	if err != nil {
		return nil, err
	}

	// Register the plugin (brief lock)
	m.mu.Lock()
	if _, exists := m.plugins[manifest.Name]; exists {
		m.mu.Unlock()
		inst.Close(ctx)
		return nil, fmt.Errorf("plugin %q: %w", manifest.Name, ErrAlreadyLoaded)
	}
	m.plugins[manifest.Name] = inst
	m.loadOrder = append(m.loadOrder, manifest.Name)
	m.mu.Unlock()

	inst.start()
	m.log.Info().Str("package", manifest.Name).Str("version", manifest.Version).Str("entry", manifest.EntryPath()).Msg("spawned extension")
	return inst, nil
}

// GetExtensions returns every instance when name is "", otherwise the single
// instance named name, or nothing.
func (m *Manager) GetExtensions(name string) []*Instance {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if name == "" {
		all := make([]*Instance, 0, len(m.loadOrder))
		for _, n := range m.loadOrder {
			all = append(all, m.plugins[n])
		}
		return all
	}
	if inst, ok := m.plugins[name]; ok {
		return []*Instance{inst}
	}
	return nil
}

// Get returns a loaded plugin by name.
func (m *Manager) Get(name string) (*Instance, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.plugins[name]
	return inst, ok
}

// RemoveExtension drops name from the table. The plugin's entry goroutine is
// neither signalled nor joined, and its module stays open until CloseAll.
func (m *Manager) RemoveExtension(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	inst, ok := m.plugins[name]
	if !ok {
		return fmt.Errorf("plugin %q: %w", name, ErrPluginNotFound)
	}
	delete(m.plugins, name)
	m.retired = append(m.retired, inst)
	m.removeFromLoadOrder(name)
	m.log.Info().Str("package", name).Msg("removed extension")
	return nil
}

// removeFromLoadOrder removes a plugin from the load order slice.
// Must be called with lock held.
func (m *Manager) removeFromLoadOrder(name string) {
	for i, n := range m.loadOrder {
		if n == name {
			m.loadOrder = append(m.loadOrder[:i], m.loadOrder[i+1:]...)
			return
		}
	}
}

// Count returns the number of loaded plugins.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.plugins)
}

// List returns the names of all loaded plugins in load order.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.loadOrder...)
}

// CloseAll closes every loaded module in reverse load order, then the
// modules of removed plugins, and empties the table.
func (m *Manager) CloseAll(ctx context.Context) error {
	m.mu.Lock()
	instances := make([]*Instance, 0, len(m.loadOrder)+len(m.retired))
	for i := len(m.loadOrder) - 1; i >= 0; i-- {
		instances = append(instances, m.plugins[m.loadOrder[i]])
	}
	instances = append(instances, m.retired...)
	m.plugins = make(map[string]*Instance)
	m.loadOrder = nil
	m.retired = nil
	m.mu.Unlock()

	var closeErrors []error
	for _, inst := range instances {
		if err := inst.Close(ctx); err != nil {
			closeErrors = append(closeErrors, fmt.Errorf("%s: %w", inst.Name(), err))
		}
	}
	if len(closeErrors) > 0 {
		return fmt.Errorf("failed to close %d plugins: %w", len(closeErrors), errors.Join(closeErrors...))
	}
	return nil
}
