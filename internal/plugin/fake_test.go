package plugin

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/moosync/exthost/internal/plugin/sandbox"
)

const fakeExt = ".fake"

type fakeFunc func(ctx context.Context, input []byte) ([]byte, error)

// fakeModule is a sandbox.Module whose exports are Go functions.
type fakeModule struct {
	mu     sync.Mutex
	cfg    sandbox.Config
	host   sandbox.HostFunctions
	funcs  map[string]fakeFunc
	calls  []string
	closed bool

	called chan string
}

func (m *fakeModule) Call(ctx context.Context, fn string, input []byte) ([]byte, error) {
	m.mu.Lock()
	f, ok := m.funcs[fn]
	m.calls = append(m.calls, fn)
	m.mu.Unlock()

	defer func() {
		select {
		case m.called <- fn:
		default:
		}
	}()
	if !ok {
		return nil, errors.New("unknown function " + fn)
	}
	return f(ctx, input)
}

func (m *fakeModule) FunctionExists(fn string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.funcs[fn]
	return ok
}

func (m *fakeModule) Close(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *fakeModule) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// fakeRuntime builds fakeModules. setup, when set, installs exports per
// package name.
type fakeRuntime struct {
	mu       sync.Mutex
	modules  map[string]*fakeModule
	buildErr map[string]error
	setup    func(name string, m *fakeModule)
}

func newFakeRuntime(setup func(name string, m *fakeModule)) *fakeRuntime {
	return &fakeRuntime{
		modules:  make(map[string]*fakeModule),
		buildErr: make(map[string]error),
		setup:    setup,
	}
}

func (r *fakeRuntime) Extension() string { return fakeExt }

func (r *fakeRuntime) Build(_ context.Context, cfg sandbox.Config, host sandbox.HostFunctions) (sandbox.Module, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.buildErr[cfg.Name]; err != nil {
		return nil, err
	}
	m := &fakeModule{
		cfg:    cfg,
		host:   host,
		funcs:  map[string]fakeFunc{},
		called: make(chan string, 64),
	}
	if r.setup != nil {
		r.setup(cfg.Name, m)
	}
	r.modules[cfg.Name] = m
	return m, nil
}

func (r *fakeRuntime) module(name string) *fakeModule {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.modules[name]
}

// writePlugin writes a manifest and an empty entry file into root/dir.
func writePlugin(t *testing.T, root, dir, manifest string) string {
	t.Helper()
	pluginDir := filepath.Join(root, dir)
	if err := os.MkdirAll(pluginDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(pluginDir, ManifestFile), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(pluginDir, "ext"+fakeExt), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	return pluginDir
}

func simpleManifest(name string) string {
	return `{
		"name": "` + name + `",
		"display_name": "Display ` + name + `",
		"version": "1.0.0",
		"icon": "icon.svg",
		"extension_entry": "ext` + fakeExt + `"
	}`
}
