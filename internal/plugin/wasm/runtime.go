// Package wasm runs plugins compiled to WebAssembly through Extism.
//
// Every module gets WASI, the grants of its manifest, and the five bridge
// functions in the default Extism user namespace.
package wasm

import (
	"context"
	"fmt"
	"sync"

	extism "github.com/extism/go-sdk"
	"github.com/rs/zerolog"
	"github.com/tetratelabs/wazero"

	"github.com/moosync/exthost/internal/plugin/sandbox"
)

// Extension is the entry file extension handled by this runtime.
const Extension = ".wasm"

// Runtime builds Extism plugins.
type Runtime struct {
	cacheDir string
	log      zerolog.Logger

	mu    sync.Mutex
	cache wazero.CompilationCache
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithCacheDir persists compiled modules under dir.
func WithCacheDir(dir string) Option {
	return func(r *Runtime) { r.cacheDir = dir }
}

// WithLogger sets the logger for plugin output and host function failures.
func WithLogger(log zerolog.Logger) Option {
	return func(r *Runtime) { r.log = log }
}

// NewRuntime creates a wasm runtime.
func NewRuntime(opts ...Option) *Runtime {
	r := &Runtime{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Extension implements sandbox.Runtime.
func (r *Runtime) Extension() string { return Extension }

// Build implements sandbox.Runtime.
func (r *Runtime) Build(ctx context.Context, cfg sandbox.Config, host sandbox.HostFunctions) (sandbox.Module, error) {
	log := r.log.With().Str("package", cfg.Name).Logger()

	pluginCfg := extism.PluginConfig{EnableWasi: true}
	if rc, err := r.runtimeConfig(); err != nil {
		log.Warn().Err(err).Str("dir", r.cacheDir).Msg("compilation cache disabled")
	} else if rc != nil {
		pluginCfg.RuntimeConfig = rc
	}

	plugin, err := extism.NewPlugin(ctx, buildManifest(cfg), pluginCfg, hostFunctions(host, log))
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", cfg.Name, err)
	}
	plugin.SetLogger(func(level extism.LogLevel, msg string) {
		log.WithLevel(zerologLevel(level)).Str("source", "plugin").Msg(msg)
	})
	return &module{plugin: plugin}, nil
}

// Close releases the compilation cache.
func (r *Runtime) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cache == nil {
		return nil
	}
	err := r.cache.Close(ctx)
	r.cache = nil
	return err
}

func (r *Runtime) runtimeConfig() (wazero.RuntimeConfig, error) {
	if r.cacheDir == "" {
		return nil, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cache == nil {
		cache, err := wazero.NewCompilationCacheWithDir(r.cacheDir)
		if err != nil {
			return nil, err
		}
		r.cache = cache
	}
	return wazero.NewRuntimeConfig().WithCompilationCache(r.cache), nil
}

// buildManifest translates a sandbox config into an Extism manifest. Grants
// and the config values are only attached when permissions were declared.
func buildManifest(cfg sandbox.Config) extism.Manifest {
	m := extism.Manifest{
		Wasm: []extism.Wasm{extism.WasmFile{Path: cfg.EntryPath, Name: cfg.Name}},
	}
	if cfg.Grants != nil {
		m.AllowedHosts = append([]string(nil), cfg.Grants.Hosts...)
		m.AllowedPaths = cfg.Grants.Mounts()
	}
	if len(cfg.Values) > 0 {
		m.Config = make(map[string]string, len(cfg.Values))
		for k, v := range cfg.Values {
			m.Config[k] = v
		}
	}
	return m
}

func zerologLevel(level extism.LogLevel) zerolog.Level {
	switch level {
	case extism.LogLevelTrace:
		return zerolog.TraceLevel
	case extism.LogLevelDebug:
		return zerolog.DebugLevel
	case extism.LogLevelInfo:
		return zerolog.InfoLevel
	case extism.LogLevelWarn:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}

// module adapts an Extism plugin to sandbox.Module.
type module struct {
	plugin *extism.Plugin
}

func (m *module) Call(ctx context.Context, fn string, input []byte) ([]byte, error) {
	rc, out, err := m.plugin.CallWithContext(ctx, fn, input)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", fn, err)
	}
	if rc != 0 {
		return nil, fmt.Errorf("call %s: exit code %d", fn, rc)
	}
	return out, nil
}

func (m *module) FunctionExists(fn string) bool {
	return m.plugin.FunctionExists(fn)
}

func (m *module) Close(ctx context.Context) error {
	return m.plugin.Close(ctx)
}
