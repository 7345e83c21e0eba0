// Package app wires the extension host together: configuration, the
// preference store, the plugin runtimes and the plugin system, plus the
// host-side handler that answers plugin requests.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/moosync/exthost/internal/config"
	"github.com/moosync/exthost/internal/plugin"
	"github.com/moosync/exthost/internal/plugin/lua"
	"github.com/moosync/exthost/internal/plugin/sandbox"
	"github.com/moosync/exthost/internal/plugin/wasm"
	"github.com/moosync/exthost/internal/plugin/watch"
	"github.com/moosync/exthost/internal/store"
)

// Application owns every long-lived component of the extension host.
type Application struct {
	config *config.Config
	log    zerolog.Logger

	store   *store.Store
	wasm    *wasm.Runtime
	plugins *plugin.System
	host    *HostHandler

	watcher   *watch.Watcher
	stopWatch context.CancelFunc
	watchDone chan struct{}
	watchOpts []watch.Option

	running  atomic.Bool
	shutdown sync.Once
}

// Options configures the application.
type Options struct {
	// Config is the effective configuration. Required.
	Config *config.Config

	Logger zerolog.Logger

	// Runtimes replaces the runtimes built from Config when non-nil.
	Runtimes []sandbox.Runtime

	// WatchOptions are passed to the extensions directory watcher.
	WatchOptions []watch.Option
}

// New creates an Application. Nothing runs until Run.
func New(opts Options) (*Application, error) {
	if opts.Config == nil {
		return nil, ErrNoConfig
	}
	app := &Application{
		config:    opts.Config,
		log:       opts.Logger,
		watchOpts: opts.WatchOptions,
	}
	if err := app.bootstrap(opts.Runtimes); err != nil {
		return nil, err
	}
	return app, nil
}

// bootstrap initializes all components in dependency order.
func (app *Application) bootstrap(runtimes []sandbox.Runtime) error {
	cfg := app.config

	// 1. Preference store
	st, err := store.New(cfg.DatabasePath)
	if err != nil {
		return &InitError{Component: "store", Err: err}
	}
	app.store = st

	// 2. Runtimes
	if runtimes == nil {
		app.wasm = wasm.NewRuntime(
			wasm.WithCacheDir(cfg.CacheDir),
			wasm.WithLogger(app.log),
		)
		runtimes = []sandbox.Runtime{app.wasm}
		if cfg.EnableLua {
			runtimes = append(runtimes, lua.NewRuntime(app.log))
		}
	}

	// 3. Plugin system
	app.plugins = plugin.NewSystem(plugin.SystemConfig{
		ExtensionsDir: cfg.ExtensionsDir,
		Runtimes:      runtimes,
		Limits:        cfg.Limits(),
		Logger:        app.log,
	})

	// 4. Host side
	app.host = NewHostHandler(st, app.log)
	return nil
}

// Start spawns every installed extension and begins answering their host
// requests in the background. Spawn failures of single extensions are
// logged; they do not stop the host.
func (app *Application) Start(ctx context.Context) error {
	if !app.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	go func() {
		if err := app.host.Serve(context.WithoutCancel(ctx), app.plugins); err != nil {
			app.log.Error().Err(err).Msg("host request loop stopped")
		}
	}()

	if err := app.plugins.SpawnExtensions(ctx); err != nil {
		app.log.Warn().Err(err).Msg("some extensions failed to load")
	}
	if app.config.WatchExtensions {
		app.startWatcher(context.WithoutCancel(ctx))
	}
	app.log.Info().
		Int("count", app.plugins.Manager().Count()).
		Str("dir", app.config.ExtensionsDir).
		Msg("extension host started")
	return nil
}

// startWatcher loads extensions installed after Start. A directory that
// cannot be watched only costs the hot reload.
func (app *Application) startWatcher(ctx context.Context) {
	opts := append([]watch.Option{watch.WithLogger(app.log)}, app.watchOpts...)
	w, err := watch.New(app.config.ExtensionsDir, func(ctx context.Context) {
		if err := app.plugins.FindNewExtensions(ctx); err != nil {
			app.log.Warn().Err(err).Msg("rescan extensions")
		}
	}, opts...)
	if err != nil {
		app.log.Warn().Err(err).Str("dir", app.config.ExtensionsDir).Msg("extensions directory not watched")
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	app.watcher = w
	app.stopWatch = cancel
	app.watchDone = make(chan struct{})
	go func() {
		defer close(app.watchDone)
		if err := w.Run(ctx); err != nil && !errors.Is(err, watch.ErrClosed) && !errors.Is(err, context.Canceled) {
			app.log.Error().Err(err).Msg("extensions watcher stopped")
		}
	}()
}

// Run starts the application and blocks until ctx is done, then shuts down.
func (app *Application) Run(ctx context.Context) error {
	if err := app.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return app.Shutdown(context.WithoutCancel(ctx))
}

// Shutdown stops the watcher, then closes the plugin system, the runtimes and
// the store. Safe to call more than once.
func (app *Application) Shutdown(ctx context.Context) error {
	var errs []error
	app.shutdown.Do(func() {
		if app.watcher != nil {
			app.stopWatch()
			if err := app.watcher.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close watcher: %w", err))
			}
			<-app.watchDone
		}
		if err := app.plugins.Close(ctx); err != nil {
			errs = append(errs, err)
		}
		if app.wasm != nil {
			if err := app.wasm.Close(ctx); err != nil {
				errs = append(errs, fmt.Errorf("close wasm runtime: %w", err))
			}
		}
		if err := app.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
		app.running.Store(false)
		app.log.Info().Msg("extension host stopped")
	})
	return errors.Join(errs...)
}

// IsRunning reports whether Start has been called and Shutdown has not.
func (app *Application) IsRunning() bool {
	return app.running.Load()
}

// SetNotifier forwards host events to n.
func (app *Application) SetNotifier(n Notifier) {
	app.host.SetNotifier(n)
}

// Plugins returns the plugin system.
func (app *Application) Plugins() *plugin.System {
	return app.plugins
}

// Store returns the preference store.
func (app *Application) Store() *store.Store {
	return app.store
}

// Config returns the configuration.
func (app *Application) Config() *config.Config {
	return app.config
}
