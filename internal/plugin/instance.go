package plugin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/moosync/exthost/internal/plugin/bridge"
	"github.com/moosync/exthost/internal/plugin/sandbox"
	"github.com/moosync/exthost/internal/plugin/security"
)

// PidKey is the config key carrying the host process id. It is only set for
// plugins that declare permissions.
const PidKey = "pid"

// Instance is one loaded plugin: its module, its bridge and the goroutine
// running its entry export.
type Instance struct {
	manifest *Manifest
	grants   *security.Grants
	bridge   *bridge.Bridge
	log      zerolog.Logger

	// mu serializes calls into the module.
	mu     sync.Mutex
	module sandbox.Module

	stateMu sync.RWMutex
	state   State
	err     error
	done    chan struct{}
}

// instanceDeps are the shared pieces every instance is bound to.
type instanceDeps struct {
	replies *bridge.ReplyTable
	outbox  *bridge.Outbox
	limits  security.Limits
	log     zerolog.Logger
}

// newInstance builds the module for m. The entry goroutine is not started.
func newInstance(ctx context.Context, m *Manifest, rt sandbox.Runtime, deps instanceDeps) (*Instance, error) {
	if m == nil {
		return nil, ErrNilManifest
	}
	log := deps.log.With().Str("package", m.Name).Logger()

	cfg := sandbox.Config{
		Name:      m.Name,
		EntryPath: m.EntryPath(),
		Limits:    deps.limits,
	}
	if m.Permissions != nil {
		grants, dropped := security.Resolve(m.Permissions.Paths, m.Permissions.Hosts)
		for _, p := range dropped {
			log.Warn().Str("path", p).Msg("dropping permission for missing path")
		}
		log.Info().Interface("paths", grants.Mounts()).Strs("hosts", grants.Hosts).Msg("resolved permissions")
		cfg.Grants = grants
		cfg.Values = map[string]string{PidKey: strconv.Itoa(os.Getpid())}
	}

	br := bridge.New(m.Name, deps.replies, deps.outbox, cfg.Grants, deps.limits, deps.log)
	module, err := rt.Build(ctx, cfg, br)
	if err != nil {
		br.Sockets.Close()
		return nil, fmt.Errorf("build %s: %w", m.Name, err)
	}

	return &Instance{
		manifest: m,
		grants:   cfg.Grants,
		bridge:   br,
		log:      log,
		module:   module,
		state:    StateLoaded,
		done:     make(chan struct{}),
	}, nil
}

// Name returns the package identity.
func (i *Instance) Name() string {
	return i.manifest.Name
}

// Manifest returns the plugin manifest.
func (i *Instance) Manifest() *Manifest {
	return i.manifest
}

// Grants returns the resolved permissions, nil when none were declared.
func (i *Instance) Grants() *security.Grants {
	return i.grants
}

// State returns the current lifecycle state.
func (i *Instance) State() State {
	i.stateMu.RLock()
	defer i.stateMu.RUnlock()
	return i.state
}

// Err returns the error that moved the instance into StateError.
func (i *Instance) Err() error {
	i.stateMu.RLock()
	defer i.stateMu.RUnlock()
	return i.err
}

// Done is closed when the entry goroutine finishes.
func (i *Instance) Done() <-chan struct{} {
	return i.done
}

func (i *Instance) setState(s State, err error) {
	i.stateMu.Lock()
	defer i.stateMu.Unlock()
	i.state = s
	i.err = err
}

// start runs the entry export on its own goroutine. Its result is ignored.
// A panic marks the instance errored instead of crashing the host.
func (i *Instance) start() {
	i.setState(StateRunning, nil)
	go i.runEntry()
}

func (i *Instance) runEntry() {
	defer close(i.done)
	defer func() {
		if r := recover(); r != nil {
			i.log.Error().Interface("panic", r).Msg("entry panicked, plugin is dead")
			i.setState(StateError, fmt.Errorf("entry panicked: %v", r))
		}
	}()

	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.module.FunctionExists(sandbox.EntryFunction) {
		i.log.Debug().Msg("no entry export")
		i.setState(StateExited, nil)
		return
	}

	i.log.Trace().Msg("calling entry")
	if _, err := i.module.Call(context.Background(), sandbox.EntryFunction, nil); err != nil {
		i.log.Error().Err(err).Msg("entry failed")
		i.setState(StateError, err)
		return
	}
	i.setState(StateExited, nil)
}

// Call invokes the export fn with a JSON argument. Calls are serialized with
// each other and with the entry export.
func (i *Instance) Call(ctx context.Context, fn string, args []byte) ([]byte, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	out, err := i.module.Call(ctx, fn, args)
	if err != nil {
		return nil, &CallError{Package: i.Name(), Function: fn, Err: err}
	}
	return out, nil
}

// Close releases the module and every socket the plugin opened. The entry
// goroutine is not joined; a module stuck in entry is abandoned when ctx ends.
func (i *Instance) Close(ctx context.Context) error {
	sockErr := i.bridge.Sockets.Close()

	errc := make(chan error, 1)
	go func() {
		errc <- i.module.Close(ctx)
	}()
	select {
	case err := <-errc:
		return errors.Join(sockErr, err)
	case <-ctx.Done():
		return errors.Join(sockErr, ctx.Err())
	}
}
