package lua

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	lua "github.com/yuin/gopher-lua"

	"github.com/moosync/exthost/internal/plugin/sandbox"
)

// Extension is the entry file extension handled by this runtime.
const Extension = ".lua"

// ConfigModule is the global table carrying the plugin's config values.
const ConfigModule = "config"

// Runtime builds Lua plugins.
type Runtime struct {
	log zerolog.Logger
}

// NewRuntime creates a Lua runtime.
func NewRuntime(log zerolog.Logger) *Runtime {
	return &Runtime{log: log}
}

// Extension implements sandbox.Runtime.
func (r *Runtime) Extension() string { return Extension }

// Build implements sandbox.Runtime. The entry file is executed once to define
// the plugin's globals.
func (r *Runtime) Build(_ context.Context, cfg sandbox.Config, host sandbox.HostFunctions) (sandbox.Module, error) {
	state := NewState(
		WithCallTimeout(cfg.Limits.ScriptTimeout),
		WithLogger(r.log.With().Str("package", cfg.Name).Logger()),
	)
	state.RegisterModule(HostModule, hostFuncs(host))
	state.SetStrings(ConfigModule, cfg.Values)

	if err := state.DoFile(cfg.EntryPath); err != nil {
		state.Close()
		return nil, fmt.Errorf("build %s: %w", cfg.Name, err)
	}
	return &module{state: state}, nil
}

// module adapts a State to sandbox.Module. Inputs and outputs are JSON.
type module struct {
	state *State
}

func (m *module) Call(ctx context.Context, fn string, input []byte) ([]byte, error) {
	var args []lua.LValue
	if len(input) > 0 {
		arg, err := DecodeJSON(m.state.L, input)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
	}

	var results []lua.LValue
	var err error
	if fn == sandbox.EntryFunction {
		results, err = m.state.Run(ctx, fn, args...)
	} else {
		results, err = m.state.Call(ctx, fn, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", fn, err)
	}
	if len(results) == 0 {
		return []byte("null"), nil
	}
	return EncodeJSON(results[0])
}

func (m *module) FunctionExists(fn string) bool {
	return m.state.HasFunction(fn)
}

func (m *module) Close(context.Context) error {
	return m.state.Close()
}
