package plugin

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/moosync/exthost/internal/protocol"
)

// Router dispatches commands to the instances they address.
type Router struct {
	registry *Manager
	log      zerolog.Logger
}

// NewRouter creates a router over registry.
func NewRouter(registry *Manager, log zerolog.Logger) *Router {
	return &Router{
		registry: registry,
		log:      log.With().Str("component", "router").Logger(),
	}
}

// ExecuteCommand dispatches cmd to every matching instance, each on its own
// goroutine, and returns how many matched. It never blocks on reply.
//
// Delivery on reply:
//   - one match: exactly one response, the sanitized reply or Empty on failure
//   - several matches: one Empty right away; the plugin results are dropped
//   - no match: nothing is ever sent
//
// The no-match silence is long-standing behavior that callers rely on by
// checking the returned count; it is likely unintended.
func (r *Router) ExecuteCommand(ctx context.Context, cmd protocol.Command, reply chan<- protocol.Response) int {
	instances := r.registry.GetExtensions(cmd.Target())
	r.log.Debug().Str("command", cmd.Kind()).Str("target", cmd.Target()).Int("matched", len(instances)).Msg("executing command")

	switch len(instances) {
	case 0:
	case 1:
		inst := instances[0]
		go func() {
			reply <- r.dispatch(ctx, inst, cmd)
		}()
	default:
		// Broadcast calls outlive the caller.
		bg := context.WithoutCancel(ctx)
		for _, inst := range instances {
			go r.dispatch(bg, inst, cmd)
		}
		go func() {
			reply <- protocol.Empty{}
		}()
	}
	return len(instances)
}

// dispatch runs cmd on one instance and returns the sanitized response, or
// Empty on any failure.
func (r *Router) dispatch(ctx context.Context, inst *Instance, cmd protocol.Command) (resp protocol.Response) {
	log := r.log.With().Str("package", inst.Name()).Str("command", cmd.Kind()).Logger()
	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic", p).Msg("plugin call panicked")
			resp = protocol.Empty{}
		}
	}()

	fn, args, err := cmd.Call()
	if err != nil {
		log.Error().Err(err).Msg("cannot map command")
		return protocol.Empty{}
	}

	raw, err := inst.Call(ctx, fn, args)
	if err != nil {
		log.Error().Err(err).Msg("plugin call failed")
		return protocol.Empty{}
	}

	parsed, err := cmd.ParseResponse(raw)
	if err != nil {
		log.Warn().Err(err).Str("function", fn).Msg("unparseable plugin reply")
		return protocol.Empty{}
	}

	protocol.Sanitize(parsed, inst.Name())
	if log.Debug().Enabled() {
		if out, err := protocol.MarshalResponse(parsed); err == nil {
			log.Debug().RawJSON("response", out).Msg("plugin replied")
		}
	}
	return parsed
}

// Execute runs cmd and waits for its single reply. It returns ErrNoExtensions
// when nothing matched.
func (r *Router) Execute(ctx context.Context, cmd protocol.Command) (protocol.Response, error) {
	reply := make(chan protocol.Response, 1)
	if r.ExecuteCommand(ctx, cmd, reply) == 0 {
		return nil, fmt.Errorf("%w: %s %q", ErrNoExtensions, cmd.Kind(), cmd.Target())
	}
	select {
	case resp := <-reply:
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
