package plugin

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/moosync/exthost/internal/plugin/bridge"
	"github.com/moosync/exthost/internal/plugin/sandbox"
	"github.com/moosync/exthost/internal/plugin/security"
	"github.com/moosync/exthost/internal/protocol"
)

// System is the long-lived coordinator of the extension host. It owns the
// registry, the reply correlation table and the outbound host queue, and is
// passed by reference to everything that needs them.
type System struct {
	mu sync.RWMutex

	// Core components
	manager *Manager
	router  *Router
	replies *bridge.ReplyTable
	outbox  *bridge.Outbox

	log    zerolog.Logger
	closed bool
}

// SystemConfig configures the plugin system.
type SystemConfig struct {
	// ExtensionsDir is scanned for manifests.
	ExtensionsDir string

	// Runtimes build modules; one per entry file extension.
	Runtimes []sandbox.Runtime

	// Limits bound host calls and script calls.
	Limits security.Limits

	Logger zerolog.Logger
}

// DefaultSystemConfig returns a configuration with default limits and no
// runtimes.
func DefaultSystemConfig(extensionsDir string) SystemConfig {
	return SystemConfig{
		ExtensionsDir: extensionsDir,
		Limits:        security.DefaultLimits(),
		Logger:        zerolog.Nop(),
	}
}

// NewSystem creates a plugin system. No plugin is loaded until
// SpawnExtensions is called.
func NewSystem(config SystemConfig) *System {
	replies := bridge.NewReplyTable()
	outbox := bridge.NewOutbox()
	manager := NewManager(ManagerConfig{
		ExtensionsDir: config.ExtensionsDir,
		Runtimes:      config.Runtimes,
		Limits:        config.Limits,
		Logger:        config.Logger,
	}, replies, outbox)

	return &System{
		manager: manager,
		router:  NewRouter(manager, config.Logger),
		replies: replies,
		outbox:  outbox,
		log:     config.Logger.With().Str("component", "system").Logger(),
	}
}

// Manager returns the extension registry.
func (s *System) Manager() *Manager {
	return s.manager
}

// Router returns the command router.
func (s *System) Router() *Router {
	return s.router
}

// SpawnExtensions loads every newly installed plugin.
func (s *System) SpawnExtensions(ctx context.Context) error {
	if s.isClosed() {
		return ErrClosed
	}
	_, err := s.manager.SpawnExtensions(ctx)
	return err
}

// ExecuteCommand dispatches cmd; see Router.ExecuteCommand.
func (s *System) ExecuteCommand(ctx context.Context, cmd protocol.Command, reply chan<- protocol.Response) int {
	return s.router.ExecuteCommand(ctx, cmd, reply)
}

// Execute dispatches cmd and waits for its reply.
func (s *System) Execute(ctx context.Context, cmd protocol.Command) (protocol.Response, error) {
	if s.isClosed() {
		return nil, ErrClosed
	}
	return s.router.Execute(ctx, cmd)
}

// NextHostRequest blocks until a plugin-originated request is queued for the
// host application.
func (s *System) NextHostRequest(ctx context.Context) (protocol.HostRequest, error) {
	return s.outbox.Next(ctx)
}

// HandleMainCommandReply routes the host's reply to the plugin call waiting
// on its channel. A reply nobody waits for is dropped silently.
func (s *System) HandleMainCommandReply(reply protocol.HostReply) {
	if !s.replies.Deliver(reply) {
		s.log.Trace().Str("channel", reply.Channel).Str("type", reply.Type).Msg("no waiting call for reply")
	}
}

// PendingReplies returns the number of host calls awaiting a reply.
func (s *System) PendingReplies() int {
	return s.replies.Len()
}

func (s *System) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// Close shuts the outbound queue, wakes every waiting host call and closes
// every loaded module.
func (s *System) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.outbox.Close()
	s.replies.Close()

	if err := s.manager.CloseAll(ctx); err != nil {
		return fmt.Errorf("failed to close plugins: %w", err)
	}
	s.log.Info().Msg("plugin system closed")
	return nil
}

// IsClosedErr reports whether err means the system or its queues shut down.
func IsClosedErr(err error) bool {
	return errors.Is(err, ErrClosed) || errors.Is(err, bridge.ErrClosed)
}
