package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/moosync/exthost/internal/protocol"
)

// Commander implements send_main_command for one plugin.
type Commander struct {
	name    string
	replies *ReplyTable
	outbox  *Outbox
	timeout time.Duration
	log     zerolog.Logger
}

// NewCommander binds a plugin name to the shared reply table and outbox.
// A zero timeout waits forever.
func NewCommander(name string, replies *ReplyTable, outbox *Outbox, timeout time.Duration, log zerolog.Logger) *Commander {
	return &Commander{
		name:    name,
		replies: replies,
		outbox:  outbox,
		timeout: timeout,
		log:     log,
	}
}

// SendMainCommand maps command into a host request, queues it and parks the
// caller until the host replies. It returns the reply data, "null" when the
// reply carried none.
func (c *Commander) SendMainCommand(ctx context.Context, command []byte) ([]byte, error) {
	req, err := protocol.MapMainCommand(c.name, command)
	if err != nil {
		c.log.Error().Err(err).Bytes("command", command).Msg("failed to map command")
		return nil, fmt.Errorf("%w: %w", ErrMapCommand, err)
	}

	req.Channel = uuid.NewString()
	ch, err := c.replies.Register(req.Channel)
	if err != nil {
		return nil, err
	}
	defer c.replies.Remove(req.Channel)

	c.log.Trace().Str("channel", req.Channel).Str("type", req.Type).Msg("sending request")
	if err := c.outbox.Push(req); err != nil {
		return nil, fmt.Errorf("send %s: %w", req.Type, err)
	}

	var timeout <-chan time.Time
	if c.timeout > 0 {
		timer := time.NewTimer(c.timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case reply, ok := <-ch:
		if !ok {
			return nil, fmt.Errorf("await %s: %w", req.Type, ErrClosed)
		}
		c.log.Debug().Str("channel", req.Channel).Str("type", req.Type).Msg("got response")
		if len(reply.Data) == 0 {
			return []byte("null"), nil
		}
		return reply.Data, nil
	case <-timeout:
		c.log.Error().Str("channel", req.Channel).Str("type", req.Type).Dur("timeout", c.timeout).Msg("host did not reply")
		return nil, fmt.Errorf("await %s: %w", req.Type, ErrHostCallTimeout)
	case <-ctx.Done():
		return nil, fmt.Errorf("await %s: %w", req.Type, ctx.Err())
	}
}
