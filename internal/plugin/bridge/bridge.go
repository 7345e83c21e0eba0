// Package bridge implements the capability bridge: the fixed set of host
// functions callable from inside a sandboxed plugin.
//
// Two isolated pieces of state back every bridge. The Commander routes
// send_main_command through the shared ReplyTable and Outbox; Sockets owns the
// plugin's socket handles. Neither is shared between plugins.
package bridge

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/moosync/exthost/internal/plugin/security"
)

// Bridge is the set of host functions bound into one plugin.
type Bridge struct {
	*Commander
	*Sockets

	now func() time.Time
}

// New builds the bridge for plugin name.
func New(name string, replies *ReplyTable, outbox *Outbox, grants *security.Grants, limits security.Limits, log zerolog.Logger) *Bridge {
	log = log.With().Str("package", name).Logger()
	return &Bridge{
		Commander: NewCommander(name, replies, outbox, limits.HostCallTimeout, log),
		Sockets:   NewSockets(grants, log),
		now:       time.Now,
	}
}

// SystemTime returns whole seconds since the Unix epoch.
func (b *Bridge) SystemTime() uint64 {
	return uint64(b.now().Unix())
}
