package bridge

import (
	"sync"

	"github.com/moosync/exthost/internal/protocol"
)

// ReplyTable correlates in-flight host calls with the replies the host sends
// back. Each entry is a single-slot sink keyed by correlation token.
type ReplyTable struct {
	mu      sync.Mutex
	entries map[string]chan protocol.HostReply
	closed  bool
}

// NewReplyTable creates an empty table.
func NewReplyTable() *ReplyTable {
	return &ReplyTable{entries: make(map[string]chan protocol.HostReply)}
}

// Register creates the sink for token. The caller owns removal.
func (t *ReplyTable) Register(token string) (<-chan protocol.HostReply, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrClosed
	}
	ch := make(chan protocol.HostReply, 1)
	t.entries[token] = ch
	return ch, nil
}

// Deliver forwards reply to the call waiting on its channel token. It reports
// false when nobody is waiting. The entry is left for the waiting call to
// remove; a second reply for the same token is dropped.
func (t *ReplyTable) Deliver(reply protocol.HostReply) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch, ok := t.entries[reply.Channel]
	if !ok {
		return false
	}
	select {
	case ch <- reply:
		return true
	default:
		return false
	}
}

// Remove drops the entry for token.
func (t *ReplyTable) Remove(token string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, token)
}

// Len returns the number of in-flight calls.
func (t *ReplyTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Close fails every waiting call and refuses new registrations.
func (t *ReplyTable) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	for token, ch := range t.entries {
		close(ch)
		delete(t.entries, token)
	}
}
