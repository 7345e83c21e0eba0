package bridge

import (
	"context"
	"sync"

	"github.com/moosync/exthost/internal/protocol"
)

// Outbox is the unbounded queue carrying plugin requests to the host
// application. Push never blocks.
type Outbox struct {
	mu     sync.Mutex
	queue  []protocol.HostRequest
	notify chan struct{}
	closed bool
}

// NewOutbox creates an empty outbox.
func NewOutbox() *Outbox {
	return &Outbox{notify: make(chan struct{}, 1)}
}

// Push appends req to the queue.
func (o *Outbox) Push(req protocol.HostRequest) error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	o.queue = append(o.queue, req)
	select {
	case o.notify <- struct{}{}:
	default:
	}
	o.mu.Unlock()
	return nil
}

// Next blocks until a request is available and removes it from the queue.
// Once the outbox is closed and drained it returns ErrClosed.
func (o *Outbox) Next(ctx context.Context) (protocol.HostRequest, error) {
	for {
		o.mu.Lock()
		if len(o.queue) > 0 {
			req := o.queue[0]
			o.queue[0] = protocol.HostRequest{}
			o.queue = o.queue[1:]
			o.mu.Unlock()
			return req, nil
		}
		closed := o.closed
		o.mu.Unlock()
		if closed {
			return protocol.HostRequest{}, ErrClosed
		}

		select {
		case <-o.notify:
		case <-ctx.Done():
			return protocol.HostRequest{}, ctx.Err()
		}
	}
}

// Len returns the number of queued requests.
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queue)
}

// Close stops accepting requests. Queued requests can still be drained.
func (o *Outbox) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	close(o.notify)
	o.mu.Unlock()
}
