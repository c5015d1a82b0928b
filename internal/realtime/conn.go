package realtime

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrConnClosed is returned by Push once a connection was closed or replaced.
var ErrConnClosed = errors.New("realtime: connection closed")

// Conn is the handle the registry stores for a live connection.
// Only the session that created it writes to the transport; everyone else
// hands frames over through Push.
type Conn struct {
	id   string
	send chan []byte
	done chan struct{}
	once sync.Once
}

// NewConn creates a handle with an outbound buffer of the given size.
func NewConn(buffer int) *Conn {
	if buffer <= 0 {
		buffer = 1
	}
	return &Conn{
		id:   uuid.NewString(),
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

func (c *Conn) ID() string { return c.id }

// Push queues frame for the owner to write. It blocks while the buffer is
// full until ctx ends or the connection is closed.
func (c *Conn) Push(ctx context.Context, frame []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}

	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return ErrConnClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Outbound is drained by the owning session's writer.
func (c *Conn) Outbound() <-chan []byte { return c.send }

// Done is closed when the handle is invalidated.
func (c *Conn) Done() <-chan struct{} { return c.done }

// Invalidate marks the handle closed. Idempotent; the owner reacts by
// closing its transport.
func (c *Conn) Invalidate() {
	c.once.Do(func() { close(c.done) })
}

func (c *Conn) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
