package hub

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"supportchat-ws/internal/domain"
)

var ErrSocketClosed = errors.New("hub: socket closed")

// Socket is the transport side of a connection. The delivery layer wraps
// the real WebSocket in this; tests substitute fakes.
type Socket interface {
	WriteText(data []byte) error
	Ping(deadline time.Time) error
	Close() error
}

// connection is one accepted WebSocket. Write access to the socket is
// serialized by its own mutex; all other fields are guarded by the
// registry lock.
type connection struct {
	id       string
	identity domain.Identity
	sock     Socket

	convs    map[string]struct{}
	lastSeen time.Time
	alive    bool

	writeMu sync.Mutex
	closed  bool
}

func (c *connection) writeFrame(frame domain.ServerFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed {
		return ErrSocketClosed
	}
	return c.sock.WriteText(data)
}

func (c *connection) ping(deadline time.Time) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed {
		return ErrSocketClosed
	}
	return c.sock.Ping(deadline)
}

// markClosed flips the connection to its terminal state and closes the
// socket. Idempotent.
func (c *connection) markClosed() {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	_ = c.sock.Close()
}

func (c *connection) isClosed() bool {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.closed
}
