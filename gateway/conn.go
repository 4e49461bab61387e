package gateway

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// conn wraps one WebSocket connection. gorilla/websocket allows a single
// concurrent writer, and both the receive loop and the heartbeat monitor
// send, so writes are serialized here. Close is idempotent and safe to call
// from either goroutine.
type conn struct {
	ws          *websocket.Conn
	sendTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

func newConn(ws *websocket.Conn, sendTimeout time.Duration) *conn {
	return &conn{ws: ws, sendTimeout: sendTimeout, closed: make(chan struct{})}
}

// send writes v as one JSON text frame within the send timeout.
func (c *conn) send(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-c.closed:
		return ErrConnectionClosed
	default:
	}
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.sendTimeout)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := c.ws.WriteJSON(v); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// readFrame blocks until the next text frame arrives, or until deadline
// when it is non-zero.
func (c *conn) readFrame(deadline time.Time) (Frame, error) {
	if err := c.ws.SetReadDeadline(deadline); err != nil {
		return Frame{}, err
	}
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		return Frame{}, err
	}
	return ParseFrame(data)
}

// close tears down the transport. The first caller wins.
func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.ws.Close()
	})
}

// done is closed once close has been called.
func (c *conn) done() <-chan struct{} {
	return c.closed
}
