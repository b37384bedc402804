package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// writeBufferSize bounds the per-connection outbound queue. A recipient that
// stalls past this many pending messages starts losing them instead of
// blocking the sender.
const writeBufferSize = 100

// writeWait is the per-message write deadline on the underlying socket.
const writeWait = 5 * time.Second

// Connection wraps a WebSocket connection with a single writer goroutine.
// All writes are funneled through a bounded channel so concurrent senders
// never race on the socket and never block on a slow peer.
type Connection struct {
	conn      *websocket.Conn
	writeCh   chan []byte
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewConnection creates a connection wrapper and starts its writer goroutine.
func NewConnection(conn *websocket.Conn) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		conn:    conn,
		writeCh: make(chan []byte, writeBufferSize),
		ctx:     ctx,
		cancel:  cancel,
	}

	go c.writeLoop()

	return c
}

// writeLoop is the single goroutine allowed to touch the socket for writes.
func (c *Connection) writeLoop() {
	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// Send queues pre-serialized bytes for delivery. It never blocks: a closed
// connection returns ErrConnectionClosed and a full buffer returns
// ErrSendBufferFull immediately, so a stalled recipient cannot delay the
// caller.
func (c *Connection) Send(data []byte) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
		return ErrSendBufferFull
	}
}

// Close shuts the writer goroutine down and closes the socket. Safe to call
// more than once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}
