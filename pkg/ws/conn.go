package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	readDeadline  = 60 * time.Second
	sendQueueSize = 256
)

// Connection wraps a WebSocket with a buffered outbound queue drained by a
// single writer goroutine, so frames queued by Send leave the socket in
// queueing order.
type Connection struct {
	conn   *websocket.Conn
	sendCh chan any
	mu     sync.Mutex
	closed bool
	logger zerolog.Logger
}

// NewConnection wraps an upgraded WebSocket connection.
func NewConnection(conn *websocket.Conn, logger zerolog.Logger) *Connection {
	return &Connection{
		conn:   conn,
		sendCh: make(chan any, sendQueueSize),
		logger: logger,
	}
}

// Send queues a frame for delivery.
func (c *Connection) Send(frame any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnectionClosed
	}

	select {
	case c.sendCh <- frame:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close stops accepting frames and closes the send queue; safe to call
// more than once. The write pump drains what is already queued (the
// best-effort error frame on protocol violations) and then closes the
// socket itself.
func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.sendCh)
}

// WritePump drains the send queue onto the socket. Run in its own
// goroutine; returns when the queue is closed or a write fails.
func (c *Connection) WritePump() {
	defer c.conn.Close()

	for frame := range c.sendCh {
		if err := c.conn.WriteJSON(frame); err != nil {
			c.logger.Warn().Err(err).Msg("write error")
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// ReadPump reads inbound messages and hands the raw JSON to handler.
// It returns when the peer disconnects or handler reports a fatal error,
// so a handler error terminates the session. Shutdown goes through Close
// rather than the raw socket: a handler that queued an error frame just
// before failing gets it flushed by the write pump first.
func (c *Connection) ReadPump(handler func(raw json.RawMessage) error) {
	defer c.Close()

	c.conn.SetReadDeadline(time.Now().Add(readDeadline))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Warn().Err(err).Msg("read error")
			}
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(readDeadline))

		if err := handler(raw); err != nil {
			c.logger.Warn().Err(err).Msg("message handler closed connection")
			return
		}
	}
}

var (
	ErrConnectionNotFound = &Error{Code: "connection_not_found", Message: "connection not found"}
	ErrConnectionClosed   = &Error{Code: "connection_closed", Message: "connection is closed"}
	ErrSendQueueFull      = &Error{Code: "send_queue_full", Message: "send queue is full"}
)

// Error is a transport-level failure surfaced by the hub or a connection.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}
