package gateway

import (
	"sync"

	"github.com/gorilla/websocket"
)

// clientConn wraps one client WebSocket connection with a write lock and
// the one-terminal-frame policy: a connection carries either one terminal
// success event or one error frame, never both and never more than one.
type clientConn struct {
	conn *websocket.Conn

	mu       sync.Mutex
	terminal bool
}

func newClientConn(conn *websocket.Conn) *clientConn {
	return &clientConn{conn: conn}
}

// writeJSON writes a non-terminal JSON event. It is a no-op once a
// terminal frame has been sent.
func (c *clientConn) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.terminal {
		return nil
	}
	return c.conn.WriteJSON(v)
}

// writeBinary writes a binary frame.
func (c *clientConn) writeBinary(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.terminal {
		return nil
	}
	return c.conn.WriteMessage(websocket.BinaryMessage, frame)
}

// writeTerminal writes the connection's single terminal frame. Later calls
// are absorbed, whichever side loses the race.
func (c *clientConn) writeTerminal(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.terminal {
		return nil
	}
	c.terminal = true
	return c.conn.WriteJSON(v)
}

// close closes the underlying connection.
func (c *clientConn) close() error {
	return c.conn.Close()
}
