package wsserver

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the session.Transport of one WebSocket connection. Every Send is
// one text message.
type Conn struct {
	id           uint32
	ws           *websocket.Conn
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func newConn(id uint32, ws *websocket.Conn, writeTimeout time.Duration) *Conn {
	return &Conn{id: id, ws: ws, writeTimeout: writeTimeout}
}

// Send writes frame as a text message. gorilla/websocket allows one
// concurrent writer, so writes are serialized.
func (c *Conn) Send(frame string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.ws.WriteMessage(websocket.TextMessage, []byte(frame))
}

// Close sends a close message, best effort, and closes the connection.
// Later calls return the result of the first.
func (c *Conn) Close() error {
	return c.closeWith(websocket.CloseNormalClosure)
}

func (c *Conn) closeWith(code int) error {
	c.closeOnce.Do(func() {
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(code, ""),
			time.Now().Add(time.Second))
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}
