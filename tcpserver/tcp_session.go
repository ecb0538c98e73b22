package tcpserver

import (
	"fmt"
	"net"
	"sync"
	"time"
)

// Conn is the session.Transport of one accepted TCP connection. Frames are
// written as is; the peer reassembles them on END markers.
type Conn struct {
	id           uint32
	conn         net.Conn
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func newConn(id uint32, c net.Conn, writeTimeout time.Duration) *Conn {
	return &Conn{id: id, conn: c, writeTimeout: writeTimeout}
}

// ID returns the id the server assigned to the connection.
func (c *Conn) ID() uint32 {
	return c.id
}

// Send writes one frame. Concurrent calls are serialized so frames never
// interleave on the wire.
//
// Parameters:
//   - frame: The frame, markers included
//
// Returns:
//   - An error if the write failed or timed out
func (c *Conn) Send(frame string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return fmt.Errorf("set write deadline: %w", err)
		}
	}

	_, err := c.conn.Write([]byte(frame))
	return err
}

// Close closes the connection. It is safe to call more than once; later
// calls return the result of the first.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
