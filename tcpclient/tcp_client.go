// Package tcpclient provides an event-driven TCP transport for client.Engine.
// Connection outcomes and received frames are reported through the
// client.Callbacks the engine binds; nothing blocks the caller.
package tcpclient

import (
	"bufio"
	"errors"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/cyberinferno/gamenet/client"
	"github.com/cyberinferno/gamenet/logger"
	"github.com/cyberinferno/gamenet/protocol"
)

// ConnectionState represents the current state of the TCP connection.
type ConnectionState int

const (
	Disconnected ConnectionState = iota // Not connected and not attempting to connect
	Connecting                          // Dial in progress
	Connected                           // Successfully connected
	Closed                              // Client has been closed and will not connect again
)

// String returns a human-readable name for the connection state.
func (cs ConnectionState) String() string {
	switch cs {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Connected:
		return "Connected"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

var (
	ErrNotConnected = errors.New("tcpclient: not connected")
	ErrClosed       = errors.New("tcpclient: client is closed")
)

// Config holds configuration for the TCP client.
type Config struct {
	// ConnectionTimeout is the max duration for establishing a new connection.
	ConnectionTimeout time.Duration
	// WriteTimeout is the max duration for a single write; 0 means no timeout.
	WriteTimeout time.Duration
	// ReadTimeout is the max duration to wait for the next frame; 0 means no timeout.
	ReadTimeout time.Duration
	// MaxFrameSize bounds a single received frame.
	MaxFrameSize int
}

// DefaultConfig returns a Config with default values.
//
// Returns:
//   - A Config with defaults: ConnectionTimeout 10s, WriteTimeout 10s,
//     ReadTimeout 0, MaxFrameSize 64KiB.
func DefaultConfig() Config {
	return Config{
		ConnectionTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		MaxFrameSize:      64 * 1024,
	}
}

// Client is a client.Transport over TCP. Connect dials in a goroutine; the
// read loop reassembles frames and reports each one, markers included.
// When the connection ends for any reason ConnectionLost is reported once.
// It is safe for concurrent use.
type Client struct {
	config Config
	log    logger.Logger

	mu    sync.RWMutex
	cb    client.Callbacks
	conn  net.Conn
	state ConnectionState

	writeMu sync.Mutex
	wg      sync.WaitGroup
}

var _ client.Transport = (*Client)(nil)

// New creates a disconnected client.
//
// Parameters:
//   - config: Connection settings (e.g. from DefaultConfig)
//   - log: Logger
//
// Returns:
//   - A new *Client; call Close when done to release resources.
func New(config Config, log logger.Logger) *Client {
	return &Client{
		config: config,
		log:    log.With(logger.Field{Key: "component", Value: "tcpclient"}),
		state:  Disconnected,
	}
}

// Bind implements client.Transport.
func (c *Client) Bind(cb client.Callbacks) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cb = cb
}

// Connect implements client.Transport. The dial runs in a goroutine and its
// outcome is reported through ConnectionSuccessful or ConnectionFailed. A
// call while connecting or connected is ignored.
func (c *Client) Connect(address string, port int) {
	c.mu.Lock()
	if c.state != Disconnected {
		state := c.state
		c.mu.Unlock()
		c.log.Warn("connect ignored", logger.Field{Key: "state", Value: state.String()})
		return
	}
	c.state = Connecting
	c.mu.Unlock()

	target := net.JoinHostPort(address, strconv.Itoa(port))

	c.wg.Add(1)
	go c.dial(target)
}

// Send implements client.Transport. When WriteTimeout is set in config,
// each write is limited to that duration.
//
// Returns:
//   - ErrClosed after Close, ErrNotConnected when not connected, or the
//     write error
func (c *Client) Send(frame string) error {
	c.mu.RLock()
	conn := c.conn
	state := c.state
	c.mu.RUnlock()

	if state == Closed {
		return ErrClosed
	}
	if state != Connected || conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.config.WriteTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout)); err != nil {
			return err
		}
	}

	if _, err := conn.Write([]byte(frame)); err != nil {
		// The read loop notices the broken connection and reports the loss.
		_ = conn.Close()
		return err
	}

	return nil
}

// Disconnect implements client.Transport. It closes the connection; the
// read loop then reports ConnectionLost. Safe to call when not connected.
func (c *Client) Disconnect() error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

// Close shuts down the client, closes the connection, and waits for its
// goroutines. After Close, the client is in Closed state and Connect is
// ignored. Idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.state == Closed {
		c.mu.Unlock()
		return nil
	}
	c.state = Closed
	conn := c.conn
	c.mu.Unlock()

	var err error
	if conn != nil {
		err = conn.Close()
	}
	c.wg.Wait()

	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	return err
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Client) dial(target string) {
	defer c.wg.Done()

	dialer := net.Dialer{Timeout: c.config.ConnectionTimeout}
	conn, err := dialer.Dial("tcp", target)

	c.mu.Lock()
	if c.state == Closed {
		c.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		c.state = Disconnected
		cb := c.cb
		c.mu.Unlock()

		c.log.Warn("dial failed", logger.Field{Key: "target", Value: target}, logger.Err(err))
		if cb != nil {
			cb.ConnectionFailed()
		}
		return
	}
	c.conn = conn
	c.state = Connected
	cb := c.cb
	c.mu.Unlock()

	c.log.Info("connected", logger.Field{Key: "target", Value: target})
	if cb != nil {
		cb.ConnectionSuccessful()
	}

	c.readLoop(conn, cb)
}

func (c *Client) readLoop(conn net.Conn, cb client.Callbacks) {
	limit := c.config.MaxFrameSize
	if limit <= 0 {
		limit = DefaultConfig().MaxFrameSize
	}

	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 0, 4096), limit)
	sc.Split(protocol.ScanFrames)

	for {
		if c.config.ReadTimeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout)); err != nil {
				break
			}
		}

		if !sc.Scan() {
			break
		}
		if cb != nil {
			cb.MessageReceived(sc.Text())
		}
	}

	if err := sc.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		c.log.Warn("read failed", logger.Err(err))
	}
	_ = conn.Close()

	c.mu.Lock()
	closed := c.state == Closed
	c.conn = nil
	if !closed {
		c.state = Disconnected
	}
	c.mu.Unlock()

	if closed {
		return
	}

	c.log.Info("connection lost")
	if cb != nil {
		cb.ConnectionLost()
	}
}
