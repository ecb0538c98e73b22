// Package session tracks logical connections on the server side: which
// player each connection is bound to, whether it is authenticated, and how
// inbound frames are routed. Transports stay outside the package and are
// reached through the Transport interface.
package session

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/cyberinferno/gamenet/logger"
	"github.com/cyberinferno/gamenet/protocol"
)

// ErrSessionClosed is returned when sending on a connection that has been
// disconnected.
var ErrSessionClosed = errors.New("session: closed")

// Transport is the outbound side of one physical connection, implemented by
// the transport adapters.
type Transport interface {
	// Send writes one frame to the peer.
	Send(frame string) error
	// Close tears the connection down. It must be safe to call twice.
	Close() error
	// RemoteAddr describes the peer for logging.
	RemoteAddr() string
}

// Session is the state of one logical connection. It is implemented by
// *Connection and by the shared Disconnected value only.
type Session interface {
	// ID returns the connection id, or 0 for Disconnected.
	ID() uint32
	// Player returns the bound player, or protocol.NoPlayer.
	Player() protocol.PlayerID
	IsConnected() bool
	IsAuthenticated() bool
	// Send delivers a raw frame.
	Send(frame string) error
	// SendMessage frames and delivers each message in order.
	SendMessage(msgs ...protocol.Framer) error
	String() string

	bind(p protocol.PlayerID)
	markAuthenticated() bool
	disconnect() bool
	closeTransport()
}

// Connection is a session backed by a transport.
type Connection struct {
	id            uint32
	transport     Transport
	log           logger.Logger
	player        atomic.Int32
	connected     atomic.Bool
	authenticated atomic.Bool
}

// NewConnection creates a connected, unauthenticated session bound to no
// player.
//
// Parameters:
//   - id: Connection id, unique for the lifetime of the process
//   - t: Transport used to reach the peer
//   - log: Logger, scoped to the connection by the caller
//
// Returns:
//   - The new session
func NewConnection(id uint32, t Transport, log logger.Logger) *Connection {
	c := &Connection{
		id:        id,
		transport: t,
		log:       log,
	}
	c.player.Store(int32(protocol.NoPlayer))
	c.connected.Store(true)
	return c
}

func (c *Connection) ID() uint32 {
	return c.id
}

func (c *Connection) Player() protocol.PlayerID {
	return protocol.PlayerID(c.player.Load())
}

func (c *Connection) IsConnected() bool {
	return c.connected.Load()
}

func (c *Connection) IsAuthenticated() bool {
	return c.authenticated.Load()
}

// RemoteAddr returns the peer address reported by the transport.
func (c *Connection) RemoteAddr() string {
	return c.transport.RemoteAddr()
}

// Send delivers a raw frame to the transport.
//
// Returns:
//   - ErrSessionClosed if the session was disconnected
//   - An error wrapping protocol.ErrTransport if the write failed
func (c *Connection) Send(frame string) error {
	if !c.connected.Load() {
		c.log.Debug("send on closed session dropped", logger.Field{Key: "frame", Value: frame})
		return ErrSessionClosed
	}

	if err := c.transport.Send(frame); err != nil {
		return fmt.Errorf("%w: %w", protocol.ErrTransport, err)
	}

	return nil
}

// SendMessage frames each message and sends it. It stops at the first
// failure.
func (c *Connection) SendMessage(msgs ...protocol.Framer) error {
	for _, m := range msgs {
		if err := c.Send(m.Frame()); err != nil {
			return err
		}
	}
	return nil
}

func (c *Connection) String() string {
	return fmt.Sprintf("session{id=%d player=%d addr=%s authenticated=%t}",
		c.id, c.Player(), c.transport.RemoteAddr(), c.IsAuthenticated())
}

// Close disconnects the session and closes its transport. It does not
// touch any registry, so it is only for connections tracked without a
// Manager. Sessions returned by Manager.Accept must be closed through
// Manager.DisconnectSession.
func (c *Connection) Close() error {
	if c.disconnect() {
		c.closeTransport()
	}
	return nil
}

func (c *Connection) bind(p protocol.PlayerID) {
	c.player.Store(int32(p))
}

func (c *Connection) markAuthenticated() bool {
	return c.authenticated.CompareAndSwap(false, true)
}

// disconnect clears both flags. Only the first call reports true.
func (c *Connection) disconnect() bool {
	if !c.connected.CompareAndSwap(true, false) {
		return false
	}

	c.authenticated.Store(false)
	return true
}

func (c *Connection) closeTransport() {
	if err := c.transport.Close(); err != nil {
		c.log.Warn("transport close failed", logger.Err(err))
	}
}

type disconnectedSession struct{}

// Disconnected is the session returned for unknown players. It is never
// connected, never registered, and sending on it does nothing.
var Disconnected Session = disconnectedSession{}

func (disconnectedSession) ID() uint32 { return 0 }
func (disconnectedSession) Player() protocol.PlayerID { return protocol.NoPlayer }
func (disconnectedSession) IsConnected() bool { return false }
func (disconnectedSession) IsAuthenticated() bool { return false }
func (disconnectedSession) Send(string) error { return nil }
func (disconnectedSession) SendMessage(...protocol.Framer) error { return nil }
func (disconnectedSession) String() string { return "session{disconnected}" }
func (disconnectedSession) bind(protocol.PlayerID) {}
func (disconnectedSession) markAuthenticated() bool { return false }
func (disconnectedSession) disconnect() bool { return false }
func (disconnectedSession) closeTransport() {}
