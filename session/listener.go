package session

import "github.com/cyberinferno/gamenet/protocol"

// Listener receives frames from authenticated sessions and session
// lifecycle events. Application logic lives behind it.
type Listener interface {
	// MessageReceived is called for every frame of an authenticated session.
	// An error is logged by the manager and does not stop delivery to the
	// listeners that follow.
	MessageReceived(s Session, frame string) error
	// ClientAuthenticated is called every time a session is marked
	// authenticated.
	ClientAuthenticated(s Session)
	// SessionClosed is called once when a session is disconnected.
	SessionClosed(s Session)
}

// ListenerFunc adapts a frame handler into a Listener with no-op lifecycle
// hooks.
type ListenerFunc func(s Session, frame string) error

func (f ListenerFunc) MessageReceived(s Session, frame string) error {
	return f(s, frame)
}

func (ListenerFunc) ClientAuthenticated(Session) {}

func (ListenerFunc) SessionClosed(Session) {}

// Authenticator verifies the token carried by a connection request. It may
// answer asynchronously by calling Manager.SetAuthenticated later; a
// returned error means the verification could not even be started.
type Authenticator interface {
	Authenticate(s Session, token protocol.Token) error
}

// AuthenticatorFunc adapts a function into an Authenticator.
type AuthenticatorFunc func(s Session, token protocol.Token) error

func (f AuthenticatorFunc) Authenticate(s Session, token protocol.Token) error {
	return f(s, token)
}

// Handler is what transport adapters drive: one Accept per connection, raw
// buffers as they are read, and ConnectionClosed when the peer goes away.
// Manager implements it, and so does the authority server.
type Handler interface {
	Accept(t Transport) Session
	ProcessMessages(s Session, buffer string)
	ConnectionClosed(s Session)
}

var _ Handler = (*Manager)(nil)
