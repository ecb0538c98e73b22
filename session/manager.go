package session

import (
	"sync"

	"github.com/cyberinferno/gamenet/idgenerator"
	"github.com/cyberinferno/gamenet/logger"
	"github.com/cyberinferno/gamenet/metrics"
	"github.com/cyberinferno/gamenet/protocol"
	"github.com/cyberinferno/gamenet/safemap"
	"github.com/cyberinferno/gamenet/safeset"
)

// Manager is the authoritative registry of sessions by player and runs the
// authentication handshake. Frames from unauthenticated sessions are
// connection requests; frames from authenticated sessions go to the
// listeners. Authenticated sessions and sessions waiting for their token to
// be verified are kept apart, so a pending request never displaces an
// authenticated player. All methods are safe for concurrent use and never block on I/O
// beyond the transport's own Send and Close.
type Manager struct {
	log         logger.Logger
	metrics     *metrics.Metrics
	factory     *protocol.Factory
	ids         *idgenerator.Sequence
	players     *safemap.SafeMap[protocol.PlayerID, Session]
	pending     *safemap.SafeMap[protocol.PlayerID, Session]
	connections *safeset.SafeSet[Session]

	// regMu serializes session state changes with the registry writes that
	// follow them, so a disconnect never interleaves with a promotion.
	regMu sync.Mutex

	mu            sync.RWMutex
	listeners     []Listener
	authenticator Authenticator
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) {
		m.log = l
	}
}

// WithMetrics sets the collectors updated by the manager.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) {
		m.metrics = mt
	}
}

// WithAuthenticator sets the step that verifies connection request tokens.
func WithAuthenticator(a Authenticator) Option {
	return func(m *Manager) {
		m.authenticator = a
	}
}

// NewManager creates an empty Manager.
//
// Parameters:
//   - factory: Protocol factory used to parse connection requests
//   - opts: Optional configuration
//
// Returns:
//   - A Manager with no sessions and no listeners
func NewManager(factory *protocol.Factory, opts ...Option) *Manager {
	m := &Manager{
		log:         logger.NewNopLogger(),
		factory:     factory,
		ids:         idgenerator.NewSequence(0),
		players:     safemap.NewSafeMap[protocol.PlayerID, Session](),
		pending:     safemap.NewSafeMap[protocol.PlayerID, Session](),
		connections: safeset.NewSafeSet[Session](),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With(logger.Field{Key: "component", Value: "session-manager"})

	return m
}

// SetAuthenticator replaces the authenticator. Authenticators that need the
// manager themselves are wired with it after construction.
func (m *Manager) SetAuthenticator(a Authenticator) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authenticator = a
}

// AddListener registers l. Listeners are called in registration order.
func (m *Manager) AddListener(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// Accept creates the session for a newly accepted transport connection.
// Transport adapters call it once per connection.
//
// Parameters:
//   - t: The connection's transport
//
// Returns:
//   - A connected, unauthenticated session
func (m *Manager) Accept(t Transport) Session {
	id := m.ids.Next()
	c := NewConnection(id, t, m.log.With(
		logger.Field{Key: "conn", Value: id},
		logger.Field{Key: "remote", Value: t.RemoteAddr()},
	))

	m.connections.Add(c)
	m.metrics.SetOpenConnections(m.connections.Size())
	c.log.Info("connection accepted")

	return c
}

// ConnectionClosed is called by transport adapters when the peer goes away.
func (m *Manager) ConnectionClosed(s Session) {
	m.DisconnectSession(s)
}

// ProcessMessages splits a raw buffer into frames and handles each one in
// order. Empty frames are skipped.
func (m *Manager) ProcessMessages(s Session, buffer string) {
	for _, frame := range protocol.Split(buffer) {
		if frame == "" {
			continue
		}
		m.MessageReceived(s, frame)
	}
}

// MessageReceived routes one frame. Frames of authenticated sessions are
// delivered to every listener; any other frame must be a connection
// request. Malformed frames are logged and dropped and never surface as
// errors.
//
// Parameters:
//   - s: The session the frame arrived on
//   - frame: The frame, with or without markers
func (m *Manager) MessageReceived(s Session, frame string) {
	m.metrics.FrameReceived()

	if !s.IsConnected() {
		m.log.Debug("frame on closed session dropped", logger.Field{Key: "session", Value: s.String()})
		return
	}

	if s.IsAuthenticated() {
		m.dispatch(s, frame)
		return
	}

	m.handshake(s, frame)
}

func (m *Manager) dispatch(s Session, frame string) {
	m.mu.RLock()
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.RUnlock()

	for i, l := range listeners {
		if err := l.MessageReceived(s, frame); err != nil {
			m.metrics.FrameDropped(metrics.ReasonListener)
			m.log.Error("listener failed to handle frame",
				logger.Field{Key: "listener", Value: i},
				logger.Field{Key: "player", Value: s.Player()},
				logger.Field{Key: "frame", Value: frame},
				logger.Err(err),
			)
		}
	}
}

func (m *Manager) handshake(s Session, frame string) {
	token, err := m.factory.ParseConnectionRequest(frame)
	if err != nil {
		m.metrics.FrameDropped(metrics.ReasonHandshake)
		m.log.Warn("invalid connection request dropped",
			logger.Field{Key: "session", Value: s.String()},
			logger.Field{Key: "frame", Value: frame},
			logger.Err(err),
		)
		return
	}

	m.regMu.Lock()
	if !s.IsConnected() {
		m.regMu.Unlock()
		return
	}
	if s.IsAuthenticated() {
		m.regMu.Unlock()
		m.dispatch(s, frame)
		return
	}

	if prev := s.Player(); prev != protocol.NoPlayer && prev != token.Player {
		m.pending.CompareAndDelete(prev, s)
	}

	s.bind(token.Player)
	if old, ok := m.pending.Load(token.Player); ok && old != s {
		m.log.Info("pending connection request replaced",
			logger.Field{Key: "player", Value: token.Player},
			logger.Field{Key: "previous", Value: old.String()},
		)
	}
	m.pending.Store(token.Player, s)
	m.regMu.Unlock()

	m.mu.RLock()
	a := m.authenticator
	m.mu.RUnlock()

	if a == nil {
		m.metrics.Handshake(metrics.HandshakeFailed)
		m.log.Error("no authenticator configured", logger.Field{Key: "player", Value: token.Player})
		return
	}

	if err := a.Authenticate(s, token); err != nil {
		m.metrics.Handshake(metrics.HandshakeFailed)
		m.log.Error("authentication request failed",
			logger.Field{Key: "player", Value: token.Player},
			logger.Err(err),
		)
		return
	}

	m.metrics.Handshake(metrics.HandshakeRequested)
	m.log.Debug("authentication requested", logger.Field{Key: "player", Value: token.Player})
}

// SetAuthenticated marks s authenticated, moves it from the pending set to
// the registry under its player and notifies every listener. A newer
// authenticated session of the same player replaces the older one. Calling
// it again on an authenticated session re-asserts the entry and notifies
// again. Closed sessions are ignored.
func (m *Manager) SetAuthenticated(s Session) {
	m.regMu.Lock()
	if !s.IsConnected() {
		m.regMu.Unlock()
		m.log.Warn("cannot authenticate closed session", logger.Field{Key: "session", Value: s.String()})
		return
	}

	p := s.Player()
	if p == protocol.NoPlayer {
		m.regMu.Unlock()
		m.log.Warn("cannot authenticate session without player", logger.Field{Key: "session", Value: s.String()})
		return
	}

	first := s.markAuthenticated()
	if old, ok := m.players.Load(p); ok && old != s {
		m.log.Info("player session replaced",
			logger.Field{Key: "player", Value: p},
			logger.Field{Key: "previous", Value: old.String()},
		)
	}
	m.players.Store(p, s)
	m.pending.CompareAndDelete(p, s)
	m.metrics.SetActiveSessions(m.players.Len())
	m.regMu.Unlock()

	if first {
		m.metrics.Handshake(metrics.HandshakeAuthenticated)
		m.log.Info("session authenticated", logger.Field{Key: "player", Value: p})
	}

	m.mu.RLock()
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.RUnlock()

	for _, l := range listeners {
		l.ClientAuthenticated(s)
	}
}

// DisconnectSession removes s from the registry, clears its flags and
// closes its transport. Entries are only removed if they still map to s, so
// a newer session of the same player survives. Listeners are told once, on
// the first call.
func (m *Manager) DisconnectSession(s Session) {
	m.regMu.Lock()
	p := s.Player()
	m.players.CompareAndDelete(p, s)
	m.pending.CompareAndDelete(p, s)
	m.connections.Remove(s)
	first := s.disconnect()
	m.metrics.SetActiveSessions(m.players.Len())
	m.metrics.SetOpenConnections(m.connections.Size())
	m.regMu.Unlock()

	if !first {
		return
	}

	s.closeTransport()
	m.log.Info("session disconnected", logger.Field{Key: "session", Value: s.String()})

	m.mu.RLock()
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.RUnlock()

	for _, l := range listeners {
		l.SessionClosed(s)
	}
}

// DisconnectAll disconnects every tracked connection.
func (m *Manager) DisconnectAll() {
	for _, s := range m.connections.Values() {
		m.DisconnectSession(s)
	}
}

// GetSessionByPlayer returns the authenticated session of p, else the
// session whose connection request for p is pending, else Disconnected. It
// never returns nil, so callers can send without checking.
func (m *Manager) GetSessionByPlayer(p protocol.PlayerID) Session {
	if s, ok := m.players.Load(p); ok {
		return s
	}
	if s, ok := m.pending.Load(p); ok {
		return s
	}

	m.log.Debug("no session for player", logger.Field{Key: "player", Value: p})
	return Disconnected
}

// ActivePlayers returns a snapshot of the players with an authenticated
// session.
func (m *Manager) ActivePlayers() []protocol.PlayerID {
	var out []protocol.PlayerID
	m.players.Range(func(p protocol.PlayerID, s Session) bool {
		if s.IsAuthenticated() {
			out = append(out, p)
		}
		return true
	})
	return out
}

// ActiveSessions returns a snapshot of the authenticated sessions.
func (m *Manager) ActiveSessions() []Session {
	var out []Session
	m.players.Range(func(_ protocol.PlayerID, s Session) bool {
		if s.IsAuthenticated() {
			out = append(out, s)
		}
		return true
	})
	return out
}

// PlayerCount returns the number of authenticated players.
func (m *Manager) PlayerCount() int {
	return m.players.Len()
}

// ConnectionCount returns the number of tracked connections.
func (m *Manager) ConnectionCount() int {
	return m.connections.Size()
}

// Broadcast sends msgs to every authenticated session. Send failures are
// logged per session.
func (m *Manager) Broadcast(msgs ...protocol.Framer) {
	for _, s := range m.ActiveSessions() {
		if err := s.SendMessage(msgs...); err != nil {
			m.log.Warn("broadcast failed", logger.Field{Key: "player", Value: s.Player()}, logger.Err(err))
			continue
		}
		for range msgs {
			m.metrics.FrameSent()
		}
	}
}
