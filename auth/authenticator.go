package auth

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/cyberinferno/gamenet/client"
	"github.com/cyberinferno/gamenet/logger"
	"github.com/cyberinferno/gamenet/protocol"
	"github.com/cyberinferno/gamenet/session"
)

// Sessions is the part of session.Manager an authenticator needs to
// promote a session once its token is verified.
type Sessions interface {
	SetAuthenticated(s session.Session)
}

// LocalAuthenticator verifies tokens against an Authority in the same
// process and promotes the session before returning.
type LocalAuthenticator struct {
	authority *Authority
	sessions  Sessions
	log       logger.Logger
	timeout   time.Duration
}

// NewLocalAuthenticator creates a LocalAuthenticator.
//
// Parameters:
//   - authority: The authority that issued the tokens
//   - sessions: Usually the session.Manager the authenticator is set on
//   - log: Logger
//   - timeout: Upper bound for one verification
//
// Returns:
//   - The authenticator
func NewLocalAuthenticator(authority *Authority, sessions Sessions, log logger.Logger, timeout time.Duration) *LocalAuthenticator {
	return &LocalAuthenticator{
		authority: authority,
		sessions:  sessions,
		log:       log.With(logger.Field{Key: "component", Value: "local-authenticator"}),
		timeout:   timeout,
	}
}

// Authenticate implements session.Authenticator. A refused token leaves the
// session pending, so the client may send another request.
func (l *LocalAuthenticator) Authenticate(s session.Session, token protocol.Token) error {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()

	v, err := l.authority.Verify(ctx, token)
	if err != nil {
		return fmt.Errorf("verify token: %w", err)
	}

	if !v.Authenticated {
		l.log.Warn("token refused", logger.Field{Key: "player", Value: token.Player})
		return nil
	}

	l.sessions.SetAuthenticated(s)
	return nil
}

// RemoteAuthenticator forwards tokens to an authority server over a client
// engine and promotes sessions when the answers come back. Answers are
// handled on the goroutine calling Update, which a game server calls once
// per tick.
//
// The authority answers the requests of one connection in order and an
// answer only names the player, so the sessions waiting on a player are
// kept in request order and each answer settles the oldest one.
type RemoteAuthenticator struct {
	engine   *client.Engine
	factory  *protocol.Factory
	sessions Sessions
	log      logger.Logger

	mu      sync.Mutex
	waiting map[protocol.PlayerID][]session.Session
}

// NewRemoteAuthenticator creates a RemoteAuthenticator and registers it as
// a listener of engine. Connecting the engine is left to the caller.
//
// Parameters:
//   - engine: Engine connected, or about to be, to the authority server
//   - factory: Protocol factory
//   - sessions: Usually the session.Manager the authenticator is set on
//   - log: Logger
//
// Returns:
//   - The authenticator
func NewRemoteAuthenticator(engine *client.Engine, factory *protocol.Factory, sessions Sessions, log logger.Logger) *RemoteAuthenticator {
	r := &RemoteAuthenticator{
		engine:   engine,
		factory:  factory,
		sessions: sessions,
		log:      log.With(logger.Field{Key: "component", Value: "remote-authenticator"}),
		waiting:  make(map[protocol.PlayerID][]session.Session),
	}
	engine.AddListener(r)
	return r
}

// Authenticate implements session.Authenticator by sending a verification
// request. It returns before the authority answers.
func (r *RemoteAuthenticator) Authenticate(s session.Session, token protocol.Token) error {
	r.mu.Lock()
	r.waiting[token.Player] = append(r.waiting[token.Player], s)
	r.mu.Unlock()

	if err := r.engine.SendMessage(r.factory.TokenVerificationRequest(token)); err != nil {
		r.forget(token.Player, s)
		return fmt.Errorf("send token verification: %w", err)
	}
	return nil
}

// Waiting returns the number of requests not answered yet.
func (r *RemoteAuthenticator) Waiting() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, q := range r.waiting {
		n += len(q)
	}
	return n
}

// next removes and returns the oldest session waiting on p.
func (r *RemoteAuthenticator) next(p protocol.PlayerID) (session.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q := r.waiting[p]
	if len(q) == 0 {
		return nil, false
	}
	if len(q) == 1 {
		delete(r.waiting, p)
	} else {
		r.waiting[p] = q[1:]
	}
	return q[0], true
}

func (r *RemoteAuthenticator) forget(p protocol.PlayerID, s session.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q := r.waiting[p]
	if i := slices.Index(q, s); i >= 0 {
		q = slices.Delete(q, i, i+1)
	}
	if len(q) == 0 {
		delete(r.waiting, p)
		return
	}
	r.waiting[p] = q
}

// Update drives the engine: answers are dispatched and the connection to
// the authority is retried per the engine's strategy.
func (r *RemoteAuthenticator) Update() {
	r.engine.Update()
}

// Parse implements client.Listener. Frames other than verification
// answers are ignored.
func (r *RemoteAuthenticator) Parse(frame string) error {
	cmd, err := protocol.ExtractCommand(frame)
	if err != nil {
		return err
	}
	if cmd != protocol.CmdTokenVerificationResponse {
		return nil
	}

	v, err := r.factory.ParseTokenVerified(frame)
	if err != nil {
		return err
	}

	s, ok := r.next(v.Player)
	if !ok {
		r.log.Debug("unexpected verification answer", logger.Field{Key: "player", Value: v.Player})
		return nil
	}

	if !v.Authenticated {
		r.log.Warn("token refused by authority", logger.Field{Key: "player", Value: v.Player})
		return nil
	}

	if !s.IsConnected() {
		r.log.Debug("verified player is gone", logger.Field{Key: "player", Value: v.Player})
		return nil
	}

	r.sessions.SetAuthenticated(s)
	return nil
}

// Connected implements client.Listener.
func (r *RemoteAuthenticator) Connected() {
	r.log.Info("connected to authority")
}

// ConnectionFailed implements client.Listener.
func (r *RemoteAuthenticator) ConnectionFailed() {
	r.log.Error("cannot reach authority")
}

// ConnectionLost implements client.Listener. Requests in flight are never
// answered, so their sessions stay pending until the client asks again.
func (r *RemoteAuthenticator) ConnectionLost() {
	r.mu.Lock()
	clear(r.waiting)
	r.mu.Unlock()

	r.log.Warn("connection to authority lost")
}
