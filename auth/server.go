package auth

import (
	"context"
	"time"

	"github.com/cyberinferno/gamenet/idgenerator"
	"github.com/cyberinferno/gamenet/logger"
	"github.com/cyberinferno/gamenet/metrics"
	"github.com/cyberinferno/gamenet/protocol"
	"github.com/cyberinferno/gamenet/safemap"
	"github.com/cyberinferno/gamenet/session"
)

// Server answers authority requests on a transport adapter. It implements
// session.Handler; there is no handshake, every connection may send
// authentication and token verification requests right away.
type Server struct {
	authority *Authority
	factory   *protocol.Factory
	log       logger.Logger
	metrics   *metrics.Metrics
	timeout   time.Duration
	ids       *idgenerator.Sequence
	conns     *safemap.SafeMap[uint32, *session.Connection]
}

// NewServer creates a Server.
//
// Parameters:
//   - authority: The authority answering requests
//   - factory: Protocol factory
//   - log: Logger
//   - m: Optional collectors, may be nil
//   - timeout: Upper bound for answering one request
//
// Returns:
//   - The server
func NewServer(authority *Authority, factory *protocol.Factory, log logger.Logger, m *metrics.Metrics, timeout time.Duration) *Server {
	return &Server{
		authority: authority,
		factory:   factory,
		log:       log.With(logger.Field{Key: "component", Value: "authority-server"}),
		metrics:   m,
		timeout:   timeout,
		ids:       idgenerator.NewSequence(0),
		conns:     safemap.NewSafeMap[uint32, *session.Connection](),
	}
}

// Accept implements session.Handler.
func (s *Server) Accept(t session.Transport) session.Session {
	id := s.ids.Next()
	c := session.NewConnection(id, t, s.log.With(
		logger.Field{Key: "conn", Value: id},
		logger.Field{Key: "remote", Value: t.RemoteAddr()},
	))

	s.conns.Store(id, c)
	s.metrics.SetOpenConnections(s.conns.Len())
	s.log.Info("authority connection accepted", logger.Field{Key: "conn", Value: id})

	return c
}

// ProcessMessages implements session.Handler.
func (s *Server) ProcessMessages(sess session.Session, buffer string) {
	for _, frame := range protocol.Split(buffer) {
		if frame == "" {
			continue
		}
		s.metrics.FrameReceived()
		s.handle(sess, frame)
	}
}

// ConnectionClosed implements session.Handler.
func (s *Server) ConnectionClosed(sess session.Session) {
	c, ok := s.conns.Load(sess.ID())
	if !ok {
		return
	}

	s.conns.Delete(sess.ID())
	_ = c.Close()
	s.metrics.SetOpenConnections(s.conns.Len())
	s.log.Info("authority connection closed", logger.Field{Key: "conn", Value: sess.ID()})
}

// Shutdown closes every connection.
func (s *Server) Shutdown() {
	for _, c := range s.conns.Values() {
		s.ConnectionClosed(c)
	}
}

// ConnectionCount returns the number of open connections.
func (s *Server) ConnectionCount() int {
	return s.conns.Len()
}

func (s *Server) handle(sess session.Session, frame string) {
	cmd, err := protocol.ExtractCommand(frame)
	if err != nil {
		s.drop(frame, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	var reply protocol.Framer
	switch cmd {
	case protocol.CmdAuthenticationRequest:
		creds, err := s.factory.ParseAuthenticationRequest(frame)
		if err != nil {
			s.drop(frame, err)
			return
		}
		token, err := s.authority.Authenticate(ctx, creds)
		if err != nil {
			s.log.Error("authentication failed", logger.Err(err))
			return
		}
		reply = s.factory.AuthenticationResponse(token)

	case protocol.CmdTokenVerificationRequest:
		token, err := s.factory.ParseTokenVerificationRequest(frame)
		if err != nil {
			s.drop(frame, err)
			return
		}
		v, err := s.authority.Verify(ctx, token)
		if err != nil {
			s.log.Error("token verification failed", logger.Err(err))
			return
		}
		reply = s.factory.TokenVerified(v)

	default:
		s.log.Warn("unsupported command", logger.Field{Key: "command", Value: cmd.String()})
		s.metrics.FrameDropped(metrics.ReasonMalformed)
		return
	}

	if err := sess.SendMessage(reply); err != nil {
		s.log.Warn("reply failed", logger.Field{Key: "conn", Value: sess.ID()}, logger.Err(err))
		return
	}
	s.metrics.FrameSent()
}

func (s *Server) drop(frame string, err error) {
	s.metrics.FrameDropped(metrics.ReasonMalformed)
	s.log.Warn("invalid authority request dropped", logger.Field{Key: "frame", Value: frame}, logger.Err(err))
}
