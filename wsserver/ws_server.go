// Package wsserver carries gamenet frames over WebSocket. Each text message
// may hold one or more complete frames and is handed to a session.Handler
// as one buffer.
package wsserver

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cyberinferno/gamenet/idgenerator"
	"github.com/cyberinferno/gamenet/logger"
	"github.com/cyberinferno/gamenet/safemap"
	"github.com/cyberinferno/gamenet/session"
)

// Config holds the WebSocket settings.
type Config struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxMessageSize int64
	// CheckOrigin is passed to the upgrader; nil accepts same-origin
	// requests only.
	CheckOrigin func(r *http.Request) bool
}

// DefaultConfig returns the default settings.
func DefaultConfig() Config {
	return Config{
		ReadTimeout:    60 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxMessageSize: 64 * 1024,
	}
}

// Server is an http.Handler upgrading requests to WebSocket connections
// served by a session.Handler.
type Server struct {
	handler  session.Handler
	log      logger.Logger
	config   Config
	upgrader websocket.Upgrader
	ids      *idgenerator.Sequence
	conns    *safemap.SafeMap[uint32, *Conn]
	wg       sync.WaitGroup

	mu       sync.Mutex
	shutdown bool
}

// New creates a Server.
//
// Parameters:
//   - h: Handler receiving connections and frames
//   - config: WebSocket settings
//   - log: Logger
//
// Returns:
//   - The server, ready to be mounted on a router
func New(h session.Handler, config Config, log logger.Logger) *Server {
	return &Server{
		handler: h,
		log:     log.With(logger.Field{Key: "component", Value: "wsserver"}),
		config:  config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     config.CheckOrigin,
		},
		ids:   idgenerator.NewSequence(0),
		conns: safemap.NewSafeMap[uint32, *Conn](),
	}
}

// ServeHTTP upgrades the request and serves the connection until it
// closes.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.log.Warn("websocket upgrade failed", logger.Field{Key: "remote", Value: r.RemoteAddr}, logger.Err(err))
		return
	}

	c := newConn(s.ids.Next(), ws, s.config.WriteTimeout)
	if !s.track(c) {
		s.log.Debug("connection refused during shutdown", logger.Field{Key: "remote", Value: r.RemoteAddr})
		_ = c.closeWith(websocket.CloseGoingAway)
		return
	}

	defer s.wg.Done()
	s.readLoop(c)
}

// track registers c unless Shutdown has started. Registration and the
// WaitGroup increment happen under the same lock Shutdown takes, so every
// tracked connection is either closed by Shutdown or waited for.
func (s *Server) track(c *Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shutdown {
		return false
	}

	s.conns.Store(c.id, c)
	s.wg.Add(1)
	return true
}

// Shutdown closes every open connection and waits for their read loops.
// Connections upgraded afterwards are closed right away.
func (s *Server) Shutdown() {
	s.mu.Lock()
	s.shutdown = true
	s.mu.Unlock()

	s.conns.Range(func(_ uint32, c *Conn) bool {
		_ = c.Close()
		return true
	})
	s.wg.Wait()
}

// ConnectionCount returns the number of open connections.
func (s *Server) ConnectionCount() int {
	return s.conns.Len()
}

func (s *Server) readLoop(c *Conn) {
	sess := s.handler.Accept(c)
	defer func() {
		s.conns.Delete(c.id)
		s.handler.ConnectionClosed(sess)
		_ = c.Close()
	}()

	if s.config.MaxMessageSize > 0 {
		c.ws.SetReadLimit(s.config.MaxMessageSize)
	}

	for {
		if s.config.ReadTimeout > 0 {
			_ = c.ws.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))
		}

		kind, msg, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				s.log.Warn("websocket read failed", logger.Field{Key: "conn", Value: c.id}, logger.Err(err))
			}
			return
		}

		if kind != websocket.TextMessage {
			s.log.Debug("non-text message ignored", logger.Field{Key: "conn", Value: c.id})
			continue
		}

		s.handler.ProcessMessages(sess, string(msg))
	}
}
