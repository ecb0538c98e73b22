// Package tcpserver accepts TCP connections and feeds the frames they carry
// to a session.Handler.
package tcpserver

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cyberinferno/gamenet/idgenerator"
	"github.com/cyberinferno/gamenet/logger"
	"github.com/cyberinferno/gamenet/protocol"
	"github.com/cyberinferno/gamenet/safemap"
	"github.com/cyberinferno/gamenet/session"
)

// DefaultMaxFrameSize bounds a single frame when Server.MaxFrameSize is
// zero.
const DefaultMaxFrameSize = 64 * 1024

// Server is a TCP server that hands each accepted connection to Handler.
// The read loop of a connection reassembles frames split across reads and
// passes them to Handler.ProcessMessages one at a time. The server runs its
// accept loop in a goroutine and supports graceful stop.
type Server struct {
	Logger  logger.Logger
	Name    string
	Addr    string
	Handler session.Handler

	// ReadTimeout closes connections idle for longer; zero disables it.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxFrameSize int

	listener net.Listener
	conns    *safemap.SafeMap[uint32, *Conn]
	ids      *idgenerator.Sequence
	running  atomic.Bool
	wg       sync.WaitGroup
}

// NewServer creates a Server with default timeouts.
//
// Parameters:
//   - name: Name used in log lines
//   - addr: Address to listen on, "host:port"
//   - h: The handler receiving connections and frames
//   - log: Logger
//
// Returns:
//   - The server, not yet started
func NewServer(name, addr string, h session.Handler, log logger.Logger) *Server {
	return &Server{
		Logger:       log.With(logger.Field{Key: "server", Value: name}),
		Name:         name,
		Addr:         addr,
		Handler:      h,
		WriteTimeout: 10 * time.Second,
		MaxFrameSize: DefaultMaxFrameSize,
		conns:        safemap.NewSafeMap[uint32, *Conn](),
		ids:          idgenerator.NewSequence(0),
	}
}

// Start starts the TCP server by binding to Addr and beginning the accept loop
// in a goroutine. It is safe to call only when the server is not already running.
//
// Returns:
//   - An error if the server is already running or if listening on Addr fails
func (s *Server) Start() error {
	if s.running.Load() {
		s.Logger.Error("server already running")
		return fmt.Errorf("server %s already running", s.Name)
	}

	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		s.Logger.Error("server failed to start", logger.Err(err))
		return fmt.Errorf("server %s failed to start: %w", s.Name, err)
	}

	s.listener = ln
	s.running.Store(true)

	s.Logger.Info(fmt.Sprintf("%s server started", s.Name), logger.Field{Key: "addr", Value: ln.Addr().String()})

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Stop closes the listener and every open connection, then waits for the
// read loops to hand their sessions back to the handler. Safe to call when
// the server is not running.
func (s *Server) Stop() {
	if !s.running.Swap(false) {
		s.Logger.Info(fmt.Sprintf("%s server not running", s.Name))
		return
	}

	_ = s.listener.Close()

	s.conns.Range(func(_ uint32, c *Conn) bool {
		_ = c.Close()
		return true
	})
	s.wg.Wait()

	s.Logger.Info(fmt.Sprintf("%s server stopped", s.Name))
}

// ListenAddr returns the bound address, or nil before Start. Useful when
// Addr asks for an ephemeral port.
func (s *Server) ListenAddr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// ConnectionCount returns the number of open connections.
func (s *Server) ConnectionCount() int {
	return s.conns.Len()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for s.running.Load() {
		nc, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() {
				return
			}

			s.Logger.Error(fmt.Sprintf("%s server accept error", s.Name), logger.Err(err))
			continue
		}
		c, ok := s.track(nc)
		if !ok {
			return
		}

		s.wg.Add(1)
		go s.handle(c)
	}
}

// track registers an accepted connection. Stop flips running before it
// closes the tracked connections, so a connection stored after that pass
// sees running false here and is closed instead of served.
func (s *Server) track(nc net.Conn) (*Conn, bool) {
	c := newConn(s.ids.Next(), nc, s.WriteTimeout)
	s.conns.Store(c.id, c)

	if !s.running.Load() {
		s.conns.Delete(c.id)
		_ = c.Close()
		return nil, false
	}

	return c, true
}

func (s *Server) handle(c *Conn) {
	defer s.wg.Done()

	sess := s.Handler.Accept(c)
	defer func() {
		s.conns.Delete(c.id)
		s.Handler.ConnectionClosed(sess)
		_ = c.Close()
	}()

	limit := s.MaxFrameSize
	if limit <= 0 {
		limit = DefaultMaxFrameSize
	}

	sc := bufio.NewScanner(c.conn)
	sc.Buffer(make([]byte, 0, 4096), limit)
	sc.Split(protocol.ScanFrames)

	for {
		if s.ReadTimeout > 0 {
			if err := c.conn.SetReadDeadline(time.Now().Add(s.ReadTimeout)); err != nil {
				return
			}
		}

		if !sc.Scan() {
			break
		}
		s.Handler.ProcessMessages(sess, sc.Text())
	}

	if err := sc.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		s.Logger.Warn("connection read failed",
			logger.Field{Key: "conn", Value: c.id},
			logger.Field{Key: "remote", Value: c.RemoteAddr()},
			logger.Err(err),
		)
	}
}

// Probe checks that address can be bound by listening on it and closing the
// listener right away. Port 0 asks for any free port.
//
// Returns:
//   - An error if the address cannot be bound
func Probe(address string, port int) error {
	ln, err := net.Listen("tcp", net.JoinHostPort(address, strconv.Itoa(port)))
	if err != nil {
		return fmt.Errorf("probe %s:%d: %w", address, port, err)
	}
	return ln.Close()
}
