package tcpserver

import (
	"bufio"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberinferno/gamenet/logger"
	"github.com/cyberinferno/gamenet/protocol"
	"github.com/cyberinferno/gamenet/session"
)

type frameLog struct {
	mu     sync.Mutex
	frames []string
}

func (f *frameLog) MessageReceived(_ session.Session, frame string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, frame)
	return nil
}

func (f *frameLog) ClientAuthenticated(session.Session) {}

func (f *frameLog) SessionClosed(session.Session) {}

func (f *frameLog) Frames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.frames...)
}

func newTestManager(t *testing.T) (*session.Manager, *protocol.Factory, *frameLog) {
	t.Helper()
	f, err := protocol.NewFactory(protocol.NewRegistry())
	require.NoError(t, err)

	m := session.NewManager(f)
	m.SetAuthenticator(session.AuthenticatorFunc(func(s session.Session, _ protocol.Token) error {
		m.SetAuthenticated(s)
		return nil
	}))

	frames := &frameLog{}
	m.AddListener(frames)
	return m, f, frames
}

func startServer(t *testing.T, h session.Handler) *Server {
	t.Helper()
	s := NewServer("test", "127.0.0.1:0", h, logger.NewNopLogger())
	require.NoError(t, s.Start())
	t.Cleanup(s.Stop)
	return s
}

func TestServer_Handshake(t *testing.T) {
	m, f, frames := newTestManager(t)
	s := startServer(t, m)

	conn, err := net.Dial("tcp", s.ListenAddr().String())
	require.NoError(t, err)
	defer conn.Close()

	t.Run("frame split across writes", func(t *testing.T) {
		req := f.ConnectionRequest(protocol.Token{Player: 5, Key: 10}).Frame()
		_, err := conn.Write([]byte(req[:3]))
		require.NoError(t, err)
		time.Sleep(10 * time.Millisecond)
		_, err = conn.Write([]byte(req[3:]))
		require.NoError(t, err)

		assert.Eventually(t, func() bool {
			return m.GetSessionByPlayer(5).IsAuthenticated()
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("several frames in one write", func(t *testing.T) {
		_, err := conn.Write([]byte("&40_a#&41_b#&42_c#"))
		require.NoError(t, err)

		assert.Eventually(t, func() bool {
			return len(frames.Frames()) == 3
		}, time.Second, 5*time.Millisecond)
		assert.Equal(t, []string{"40_a", "41_b", "42_c"}, frames.Frames())
	})

	t.Run("server to client", func(t *testing.T) {
		msg := f.VersionResponse(protocol.VersionCheck{
			Version:    protocol.Version{Major: 1, Minor: 2, Sub: 3, Rev: 4, Type: protocol.VersionRelease},
			ServerTime: 1700000000000,
		})
		m.Broadcast(msg)

		require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
		got, err := bufio.NewReader(conn).ReadString(protocol.End[0])
		require.NoError(t, err)
		assert.Equal(t, msg.Frame(), got)
	})

	t.Run("client close removes the session", func(t *testing.T) {
		require.NoError(t, conn.Close())

		assert.Eventually(t, func() bool {
			return s.ConnectionCount() == 0 && m.ConnectionCount() == 0
		}, time.Second, 5*time.Millisecond)
		assert.Equal(t, session.Disconnected, m.GetSessionByPlayer(5))
	})
}

func TestServer_Stop(t *testing.T) {
	m, _, _ := newTestManager(t)
	s := NewServer("test", "127.0.0.1:0", m, logger.NewNopLogger())
	require.NoError(t, s.Start())
	assert.Error(t, s.Start())

	conn, err := net.Dial("tcp", s.ListenAddr().String())
	require.NoError(t, err)
	defer conn.Close()

	assert.Eventually(t, func() bool {
		return m.ConnectionCount() == 1
	}, time.Second, 5*time.Millisecond)

	s.Stop()
	assert.Zero(t, s.ConnectionCount())
	assert.Zero(t, m.ConnectionCount())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, err = conn.Read(make([]byte, 1))
	assert.Error(t, err)

	s.Stop()
}

func TestServer_TrackAfterStop(t *testing.T) {
	m, _, _ := newTestManager(t)
	s := NewServer("test", "127.0.0.1:0", m, logger.NewNopLogger())

	t.Run("running server keeps the connection", func(t *testing.T) {
		s.running.Store(true)
		defer s.running.Store(false)

		local, remote := net.Pipe()
		defer remote.Close()

		c, ok := s.track(local)
		require.True(t, ok)
		assert.Equal(t, 1, s.ConnectionCount())

		s.conns.Delete(c.id)
		_ = c.Close()
	})

	t.Run("stopping server closes the connection", func(t *testing.T) {
		local, remote := net.Pipe()
		defer remote.Close()

		c, ok := s.track(local)
		assert.False(t, ok)
		assert.Nil(t, c)
		assert.Zero(t, s.ConnectionCount())

		_, err := local.Write([]byte("&40_a#"))
		assert.ErrorIs(t, err, io.ErrClosedPipe)
	})
}

func TestServer_FrameTooLarge(t *testing.T) {
	m, _, _ := newTestManager(t)
	s := NewServer("test", "127.0.0.1:0", m, logger.NewNopLogger())
	s.MaxFrameSize = 16
	require.NoError(t, s.Start())
	t.Cleanup(s.Stop)

	conn, err := net.Dial("tcp", s.ListenAddr().String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("&40_" + string(make([]byte, 64))))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return s.ConnectionCount() == 0
	}, time.Second, 5*time.Millisecond)
}

func TestProbe(t *testing.T) {
	assert.NoError(t, Probe("127.0.0.1", 0))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	port := ln.Addr().(*net.TCPAddr).Port
	assert.Error(t, Probe("127.0.0.1", port))
}
