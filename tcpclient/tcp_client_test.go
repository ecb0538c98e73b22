package tcpclient

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberinferno/gamenet/client"
	"github.com/cyberinferno/gamenet/logger"
	"github.com/cyberinferno/gamenet/protocol"
	"github.com/cyberinferno/gamenet/session"
	"github.com/cyberinferno/gamenet/tcpserver"
)

type events struct {
	mu        sync.Mutex
	frames    []string
	connected int
	failed    int
	lost      int
}

func (e *events) Parse(frame string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.frames = append(e.frames, frame)
	return nil
}

func (e *events) Connected() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.connected++
}

func (e *events) ConnectionFailed() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failed++
}

func (e *events) ConnectionLost() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lost++
}

func (e *events) counts() (connected, failed, lost int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.connected, e.failed, e.lost
}

func (e *events) Frames() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.frames...)
}

func startGameServer(t *testing.T) (*session.Manager, *protocol.Factory, *net.TCPAddr) {
	t.Helper()
	f, err := protocol.NewFactory(protocol.NewRegistry())
	require.NoError(t, err)

	m := session.NewManager(f)
	m.SetAuthenticator(session.AuthenticatorFunc(func(s session.Session, _ protocol.Token) error {
		m.SetAuthenticated(s)
		return nil
	}))

	srv := tcpserver.NewServer("game", "127.0.0.1:0", m, logger.NewNopLogger())
	require.NoError(t, srv.Start())
	t.Cleanup(srv.Stop)

	return m, f, srv.ListenAddr().(*net.TCPAddr)
}

func TestClient_WithEngine(t *testing.T) {
	m, f, addr := startGameServer(t)

	c := New(DefaultConfig(), logger.NewNopLogger())
	defer c.Close()

	ev := &events{}
	e := client.NewEngine(c)
	e.AddListener(ev)

	e.Connect(addr.IP.String(), addr.Port)
	require.Eventually(t, e.IsConnected, time.Second, 5*time.Millisecond)
	assert.Equal(t, Connected, c.State())

	t.Run("handshake", func(t *testing.T) {
		require.NoError(t, e.SendMessage(f.ConnectionRequest(protocol.Token{Player: 5, Key: 10})))
		assert.Eventually(t, func() bool {
			return m.GetSessionByPlayer(5).IsAuthenticated()
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("frames are delivered on update", func(t *testing.T) {
		msg := f.VersionResponse(protocol.VersionCheck{ServerTime: 42})
		m.Broadcast(msg, msg)

		assert.Eventually(t, func() bool {
			return e.Pending() == 2
		}, time.Second, 5*time.Millisecond)
		assert.Empty(t, ev.Frames())

		e.Update()
		assert.Equal(t, []string{msg.Frame(), msg.Frame()}, ev.Frames())

		got, err := f.ParseVersionResponse(ev.Frames()[0])
		require.NoError(t, err)
		assert.Equal(t, int64(42), got.ServerTime)
	})

	t.Run("disconnect reports the loss", func(t *testing.T) {
		require.NoError(t, e.Disconnect())
		assert.Eventually(t, func() bool {
			return !e.IsConnected()
		}, time.Second, 5*time.Millisecond)

		connected, _, lost := ev.counts()
		assert.Equal(t, 1, connected)
		assert.Equal(t, 1, lost)
		assert.Equal(t, Disconnected, c.State())
		assert.ErrorIs(t, c.Send("&1#"), ErrNotConnected)
	})

	t.Run("server side sees the close", func(t *testing.T) {
		assert.Eventually(t, func() bool {
			return m.ConnectionCount() == 0
		}, time.Second, 5*time.Millisecond)
	})
}

func TestClient_ConnectionFailed(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	require.NoError(t, ln.Close())

	c := New(DefaultConfig(), logger.NewNopLogger())
	defer c.Close()

	ev := &events{}
	e := client.NewEngine(c)
	e.AddListener(ev)

	e.Connect(addr.IP.String(), addr.Port)
	assert.Eventually(t, func() bool {
		_, failed, _ := ev.counts()
		return failed == 1
	}, time.Second, 5*time.Millisecond)
	assert.False(t, e.IsConnected())
	assert.False(t, e.IsConnecting())
	assert.Equal(t, Disconnected, c.State())
}

func TestClient_Close(t *testing.T) {
	_, _, addr := startGameServer(t)

	c := New(DefaultConfig(), logger.NewNopLogger())
	ev := &events{}
	e := client.NewEngine(c)
	e.AddListener(ev)

	e.Connect(addr.IP.String(), addr.Port)
	require.Eventually(t, e.IsConnected, time.Second, 5*time.Millisecond)

	require.NoError(t, c.Close())
	assert.Equal(t, Closed, c.State())
	assert.ErrorIs(t, c.Send("&1#"), ErrClosed)
	require.NoError(t, c.Close())

	_, _, lost := ev.counts()
	assert.Zero(t, lost)

	c.Connect(addr.IP.String(), addr.Port)
	assert.Equal(t, Closed, c.State())
}

func TestConnectionState_String(t *testing.T) {
	assert.Equal(t, "Connected", Connected.String())
	assert.Equal(t, "Unknown", ConnectionState(42).String())
}
