package wsserver

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberinferno/gamenet/logger"
	"github.com/cyberinferno/gamenet/protocol"
	"github.com/cyberinferno/gamenet/session"
)

func newTestServer(t *testing.T) (*session.Manager, *protocol.Factory, *Server, string) {
	t.Helper()
	f, err := protocol.NewFactory(protocol.NewRegistry())
	require.NoError(t, err)

	m := session.NewManager(f)
	m.SetAuthenticator(session.AuthenticatorFunc(func(s session.Session, _ protocol.Token) error {
		m.SetAuthenticated(s)
		return nil
	}))

	ws := New(m, DefaultConfig(), logger.NewNopLogger())
	hs := httptest.NewServer(ws)
	t.Cleanup(hs.Close)

	return m, f, ws, "ws" + strings.TrimPrefix(hs.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return c
}

func TestServer(t *testing.T) {
	m, f, ws, url := newTestServer(t)
	c := dial(t, url)
	defer c.Close()

	t.Run("handshake", func(t *testing.T) {
		req := f.ConnectionRequest(protocol.Token{Player: 5, Key: 10}).Frame()
		require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(req)))

		assert.Eventually(t, func() bool {
			return m.GetSessionByPlayer(5).IsAuthenticated()
		}, time.Second, 5*time.Millisecond)
		assert.Equal(t, 1, ws.ConnectionCount())
	})

	t.Run("binary messages are ignored", func(t *testing.T) {
		require.NoError(t, c.WriteMessage(websocket.BinaryMessage, []byte("&40_a#")))
		assert.True(t, m.GetSessionByPlayer(5).IsConnected())
	})

	t.Run("server to client", func(t *testing.T) {
		msg := f.VersionResponse(protocol.VersionCheck{ServerTime: 7})
		m.Broadcast(msg)

		require.NoError(t, c.SetReadDeadline(time.Now().Add(time.Second)))
		kind, data, err := c.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, websocket.TextMessage, kind)
		assert.Equal(t, msg.Frame(), string(data))
	})

	t.Run("client close", func(t *testing.T) {
		require.NoError(t, c.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))

		assert.Eventually(t, func() bool {
			return ws.ConnectionCount() == 0 && m.ConnectionCount() == 0
		}, time.Second, 5*time.Millisecond)
		assert.Equal(t, session.Disconnected, m.GetSessionByPlayer(5))
	})
}

func TestServer_Shutdown(t *testing.T) {
	m, _, ws, url := newTestServer(t)
	c := dial(t, url)
	defer c.Close()

	require.Eventually(t, func() bool {
		return m.ConnectionCount() == 1
	}, time.Second, 5*time.Millisecond)

	ws.Shutdown()
	assert.Zero(t, ws.ConnectionCount())
	assert.Zero(t, m.ConnectionCount())

	require.NoError(t, c.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err := c.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}

func TestServer_AfterShutdown(t *testing.T) {
	m, _, ws, url := newTestServer(t)
	ws.Shutdown()

	c := dial(t, url)
	defer c.Close()

	require.NoError(t, c.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err := c.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway))
	assert.Zero(t, ws.ConnectionCount())
	assert.Zero(t, m.ConnectionCount())
}

func TestServer_NotUpgrade(t *testing.T) {
	_, _, ws, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	ws.ServeHTTP(rec, httptest.NewRequest("GET", "/ws", nil))
	assert.Equal(t, 400, rec.Code)
	assert.Zero(t, ws.ConnectionCount())
}
