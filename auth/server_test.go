package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberinferno/gamenet/logger"
	"github.com/cyberinferno/gamenet/protocol"
)

func TestServer(t *testing.T) {
	f := newTestFactory(t)
	server := NewServer(newTestAuthority(), f, logger.NewNopLogger(), nil, time.Second)

	tr := &pipeTransport{}
	s := server.Accept(tr)
	require.Equal(t, 1, server.ConnectionCount())

	t.Run("authentication request", func(t *testing.T) {
		server.ProcessMessages(s, f.AuthenticationRequest(protocol.Credentials{Login: "alice", Password: "wonderland"}).Frame())

		sent := tr.Sent()
		require.Len(t, sent, 1)
		tok, err := f.ParseAuthenticationResponse(sent[0])
		require.NoError(t, err)
		assert.Equal(t, protocol.PlayerID(5), tok.Player)
		assert.Equal(t, protocol.TokenAuthenticated, tok.Status)
	})

	t.Run("batched requests are answered in order", func(t *testing.T) {
		before := len(tr.Sent())
		tok, err := f.ParseAuthenticationResponse(tr.Sent()[0])
		require.NoError(t, err)

		buffer := f.TokenVerificationRequest(tok).Frame() +
			f.AuthenticationRequest(protocol.Credentials{Login: "alice", Password: "bad"}).Frame()
		server.ProcessMessages(s, buffer)

		sent := tr.Sent()[before:]
		require.Len(t, sent, 2)

		v, err := f.ParseTokenVerified(sent[0])
		require.NoError(t, err)
		assert.Equal(t, protocol.TokenVerification{Player: 5, Authenticated: true}, v)

		rejected, err := f.ParseAuthenticationResponse(sent[1])
		require.NoError(t, err)
		assert.Equal(t, protocol.TokenRejected, rejected.Status)
	})

	t.Run("unsupported and malformed frames are dropped", func(t *testing.T) {
		before := len(tr.Sent())
		server.ProcessMessages(s, "&25_1@2@0#&garbage#&10_only-one-field#")
		assert.Len(t, tr.Sent(), before)
		assert.True(t, s.IsConnected())
	})

	t.Run("connection closed", func(t *testing.T) {
		server.ConnectionClosed(s)
		assert.Zero(t, server.ConnectionCount())
		assert.True(t, tr.Closed())
		assert.False(t, s.IsConnected())

		server.ConnectionClosed(s)
		assert.Zero(t, server.ConnectionCount())
	})

	t.Run("shutdown", func(t *testing.T) {
		a, b := &pipeTransport{}, &pipeTransport{}
		server.Accept(a)
		server.Accept(b)
		require.Equal(t, 2, server.ConnectionCount())

		server.Shutdown()
		assert.Zero(t, server.ConnectionCount())
		assert.True(t, a.Closed())
		assert.True(t, b.Closed())
	})
}
