package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(WithRegistry(reg), WithSubsystem("server"))

	t.Run("gauges", func(t *testing.T) {
		m.SetActiveSessions(3)
		m.SetOpenConnections(5)

		assert.Equal(t, 3.0, testutil.ToFloat64(m.activeSessions))
		assert.Equal(t, 5.0, testutil.ToFloat64(m.openConnections))
	})

	t.Run("counters", func(t *testing.T) {
		m.FrameReceived()
		m.FrameReceived()
		m.FrameSent()
		m.FrameDropped(ReasonMalformed)
		m.Handshake(HandshakeRequested)
		m.Connect(ConnectLost)
		m.TokenIssued("authenticated")

		assert.Equal(t, 2.0, testutil.ToFloat64(m.framesReceived))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.framesSent))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.framesDropped.WithLabelValues(ReasonMalformed)))
		assert.Equal(t, 0.0, testutil.ToFloat64(m.framesDropped.WithLabelValues(ReasonListener)))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.handshakes.WithLabelValues(HandshakeRequested)))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.connects.WithLabelValues(ConnectLost)))
		assert.Equal(t, 1.0, testutil.ToFloat64(m.tokensIssued.WithLabelValues("authenticated")))
	})

	t.Run("registered under namespace", func(t *testing.T) {
		families, err := reg.Gather()
		assert.NoError(t, err)

		names := make([]string, 0, len(families))
		for _, f := range families {
			names = append(names, f.GetName())
		}
		assert.Contains(t, names, "gamenet_server_active_sessions")
		assert.Contains(t, names, "gamenet_server_frames_received_total")
	})
}

func TestMetrics_Nil(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.SetActiveSessions(1)
		m.SetOpenConnections(1)
		m.FrameReceived()
		m.FrameSent()
		m.FrameDropped(ReasonListener)
		m.Handshake(HandshakeFailed)
		m.Connect(ConnectAttempt)
		m.TokenIssued("rejected")
	})
}
