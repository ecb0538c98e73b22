// Package metrics exposes Prometheus collectors for the session layer.
// Every method is safe to call on a nil *Metrics, so components take an
// optional collector and never check for it.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Frame drop reasons.
const (
	ReasonMalformed = "malformed"
	ReasonHandshake = "handshake"
	ReasonListener  = "listener"
)

// Handshake results.
const (
	HandshakeRequested     = "requested"
	HandshakeAuthenticated = "authenticated"
	HandshakeRejected      = "rejected"
	HandshakeFailed        = "failed"
)

// Connect attempt results.
const (
	ConnectAttempt = "attempt"
	ConnectSuccess = "success"
	ConnectFailed  = "failed"
	ConnectLost    = "lost"
)

// Config configures the collectors.
type Config struct {
	// Namespace is the metrics namespace (default: "gamenet").
	Namespace string
	// Subsystem separates server and client metrics in one process.
	Subsystem string
	// Registry is where collectors are registered.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures the collectors.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

// Metrics holds the collectors shared by the session manager, the client
// engine and the transport adapters.
type Metrics struct {
	activeSessions  prometheus.Gauge
	openConnections prometheus.Gauge
	framesReceived  prometheus.Counter
	framesSent      prometheus.Counter
	framesDropped   *prometheus.CounterVec
	handshakes      *prometheus.CounterVec
	connects        *prometheus.CounterVec
	tokensIssued    *prometheus.CounterVec
}

// New creates and registers the collectors.
//
// Parameters:
//   - opts: Optional configuration
//
// Returns:
//   - The collectors; registration panics on duplicate names like promauto does
func New(opts ...Option) *Metrics {
	cfg := Config{
		Namespace: "gamenet",
		Registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	factory := promauto.With(cfg.Registry)

	return &Metrics{
		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "active_sessions",
			Help:      "Number of sessions bound to a player",
		}),
		openConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "open_connections",
			Help:      "Number of accepted transport connections",
		}),
		framesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "frames_received_total",
			Help:      "Total number of frames received",
		}),
		framesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "frames_sent_total",
			Help:      "Total number of frames sent",
		}),
		framesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "frames_dropped_total",
			Help:      "Total number of frames dropped or rejected by a listener",
		}, []string{"reason"}),
		handshakes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "handshakes_total",
			Help:      "Authentication handshakes by result",
		}, []string{"result"}),
		connects: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "connects_total",
			Help:      "Client connection events by result",
		}, []string{"result"}),
		tokensIssued: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "tokens_issued_total",
			Help:      "Tokens issued by the authority, by status",
		}, []string{"status"}),
	}
}

// SetActiveSessions records the size of the player registry.
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

// SetOpenConnections records the number of tracked connections.
func (m *Metrics) SetOpenConnections(n int) {
	if m == nil {
		return
	}
	m.openConnections.Set(float64(n))
}

// FrameReceived counts one inbound frame.
func (m *Metrics) FrameReceived() {
	if m == nil {
		return
	}
	m.framesReceived.Inc()
}

// FrameSent counts one outbound frame.
func (m *Metrics) FrameSent() {
	if m == nil {
		return
	}
	m.framesSent.Inc()
}

// FrameDropped counts one frame that could not be processed.
func (m *Metrics) FrameDropped(reason string) {
	if m == nil {
		return
	}
	m.framesDropped.WithLabelValues(reason).Inc()
}

// Handshake counts one handshake step.
func (m *Metrics) Handshake(result string) {
	if m == nil {
		return
	}
	m.handshakes.WithLabelValues(result).Inc()
}

// Connect counts one client connection event.
func (m *Metrics) Connect(result string) {
	if m == nil {
		return
	}
	m.connects.WithLabelValues(result).Inc()
}

// TokenIssued counts one token issued by the authority.
func (m *Metrics) TokenIssued(status string) {
	if m == nil {
		return
	}
	m.tokensIssued.WithLabelValues(status).Inc()
}
