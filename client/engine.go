// Package client drives the client side of a gamenet connection: the
// connect/retry state machine and the per-tick update loop that hands
// received frames to listeners.
package client

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cyberinferno/gamenet/logger"
	"github.com/cyberinferno/gamenet/metrics"
	"github.com/cyberinferno/gamenet/protocol"
)

// ErrNotConnected is returned when sending while the engine is not
// connected.
var ErrNotConnected = errors.New("client: not connected")

// Engine owns the connection lifecycle of one client. State changes only
// when the transport reports them: Disconnect asks for a teardown, and the
// engine stays connected until ConnectionLost arrives.
//
// Received frames are queued from the transport goroutine and delivered to
// listeners by Update, which the application calls once per tick.
type Engine struct {
	transport Transport
	log       logger.Logger
	metrics   *metrics.Metrics
	retry     *RetryStrategy

	stateMu    sync.Mutex
	connected  bool
	connecting bool
	address    string
	port       int
	hasTarget  bool

	queueMu sync.Mutex
	ready   []string
	delayed []string

	listenersMu sync.RWMutex
	listeners   []Listener
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// WithRetryStrategy sets the reconnection policy. The default is None.
func WithRetryStrategy(r *RetryStrategy) Option {
	return func(e *Engine) {
		e.retry = r
	}
}

// WithMetrics sets the collectors updated by the engine.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// NewEngine creates a disconnected Engine and binds it to t.
//
// Parameters:
//   - t: The transport; its callbacks are bound to the new engine
//   - opts: Optional configuration
//
// Returns:
//   - The engine
func NewEngine(t Transport, opts ...Option) *Engine {
	e := &Engine{
		transport: t,
		log:       logger.NewNopLogger(),
		retry:     None(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.With(logger.Field{Key: "component", Value: "client-engine"})

	t.Bind(e)
	return e
}

// AddListener registers l. Listeners are called in registration order.
func (e *Engine) AddListener(l Listener) {
	e.listenersMu.Lock()
	defer e.listenersMu.Unlock()
	e.listeners = append(e.listeners, l)
}

// Connect records the target and asks the transport to connect. Calling it
// while a connection attempt is in flight is not guarded against.
//
// Parameters:
//   - address: Host to connect to
//   - port: Port to connect to
func (e *Engine) Connect(address string, port int) {
	e.stateMu.Lock()
	e.address = address
	e.port = port
	e.hasTarget = true
	e.connecting = true
	e.stateMu.Unlock()

	e.metrics.Connect(metrics.ConnectAttempt)
	e.log.Info("connecting", logger.Field{Key: "address", Value: address}, logger.Field{Key: "port", Value: port})
	e.transport.Connect(address, port)
}

// ConnectionSuccessful implements Callbacks.
func (e *Engine) ConnectionSuccessful() {
	e.stateMu.Lock()
	e.connected = true
	e.connecting = false
	e.stateMu.Unlock()

	e.metrics.Connect(metrics.ConnectSuccess)
	e.log.Info("connected")
	for _, l := range e.snapshotListeners() {
		l.Connected()
	}
}

// ConnectionFailed implements Callbacks.
func (e *Engine) ConnectionFailed() {
	e.stateMu.Lock()
	e.connected = false
	e.connecting = false
	e.stateMu.Unlock()

	e.metrics.Connect(metrics.ConnectFailed)
	e.log.Warn("connection failed")
	for _, l := range e.snapshotListeners() {
		l.ConnectionFailed()
	}
}

// ConnectionLost implements Callbacks. It does nothing unless the engine
// was connected, so duplicate notifications are harmless.
func (e *Engine) ConnectionLost() {
	e.stateMu.Lock()
	if !e.connected {
		e.stateMu.Unlock()
		return
	}
	e.connected = false
	e.connecting = false
	e.stateMu.Unlock()

	e.metrics.Connect(metrics.ConnectLost)
	e.log.Warn("connection lost")
	for _, l := range e.snapshotListeners() {
		l.ConnectionLost()
	}
}

// MessageReceived implements Callbacks. The frame is queued for the next
// Update; it is safe to call from any goroutine.
func (e *Engine) MessageReceived(frame string) {
	e.metrics.FrameReceived()

	e.queueMu.Lock()
	e.ready = append(e.ready, frame)
	e.queueMu.Unlock()
}

// DelayMessageToNextFrame defers frame by one Update. Listeners call it for
// frames they cannot interpret yet. Delayed frames are delivered at the
// start of the next Update, ahead of frames received in the meantime.
func (e *Engine) DelayMessageToNextFrame(frame string) {
	e.queueMu.Lock()
	e.delayed = append(e.delayed, frame)
	e.queueMu.Unlock()
}

// Pending returns the number of frames waiting for the next Update.
func (e *Engine) Pending() int {
	e.queueMu.Lock()
	defer e.queueMu.Unlock()
	return len(e.ready) + len(e.delayed)
}

// Update delivers queued frames and drives reconnection. Frames delayed
// during the previous Update go first, then received frames in arrival
// order; each frame goes to every listener in registration order. When
// neither connected nor connecting, the retry strategy is asked whether to
// reconnect to the last target.
func (e *Engine) Update() {
	e.queueMu.Lock()
	batch := make([]string, 0, len(e.delayed)+len(e.ready))
	batch = append(batch, e.delayed...)
	batch = append(batch, e.ready...)
	e.delayed = nil
	e.ready = nil
	e.queueMu.Unlock()

	listeners := e.snapshotListeners()
	for _, frame := range batch {
		for i, l := range listeners {
			if err := l.Parse(frame); err != nil {
				e.metrics.FrameDropped(metrics.ReasonListener)
				e.log.Error("listener failed to parse frame",
					logger.Field{Key: "listener", Value: i},
					logger.Field{Key: "frame", Value: frame},
					logger.Err(err),
				)
			}
		}
	}

	e.stateMu.Lock()
	idle := !e.connected && !e.connecting && e.hasTarget
	address, port := e.address, e.port
	e.stateMu.Unlock()

	if idle && e.retry.CanRetryToConnect() {
		e.log.Info("retrying connection")
		e.Connect(address, port)
	}
}

// SendMessage frames m and sends it.
func (e *Engine) SendMessage(m protocol.Framer) error {
	return e.Send(m.Frame())
}

// Send sends a raw frame.
//
// Returns:
//   - ErrNotConnected when not connected
//   - An error wrapping protocol.ErrTransport if the transport failed
func (e *Engine) Send(frame string) error {
	if !e.IsConnected() {
		return ErrNotConnected
	}

	if err := e.transport.Send(frame); err != nil {
		return fmt.Errorf("%w: %w", protocol.ErrTransport, err)
	}

	e.metrics.FrameSent()
	return nil
}

// Disconnect asks the transport to close the connection. The engine stays
// connected until the transport reports ConnectionLost.
func (e *Engine) Disconnect() error {
	if err := e.transport.Disconnect(); err != nil {
		return fmt.Errorf("%w: %w", protocol.ErrTransport, err)
	}
	return nil
}

// Close releases the transport.
func (e *Engine) Close() error {
	return e.transport.Close()
}

// IsConnected reports whether the transport confirmed a connection.
func (e *Engine) IsConnected() bool {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.connected
}

// IsConnecting reports whether a connection attempt is in flight.
func (e *Engine) IsConnecting() bool {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()
	return e.connecting
}

func (e *Engine) snapshotListeners() []Listener {
	e.listenersMu.RLock()
	defer e.listenersMu.RUnlock()
	return append([]Listener(nil), e.listeners...)
}
