package client

// Callbacks is how a transport reports back to the engine. Every method may
// be called from the transport's own goroutine.
type Callbacks interface {
	MessageReceived(frame string)
	ConnectionSuccessful()
	ConnectionFailed()
	ConnectionLost()
}

// Transport is the client side of one connection. Connect and Disconnect
// only start the operation; the outcome arrives through Callbacks.
type Transport interface {
	// Bind sets the callbacks. The engine calls it once, when created.
	Bind(cb Callbacks)
	Connect(address string, port int)
	Send(frame string) error
	Disconnect() error
	Close() error
}

// Listener consumes frames and connection events of an Engine. All methods
// run on the goroutine calling Engine.Update or on the transport goroutine
// for the connection events.
type Listener interface {
	// Parse handles one frame. An error is logged and does not stop the
	// frames or listeners that follow.
	Parse(frame string) error
	Connected()
	ConnectionFailed()
	ConnectionLost()
}

// ListenerFunc adapts a frame handler into a Listener that ignores
// connection events.
type ListenerFunc func(frame string) error

func (f ListenerFunc) Parse(frame string) error {
	return f(frame)
}

func (ListenerFunc) Connected() {}

func (ListenerFunc) ConnectionFailed() {}

func (ListenerFunc) ConnectionLost() {}

// NopTransport is a transport that goes nowhere. Connect never reports back
// and Send succeeds silently. It stands in for a real transport when a
// component needs an engine but no network.
type NopTransport struct{}

func (NopTransport) Bind(Callbacks) {}

func (NopTransport) Connect(string, int) {}

func (NopTransport) Send(string) error { return nil }

func (NopTransport) Disconnect() error { return nil }

func (NopTransport) Close() error { return nil }
