package client

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyberinferno/gamenet/protocol"
)

type fakeTransport struct {
	mu          sync.Mutex
	cb          Callbacks
	connects    []string
	sent        []string
	disconnects int
	sendErr     error
}

func (f *fakeTransport) Bind(cb Callbacks) {
	f.cb = cb
}

func (f *fakeTransport) Connect(address string, port int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects = append(f.connects, fmt.Sprintf("%s:%d", address, port))
}

func (f *fakeTransport) Send(frame string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, frame)
	return nil
}

func (f *fakeTransport) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	return nil
}

func (f *fakeTransport) Close() error {
	return nil
}

func (f *fakeTransport) Connects() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.connects...)
}

type recordingListener struct {
	frames    []string
	connected int
	failed    int
	lost      int
	fail      func(frame string) error
}

func (r *recordingListener) Parse(frame string) error {
	if r.fail != nil {
		if err := r.fail(frame); err != nil {
			return err
		}
	}
	r.frames = append(r.frames, frame)
	return nil
}

func (r *recordingListener) Connected()        { r.connected++ }
func (r *recordingListener) ConnectionFailed() { r.failed++ }
func (r *recordingListener) ConnectionLost()   { r.lost++ }

func TestEngine_Lifecycle(t *testing.T) {
	tr := &fakeTransport{}
	e := NewEngine(tr)
	l := &recordingListener{}
	e.AddListener(l)

	require.Equal(t, e, tr.cb)
	assert.False(t, e.IsConnected())
	assert.False(t, e.IsConnecting())

	t.Run("connect is pending until the transport answers", func(t *testing.T) {
		e.Connect("localhost", 7000)
		assert.True(t, e.IsConnecting())
		assert.False(t, e.IsConnected())
		assert.Equal(t, []string{"localhost:7000"}, tr.Connects())
	})

	t.Run("connection successful", func(t *testing.T) {
		tr.cb.ConnectionSuccessful()
		assert.True(t, e.IsConnected())
		assert.False(t, e.IsConnecting())
		assert.Equal(t, 1, l.connected)
	})

	t.Run("disconnect does not flip the flag", func(t *testing.T) {
		require.NoError(t, e.Disconnect())
		assert.Equal(t, 1, tr.disconnects)
		assert.True(t, e.IsConnected())
	})

	t.Run("connection lost", func(t *testing.T) {
		tr.cb.ConnectionLost()
		assert.False(t, e.IsConnected())
		assert.Equal(t, 1, l.lost)
	})

	t.Run("duplicate loss is ignored", func(t *testing.T) {
		tr.cb.ConnectionLost()
		assert.Equal(t, 1, l.lost)
	})

	t.Run("connection failed", func(t *testing.T) {
		e.Connect("localhost", 7000)
		tr.cb.ConnectionFailed()
		assert.False(t, e.IsConnected())
		assert.False(t, e.IsConnecting())
		assert.Equal(t, 1, l.failed)
	})
}

func TestEngine_Update(t *testing.T) {
	t.Run("fifo delivery to every listener", func(t *testing.T) {
		tr := &fakeTransport{}
		e := NewEngine(tr)
		a, b := &recordingListener{}, &recordingListener{}
		e.AddListener(a)
		e.AddListener(b)

		e.MessageReceived("f1")
		e.MessageReceived("f2")
		assert.Equal(t, 2, e.Pending())

		e.Update()
		assert.Equal(t, []string{"f1", "f2"}, a.frames)
		assert.Equal(t, []string{"f1", "f2"}, b.frames)
		assert.Equal(t, 0, e.Pending())

		e.Update()
		assert.Len(t, a.frames, 2)
	})

	t.Run("listener error does not stop delivery", func(t *testing.T) {
		e := NewEngine(&fakeTransport{})
		failing := &recordingListener{fail: func(frame string) error {
			if frame == "f2" {
				return protocol.ErrMapping
			}
			return nil
		}}
		healthy := &recordingListener{}
		e.AddListener(failing)
		e.AddListener(healthy)

		e.MessageReceived("f1")
		e.MessageReceived("f2")
		e.MessageReceived("f3")
		e.Update()

		assert.Equal(t, []string{"f1", "f3"}, failing.frames)
		assert.Equal(t, []string{"f1", "f2", "f3"}, healthy.frames)
	})

	t.Run("delayed frames go first on the next update", func(t *testing.T) {
		e := NewEngine(&fakeTransport{})
		var delayedOnce bool
		l := &recordingListener{}
		e.AddListener(ListenerFunc(func(frame string) error {
			if frame == "later" && !delayedOnce {
				delayedOnce = true
				e.DelayMessageToNextFrame(frame)
				return errors.New("not ready")
			}
			return nil
		}))
		e.AddListener(l)

		e.MessageReceived("later")
		e.Update()
		assert.Equal(t, []string{"later"}, l.frames)
		assert.Equal(t, 1, e.Pending())

		e.MessageReceived("newer")
		e.Update()
		assert.Equal(t, []string{"later", "later", "newer"}, l.frames)
	})

	t.Run("concurrent producers", func(t *testing.T) {
		e := NewEngine(&fakeTransport{})
		l := &recordingListener{}
		e.AddListener(l)

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					e.MessageReceived(fmt.Sprintf("%d-%d", i, j))
				}
			}(i)
		}

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

	loop:
		for {
			select {
			case <-done:
				break loop
			default:
				e.Update()
			}
		}
		e.Update()

		assert.Len(t, l.frames, 1000)
	})
}

func TestEngine_Retry(t *testing.T) {
	t.Run("no target, no retry", func(t *testing.T) {
		tr := &fakeTransport{}
		e := NewEngine(tr, WithRetryStrategy(RetryEvery(0)))
		e.Update()
		assert.Empty(t, tr.Connects())
	})

	t.Run("default strategy never retries", func(t *testing.T) {
		tr := &fakeTransport{}
		e := NewEngine(tr)
		e.Connect("host", 1)
		tr.cb.ConnectionFailed()

		e.Update()
		e.Update()
		assert.Len(t, tr.Connects(), 1)
	})

	t.Run("bounded strategy reconnects to the last target", func(t *testing.T) {
		clock := &fakeClock{now: time.Unix(0, 0)}
		tr := &fakeTransport{}
		e := NewEngine(tr, WithRetryStrategy(RetryMaxEvery(2, time.Second).WithClock(clock.Now)))

		e.Connect("host", 9)
		tr.cb.ConnectionFailed()

		e.Update()
		assert.Len(t, tr.Connects(), 2)
		assert.True(t, e.IsConnecting())

		e.Update()
		assert.Len(t, tr.Connects(), 2, "still connecting")

		tr.cb.ConnectionFailed()
		e.Update()
		assert.Len(t, tr.Connects(), 2, "interval not elapsed")

		clock.Advance(time.Second)
		e.Update()
		assert.Len(t, tr.Connects(), 3)

		tr.cb.ConnectionFailed()
		clock.Advance(time.Hour)
		e.Update()
		assert.Len(t, tr.Connects(), 3, "budget exhausted")
		assert.Equal(t, []string{"host:9", "host:9", "host:9"}, tr.Connects())
	})

	t.Run("connected engine does not retry", func(t *testing.T) {
		tr := &fakeTransport{}
		e := NewEngine(tr, WithRetryStrategy(RetryEvery(0)))
		e.Connect("host", 1)
		tr.cb.ConnectionSuccessful()

		e.Update()
		assert.Len(t, tr.Connects(), 1)
	})
}

func TestEngine_Send(t *testing.T) {
	f, err := protocol.NewFactory(protocol.NewRegistry())
	require.NoError(t, err)

	t.Run("not connected", func(t *testing.T) {
		e := NewEngine(&fakeTransport{})
		assert.ErrorIs(t, e.Send("&0_x#"), ErrNotConnected)
	})

	t.Run("connected", func(t *testing.T) {
		tr := &fakeTransport{}
		e := NewEngine(tr)
		tr.cb.ConnectionSuccessful()

		msg := f.ConnectionRequest(protocol.Token{Player: 5, Key: 10})
		require.NoError(t, e.SendMessage(msg))
		assert.Equal(t, []string{"&25_5@10@0#"}, tr.sent)
	})

	t.Run("transport failure", func(t *testing.T) {
		tr := &fakeTransport{sendErr: errors.New("reset")}
		e := NewEngine(tr)
		tr.cb.ConnectionSuccessful()

		assert.ErrorIs(t, e.Send("&0_x#"), protocol.ErrTransport)
	})

	t.Run("nop transport", func(t *testing.T) {
		e := NewEngine(NopTransport{})
		e.Connect("nowhere", 0)
		assert.True(t, e.IsConnecting())
		assert.NoError(t, e.Close())
	})
}
