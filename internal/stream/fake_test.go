package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/roverops/missionctl/pkg/options"
)

var errConnClosed = errors.New("fake: connection closed")

type fakeConn struct {
	in     chan []byte
	closed chan struct{}
	once   sync.Once

	mu      sync.Mutex
	written []string
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan []byte),
		closed: make(chan struct{}),
	}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-f.in:
		return websocket.TextMessage, data, nil
	case <-f.closed:
		return 0, nil, errConnClosed
	}
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	select {
	case <-f.closed:
		return errConnClosed
	default:
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.written = append(f.written, string(data))
	return nil
}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

// push delivers a frame and blocks until the client has read it.
func (f *fakeConn) push(t *testing.T, frame string) {
	t.Helper()
	select {
	case f.in <- []byte(frame):
	case <-f.closed:
		t.Fatalf("push on closed connection")
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out pushing frame")
	}
}

func (f *fakeConn) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func (f *fakeConn) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.written...)
}

type fakeDialer struct {
	mu    sync.Mutex
	urls  []string
	conns []*fakeConn
	err   error
}

func (d *fakeDialer) DialContext(_ context.Context, url string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.urls = append(d.urls, url)
	if d.err != nil {
		return nil, d.err
	}
	c := newFakeConn()
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) setErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

func (d *fakeDialer) dials() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.urls)
}

func (d *fakeDialer) lastConn() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[len(d.conns)-1]
}

func (d *fakeDialer) lastURL() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.urls[len(d.urls)-1]
}

func newTestClient(t *testing.T, mutate func(*Config), opts ...Option) (*Client, *fakeDialer, *clocktesting.FakeClock) {
	t.Helper()

	cfg := &Config{
		URL:                  "ws://rover.test",
		MaxReconnectAttempts: options.DefaultMaxReconnectAttempts,
		ReconnectDelay:       time.Second,
	}
	if mutate != nil {
		mutate(cfg)
	}

	d := &fakeDialer{}
	fc := clocktesting.NewFakeClock(time.Now())
	opts = append([]Option{WithDialer(d), WithClock(fc), WithLogger(logr.Discard())}, opts...)

	c, err := NewClient(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(c.Disconnect)
	return c, d, fc
}

const waitFor, tick = 5 * time.Second, 5 * time.Millisecond

func waitState(t *testing.T, c *Client, want State) {
	t.Helper()
	require.Eventually(t, func() bool { return c.State() == want }, waitFor, tick,
		"state is %s, want %s", c.State(), want)
}
