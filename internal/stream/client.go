// Package stream implements the mission event stream client: one socket
// session per mission, kind-keyed handler dispatch and bounded linear
// reconnection after an unexpected closure.
package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"sync"

	"github.com/go-logr/logr"
	"github.com/gorilla/websocket"
	"k8s.io/utils/clock"

	"github.com/roverops/missionctl/internal/metrics"
	fsmutil "github.com/roverops/missionctl/internal/pkg/util/fsm"
	v1 "github.com/roverops/missionctl/pkg/apis/mission/v1"
	"github.com/roverops/missionctl/pkg/log"
)

var (
	// ErrNotConnected is returned by Write when no session is open.
	ErrNotConnected = errors.New("stream: not connected")

	// ErrSuperseded is returned by Connect when Disconnect or another
	// Connect ran before the handshake finished.
	ErrSuperseded = errors.New("stream: connection superseded")
)

// HandlerFunc receives an inbound message. The message is shared between
// handlers and must not be modified.
type HandlerFunc func(msg *v1.StreamMessage)

type handlerEntry struct {
	id uint64
	fn HandlerFunc
}

// Client owns at most one stream session at a time.
type Client struct {
	cfg      Config
	dialer   Dialer
	clock    clock.WithTickerAndDelayedExecution
	logger   logr.Logger
	backoff  LinearBackoff
	observer func(Transition)
	fsm      *sessionFSM

	mu sync.Mutex
	// gen changes on every Connect and Disconnect. Goroutines and timers
	// carry the gen they were started under and stand down on mismatch.
	gen        uint64
	missionID  string
	session    *session
	attempts   int
	retry      clock.Timer
	cancelDial context.CancelFunc
	handlers   map[Kind][]handlerEntry
	nextID     uint64
}

// NewClient creates an idle Client.
func NewClient(cfg *Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("stream config is required")
	}

	c := &Client{cfg: *cfg}
	setDefaultConfig(&c.cfg)
	if err := c.cfg.Validate(); err != nil {
		return nil, err
	}

	c.logger = log.Logr().WithName("stream")
	c.clock = clock.RealClock{}
	for _, o := range opts {
		o(c)
	}
	if c.dialer == nil {
		c.dialer = NewWebsocketDialer(c.cfg.HandshakeTimeout)
	}

	c.backoff = LinearBackoff{Base: c.cfg.ReconnectDelay, MaxAttempts: c.cfg.MaxReconnectAttempts}
	c.handlers = make(map[Kind][]handlerEntry)
	c.fsm = newSessionFSM(c.observer)
	return c, nil
}

// State returns the current session state.
func (c *Client) State() State {
	return State(c.fsm.Current())
}

// MissionID returns the mission the client is connected or reconnecting to.
func (c *Client) MissionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.missionID
}

// Connect opens a session for missionID and blocks until it is open. Any
// previous session is torn down first; registered handlers are kept. A
// failed handshake is returned and leaves the client idle without retrying.
func (c *Client) Connect(ctx context.Context, missionID string) error {
	if missionID == "" {
		return fmt.Errorf("mission id is required")
	}

	c.mu.Lock()
	c.teardownLocked()
	c.event(eventReset)
	c.missionID = missionID
	c.attempts = 0
	c.event(eventDial)
	gen := c.gen
	dialCtx, cancel := context.WithCancel(ctx)
	c.cancelDial = cancel
	c.mu.Unlock()
	defer cancel()

	conn, err := c.dial(dialCtx, missionID)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		if conn != nil {
			_ = conn.Close()
		}
		return ErrSuperseded
	}
	c.cancelDial = nil

	if err != nil {
		c.event(eventAbort)
		return fmt.Errorf("failed to connect to mission %s stream: %w", missionID, err)
	}

	c.openLocked(gen, conn)
	return nil
}

// On registers fn for messages of the given kind; KindAny receives every
// message. The returned func removes the registration.
func (c *Client) On(kind Kind, fn HandlerFunc) (unsubscribe func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	id := c.nextID
	c.handlers[kind] = append(c.handlers[kind], handlerEntry{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.handlers[kind] = slices.DeleteFunc(c.handlers[kind], func(e handlerEntry) bool {
				return e.id == id
			})
		})
	}
}

// Write encodes v as JSON and sends it on the open session.
func (c *Client) Write(v any) error {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()

	if s == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode stream message: %w", err)
	}
	return s.write(data)
}

// Send is the best-effort form of Write. It reports whether the payload was
// handed to the transport.
func (c *Client) Send(v any) bool {
	if err := c.Write(v); err != nil {
		c.logger.V(1).Info("Dropping outbound stream message", "reason", err.Error())
		return false
	}
	return true
}

// Disconnect closes the session, cancels any pending reconnection, clears
// every handler and resets the attempt counter. It is safe to call at any
// time, including from a handler, and more than once.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.teardownLocked()
	c.handlers = make(map[Kind][]handlerEntry)
	c.attempts = 0
	c.missionID = ""
	c.event(eventReset)
}

func (c *Client) endpoint(missionID string) string {
	return strings.TrimRight(c.cfg.URL, "/") + "/ws/mission/" + url.PathEscape(missionID)
}

func (c *Client) dial(ctx context.Context, missionID string) (Conn, error) {
	if c.cfg.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
		defer cancel()
	}
	return c.dialer.DialContext(ctx, c.endpoint(missionID))
}

func (c *Client) teardownLocked() {
	c.gen++
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	if c.cancelDial != nil {
		c.cancelDial()
		c.cancelDial = nil
	}
	if c.session != nil {
		c.session.close()
		c.session = nil
	}
}

func (c *Client) openLocked(gen uint64, conn Conn) {
	s := newSession(conn)
	c.session = s
	c.attempts = 0
	c.event(eventOpen)
	c.logger.Info("Mission stream connected", "missionID", c.missionID)

	go c.readLoop(gen, s)
	if c.cfg.PingInterval > 0 {
		go c.pingLoop(s)
	}
}

func (c *Client) readLoop(gen uint64, s *session) {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			c.handleClosed(gen, s, err)
			return
		}
		c.dispatch(gen, data)
	}
}

func (c *Client) dispatch(gen uint64, data []byte) {
	var msg v1.StreamMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		metrics.StreamMessagesTotal.WithLabelValues("malformed").Inc()
		c.logger.Error(err, "Dropping malformed stream message", "size", len(data))
		return
	}

	kind, known := ParseKind(msg.Type)
	if known {
		metrics.StreamMessagesTotal.WithLabelValues(kind.String()).Inc()
	} else {
		metrics.StreamMessagesTotal.WithLabelValues("unknown").Inc()
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	var fns []HandlerFunc
	if known {
		for _, e := range c.handlers[kind] {
			fns = append(fns, e.fn)
		}
	}
	for _, e := range c.handlers[KindAny] {
		fns = append(fns, e.fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(&msg)
	}
}

func (c *Client) handleClosed(gen uint64, s *session, err error) {
	s.close()

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen || c.session != s {
		return
	}
	c.session = nil

	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		c.logger.Info("Mission stream closed by peer", "missionID", c.missionID)
	} else {
		c.logger.Error(err, "Mission stream closed unexpectedly", "missionID", c.missionID)
	}

	c.event(eventDrop)
	c.scheduleReconnectLocked(gen)
}

func (c *Client) scheduleReconnectLocked(gen uint64) {
	if c.backoff.Exhausted(c.attempts) {
		c.logger.Info("Giving up on mission stream", "missionID", c.missionID, "attempts", c.attempts)
		c.event(eventGiveUp)
		return
	}

	c.attempts++
	delay := c.backoff.Delay(c.attempts)
	metrics.StreamReconnectAttemptsTotal.Inc()
	c.logger.Info("Scheduling mission stream reconnect", "missionID", c.missionID,
		"attempt", c.attempts, "maxAttempts", c.backoff.MaxAttempts, "delay", delay)

	// AfterFunc callbacks may run with the clock's lock held.
	c.retry = c.clock.AfterFunc(delay, func() { go c.reconnect(gen) })
}

func (c *Client) reconnect(gen uint64) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.retry = nil
	c.event(eventRetry)
	missionID := c.missionID
	ctx, cancel := context.WithCancel(context.Background())
	c.cancelDial = cancel
	c.mu.Unlock()
	defer cancel()

	conn, err := c.dial(ctx, missionID)

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	c.cancelDial = nil

	if err != nil {
		c.logger.Error(err, "Mission stream reconnect failed", "missionID", missionID, "attempt", c.attempts)
		c.event(eventFail)
		c.scheduleReconnectLocked(gen)
		return
	}

	c.openLocked(gen, conn)
}

func (c *Client) pingLoop(s *session) {
	ticker := c.clock.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	ping, _ := json.Marshal(v1.PingMessage{Type: v1.StreamTypePing})
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C():
			if err := s.write(ping); err != nil {
				c.logger.V(1).Info("Keepalive ping failed", "reason", err.Error())
			}
		}
	}
}

// event fires a state machine event. Events that do not apply to the
// current state are ignored.
func (c *Client) event(name string) {
	if err := fsmutil.IgnoreNoTransition(c.fsm.Event(context.Background(), name)); err != nil {
		c.logger.V(1).Info("Ignored stream state event", "event", name, "state", c.fsm.Current(), "reason", err.Error())
	}
}

// session is one open connection.
type session struct {
	conn Conn
	done chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func newSession(conn Conn) *session {
	return &session{conn: conn, done: make(chan struct{})}
}

func (s *session) write(data []byte) error {
	select {
	case <-s.done:
		return ErrNotConnected
	default:
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}
