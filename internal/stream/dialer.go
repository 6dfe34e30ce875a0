package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// maxMessageSize bounds a single inbound frame.
const maxMessageSize = 1 << 20

// Conn is an established message-oriented session. *websocket.Conn
// satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens a Conn to a stream endpoint.
type Dialer interface {
	DialContext(ctx context.Context, url string) (Conn, error)
}

type websocketDialer struct {
	dialer *websocket.Dialer
}

// NewWebsocketDialer returns a Dialer backed by gorilla/websocket.
func NewWebsocketDialer(handshakeTimeout time.Duration) Dialer {
	return &websocketDialer{
		dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: handshakeTimeout,
		},
	}
}

func (d *websocketDialer) DialContext(ctx context.Context, url string) (Conn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("%w (handshake status %s)", err, resp.Status)
		}
		return nil, err
	}
	conn.SetReadLimit(maxMessageSize)
	return conn, nil
}
