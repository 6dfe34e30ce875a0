package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

// Stream client defaults.
const (
	DefaultMaxReconnectAttempts = 5
	DefaultReconnectDelay       = time.Second
	DefaultHandshakeTimeout     = 10 * time.Second
)

var _ IOptions = (*StreamOptions)(nil)

// StreamOptions configures the mission event stream client.
type StreamOptions struct {
	// URL is the stream base URL; sessions connect to {URL}/ws/mission/{id}.
	URL string `json:"url" mapstructure:"url"`

	// MaxReconnectAttempts bounds reconnection after an abnormal closure.
	// Zero disables reconnection.
	MaxReconnectAttempts int `json:"max-reconnect-attempts" mapstructure:"max-reconnect-attempts"`

	// ReconnectDelay is the base delay; attempt n waits n times this value.
	ReconnectDelay time.Duration `json:"reconnect-delay" mapstructure:"reconnect-delay"`

	// HandshakeTimeout bounds the opening handshake of one session.
	HandshakeTimeout time.Duration `json:"handshake-timeout" mapstructure:"handshake-timeout"`

	// PingInterval sends a keepalive ping while open. Zero disables it.
	PingInterval time.Duration `json:"ping-interval" mapstructure:"ping-interval"`
}

// NewStreamOptions creates a StreamOptions with default values.
func NewStreamOptions() *StreamOptions {
	return &StreamOptions{
		URL:                  "ws://localhost:8000",
		MaxReconnectAttempts: DefaultMaxReconnectAttempts,
		ReconnectDelay:       DefaultReconnectDelay,
		HandshakeTimeout:     DefaultHandshakeTimeout,
	}
}

func (o *StreamOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := []error{}

	if err := ValidateURL(o.URL, "ws", "wss"); err != nil {
		errors = append(errors, err)
	}
	if o.MaxReconnectAttempts < 0 {
		errors = append(errors, fmt.Errorf("--stream.max-reconnect-attempts must not be negative"))
	}
	if o.ReconnectDelay <= 0 {
		errors = append(errors, fmt.Errorf("--stream.reconnect-delay must be positive"))
	}
	if o.PingInterval < 0 {
		errors = append(errors, fmt.Errorf("--stream.ping-interval must not be negative"))
	}

	return errors
}

func (o *StreamOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.URL, "stream.url", o.URL, "Base URL of the mission event stream (ws:// or wss://).")
	fs.IntVar(&o.MaxReconnectAttempts, "stream.max-reconnect-attempts", o.MaxReconnectAttempts, "Reconnection attempts after an abnormal closure before giving up (0 disables reconnection).")
	fs.DurationVar(&o.ReconnectDelay, "stream.reconnect-delay", o.ReconnectDelay, "Base reconnection delay; attempt n waits n times this value.")
	fs.DurationVar(&o.HandshakeTimeout, "stream.handshake-timeout", o.HandshakeTimeout, "Timeout for the stream opening handshake.")
	fs.DurationVar(&o.PingInterval, "stream.ping-interval", o.PingInterval, "Keepalive ping interval while a session is open (0 disables).")
}
