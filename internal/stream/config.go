package stream

import (
	"fmt"
	"net/url"
	"time"

	"github.com/go-logr/logr"
	"k8s.io/utils/clock"

	"github.com/roverops/missionctl/pkg/options"
)

// Config holds the client's connection settings.
type Config struct {
	// URL is the stream base; sessions dial {URL}/ws/mission/{id}.
	URL string

	// MaxReconnectAttempts bounds reconnection after an abnormal closure.
	// Zero disables reconnection and is not defaulted.
	MaxReconnectAttempts int

	// ReconnectDelay and HandshakeTimeout fall back to the options package
	// defaults when zero.
	ReconnectDelay   time.Duration
	HandshakeTimeout time.Duration

	// PingInterval sends a keepalive ping while open. Zero disables it.
	PingInterval time.Duration
}

// NewConfig converts command-line options into a Config.
func NewConfig(o *options.StreamOptions) *Config {
	return &Config{
		URL:                  o.URL,
		MaxReconnectAttempts: o.MaxReconnectAttempts,
		ReconnectDelay:       o.ReconnectDelay,
		HandshakeTimeout:     o.HandshakeTimeout,
		PingInterval:         o.PingInterval,
	}
}

func setDefaultConfig(cfg *Config) {
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = options.DefaultReconnectDelay
	}
	if cfg.HandshakeTimeout == 0 {
		cfg.HandshakeTimeout = options.DefaultHandshakeTimeout
	}
}

// Validate checks the config for obvious mistakes.
func (c *Config) Validate() error {
	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("invalid stream url %q: %w", c.URL, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("stream url %q must use ws or wss", c.URL)
	}
	if c.MaxReconnectAttempts < 0 {
		return fmt.Errorf("max reconnect attempts must not be negative")
	}
	if c.ReconnectDelay < 0 || c.PingInterval < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	return nil
}

// Option customizes a Client.
type Option func(*Client)

// WithLogger sets the client's logger.
func WithLogger(l logr.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithClock replaces the clock used for backoff timers and pings.
func WithClock(clk clock.WithTickerAndDelayedExecution) Option {
	return func(c *Client) { c.clock = clk }
}

// WithDialer replaces the transport.
func WithDialer(d Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// WithStateObserver registers fn for every session state change. fn runs
// with the client locked and must not call back into it; State is the
// only exception.
func WithStateObserver(fn func(Transition)) Option {
	return func(c *Client) { c.observer = fn }
}
