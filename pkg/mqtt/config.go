package mqtt

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// ClientConfig is the broker connection of a Client.
type ClientConfig struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string

	// KeepAlive is in seconds and defaults to 60.
	KeepAlive uint16

	ConnectTimeout time.Duration
	ReconnectDelay time.Duration

	CleanStart    bool
	SessionExpiry uint32

	InsecureSkipVerify bool
}

func setDefaultConfig(cfg *ClientConfig) {
	if cfg.KeepAlive == 0 {
		cfg.KeepAlive = 60
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = 3 * time.Second
	}
}

// Validate requires a broker URL with a host.
func (c *ClientConfig) Validate() error {
	if c.BrokerURL == "" {
		return errors.New("broker url is required")
	}
	u, err := url.Parse(c.BrokerURL)
	if err != nil {
		return fmt.Errorf("invalid broker url: %w", err)
	}
	if u.Host == "" {
		return fmt.Errorf("broker url %q has no host", c.BrokerURL)
	}
	return nil
}
