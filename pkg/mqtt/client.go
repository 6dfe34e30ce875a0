package mqtt

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"github.com/roverops/missionctl/pkg/log"
)

var errNotStarted = errors.New("client not started")

// client relays mission traffic through an autopaho connection manager.
type client struct {
	cfg *ClientConfig
	cm  *autopaho.ConnectionManager

	mu     sync.RWMutex
	routes map[string]route
}

type route struct {
	qos     byte
	handler MessageHandler
}

// NewClient validates cfg and returns an unstarted Client.
func NewClient(cfg *ClientConfig) (Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("mqtt config is required")
	}
	setDefaultConfig(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mqtt config: %w", err)
	}
	return &client{cfg: cfg, routes: make(map[string]route)}, nil
}

func (c *client) Start(ctx context.Context) error {
	broker, _ := url.Parse(c.cfg.BrokerURL)

	cm, err := autopaho.NewConnection(ctx, autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{broker},
		KeepAlive:                     c.cfg.KeepAlive,
		CleanStartOnInitialConnection: c.cfg.CleanStart,
		SessionExpiryInterval:         c.cfg.SessionExpiry,
		ReconnectBackoff:              autopaho.NewConstantBackoff(c.cfg.ReconnectDelay),
		ConnectTimeout:                c.cfg.ConnectTimeout,
		ConnectUsername:               c.cfg.Username,
		ConnectPassword:               []byte(c.cfg.Password),
		TlsCfg:                        &tls.Config{InsecureSkipVerify: c.cfg.InsecureSkipVerify},
		OnConnectionUp:                c.resubscribe,
		OnConnectError: func(err error) {
			log.Warn("Broker unreachable, will retry", "broker", c.cfg.BrokerURL, "err", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: c.cfg.ClientID,
			OnClientError: func(err error) {
				log.Error(err, "Broker connection dropped")
			},
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){c.dispatch},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to start mqtt client: %w", err)
	}
	c.cm = cm
	log.Info("Connecting to broker", "broker", c.cfg.BrokerURL)
	return nil
}

func (c *client) Disconnect(ctx context.Context) {
	if c.cm != nil {
		_ = c.cm.Disconnect(ctx)
	}
}

func (c *client) Publish(ctx context.Context, topic string, qos int, retain bool, payload []byte) error {
	if c.cm == nil {
		return errNotStarted
	}
	_, err := c.cm.Publish(ctx, &paho.Publish{Topic: topic, QoS: byte(qos), Retain: retain, Payload: payload})
	return err
}

func (c *client) Subscribe(ctx context.Context, filter string, qos int, handler MessageHandler) error {
	if c.cm == nil {
		return errNotStarted
	}

	// Routed before the request so a reconnect re-sends it even if this fails.
	c.mu.Lock()
	c.routes[filter] = route{qos: byte(qos), handler: handler}
	c.mu.Unlock()

	if _, err := c.cm.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{{Topic: filter, QoS: byte(qos)}},
	}); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", filter, err)
	}
	log.Debug("Subscribed", "filter", filter)
	return nil
}

func (c *client) Unsubscribe(ctx context.Context, filter string) error {
	if c.cm == nil {
		return errNotStarted
	}

	c.mu.Lock()
	delete(c.routes, filter)
	c.mu.Unlock()

	_, err := c.cm.Unsubscribe(ctx, &paho.Unsubscribe{Topics: []string{filter}})
	return err
}

func (c *client) AwaitConnection(ctx context.Context) error {
	if c.cm == nil {
		return errNotStarted
	}
	return c.cm.AwaitConnection(ctx)
}

func (c *client) resubscribe(cm *autopaho.ConnectionManager, _ *paho.Connack) {
	c.mu.RLock()
	subs := make([]paho.SubscribeOptions, 0, len(c.routes))
	for filter, r := range c.routes {
		subs = append(subs, paho.SubscribeOptions{Topic: filter, QoS: r.qos})
	}
	c.mu.RUnlock()

	log.Info("Connected to broker", "broker", c.cfg.BrokerURL, "subscriptions", len(subs))
	if len(subs) == 0 {
		return
	}
	if _, err := cm.Subscribe(context.Background(), &paho.Subscribe{Subscriptions: subs}); err != nil {
		log.Error(err, "Failed to restore subscriptions")
	}
}

// dispatch hands a received publish to every route whose filter matches.
// Handlers run on their own goroutine so the paho reader never blocks.
func (c *client) dispatch(p paho.PublishReceived) (bool, error) {
	topic, payload := p.Packet.Topic, p.Packet.Payload

	c.mu.RLock()
	defer c.mu.RUnlock()
	for filter, r := range c.routes {
		if matchTopic(filter, topic) {
			go r.handler(context.Background(), topic, payload)
		}
	}
	return true, nil
}

// matchTopic reports whether topic is covered by filter, honoring the +
// single-level and # multi-level wildcards.
func matchTopic(filter, topic string) bool {
	for {
		f, fRest, fMore := strings.Cut(filter, "/")
		if f == "#" {
			return true
		}
		t, tRest, tMore := strings.Cut(topic, "/")
		if f != "+" && f != t {
			return false
		}
		switch {
		case !fMore && !tMore:
			return true
		case !fMore:
			return false
		case !tMore:
			// "a/#" also matches its parent "a".
			return fRest == "#"
		}
		filter, topic = fRest, tRest
	}
}
