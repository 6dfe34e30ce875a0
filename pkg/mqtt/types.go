package mqtt

import "context"

// MessageHandler receives one message published on a subscribed topic.
type MessageHandler func(ctx context.Context, topic string, payload []byte)

// Client is a reconnecting MQTT v5 client.
type Client interface {
	// Start begins connecting in the background and returns at once.
	Start(ctx context.Context) error

	// AwaitConnection blocks until the broker accepted the connection.
	AwaitConnection(ctx context.Context) error

	Publish(ctx context.Context, topic string, qos int, retain bool, payload []byte) error

	// Subscribe routes messages matching filter to handler. The subscription
	// is restored after every reconnect.
	Subscribe(ctx context.Context, filter string, qos int, handler MessageHandler) error

	Unsubscribe(ctx context.Context, filter string) error

	Disconnect(ctx context.Context)
}
