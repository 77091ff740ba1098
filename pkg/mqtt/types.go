package mqtt

import (
	"context"
)

// MessageHandler processes a message received on a subscribed topic.
type MessageHandler func(ctx context.Context, topic string, payload []byte)

// ConnectionHandler observes the broker connection going up or down.
type ConnectionHandler func(connected bool)

// Client is the broker connection used by the agent. Connecting and
// reconnecting happen in the background once Start returned.
type Client interface {
	// Start begins connecting. It does not wait for the broker; use AwaitConnection.
	Start(ctx context.Context) error

	// AwaitConnection blocks until the broker accepted the connection.
	AwaitConnection(ctx context.Context) error

	// Disconnect closes the connection without triggering the will.
	Disconnect(ctx context.Context)

	Publish(ctx context.Context, topic string, qos int, retain bool, payload []byte) error

	// Subscribe registers handler for a topic filter. Subscriptions are
	// replayed after every reconnect.
	Subscribe(ctx context.Context, filter string, qos int, handler MessageHandler) error

	IsConnected() bool

	// OnConnectionChange adds fn to the handlers called on every state change.
	OnConnectionChange(fn ConnectionHandler)
}
