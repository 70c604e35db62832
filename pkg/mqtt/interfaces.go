package mqtt

import "context"

// Client is the broker connection shared by the sensor source, the smart
// home command publisher, and the alert path
type Client interface {
	// Connect blocks until the first connection attempt resolves or the
	// context expires
	Connect(ctx context.Context) error

	// Disconnect flushes in-flight messages and closes the connection
	Disconnect()

	// Subscribe registers a handler for a topic filter. The subscription
	// survives broker reconnects.
	Subscribe(topic string, qos byte, handler MessageHandler) error

	// Publish sends a payload to a topic
	Publish(topic string, qos byte, retained bool, payload []byte) error

	// IsConnected reports whether the broker connection is up
	IsConnected() bool
}

// MessageHandler receives messages matching a subscribed topic filter
type MessageHandler func(Message)

// Message is a raw broker message
type Message interface {
	Topic() string
	Payload() []byte
}
