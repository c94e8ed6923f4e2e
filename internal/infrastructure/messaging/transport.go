// Package messaging carries cart traffic between kiosks and the server over a
// topic-based publish/subscribe transport (MQTT, Redis pub/sub or in-process).
package messaging

import (
	"context"
	"errors"
)

// ErrTransportClosed is returned when publishing on a closed transport
var ErrTransportClosed = errors.New("messaging: transport closed")

// Message is a payload received on a concrete topic
type Message struct {
	Topic   string
	Payload []byte
}

// Handler processes a received message. Handlers run on the transport's
// delivery goroutine and must not block for long.
type Handler func(ctx context.Context, msg Message)

// Publisher publishes payloads to a topic
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Subscriber registers handlers for topic patterns.
// Patterns use MQTT syntax: '+' matches one level, a trailing '#' matches the rest.
type Subscriber interface {
	Subscribe(ctx context.Context, pattern string, handler Handler) error
}

// Transport combines publishing and subscribing
type Transport interface {
	Publisher
	Subscriber
	// Connected reports whether the transport can currently deliver messages
	Connected() bool
	// Close releases the connection and stops delivery
	Close() error
}
