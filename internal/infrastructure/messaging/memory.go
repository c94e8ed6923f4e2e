package messaging

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"
)

// InMemoryTransport delivers messages synchronously inside the process
type InMemoryTransport struct {
	registry *SubscriptionRegistry
	logger   *zap.Logger
	closed   atomic.Bool
}

// NewInMemoryTransport creates a new in-memory transport
func NewInMemoryTransport(logger *zap.Logger) *InMemoryTransport {
	return &InMemoryTransport{
		registry: NewSubscriptionRegistry(),
		logger:   logger,
	}
}

// Publish dispatches payload to every matching handler before returning
func (t *InMemoryTransport) Publish(ctx context.Context, topic string, payload []byte) error {
	if t.closed.Load() {
		return ErrTransportClosed
	}
	msg := Message{Topic: topic, Payload: append([]byte(nil), payload...)}
	for _, handler := range t.registry.Match(topic) {
		dispatch(ctx, t.logger, handler, msg)
	}
	return nil
}

// Subscribe registers a handler for a pattern
func (t *InMemoryTransport) Subscribe(_ context.Context, pattern string, handler Handler) error {
	if t.closed.Load() {
		return ErrTransportClosed
	}
	t.registry.Register(pattern, handler)
	t.logger.Debug("handler subscribed", zap.String("pattern", pattern))
	return nil
}

// Connected returns true until Close is called
func (t *InMemoryTransport) Connected() bool {
	return !t.closed.Load()
}

// Close stops delivery
func (t *InMemoryTransport) Close() error {
	t.closed.Store(true)
	return nil
}

// dispatch runs a handler and keeps a panic from reaching the delivery loop
func dispatch(ctx context.Context, logger *zap.Logger, handler Handler, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("message handler panicked",
				zap.String("topic", msg.Topic),
				zap.Any("panic", r),
			)
		}
	}()
	handler(ctx, msg)
}

var _ Transport = (*InMemoryTransport)(nil)
