package messaging

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisTransport relays cart topics over Redis pub/sub.
// MQTT patterns are translated to PSUBSCRIBE globs.
type RedisTransport struct {
	client *redis.Client
	logger *zap.Logger

	mu     sync.Mutex
	pubsub []*redis.PubSub
	wg     sync.WaitGroup
	closed bool
}

// NewRedisTransport wraps an existing client
func NewRedisTransport(client *redis.Client, logger *zap.Logger) *RedisTransport {
	return &RedisTransport{
		client: client,
		logger: logger,
	}
}

// Publish publishes payload on the channel named by topic
func (t *RedisTransport) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := t.client.Publish(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe starts a PSUBSCRIBE for pattern and delivers matches to handler
func (t *RedisTransport) Subscribe(ctx context.Context, pattern string, handler Handler) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrTransportClosed
	}

	ps := t.client.PSubscribe(ctx, ToGlob(pattern))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return fmt.Errorf("redis psubscribe %s: %w", pattern, err)
	}
	t.pubsub = append(t.pubsub, ps)

	t.wg.Add(1)
	go t.consume(ps, pattern, handler)
	t.logger.Info("redis subscribed", zap.String("pattern", pattern))
	return nil
}

// consume delivers one subscription's messages to its own handler
func (t *RedisTransport) consume(ps *redis.PubSub, pattern string, handler Handler) {
	defer t.wg.Done()
	ctx := context.Background()
	for m := range ps.Channel() {
		// globs are looser than MQTT levels, so re-check the pattern
		if !MatchTopic(pattern, m.Channel) {
			continue
		}
		dispatch(ctx, t.logger, handler, Message{Topic: m.Channel, Payload: []byte(m.Payload)})
	}
}

// Connected pings the server
func (t *RedisTransport) Connected() bool {
	return t.client.Ping(context.Background()).Err() == nil
}

// Close unsubscribes and waits for consumers to drain
func (t *RedisTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	subs := t.pubsub
	t.pubsub = nil
	t.mu.Unlock()

	for _, ps := range subs {
		_ = ps.Close()
	}
	t.wg.Wait()
	return nil
}

// ToGlob converts an MQTT topic pattern to a Redis glob
func ToGlob(pattern string) string {
	parts := strings.Split(pattern, "/")
	for i, p := range parts {
		if p == "+" || p == "#" {
			parts[i] = "*"
		}
	}
	return strings.Join(parts, "/")
}

var _ Transport = (*RedisTransport)(nil)
