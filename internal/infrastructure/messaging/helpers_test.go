package messaging

import (
	"context"
	"sync"
	"time"

	"github.com/biblioteca/backend/internal/infrastructure/config"
)

func configFor(driver string) config.TransportConfig {
	return config.TransportConfig{Driver: driver}
}

func mqttDefaults() config.MQTTConfig {
	return config.MQTTConfig{
		Host:           "localhost",
		Port:           1883,
		ClientID:       "test",
		QoS:            1,
		ConnectTimeout: time.Second,
		ReconnectDelay: time.Second,
		KeepAlive:      time.Minute,
	}
}

// collector records messages delivered on another goroutine
type collector struct {
	mu   sync.Mutex
	msgs []Message
}

func (c *collector) handle(_ context.Context, msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
}

func (c *collector) topics() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.msgs))
	for i, m := range c.msgs {
		out[i] = m.Topic
	}
	return out
}
