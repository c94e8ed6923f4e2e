package messaging

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/biblioteca/backend/internal/infrastructure/config"
)

// TransportFactory builds the transport selected by configuration
type TransportFactory struct {
	cfg         config.TransportConfig
	mqttConfig  config.MQTTConfig
	redisClient *redis.Client
	logger      *zap.Logger
}

// TransportFactoryOption is a functional option for configuring the factory
type TransportFactoryOption func(*TransportFactory)

// WithRedisClient supplies the client used by the redis driver
func WithRedisClient(client *redis.Client) TransportFactoryOption {
	return func(f *TransportFactory) {
		f.redisClient = client
	}
}

// WithLogger sets the logger for the factory and its transports
func WithLogger(logger *zap.Logger) TransportFactoryOption {
	return func(f *TransportFactory) {
		f.logger = logger
	}
}

// NewTransportFactory creates a new factory
func NewTransportFactory(cfg config.TransportConfig, mqttCfg config.MQTTConfig, opts ...TransportFactoryOption) *TransportFactory {
	f := &TransportFactory{
		cfg:        cfg,
		mqttConfig: mqttCfg,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create returns the configured transport
func (f *TransportFactory) Create() (Transport, error) {
	switch f.cfg.Driver {
	case "mqtt":
		t, err := NewMQTTTransport(f.mqttConfig, f.logger)
		if err != nil {
			return nil, err
		}
		f.logger.Info("using MQTT transport", zap.String("broker", f.mqttConfig.BrokerURL()))
		return t, nil
	case "redis":
		if f.redisClient == nil {
			return nil, fmt.Errorf("redis transport requires a redis client")
		}
		f.logger.Info("using Redis pub/sub transport")
		return NewRedisTransport(f.redisClient, f.logger), nil
	case "memory":
		f.logger.Warn("using in-memory transport; kiosks cannot reach this instance")
		return NewInMemoryTransport(f.logger), nil
	default:
		return nil, fmt.Errorf("unknown transport driver %q", f.cfg.Driver)
	}
}
