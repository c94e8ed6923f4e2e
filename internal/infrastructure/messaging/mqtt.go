package messaging

import (
	"context"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/biblioteca/backend/internal/infrastructure/config"
)

// MQTTTransport speaks to the kiosk readers through an MQTT broker
type MQTTTransport struct {
	client   mqtt.Client
	registry *SubscriptionRegistry
	qos      byte
	timeout  time.Duration
	logger   *zap.Logger
}

// NewMQTTTransport connects to the broker described by cfg.
// Subscriptions registered before a reconnect are restored automatically.
func NewMQTTTransport(cfg config.MQTTConfig, logger *zap.Logger) (*MQTTTransport, error) {
	t := &MQTTTransport{
		registry: NewSubscriptionRegistry(),
		qos:      byte(cfg.QoS),
		timeout:  cfg.ConnectTimeout,
		logger:   logger,
	}

	t.client = mqtt.NewClient(t.clientOptions(cfg))
	token := t.client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		// ConnectRetry keeps trying in the background; deliveries resume on connect
		logger.Warn("mqtt broker not reachable yet, retrying in background",
			zap.String("broker", cfg.BrokerURL()),
		)
		return t, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", cfg.BrokerURL(), err)
	}
	return t, nil
}

func (t *MQTTTransport) clientOptions(cfg config.MQTTConfig) *mqtt.ClientOptions {
	return mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL()).
		SetClientID(fmt.Sprintf("%s-%d", cfg.ClientID, time.Now().UnixNano())).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetCleanSession(cfg.CleanSession).
		// handlers run on their own goroutines so a slow store never stalls the router
		SetOrderMatters(false).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(cfg.ReconnectDelay).
		SetMaxReconnectInterval(cfg.ReconnectDelay).
		SetKeepAlive(cfg.KeepAlive).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetOnConnectHandler(t.onConnect).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			t.logger.Warn("mqtt connection lost", zap.Error(err))
		}).
		SetReconnectingHandler(func(_ mqtt.Client, _ *mqtt.ClientOptions) {
			t.logger.Info("mqtt reconnecting", zap.String("broker", cfg.BrokerURL()))
		})
}

// Publish sends payload with the configured QoS
func (t *MQTTTransport) Publish(ctx context.Context, topic string, payload []byte) error {
	token := t.client.Publish(topic, t.qos, false, payload)
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers handler and subscribes on the broker if connected
func (t *MQTTTransport) Subscribe(ctx context.Context, pattern string, handler Handler) error {
	t.registry.Register(pattern, handler)
	if !t.client.IsConnectionOpen() {
		// onConnect subscribes everything in the registry
		return nil
	}
	return t.subscribe(ctx, pattern)
}

// Connected reports whether the broker connection is up
func (t *MQTTTransport) Connected() bool {
	return t.client.IsConnectionOpen()
}

// Close disconnects, waiting up to 250ms for in-flight work
func (t *MQTTTransport) Close() error {
	t.client.Disconnect(250)
	return nil
}

func (t *MQTTTransport) onConnect(_ mqtt.Client) {
	t.logger.Info("mqtt connected")
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()
	for pattern := range t.registry.Patterns() {
		if err := t.subscribe(ctx, pattern); err != nil {
			t.logger.Error("mqtt resubscribe failed", zap.String("pattern", pattern), zap.Error(err))
		}
	}
}

func (t *MQTTTransport) subscribe(ctx context.Context, pattern string) error {
	token := t.client.Subscribe(pattern, t.qos, func(_ mqtt.Client, m mqtt.Message) {
		t.deliver(pattern, Message{Topic: m.Topic(), Payload: m.Payload()})
	})
	select {
	case <-token.Done():
		if err := token.Error(); err != nil {
			return fmt.Errorf("subscribe %s: %w", pattern, err)
		}
	case <-ctx.Done():
		return ctx.Err()
	}
	t.logger.Info("mqtt subscribed", zap.String("pattern", pattern))
	return nil
}

// deliver hands a broker message to the handlers of the subscription it arrived on.
// The broker delivers overlapping subscriptions separately.
func (t *MQTTTransport) deliver(pattern string, msg Message) {
	ctx := context.Background()
	for _, handler := range t.registry.ForPattern(pattern) {
		dispatch(ctx, t.logger, handler, msg)
	}
}

var _ Transport = (*MQTTTransport)(nil)
