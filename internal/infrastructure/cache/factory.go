package cache

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appcart "github.com/biblioteca/backend/internal/application/cart"
	"github.com/biblioteca/backend/internal/domain/shared"
)

// SessionStoreFactory creates the cart session store named in configuration
type SessionStoreFactory struct {
	client  *redis.Client
	ttl     time.Duration
	lockTTL time.Duration
	clock   shared.Clock
	logger  *zap.Logger
}

// SessionStoreFactoryOption is a functional option for configuring the factory
type SessionStoreFactoryOption func(*SessionStoreFactory)

// WithRedisClient supplies the client used by the redis store
func WithRedisClient(client *redis.Client) SessionStoreFactoryOption {
	return func(f *SessionStoreFactory) {
		f.client = client
	}
}

// WithClock overrides the clock used for TTL checks
func WithClock(clock shared.Clock) SessionStoreFactoryOption {
	return func(f *SessionStoreFactory) {
		f.clock = clock
	}
}

// WithLockTTL sets the lifetime of the cross-instance session lock
func WithLockTTL(ttl time.Duration) SessionStoreFactoryOption {
	return func(f *SessionStoreFactory) {
		f.lockTTL = ttl
	}
}

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) SessionStoreFactoryOption {
	return func(f *SessionStoreFactory) {
		f.logger = logger
	}
}

// NewSessionStoreFactory creates a new factory for sessions living ttl
func NewSessionStoreFactory(ttl time.Duration, opts ...SessionStoreFactoryOption) *SessionStoreFactory {
	f := &SessionStoreFactory{
		ttl:    ttl,
		clock:  shared.SystemClock{},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Create returns the store for kind ("memory" or "redis")
func (f *SessionStoreFactory) Create(kind string) (appcart.SessionStore, error) {
	switch kind {
	case "", "memory":
		f.logger.Info("Using in-process cart session store")
		return appcart.NewSessionRegistry(f.ttl, f.clock), nil
	case "redis":
		if f.client == nil {
			return nil, fmt.Errorf("redis session store requires a redis client")
		}
		f.logger.Info("Using Redis cart session store")
		return NewRedisSessionStore(f.client, "", f.ttl, f.clock), nil
	default:
		return nil, fmt.Errorf("unsupported session store: %s", kind)
	}
}

// CreateLocker returns the per-session locker matching the store kind.
// Sessions kept in Redis are shared by every instance, so their mutations
// also take a Redis lock.
func (f *SessionStoreFactory) CreateLocker(kind string) (*appcart.KeyedLocker, error) {
	switch kind {
	case "", "memory":
		return appcart.NewKeyedLocker(), nil
	case "redis":
		if f.client == nil {
			return nil, fmt.Errorf("redis session lock requires a redis client")
		}
		return appcart.NewKeyedLocker(
			appcart.WithRemoteLock(NewRedisSessionLock(f.client, "", f.lockTTL)),
		), nil
	default:
		return nil, fmt.Errorf("unsupported session store: %s", kind)
	}
}
