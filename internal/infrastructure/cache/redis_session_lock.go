package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	appcart "github.com/biblioteca/backend/internal/application/cart"
	"github.com/biblioteca/backend/internal/domain/shared"
)

const (
	defaultLockTTL       = 10 * time.Second
	lockReleaseTimeout   = time.Second
	lockInitialInterval  = 5 * time.Millisecond
	lockMaxRetryInterval = 100 * time.Millisecond
)

var errLockHeld = errors.New("lock held by another instance")

// RedisSessionLock holds <prefix>lock:<key> with SET NX PX and a random token.
// The TTL bounds how long a crashed holder can block the key.
type RedisSessionLock struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisSessionLock creates a lock sharing keyPrefix with the session store
func NewRedisSessionLock(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisSessionLock {
	if keyPrefix == "" {
		keyPrefix = defaultSessionKeyPrefix
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisSessionLock{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

func (l *RedisSessionLock) lockKey(key string) string {
	return l.keyPrefix + "lock:" + key
}

// Acquire implements cart.RemoteLock. It polls until the lock is free, ctx ends
// or one TTL has passed, whichever comes first.
func (l *RedisSessionLock) Acquire(ctx context.Context, key string) (func(), error) {
	lockKey := l.lockKey(key)
	token := uuid.NewString()

	operation := func() error {
		ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
		if err != nil {
			return backoff.Permanent(storeError(err))
		}
		if !ok {
			return errLockHeld
		}
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = lockInitialInterval
	policy.MaxInterval = lockMaxRetryInterval
	policy.MaxElapsedTime = l.ttl

	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		if errors.Is(err, errLockHeld) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: lock %s: %w", shared.ErrTransientStore, key, err)
		}
		return nil, err
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lockReleaseTimeout)
		defer cancel()
		// a failed release expires with the TTL
		_ = compareAndDelete.Run(releaseCtx, l.client, []string{lockKey}, token).Err()
	}, nil
}

var _ appcart.RemoteLock = (*RedisSessionLock)(nil)
