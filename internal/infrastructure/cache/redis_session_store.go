package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	appcart "github.com/biblioteca/backend/internal/application/cart"
	"github.com/biblioteca/backend/internal/domain/circulation"
	"github.com/biblioteca/backend/internal/domain/shared"
)

const (
	defaultSessionKeyPrefix = "cart:"
	maxClaimAttempts        = 3
)

// compareAndDelete deletes KEYS[1] only if it still holds ARGV[1]
var compareAndDelete = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// swapActive moves the active pointer from ARGV[1] to ARGV[2] with a PX of ARGV[3].
// A missing pointer is claimed as well.
var swapActive = redis.NewScript(`
local current = redis.call("GET", KEYS[1])
if current == false or current == ARGV[1] then
	redis.call("SET", KEYS[1], ARGV[2], "PX", ARGV[3])
	return 1
end
return 0
`)

// RedisSessionStore implements cart.SessionStore on Redis so that several
// server instances agree on the single active session.
//
// Keys:
//
//	<prefix>active         session id of the active session (SET NX, TTL)
//	<prefix>session:<id>   hash with borrower_id, access_code, created_at
//	<prefix>code:<code>    session id for a kiosk access code
type RedisSessionStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	clock     shared.Clock
}

// NewRedisSessionStore creates a store with an existing Redis client
func NewRedisSessionStore(client *redis.Client, keyPrefix string, ttl time.Duration, clock shared.Clock) *RedisSessionStore {
	if keyPrefix == "" {
		keyPrefix = defaultSessionKeyPrefix
	}
	if ttl <= 0 {
		ttl = circulation.DefaultSessionTTL
	}
	if clock == nil {
		clock = shared.SystemClock{}
	}
	return &RedisSessionStore{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
		clock:     clock,
	}
}

func (s *RedisSessionStore) activeKey() string {
	return s.keyPrefix + "active"
}

func (s *RedisSessionStore) sessionKey(id string) string {
	return s.keyPrefix + "session:" + id
}

func (s *RedisSessionStore) codeKey(code string) string {
	return s.keyPrefix + "code:" + code
}

// Start implements cart.SessionStore
func (s *RedisSessionStore) Start(ctx context.Context, borrowerID string, replace bool) (*circulation.CartSession, *circulation.CartSession, error) {
	session, err := circulation.NewCartSession(borrowerID, s.clock.Now())
	if err != nil {
		return nil, nil, err
	}
	if err := s.write(ctx, session); err != nil {
		return nil, nil, err
	}

	for range maxClaimAttempts {
		prior, ok, err := s.claim(ctx, session, replace)
		if err != nil {
			s.discard(ctx, session)
			return nil, nil, err
		}
		if !ok {
			continue
		}
		if prior != nil {
			s.discard(ctx, prior)
		}
		return session, prior, nil
	}
	s.discard(ctx, session)
	return nil, nil, circulation.ErrSessionAlreadyActive
}

// claim points the active key at session. It returns the valid session it
// superseded, if any, and ok=false when another instance moved the pointer
// between the read and the swap.
func (s *RedisSessionStore) claim(ctx context.Context, session *circulation.CartSession, replace bool) (*circulation.CartSession, bool, error) {
	claimed, err := s.client.SetNX(ctx, s.activeKey(), session.ID, s.ttl).Result()
	if err != nil {
		return nil, false, storeError(err)
	}
	if claimed {
		return nil, true, nil
	}

	observed, err := s.activeID(ctx)
	if errors.Is(err, circulation.ErrSessionNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	prior, err := s.load(ctx, observed)
	switch {
	case errors.Is(err, circulation.ErrSessionNotFound):
		// expired or dangling pointer, take it over
		prior = nil
	case err != nil:
		return nil, false, err
	case !replace:
		return nil, false, circulation.ErrSessionAlreadyActive
	}

	swapped, err := swapActive.Run(ctx, s.client, []string{s.activeKey()},
		observed, session.ID, s.ttl.Milliseconds()).Int()
	if err != nil {
		return nil, false, storeError(err)
	}
	return prior, swapped == 1, nil
}

// Get implements cart.SessionStore
func (s *RedisSessionStore) Get(ctx context.Context, sessionID string) (*circulation.CartSession, error) {
	activeID, err := s.activeID(ctx)
	if err != nil {
		return nil, err
	}
	if activeID != sessionID {
		return nil, circulation.ErrSessionNotFound
	}
	return s.load(ctx, sessionID)
}

// Active implements cart.SessionStore
func (s *RedisSessionStore) Active(ctx context.Context) (*circulation.CartSession, error) {
	activeID, err := s.activeID(ctx)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, activeID)
}

// FindByAccessCode implements cart.SessionStore
func (s *RedisSessionStore) FindByAccessCode(ctx context.Context, code string) (*circulation.CartSession, error) {
	if code == "" {
		return nil, circulation.ErrSessionNotFound
	}
	sessionID, err := s.client.Get(ctx, s.codeKey(code)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, circulation.ErrSessionNotFound
	}
	if err != nil {
		return nil, storeError(err)
	}
	return s.Get(ctx, sessionID)
}

// End implements cart.SessionStore
func (s *RedisSessionStore) End(ctx context.Context, sessionID string) (bool, error) {
	session, loadErr := s.load(ctx, sessionID)

	n, err := compareAndDelete.Run(ctx, s.client, []string{s.activeKey()}, sessionID).Int()
	if err != nil {
		return false, storeError(err)
	}
	if loadErr == nil {
		s.discard(ctx, session)
	}
	return n > 0, nil
}

func (s *RedisSessionStore) activeID(ctx context.Context) (string, error) {
	id, err := s.client.Get(ctx, s.activeKey()).Result()
	if errors.Is(err, redis.Nil) {
		return "", circulation.ErrSessionNotFound
	}
	if err != nil {
		return "", storeError(err)
	}
	return id, nil
}

func (s *RedisSessionStore) write(ctx context.Context, session *circulation.CartSession) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		key := s.sessionKey(session.ID)
		pipe.HSet(ctx, key,
			"borrower_id", session.BorrowerID,
			"access_code", session.AccessCode,
			"created_at", session.CreatedAt.UnixMilli(),
		)
		pipe.Expire(ctx, key, s.ttl)
		pipe.Set(ctx, s.codeKey(session.AccessCode), session.ID, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("write session: %w", storeError(err))
	}
	return nil
}

func (s *RedisSessionStore) load(ctx context.Context, sessionID string) (*circulation.CartSession, error) {
	fields, err := s.client.HGetAll(ctx, s.sessionKey(sessionID)).Result()
	if err != nil {
		return nil, storeError(err)
	}
	if len(fields) == 0 {
		return nil, circulation.ErrSessionNotFound
	}
	createdMillis, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("corrupt session %s: %w", sessionID, err)
	}

	session := &circulation.CartSession{
		ID:         sessionID,
		BorrowerID: fields["borrower_id"],
		AccessCode: fields["access_code"],
		CreatedAt:  time.UnixMilli(createdMillis),
	}
	if session.IsExpired(s.clock.Now(), s.ttl) {
		return nil, circulation.ErrSessionNotFound
	}
	return session, nil
}

// discard removes a session's hash and code index; errors are ignored as the keys expire anyway
func (s *RedisSessionStore) discard(ctx context.Context, session *circulation.CartSession) {
	_ = s.client.Del(ctx, s.sessionKey(session.ID), s.codeKey(session.AccessCode)).Err()
}

// Close closes the Redis client
func (s *RedisSessionStore) Close() error {
	return s.client.Close()
}

var _ appcart.SessionStore = (*RedisSessionStore)(nil)
