package cart

import (
	"context"
	"sync"
)

// RemoteLock serializes one key across server instances
type RemoteLock interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// KeyedLocker hands out one read/write lock per key.
// Entries are reference counted and dropped once no caller holds or waits on them.
type KeyedLocker struct {
	mu     sync.Mutex
	locks  map[string]*keyedLock
	remote RemoteLock
}

// KeyedLockerOption configures a KeyedLocker
type KeyedLockerOption func(*KeyedLocker)

// WithRemoteLock makes LockContext also hold remote for the key, so that
// instances sharing a session store serialize the same session
func WithRemoteLock(remote RemoteLock) KeyedLockerOption {
	return func(k *KeyedLocker) {
		k.remote = remote
	}
}

type keyedLock struct {
	sync.RWMutex
	refs int
}

// NewKeyedLocker creates an empty KeyedLocker
func NewKeyedLocker(opts ...KeyedLockerOption) *KeyedLocker {
	k := &KeyedLocker{locks: make(map[string]*keyedLock)}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Lock acquires the exclusive lock for key and returns its release function
func (k *KeyedLocker) Lock(key string) func() {
	l := k.acquire(key)
	l.Lock()
	return func() {
		l.Unlock()
		k.release(key, l)
	}
}

// LockContext acquires the exclusive lock for key and, when configured, the
// remote lock. The local lock is taken first so one instance queues at most one
// remote acquirer per key.
func (k *KeyedLocker) LockContext(ctx context.Context, key string) (func(), error) {
	unlock := k.Lock(key)
	if k.remote == nil {
		return unlock, nil
	}
	release, err := k.remote.Acquire(ctx, key)
	if err != nil {
		unlock()
		return nil, err
	}
	return func() {
		release()
		unlock()
	}, nil
}

// RLock acquires the shared lock for key and returns its release function
func (k *KeyedLocker) RLock(key string) func() {
	l := k.acquire(key)
	l.RLock()
	return func() {
		l.RUnlock()
		k.release(key, l)
	}
}

// Len returns the number of keys currently tracked
func (k *KeyedLocker) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

func (k *KeyedLocker) acquire(key string) *keyedLock {
	k.mu.Lock()
	defer k.mu.Unlock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	return l
}

func (k *KeyedLocker) release(key string, l *keyedLock) {
	k.mu.Lock()
	defer k.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(k.locks, key)
	}
}
