package cart

import (
	"context"
	"sync"
	"time"

	"github.com/biblioteca/backend/internal/domain/circulation"
	"github.com/biblioteca/backend/internal/domain/shared"
)

// SessionStore holds the single active cart session.
// A session is valid until its TTL elapses; expired sessions behave as absent.
type SessionStore interface {
	// Start opens a session for borrowerID. With a valid session already
	// present it fails with ErrSessionAlreadyActive unless replace is set,
	// in which case the superseded session is returned as replaced.
	Start(ctx context.Context, borrowerID string, replace bool) (session, replaced *circulation.CartSession, err error)

	// Get returns the session if it is the valid active one
	Get(ctx context.Context, sessionID string) (*circulation.CartSession, error)

	// Active returns the current valid session
	Active(ctx context.Context) (*circulation.CartSession, error)

	// FindByAccessCode returns the valid session with the given kiosk code
	FindByAccessCode(ctx context.Context, code string) (*circulation.CartSession, error)

	// End clears the session if it is the active one and reports whether it was
	End(ctx context.Context, sessionID string) (bool, error)
}

// SessionRegistry is an in-process SessionStore
type SessionRegistry struct {
	mu     sync.Mutex
	active *circulation.CartSession
	ttl    time.Duration
	clock  shared.Clock
}

// NewSessionRegistry creates an empty registry whose sessions live for ttl
func NewSessionRegistry(ttl time.Duration, clock shared.Clock) *SessionRegistry {
	if ttl <= 0 {
		ttl = circulation.DefaultSessionTTL
	}
	if clock == nil {
		clock = shared.SystemClock{}
	}
	return &SessionRegistry{ttl: ttl, clock: clock}
}

// Start implements SessionStore
func (r *SessionRegistry) Start(_ context.Context, borrowerID string, replace bool) (*circulation.CartSession, *circulation.CartSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock.Now()
	prior := r.currentLocked(now)
	if prior != nil && !replace {
		return nil, nil, circulation.ErrSessionAlreadyActive
	}

	session, err := circulation.NewCartSession(borrowerID, now)
	if err != nil {
		return nil, nil, err
	}
	stored := *session
	r.active = &stored
	return session, prior, nil
}

// Get implements SessionStore
func (r *SessionRegistry) Get(_ context.Context, sessionID string) (*circulation.CartSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.currentLocked(r.clock.Now())
	if current == nil || current.ID != sessionID {
		return nil, circulation.ErrSessionNotFound
	}
	return current, nil
}

// Active implements SessionStore
func (r *SessionRegistry) Active(_ context.Context) (*circulation.CartSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.currentLocked(r.clock.Now())
	if current == nil {
		return nil, circulation.ErrSessionNotFound
	}
	return current, nil
}

// FindByAccessCode implements SessionStore
func (r *SessionRegistry) FindByAccessCode(_ context.Context, code string) (*circulation.CartSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := r.currentLocked(r.clock.Now())
	if current == nil || code == "" || current.AccessCode != code {
		return nil, circulation.ErrSessionNotFound
	}
	return current, nil
}

// End implements SessionStore
func (r *SessionRegistry) End(_ context.Context, sessionID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active == nil || r.active.ID != sessionID {
		return false, nil
	}
	r.active = nil
	return true, nil
}

// currentLocked returns the valid session, clearing an expired one
func (r *SessionRegistry) currentLocked(now time.Time) *circulation.CartSession {
	if r.active == nil {
		return nil
	}
	if r.active.IsExpired(now, r.ttl) {
		r.active = nil
		return nil
	}
	copied := *r.active
	return &copied
}

var _ SessionStore = (*SessionRegistry)(nil)
