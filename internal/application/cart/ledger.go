package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/biblioteca/backend/internal/domain/circulation"
	"github.com/biblioteca/backend/internal/domain/shared"
)

// AddResult is the outcome of a tag read
type AddResult struct {
	Book  *circulation.Book
	Added bool // false when the tag was already in the cart
}

// Ledger owns the open lines of each session.
// Mutations of one session are serialized; reads take the shared side of the same lock.
type Ledger struct {
	sessions     SessionStore
	lines        circulation.CartLineRepository
	books        circulation.BookRepository
	resolver     *TagResolver
	guard        *LimitGuard
	locks        *KeyedLocker
	clock        shared.Clock
	storeTimeout time.Duration
}

// LedgerOption configures a Ledger
type LedgerOption func(*Ledger)

// WithStoreTimeout bounds every storage round trip made by the ledger
func WithStoreTimeout(d time.Duration) LedgerOption {
	return func(l *Ledger) {
		l.storeTimeout = d
	}
}

// WithLedgerClock overrides the clock used to stamp reads
func WithLedgerClock(clock shared.Clock) LedgerOption {
	return func(l *Ledger) {
		l.clock = clock
	}
}

// NewLedger creates a new Ledger
func NewLedger(
	sessions SessionStore,
	lines circulation.CartLineRepository,
	books circulation.BookRepository,
	guard *LimitGuard,
	locks *KeyedLocker,
	opts ...LedgerOption,
) *Ledger {
	l := &Ledger{
		sessions: sessions,
		lines:    lines,
		books:    books,
		resolver: NewTagResolver(books),
		guard:    guard,
		locks:    locks,
		clock:    shared.SystemClock{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// AddLine records a tag read into the session.
// Reading a tag that is already in the cart succeeds with Added=false and
// never trips the borrowing limit.
func (l *Ledger) AddLine(ctx context.Context, sessionID, tagID string) (*AddResult, error) {
	unlock, err := l.locks.LockContext(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	ctx, cancel := withStoreTimeout(ctx, l.storeTimeout)
	defer cancel()

	session, err := l.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	book, err := l.resolver.Resolve(ctx, tagID)
	if err != nil {
		return nil, err
	}

	exists, err := l.lines.ExistsOpen(ctx, session.ID, book.TagID)
	if err != nil {
		return nil, fmt.Errorf("check cart line: %w", err)
	}
	if exists {
		return &AddResult{Book: book, Added: false}, nil
	}

	open, err := l.lines.CountOpenBySession(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("count cart lines: %w", err)
	}
	if err := l.guard.Admit(ctx, session.BorrowerID, open+1); err != nil {
		return nil, err
	}

	added, err := l.lines.InsertIfAbsent(ctx, circulation.NewCartLine(session, book.TagID, l.clock.Now()))
	if err != nil {
		return nil, fmt.Errorf("insert cart line: %w", err)
	}
	return &AddResult{Book: book, Added: added}, nil
}

// RemoveLine takes tagID out of the cart. Removing an absent tag succeeds.
func (l *Ledger) RemoveLine(ctx context.Context, sessionID, tagID string) error {
	unlock, err := l.locks.LockContext(ctx, sessionID)
	if err != nil {
		return err
	}
	defer unlock()

	ctx, cancel := withStoreTimeout(ctx, l.storeTimeout)
	defer cancel()

	if _, err := l.sessions.Get(ctx, sessionID); err != nil {
		return err
	}
	if err := l.lines.DeleteOpen(ctx, sessionID, tagID); err != nil {
		return fmt.Errorf("delete cart line: %w", err)
	}
	return nil
}

// ListLines returns the books in the cart, most recent read first
func (l *Ledger) ListLines(ctx context.Context, sessionID string) ([]circulation.CartItem, error) {
	unlock := l.locks.RLock(sessionID)
	defer unlock()

	ctx, cancel := withStoreTimeout(ctx, l.storeTimeout)
	defer cancel()

	if _, err := l.sessions.Get(ctx, sessionID); err != nil {
		return nil, err
	}

	lines, err := l.lines.FindOpenBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list cart lines: %w", err)
	}
	if len(lines) == 0 {
		return []circulation.CartItem{}, nil
	}

	tags := make([]string, len(lines))
	for i, line := range lines {
		tags[i] = line.TagID
	}
	books, err := l.books.FindByTags(ctx, tags)
	if err != nil {
		return nil, fmt.Errorf("load cart books: %w", err)
	}
	byTag := make(map[string]*circulation.Book, len(books))
	for i := range books {
		byTag[books[i].TagID] = &books[i]
	}

	items := make([]circulation.CartItem, 0, len(lines))
	for _, line := range lines {
		book, ok := byTag[line.TagID]
		if !ok {
			continue
		}
		items = append(items, circulation.CartItem{Book: book, ReadAt: line.ReadAt})
	}
	return items, nil
}

// Discard deletes every open line of the session and returns how many were removed.
// It does not require the session to be valid.
func (l *Ledger) Discard(ctx context.Context, sessionID string) (int, error) {
	unlock, err := l.locks.LockContext(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	defer unlock()

	ctx, cancel := withStoreTimeout(ctx, l.storeTimeout)
	defer cancel()

	n, err := l.lines.DeleteOpenBySession(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("discard cart lines: %w", err)
	}
	return int(n), nil
}

func withStoreTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
