package cart

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/biblioteca/backend/internal/domain/circulation"
	"github.com/biblioteca/backend/internal/domain/shared"
)

var baseTime = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// testClock is a settable clock
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: baseTime}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type memBookRepo struct {
	mu    sync.Mutex
	books map[string]*circulation.Book
	err   error
}

func newMemBookRepo(books ...*circulation.Book) *memBookRepo {
	r := &memBookRepo{books: make(map[string]*circulation.Book)}
	for _, b := range books {
		r.books[b.TagID] = b
	}
	return r
}

func (r *memBookRepo) FindByTag(_ context.Context, tagID string) (*circulation.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	b, ok := r.books[tagID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *b
	return &copied, nil
}

func (r *memBookRepo) FindByTags(_ context.Context, tagIDs []string) ([]circulation.Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []circulation.Book
	for _, tag := range tagIDs {
		if b, ok := r.books[tag]; ok {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (r *memBookRepo) Save(_ context.Context, book *circulation.Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.books[book.TagID] = book
	return nil
}

func (r *memBookRepo) UpdateStatus(_ context.Context, status circulation.BookStatus, tagIDs ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tag := range tagIDs {
		if b, ok := r.books[tag]; ok {
			b.Status = status
		}
	}
	return nil
}

func (r *memBookRepo) status(tagID string) circulation.BookStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.books[tagID].Status
}

type memBorrowerRepo struct {
	mu        sync.Mutex
	borrowers map[string]*circulation.Borrower
}

func newMemBorrowerRepo(borrowers ...*circulation.Borrower) *memBorrowerRepo {
	r := &memBorrowerRepo{borrowers: make(map[string]*circulation.Borrower)}
	for _, b := range borrowers {
		r.borrowers[b.ID] = b
	}
	return r
}

func (r *memBorrowerRepo) FindByID(_ context.Context, id string) (*circulation.Borrower, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.borrowers[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *b
	return &copied, nil
}

func (r *memBorrowerRepo) Save(_ context.Context, b *circulation.Borrower) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.borrowers[b.ID] = b
	return nil
}

type memLoanRepo struct {
	mu        sync.Mutex
	loans     []*circulation.Loan
	createErr error
}

func (r *memLoanRepo) FindByID(_ context.Context, id string) (*circulation.Loan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.loans {
		if l.ID.String() == id {
			return l, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memLoanRepo) FindActiveByBorrower(_ context.Context, borrowerID string) ([]circulation.Loan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []circulation.Loan
	for _, l := range r.loans {
		if l.BorrowerID == borrowerID && l.IsActive() {
			out = append(out, *l)
		}
	}
	return out, nil
}

func (r *memLoanRepo) FindByBorrower(ctx context.Context, borrowerID string, _, _ int) ([]circulation.Loan, int64, error) {
	loans, err := r.FindActiveByBorrower(ctx, borrowerID)
	return loans, int64(len(loans)), err
}

func (r *memLoanRepo) CountActiveByBorrower(ctx context.Context, borrowerID string) (int, error) {
	loans, err := r.FindActiveByBorrower(ctx, borrowerID)
	return len(loans), err
}

func (r *memLoanRepo) CreateBatch(_ context.Context, loans []*circulation.Loan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.loans = append(r.loans, loans...)
	return nil
}

func (r *memLoanRepo) Save(_ context.Context, loan *circulation.Loan) error {
	return nil
}

func (r *memLoanRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.loans)
}

// memLineRepo enforces one open line per session and tag like idx_cart_lines_open
type memLineRepo struct {
	mu    sync.Mutex
	lines []*circulation.CartLine
}

func (r *memLineRepo) InsertIfAbsent(_ context.Context, line *circulation.CartLine) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.lines {
		if !l.Finalized && l.SessionID == line.SessionID && l.TagID == line.TagID {
			return false, nil
		}
	}
	copied := *line
	r.lines = append(r.lines, &copied)
	return true, nil
}

func (r *memLineRepo) FindOpenBySession(_ context.Context, sessionID string) ([]circulation.CartLine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []circulation.CartLine
	for _, l := range r.lines {
		if !l.Finalized && l.SessionID == sessionID {
			out = append(out, *l)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ReadAt.After(out[j].ReadAt) })
	return out, nil
}

func (r *memLineRepo) CountOpenBySession(ctx context.Context, sessionID string) (int, error) {
	lines, err := r.FindOpenBySession(ctx, sessionID)
	return len(lines), err
}

func (r *memLineRepo) ExistsOpen(_ context.Context, sessionID, tagID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.lines {
		if !l.Finalized && l.SessionID == sessionID && l.TagID == tagID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memLineRepo) DeleteOpen(_ context.Context, sessionID, tagID string) error {
	r.deleteWhere(func(l *circulation.CartLine) bool {
		return !l.Finalized && l.SessionID == sessionID && l.TagID == tagID
	})
	return nil
}

func (r *memLineRepo) DeleteOpenBySession(_ context.Context, sessionID string) (int64, error) {
	return r.deleteWhere(func(l *circulation.CartLine) bool {
		return !l.Finalized && l.SessionID == sessionID
	}), nil
}

func (r *memLineRepo) MarkFinalized(_ context.Context, sessionID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, l := range r.lines {
		if !l.Finalized && l.SessionID == sessionID {
			l.Finalized = true
			n++
		}
	}
	return n, nil
}

func (r *memLineRepo) DeleteOpenReadBefore(_ context.Context, cutoff time.Time) (int64, error) {
	return r.deleteWhere(func(l *circulation.CartLine) bool {
		return !l.Finalized && l.ReadAt.Before(cutoff)
	}), nil
}

func (r *memLineRepo) deleteWhere(match func(*circulation.CartLine) bool) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.lines[:0]
	var n int64
	for _, l := range r.lines {
		if match(l) {
			n++
			continue
		}
		kept = append(kept, l)
	}
	r.lines = kept
	return n
}

func (r *memLineRepo) all() []circulation.CartLine {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]circulation.CartLine, len(r.lines))
	for i, l := range r.lines {
		out[i] = *l
	}
	return out
}

// fixture wires the cart components over in-memory repositories
type fixture struct {
	clock     *testClock
	books     *memBookRepo
	borrowers *memBorrowerRepo
	loans     *memLoanRepo
	lines     *memLineRepo
	sessions  *SessionRegistry
	guard     *LimitGuard
	ledger    *Ledger
	finalizer *Finalizer
	control   *recordingControl
}

type recordingControl struct {
	mu      sync.Mutex
	actions []string
}

func (c *recordingControl) PublishControl(_ context.Context, sessionID, action string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.actions = append(c.actions, sessionID+":"+action)
	return nil
}

func (c *recordingControl) recorded() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.actions...)
}

func newFixture() *fixture {
	f := &fixture{
		clock: newTestClock(),
		books: newMemBookRepo(
			circulation.NewBook("TAG-A", "Dom Casmurro", "Machado de Assis", baseTime),
			circulation.NewBook("TAG-B", "Iracema", "José de Alencar", baseTime),
			circulation.NewBook("TAG-C", "O Cortiço", "Aluísio Azevedo", baseTime),
			circulation.NewBook("TAG-D", "Memórias Póstumas", "Machado de Assis", baseTime),
		),
		borrowers: newMemBorrowerRepo(&circulation.Borrower{ID: "2024001", Name: "Ana"}),
		loans:     &memLoanRepo{},
		lines:     &memLineRepo{},
		control:   &recordingControl{},
	}
	locks := NewKeyedLocker()
	f.sessions = NewSessionRegistry(circulation.DefaultSessionTTL, f.clock)
	f.guard = NewLimitGuard(f.borrowers, f.loans, circulation.NewLimitPolicy(3), f.clock)
	f.ledger = NewLedger(f.sessions, f.lines, f.books, f.guard, locks, WithLedgerClock(f.clock))
	f.finalizer = NewFinalizer(
		f.sessions, f.lines, f.guard,
		NewNoOpTransactionScope(f.lines, f.loans, f.books),
		locks, f.control, f.clock,
		FinalizerConfig{LoanPeriod: circulation.DefaultLoanPeriod},
		zap.NewNop(),
	)
	return f
}

func (f *fixture) start(borrowerID string) *circulation.CartSession {
	session, _, err := f.sessions.Start(context.Background(), borrowerID, false)
	if err != nil {
		panic(err)
	}
	return session
}
