package circulation

import (
	"context"
	"time"
)

// BookRepository defines persistence for books
type BookRepository interface {
	// FindByTag finds a book by its RFID tag, returning shared.ErrNotFound if absent
	FindByTag(ctx context.Context, tagID string) (*Book, error)

	// FindByTags loads the books for a set of tags
	FindByTags(ctx context.Context, tagIDs []string) ([]Book, error)

	// Save creates or updates a book
	Save(ctx context.Context, book *Book) error

	// UpdateStatus sets the lending status of the books with the given tags
	UpdateStatus(ctx context.Context, status BookStatus, tagIDs ...string) error
}

// BorrowerRepository defines persistence for borrowers
type BorrowerRepository interface {
	// FindByID finds a borrower by registration number, returning shared.ErrNotFound if absent
	FindByID(ctx context.Context, id string) (*Borrower, error)

	// Save creates or updates a borrower
	Save(ctx context.Context, borrower *Borrower) error
}

// LoanRepository defines persistence for loans
type LoanRepository interface {
	FindByID(ctx context.Context, id string) (*Loan, error)

	// FindActiveByBorrower lists open loans, most recent first
	FindActiveByBorrower(ctx context.Context, borrowerID string) ([]Loan, error)

	// FindByBorrower lists all loans, most recent first, paginated
	FindByBorrower(ctx context.Context, borrowerID string, page, pageSize int) ([]Loan, int64, error)

	// CountActiveByBorrower counts loans without a return date
	CountActiveByBorrower(ctx context.Context, borrowerID string) (int, error)

	// CreateBatch inserts loans
	CreateBatch(ctx context.Context, loans []*Loan) error

	Save(ctx context.Context, loan *Loan) error
}

// CartLineRepository defines persistence for cart lines
type CartLineRepository interface {
	// InsertIfAbsent inserts the line unless an open line for the same
	// session and tag exists. It returns false when nothing was inserted.
	InsertIfAbsent(ctx context.Context, line *CartLine) (bool, error)

	// FindOpenBySession lists the open lines of a session, most recent read first
	FindOpenBySession(ctx context.Context, sessionID string) ([]CartLine, error)

	// CountOpenBySession counts the open lines of a session
	CountOpenBySession(ctx context.Context, sessionID string) (int, error)

	// ExistsOpen reports whether an open line for tag exists in the session
	ExistsOpen(ctx context.Context, sessionID, tagID string) (bool, error)

	// DeleteOpen removes the open line for tag, if any
	DeleteOpen(ctx context.Context, sessionID, tagID string) error

	// DeleteOpenBySession removes every open line of the session
	DeleteOpenBySession(ctx context.Context, sessionID string) (int64, error)

	// MarkFinalized flags every open line of the session as finalized
	MarkFinalized(ctx context.Context, sessionID string) (int64, error)

	// DeleteOpenReadBefore removes open lines read before cutoff
	DeleteOpenReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
