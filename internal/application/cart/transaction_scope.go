package cart

import (
	"context"

	"github.com/biblioteca/backend/internal/domain/circulation"
)

// TransactionScope provides transactional access to the checkout repositories.
// Everything done through the repositories handed to fn is committed or
// rolled back as one unit.
type TransactionScope interface {
	// Execute runs fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories exposes the repositories bound to one transaction
type TransactionalRepositories interface {
	CartLineRepo() circulation.CartLineRepository
	LoanRepo() circulation.LoanRepository
	BookRepo() circulation.BookRepository
}

// NoOpTransactionScope runs fn against plain repositories without a transaction.
// This is useful for testing.
type NoOpTransactionScope struct {
	lineRepo circulation.CartLineRepository
	loanRepo circulation.LoanRepository
	bookRepo circulation.BookRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories
func NewNoOpTransactionScope(
	lineRepo circulation.CartLineRepository,
	loanRepo circulation.LoanRepository,
	bookRepo circulation.BookRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		lineRepo: lineRepo,
		loanRepo: loanRepo,
		bookRepo: bookRepo,
	}
}

// Execute runs the function without a real transaction
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// CartLineRepo returns the cart line repository
func (s *NoOpTransactionScope) CartLineRepo() circulation.CartLineRepository {
	return s.lineRepo
}

// LoanRepo returns the loan repository
func (s *NoOpTransactionScope) LoanRepo() circulation.LoanRepository {
	return s.loanRepo
}

// BookRepo returns the book repository
func (s *NoOpTransactionScope) BookRepo() circulation.BookRepository {
	return s.bookRepo
}

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
