package loan

import (
	"context"

	"github.com/biblioteca/backend/internal/domain/circulation"
)

// TransactionScope runs loan returns atomically
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories exposes the repositories bound to one transaction
type TransactionalRepositories interface {
	LoanRepo() circulation.LoanRepository
	BookRepo() circulation.BookRepository
	BorrowerRepo() circulation.BorrowerRepository
}
