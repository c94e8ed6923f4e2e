package persistence

import (
	"context"

	"gorm.io/gorm"

	appcart "github.com/biblioteca/backend/internal/application/cart"
	apploan "github.com/biblioteca/backend/internal/application/loan"
	"github.com/biblioteca/backend/internal/domain/circulation"
)

// GormTransactionScope implements the checkout TransactionScope using GORM transactions
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs fn within a database transaction.
// If fn returns an error, the transaction is rolled back.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appcart.TransactionalRepositories) error) error {
	return translateError(s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	}))
}

// GormLoanTransactionScope implements the loan TransactionScope using GORM transactions
type GormLoanTransactionScope struct {
	db *gorm.DB
}

// NewGormLoanTransactionScope creates a new GormLoanTransactionScope
func NewGormLoanTransactionScope(db *gorm.DB) *GormLoanTransactionScope {
	return &GormLoanTransactionScope{db: db}
}

// Execute runs fn within a database transaction
func (s *GormLoanTransactionScope) Execute(ctx context.Context, fn func(repos apploan.TransactionalRepositories) error) error {
	return translateError(s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	}))
}

// gormTransactionalRepositories hands out repositories bound to one transaction
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

func (r *gormTransactionalRepositories) CartLineRepo() circulation.CartLineRepository {
	return NewGormCartLineRepository(r.tx)
}

func (r *gormTransactionalRepositories) LoanRepo() circulation.LoanRepository {
	return NewGormLoanRepository(r.tx)
}

func (r *gormTransactionalRepositories) BookRepo() circulation.BookRepository {
	return NewGormBookRepository(r.tx)
}

func (r *gormTransactionalRepositories) BorrowerRepo() circulation.BorrowerRepository {
	return NewGormBorrowerRepository(r.tx)
}

var (
	_ appcart.TransactionScope          = (*GormTransactionScope)(nil)
	_ apploan.TransactionScope          = (*GormLoanTransactionScope)(nil)
	_ appcart.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
	_ apploan.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
)
