// Package loan manages loans after checkout: listing, renewal and return.
package loan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/biblioteca/backend/internal/domain/circulation"
	"github.com/biblioteca/backend/internal/domain/shared"
)

// ReturnResult describes a completed return
type ReturnResult struct {
	Loan      *circulation.Loan
	BlockDays int // days the borrower is blocked for, 0 when returned on time
}

// Service implements loan use cases
type Service struct {
	loans      circulation.LoanRepository
	txScope    TransactionScope
	clock      shared.Clock
	loanPeriod time.Duration
	logger     *zap.Logger
}

// NewService creates a new loan Service
func NewService(
	loans circulation.LoanRepository,
	txScope TransactionScope,
	clock shared.Clock,
	loanPeriod time.Duration,
	logger *zap.Logger,
) *Service {
	if loanPeriod <= 0 {
		loanPeriod = circulation.DefaultLoanPeriod
	}
	return &Service{
		loans:      loans,
		txScope:    txScope,
		clock:      clock,
		loanPeriod: loanPeriod,
		logger:     logger,
	}
}

// ListActive returns the borrower's open loans, newest first
func (s *Service) ListActive(ctx context.Context, borrowerID string) ([]circulation.Loan, error) {
	if borrowerID == "" {
		return nil, shared.ErrInvalidInput.WithMessage("borrower_id is required")
	}
	return s.loans.FindActiveByBorrower(ctx, borrowerID)
}

// History returns one page of the borrower's loans, newest first
func (s *Service) History(ctx context.Context, borrowerID string, page, pageSize int) ([]circulation.Loan, int64, error) {
	if borrowerID == "" {
		return nil, 0, shared.ErrInvalidInput.WithMessage("borrower_id is required")
	}
	return s.loans.FindByBorrower(ctx, borrowerID, page, pageSize)
}

// Renew extends an on-time loan by one loan period
func (s *Service) Renew(ctx context.Context, loanID, borrowerID string) (*circulation.Loan, error) {
	loan, err := s.findOwned(ctx, s.loans, loanID, borrowerID)
	if err != nil {
		return nil, err
	}
	if err := loan.Renew(s.clock.Now(), s.loanPeriod); err != nil {
		return nil, err
	}
	if err := s.loans.Save(ctx, loan); err != nil {
		return nil, fmt.Errorf("save loan: %w", err)
	}

	s.logger.Info("Loan renewed",
		zap.String("loan_id", loanID),
		zap.String("borrower_id", borrowerID),
		zap.Int("renewal_count", loan.RenewalCount),
		zap.Time("due_at", loan.DueAt),
	)
	return loan, nil
}

// Return closes the loan, frees the book and blocks the borrower one day per day late
func (s *Service) Return(ctx context.Context, loanID, borrowerID string) (*ReturnResult, error) {
	result := &ReturnResult{}
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		loan, err := s.findOwned(ctx, repos.LoanRepo(), loanID, borrowerID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		days, err := loan.Return(now)
		if err != nil {
			return err
		}
		if err := repos.LoanRepo().Save(ctx, loan); err != nil {
			return fmt.Errorf("save loan: %w", err)
		}
		if err := repos.BookRepo().UpdateStatus(ctx, circulation.BookStatusAvailable, loan.TagID); err != nil {
			return fmt.Errorf("release book: %w", err)
		}

		if days > 0 {
			borrower, err := repos.BorrowerRepo().FindByID(ctx, loan.BorrowerID)
			switch {
			case errors.Is(err, shared.ErrNotFound):
				// borrowers without a record still carry their block
				borrower = &circulation.Borrower{ID: loan.BorrowerID, CreatedAt: now, UpdatedAt: now}
			case err != nil:
				return fmt.Errorf("find borrower: %w", err)
			}
			borrower.ApplyBlock(days, now)
			if err := repos.BorrowerRepo().Save(ctx, borrower); err != nil {
				return fmt.Errorf("block borrower: %w", err)
			}
		}

		result.Loan = loan
		result.BlockDays = days
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Loan returned",
		zap.String("loan_id", loanID),
		zap.String("borrower_id", borrowerID),
		zap.Int("overdue_days", result.BlockDays),
	)
	return result, nil
}

// findOwned loads a loan and hides loans of other borrowers
func (s *Service) findOwned(ctx context.Context, repo circulation.LoanRepository, loanID, borrowerID string) (*circulation.Loan, error) {
	if _, err := uuid.Parse(loanID); err != nil {
		return nil, circulation.ErrLoanNotFound
	}
	loan, err := repo.FindByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, circulation.ErrLoanNotFound
		}
		return nil, fmt.Errorf("find loan: %w", err)
	}
	if borrowerID != "" && loan.BorrowerID != borrowerID {
		return nil, circulation.ErrLoanNotFound
	}
	return loan, nil
}
