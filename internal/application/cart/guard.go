package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/biblioteca/backend/internal/domain/circulation"
	"github.com/biblioteca/backend/internal/domain/shared"
)

// LimitGuard enforces the borrowing ceiling and the overdue blocklist
type LimitGuard struct {
	borrowers circulation.BorrowerRepository
	loans     circulation.LoanRepository
	policy    circulation.LimitPolicy
	clock     shared.Clock
}

// NewLimitGuard creates a new LimitGuard
func NewLimitGuard(
	borrowers circulation.BorrowerRepository,
	loans circulation.LoanRepository,
	policy circulation.LimitPolicy,
	clock shared.Clock,
) *LimitGuard {
	return &LimitGuard{
		borrowers: borrowers,
		loans:     loans,
		policy:    policy,
		clock:     clock,
	}
}

// Check returns the borrower's current standing.
// A borrower without a record has no loans and no block.
func (g *LimitGuard) Check(ctx context.Context, borrowerID string) (circulation.LimitStatus, error) {
	var status circulation.LimitStatus

	borrower, err := g.borrowers.FindByID(ctx, borrowerID)
	switch {
	case err == nil:
		now := g.clock.Now()
		if borrower.IsBlocked(now) {
			status.Blocked = true
			status.BlockedUntil = borrower.BlockUntil
		}
	case errors.Is(err, shared.ErrNotFound):
	default:
		return status, fmt.Errorf("find borrower: %w", err)
	}

	active, err := g.loans.CountActiveByBorrower(ctx, borrowerID)
	if err != nil {
		return status, fmt.Errorf("count active loans: %w", err)
	}
	status.ActiveLoans = active
	return status, nil
}

// Admit fails unless pending more items fit within the borrower's limit
func (g *LimitGuard) Admit(ctx context.Context, borrowerID string, pending int) error {
	status, err := g.Check(ctx, borrowerID)
	if err != nil {
		return err
	}
	return g.policy.Admit(status, pending)
}

// MaxItems returns the configured ceiling
func (g *LimitGuard) MaxItems() int {
	return g.policy.MaxItems
}
