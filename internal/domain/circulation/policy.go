package circulation

import "time"

// LimitStatus is a borrower's standing at a point in time
type LimitStatus struct {
	ActiveLoans  int
	Blocked      bool
	BlockedUntil *time.Time
}

// LimitPolicy decides whether pending items may be added to a borrower's loans
type LimitPolicy struct {
	MaxItems int
}

// NewLimitPolicy returns a policy with the given ceiling, falling back to the default
func NewLimitPolicy(maxItems int) LimitPolicy {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	return LimitPolicy{MaxItems: maxItems}
}

// Admit fails with ErrBorrowerBlocked or ErrLoanLimitExceeded.
// pending counts every not-yet-loaned item including the one being admitted.
func (p LimitPolicy) Admit(status LimitStatus, pending int) error {
	if status.Blocked {
		return ErrBorrowerBlocked
	}
	if status.ActiveLoans+pending > p.MaxItems {
		return LimitError(status.ActiveLoans, pending, p.MaxItems)
	}
	return nil
}
