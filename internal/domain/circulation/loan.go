package circulation

import (
	"math"
	"time"

	"github.com/biblioteca/backend/internal/domain/shared"
)

// Day is the unit used for loan periods and fine-blocks
const Day = 24 * time.Hour

// Loan policy defaults
const (
	DefaultLoanPeriod = 7 * Day
	MaxRenewals       = 3
)

// Loan is a durable borrow record created when a cart is checked out
type Loan struct {
	shared.BaseEntity
	BorrowerID   string
	TagID        string
	BorrowedAt   time.Time
	DueAt        time.Time
	ReturnedAt   *time.Time
	RenewalCount int
	Overdue      bool
	OverdueDays  int
}

// NewLoan creates an open loan due period after now
func NewLoan(borrowerID, tagID string, now time.Time, period time.Duration) *Loan {
	return &Loan{
		BaseEntity:   shared.NewBaseEntity(now),
		BorrowerID:   borrowerID,
		TagID:        tagID,
		BorrowedAt:   now,
		DueAt:        now.Add(period),
		RenewalCount: 0,
	}
}

// IsActive returns true while the book has not been returned
func (l *Loan) IsActive() bool {
	return l.ReturnedAt == nil
}

// IsLate reports whether the loan is past due at now
func (l *Loan) IsLate(now time.Time) bool {
	return l.Overdue || now.After(l.DueAt)
}

// Renew extends the due date to now + period
func (l *Loan) Renew(now time.Time, period time.Duration) error {
	if !l.IsActive() {
		return ErrLoanAlreadyReturned
	}
	if l.RenewalCount >= MaxRenewals {
		return ErrRenewalLimit
	}
	if l.IsLate(now) {
		return ErrLoanOverdue
	}
	l.DueAt = now.Add(period)
	l.RenewalCount++
	l.Touch(now)
	return nil
}

// Return closes the loan and records lateness.
// It returns the number of whole days late, rounded up.
func (l *Loan) Return(now time.Time) (int, error) {
	if !l.IsActive() {
		return 0, ErrLoanAlreadyReturned
	}
	l.ReturnedAt = &now
	l.Overdue = now.After(l.DueAt)
	l.OverdueDays = 0
	if l.Overdue {
		l.OverdueDays = int(math.Ceil(float64(now.Sub(l.DueAt)) / float64(Day)))
	}
	l.Touch(now)
	return l.OverdueDays, nil
}
