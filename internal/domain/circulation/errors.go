package circulation

import (
	"fmt"

	"github.com/biblioteca/backend/internal/domain/shared"
)

// Circulation domain errors
var (
	ErrInvalidTag           = shared.NewDomainError("INVALID_INPUT", "RFID tag is required")
	ErrTagNotFound          = shared.NewDomainError("TAG_NOT_FOUND", "No book is registered under this RFID tag")
	ErrBookUnavailable      = shared.NewDomainError("BOOK_UNAVAILABLE", "Book is not available for loan")
	ErrBorrowerBlocked      = shared.NewDomainError("BORROWER_BLOCKED", "Borrower is blocked due to overdue returns")
	ErrLoanLimitExceeded    = shared.NewDomainError("LOAN_LIMIT_EXCEEDED", "Borrowing limit reached")
	ErrEmptyCart            = shared.NewDomainError("EMPTY_CART", "Cart has no items to check out")
	ErrSessionNotFound      = shared.NewDomainError("SESSION_NOT_FOUND", "Cart session not found or expired")
	ErrSessionAlreadyActive = shared.NewDomainError("SESSION_ALREADY_ACTIVE", "Another cart session is already active")
	ErrLoanNotFound         = shared.NewDomainError("LOAN_NOT_FOUND", "Loan not found")
	ErrLoanAlreadyReturned  = shared.NewDomainError("LOAN_ALREADY_RETURNED", "Loan has already been returned")
	ErrRenewalLimit         = shared.NewDomainError("RENEWAL_LIMIT", "Renewal limit reached")
	ErrLoanOverdue          = shared.NewDomainError("LOAN_OVERDUE", "Overdue loans cannot be renewed")
)

// UnavailableError reports the status that made a book unlendable.
// It matches ErrBookUnavailable under errors.Is.
func UnavailableError(status BookStatus) *shared.DomainError {
	return ErrBookUnavailable.WithMessage(fmt.Sprintf("Book is not available for loan (status: %s)", status))
}

// LimitError reports how many loans the borrower already holds
func LimitError(active, pending, max int) *shared.DomainError {
	return ErrLoanLimitExceeded.WithMessage(
		fmt.Sprintf("Borrowing limit of %d reached (%d active, %d pending)", max, active, pending),
	)
}
