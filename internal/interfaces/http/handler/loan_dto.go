package handler

import (
	"time"

	"github.com/biblioteca/backend/internal/domain/circulation"
)

// LoanListQuery selects a borrower's loans
type LoanListQuery struct {
	BorrowerID string `form:"borrower_id" binding:"required,max=32"`
	Page       int    `form:"page" binding:"omitempty,min=1"`
	PageSize   int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	History    bool   `form:"history"`
}

// LoanActionRequest identifies the borrower renewing or returning a loan
type LoanActionRequest struct {
	BorrowerID string `json:"borrower_id" binding:"required,max=32"`
}

// LoanResponse describes a loan
type LoanResponse struct {
	ID           string     `json:"id"`
	BorrowerID   string     `json:"borrower_id"`
	RFIDTag      string     `json:"rfid_tag"`
	BorrowedAt   time.Time  `json:"borrowed_at"`
	DueAt        time.Time  `json:"due_at"`
	ReturnedAt   *time.Time `json:"returned_at,omitempty"`
	RenewalCount int        `json:"renewal_count"`
	Overdue      bool       `json:"overdue"`
	OverdueDays  int        `json:"overdue_days"`
}

// ReturnResponse reports a return and any resulting block
type ReturnResponse struct {
	Loan      LoanResponse `json:"loan"`
	BlockDays int          `json:"block_days"`
}

func toLoanResponse(l *circulation.Loan) LoanResponse {
	return LoanResponse{
		ID:           l.ID.String(),
		BorrowerID:   l.BorrowerID,
		RFIDTag:      l.TagID,
		BorrowedAt:   l.BorrowedAt,
		DueAt:        l.DueAt,
		ReturnedAt:   l.ReturnedAt,
		RenewalCount: l.RenewalCount,
		Overdue:      l.Overdue,
		OverdueDays:  l.OverdueDays,
	}
}

func toLoanResponses(loans []*circulation.Loan) []LoanResponse {
	out := make([]LoanResponse, 0, len(loans))
	for _, l := range loans {
		out = append(out, toLoanResponse(l))
	}
	return out
}

func loanValuesToResponses(loans []circulation.Loan) []LoanResponse {
	out := make([]LoanResponse, 0, len(loans))
	for i := range loans {
		out = append(out, toLoanResponse(&loans[i]))
	}
	return out
}
