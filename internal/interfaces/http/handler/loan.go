package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	apploan "github.com/biblioteca/backend/internal/application/loan"
	"github.com/biblioteca/backend/internal/infrastructure/logger"
	"github.com/biblioteca/backend/internal/interfaces/http/dto"
)

// LoanHandler serves loans after checkout
type LoanHandler struct {
	BaseHandler
	service *apploan.Service
}

// NewLoanHandler creates a new LoanHandler
func NewLoanHandler(service *apploan.Service) *LoanHandler {
	return &LoanHandler{service: service}
}

// RegisterRoutes mounts the loan endpoints under rg
func (h *LoanHandler) RegisterRoutes(rg *gin.RouterGroup) {
	loans := rg.Group("/loans")
	loans.GET("", h.List)
	loans.POST("/:id/renew", h.Renew)
	loans.POST("/:id/return", h.Return)
}

// List handles GET /loans?borrower_id=...
// With history=true it pages through every loan, otherwise it lists the open ones.
func (h *LoanHandler) List(c *gin.Context) {
	var q LoanListQuery
	if !h.BindQuery(c, &q) {
		return
	}
	ctx := borrowerContext(c, q.BorrowerID)

	if q.History {
		page := dto.ListRequest{Page: q.Page, PageSize: q.PageSize}
		page.Normalize()
		loans, total, err := h.service.History(ctx, q.BorrowerID, page.Page, page.PageSize)
		if err != nil {
			h.HandleDomainError(c, err)
			return
		}
		h.SuccessWithMeta(c, loanValuesToResponses(loans), total, page.Page, page.PageSize)
		return
	}

	loans, err := h.service.ListActive(ctx, q.BorrowerID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, loanValuesToResponses(loans))
}

// Renew handles POST /loans/:id/renew
func (h *LoanHandler) Renew(c *gin.Context) {
	var req LoanActionRequest
	if !h.BindJSON(c, &req) {
		return
	}
	loan, err := h.service.Renew(borrowerContext(c, req.BorrowerID), c.Param("id"), req.BorrowerID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, toLoanResponse(loan))
}

// Return handles POST /loans/:id/return
func (h *LoanHandler) Return(c *gin.Context) {
	var req LoanActionRequest
	if !h.BindJSON(c, &req) {
		return
	}
	result, err := h.service.Return(borrowerContext(c, req.BorrowerID), c.Param("id"), req.BorrowerID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, ReturnResponse{Loan: toLoanResponse(result.Loan), BlockDays: result.BlockDays})
}

func borrowerContext(c *gin.Context, borrowerID string) context.Context {
	return logger.WithSession(c.Request.Context(), "", borrowerID)
}
