package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	appcart "github.com/biblioteca/backend/internal/application/cart"
	"github.com/biblioteca/backend/internal/infrastructure/logger"
)

// CartHandler serves cart sessions and their lines
type CartHandler struct {
	BaseHandler
	service    *appcart.Service
	sessionTTL time.Duration
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(service *appcart.Service, sessionTTL time.Duration) *CartHandler {
	return &CartHandler{service: service, sessionTTL: sessionTTL}
}

// RegisterRoutes mounts the cart endpoints under rg
func (h *CartHandler) RegisterRoutes(rg *gin.RouterGroup) {
	sessions := rg.Group("/cart/sessions")
	sessions.POST("", h.StartSession)
	sessions.GET("/active", h.ActiveSession)
	sessions.GET("/lookup", h.LookupSession)
	sessions.DELETE("/:sessionId", h.CancelSession)
	sessions.POST("/:sessionId/lines", h.AddLine)
	sessions.GET("/:sessionId/lines", h.ListLines)
	sessions.DELETE("/:sessionId/lines/:tagId", h.RemoveLine)
	sessions.POST("/:sessionId/finalize", h.Finalize)
	sessions.POST("/:sessionId/control", h.PublishControl)
}

// StartSession handles POST /cart/sessions
func (h *CartHandler) StartSession(c *gin.Context) {
	var req StartSessionRequest
	if !h.BindJSON(c, &req) {
		return
	}
	session, err := h.service.StartSession(c.Request.Context(), req.BorrowerID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Created(c, toSessionResponse(session, h.sessionTTL))
}

// ActiveSession handles GET /cart/sessions/active
func (h *CartHandler) ActiveSession(c *gin.Context) {
	session, err := h.service.ActiveSession(c.Request.Context())
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, toSessionResponse(session, h.sessionTTL))
}

// LookupSession handles GET /cart/sessions/lookup?code=123456
func (h *CartHandler) LookupSession(c *gin.Context) {
	var q SessionLookupQuery
	if !h.BindQuery(c, &q) {
		return
	}
	session, err := h.service.SessionByAccessCode(c.Request.Context(), q.Code)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, toSessionResponse(session, h.sessionTTL))
}

// CancelSession handles DELETE /cart/sessions/:sessionId
func (h *CartHandler) CancelSession(c *gin.Context) {
	if err := h.service.CancelSession(h.sessionContext(c), c.Param("sessionId")); err != nil {
		h.HandleDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AddLine handles POST /cart/sessions/:sessionId/lines.
// A new line answers 201, a repeated read of the same tag 200.
func (h *CartHandler) AddLine(c *gin.Context) {
	var req AddLineRequest
	if !h.BindJSON(c, &req) {
		return
	}
	result, err := h.service.AddByTag(h.sessionContext(c), c.Param("sessionId"), req.RFIDTag)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	resp := AddLineResponse{BookResponse: toBookResponse(result.Book), Added: result.Added}
	if result.Added {
		h.Created(c, resp)
		return
	}
	h.Success(c, resp)
}

// ListLines handles GET /cart/sessions/:sessionId/lines
func (h *CartHandler) ListLines(c *gin.Context) {
	items, err := h.service.ListLines(h.sessionContext(c), c.Param("sessionId"))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, toCartItemResponses(items))
}

// RemoveLine handles DELETE /cart/sessions/:sessionId/lines/:tagId
func (h *CartHandler) RemoveLine(c *gin.Context) {
	if err := h.service.RemoveLine(h.sessionContext(c), c.Param("sessionId"), c.Param("tagId")); err != nil {
		h.HandleDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Finalize handles POST /cart/sessions/:sessionId/finalize
func (h *CartHandler) Finalize(c *gin.Context) {
	result, err := h.service.Finalize(h.sessionContext(c), c.Param("sessionId"))
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Created(c, toFinalizeResponse(result))
}

// PublishControl handles POST /cart/sessions/:sessionId/control
func (h *CartHandler) PublishControl(c *gin.Context) {
	var req ControlRequest
	if !h.BindJSON(c, &req) {
		return
	}
	sessionID := c.Param("sessionId")
	if err := h.service.PublishControl(h.sessionContext(c), sessionID, req.Action); err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Accepted(c, gin.H{"session_id": sessionID, "action": req.Action})
}

func (h *CartHandler) sessionContext(c *gin.Context) context.Context {
	return logger.WithSession(c.Request.Context(), c.Param("sessionId"), "")
}
