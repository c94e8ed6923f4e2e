package handler

import (
	"time"

	appcart "github.com/biblioteca/backend/internal/application/cart"
	"github.com/biblioteca/backend/internal/domain/circulation"
)

// StartSessionRequest opens a cart for a borrower
type StartSessionRequest struct {
	BorrowerID string `json:"borrower_id" binding:"required,max=32"`
}

// AddLineRequest adds a tag typed or scanned at the desk
type AddLineRequest struct {
	RFIDTag string `json:"rfid_tag" binding:"required,max=64"`
}

// ControlRequest forwards a control action to the kiosk
type ControlRequest struct {
	Action string `json:"action" binding:"required,oneof=finalizado cancelado"`
}

// SessionLookupQuery finds a session by its access code
type SessionLookupQuery struct {
	Code string `form:"code" binding:"required,len=6,numeric"`
}

// SessionResponse describes a cart session
type SessionResponse struct {
	SessionID  string    `json:"session_id"`
	BorrowerID string    `json:"borrower_id"`
	AccessCode string    `json:"access_code"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// BookResponse describes a book in the cart
type BookResponse struct {
	RFIDTag  string `json:"rfid_tag"`
	Title    string `json:"titulo"`
	Author   string `json:"autor,omitempty"`
	Category string `json:"categoria,omitempty"`
	CoverURL string `json:"capa_url,omitempty"`
	Status   string `json:"status"`
}

// AddLineResponse reports whether the tag created a new line
type AddLineResponse struct {
	BookResponse
	Added bool `json:"added"`
}

// CartItemResponse is one open line with its book
type CartItemResponse struct {
	BookResponse
	ReadAt time.Time `json:"read_at"`
}

// FinalizeResponse lists the loans written at checkout
type FinalizeResponse struct {
	SessionID string         `json:"session_id"`
	Loans     []LoanResponse `json:"loans"`
}

func toSessionResponse(s *circulation.CartSession, ttl time.Duration) SessionResponse {
	return SessionResponse{
		SessionID:  s.ID,
		BorrowerID: s.BorrowerID,
		AccessCode: s.AccessCode,
		CreatedAt:  s.CreatedAt,
		ExpiresAt:  s.ExpiresAt(ttl),
	}
}

func toBookResponse(b *circulation.Book) BookResponse {
	return BookResponse{
		RFIDTag:  b.TagID,
		Title:    b.Title,
		Author:   b.Author,
		Category: b.Category,
		CoverURL: b.CoverURL,
		Status:   string(b.Status),
	}
}

func toCartItemResponses(items []circulation.CartItem) []CartItemResponse {
	out := make([]CartItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, CartItemResponse{BookResponse: toBookResponse(item.Book), ReadAt: item.ReadAt})
	}
	return out
}

func toFinalizeResponse(r *appcart.FinalizeResult) FinalizeResponse {
	return FinalizeResponse{SessionID: r.SessionID, Loans: toLoanResponses(r.Loans)}
}
