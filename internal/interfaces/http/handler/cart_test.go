package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biblioteca/backend/internal/domain/circulation"
)

func TestCartHandler_StartSession(t *testing.T) {
	s := newTestStack(t)

	session := s.startSession(t, "2024001")
	assert.NotEmpty(t, session.SessionID)
	assert.Equal(t, "2024001", session.BorrowerID)
	assert.Len(t, session.AccessCode, 6)
	assert.Equal(t, baseTime, session.CreatedAt.UTC())
	assert.Equal(t, baseTime.Add(sessionTTL), session.ExpiresAt.UTC())

	t.Run("second session is rejected", func(t *testing.T) {
		w := s.do(http.MethodPost, "/api/v1/cart/sessions", gin.H{"borrower_id": "2024002"})
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, circulation.ErrSessionAlreadyActive.Code, errorCode(t, w))
	})

	t.Run("borrower is required", func(t *testing.T) {
		w := s.do(http.MethodPost, "/api/v1/cart/sessions", gin.H{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))
	})

	t.Run("malformed body", func(t *testing.T) {
		w := s.do(http.MethodPost, "/api/v1/cart/sessions", "not-an-object")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "BAD_REQUEST", errorCode(t, w))
	})
}

func TestCartHandler_ActiveAndLookup(t *testing.T) {
	s := newTestStack(t)

	w := s.do(http.MethodGet, "/api/v1/cart/sessions/active", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, circulation.ErrSessionNotFound.Code, errorCode(t, w))

	session := s.startSession(t, "2024001")

	w = s.do(http.MethodGet, "/api/v1/cart/sessions/active", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, session.SessionID, decodeData[SessionResponse](t, w).SessionID)

	w = s.do(http.MethodGet, "/api/v1/cart/sessions/lookup?code="+session.AccessCode, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, session.SessionID, decodeData[SessionResponse](t, w).SessionID)

	w = s.do(http.MethodGet, "/api/v1/cart/sessions/lookup?code=12ab", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	t.Run("expired session behaves as absent", func(t *testing.T) {
		s.advance(sessionTTL + time.Second)
		w := s.do(http.MethodGet, "/api/v1/cart/sessions/active", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)

		w = s.addLine(t, session.SessionID, "TAG-A")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, circulation.ErrSessionNotFound.Code, errorCode(t, w))
	})
}

func TestCartHandler_AddLine(t *testing.T) {
	s := newTestStack(t)
	session := s.startSession(t, "2024001")

	w := s.addLine(t, session.SessionID, "TAG-A")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	added := decodeData[AddLineResponse](t, w)
	assert.True(t, added.Added)
	assert.Equal(t, "TAG-A", added.RFIDTag)
	assert.Equal(t, "Dom Casmurro", added.Title)
	assert.Equal(t, string(circulation.BookStatusAvailable), added.Status)

	t.Run("repeated read is idempotent", func(t *testing.T) {
		w := s.addLine(t, session.SessionID, "TAG-A")
		require.Equal(t, http.StatusOK, w.Code)
		assert.False(t, decodeData[AddLineResponse](t, w).Added)

		w = s.do(http.MethodGet, "/api/v1/cart/sessions/"+session.SessionID+"/lines", nil)
		require.Equal(t, http.StatusOK, w.Code)
		items := decodeData[[]CartItemResponse](t, w)
		require.Len(t, items, 1)
		assert.Equal(t, baseTime, items[0].ReadAt.UTC())
	})

	tests := []struct {
		name   string
		tag    string
		status int
		code   string
	}{
		{"unknown tag", "TAG-X", http.StatusNotFound, circulation.ErrTagNotFound.Code},
		{"book in maintenance", "TAG-M", http.StatusUnprocessableEntity, circulation.ErrBookUnavailable.Code},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.addLine(t, session.SessionID, tt.tag)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, errorCode(t, w))
		})
	}

	t.Run("tag is required", func(t *testing.T) {
		w := s.do(http.MethodPost, "/api/v1/cart/sessions/"+session.SessionID+"/lines", gin.H{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown session", func(t *testing.T) {
		w := s.addLine(t, "missing", "TAG-B")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, circulation.ErrSessionNotFound.Code, errorCode(t, w))
	})
}

func TestCartHandler_AddLineLimits(t *testing.T) {
	t.Run("fourth book exceeds the limit", func(t *testing.T) {
		s := newTestStack(t)
		session := s.startSession(t, "2024001")
		for _, tag := range []string{"TAG-A", "TAG-B", "TAG-C"} {
			require.Equal(t, http.StatusCreated, s.addLine(t, session.SessionID, tag).Code)
		}

		w := s.addLine(t, session.SessionID, "TAG-D")
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, circulation.ErrLoanLimitExceeded.Code, errorCode(t, w))

		// a repeated read at the ceiling is still accepted
		w = s.addLine(t, session.SessionID, "TAG-A")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("blocked borrower", func(t *testing.T) {
		s := newTestStack(t)
		until := baseTime.Add(2 * circulation.Day)
		require.NoError(t, s.borrowers.Save(context.Background(), &circulation.Borrower{
			ID: "2024009", BlockDays: 2, BlockUntil: &until, CreatedAt: baseTime, UpdatedAt: baseTime,
		}))
		session := s.startSession(t, "2024009")

		w := s.addLine(t, session.SessionID, "TAG-A")
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, circulation.ErrBorrowerBlocked.Code, errorCode(t, w))
	})
}

func TestCartHandler_RemoveLine(t *testing.T) {
	s := newTestStack(t)
	session := s.startSession(t, "2024001")
	require.Equal(t, http.StatusCreated, s.addLine(t, session.SessionID, "TAG-A").Code)

	w := s.do(http.MethodDelete, "/api/v1/cart/sessions/"+session.SessionID+"/lines/TAG-A", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(http.MethodGet, "/api/v1/cart/sessions/"+session.SessionID+"/lines", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decodeData[[]CartItemResponse](t, w))
}

func TestCartHandler_Finalize(t *testing.T) {
	s := newTestStack(t)
	session := s.startSession(t, "2024001")

	w := s.do(http.MethodPost, "/api/v1/cart/sessions/"+session.SessionID+"/finalize", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, circulation.ErrEmptyCart.Code, errorCode(t, w))

	require.Equal(t, http.StatusCreated, s.addLine(t, session.SessionID, "TAG-A").Code)
	require.Equal(t, http.StatusCreated, s.addLine(t, session.SessionID, "TAG-B").Code)

	w = s.do(http.MethodPost, "/api/v1/cart/sessions/"+session.SessionID+"/finalize", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	result := decodeData[FinalizeResponse](t, w)
	assert.Equal(t, session.SessionID, result.SessionID)
	require.Len(t, result.Loans, 2)
	for _, loan := range result.Loans {
		assert.Equal(t, "2024001", loan.BorrowerID)
		assert.Equal(t, baseTime.Add(circulation.DefaultLoanPeriod), loan.DueAt.UTC())
	}

	book, err := s.books.FindByTag(context.Background(), "TAG-A")
	require.NoError(t, err)
	assert.Equal(t, circulation.BookStatusOnLoan, book.Status)

	assert.Contains(t, s.controlMessages(), session.SessionID+":"+"finalizado")

	w = s.do(http.MethodGet, "/api/v1/cart/sessions/active", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	t.Run("checked-out books are unavailable to the next cart", func(t *testing.T) {
		next := s.startSession(t, "2024002")
		w := s.addLine(t, next.SessionID, "TAG-A")
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, circulation.ErrBookUnavailable.Code, errorCode(t, w))
	})
}

func TestCartHandler_CancelSession(t *testing.T) {
	s := newTestStack(t)
	session := s.startSession(t, "2024001")
	require.Equal(t, http.StatusCreated, s.addLine(t, session.SessionID, "TAG-A").Code)

	w := s.do(http.MethodDelete, "/api/v1/cart/sessions/"+session.SessionID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, s.controlMessages(), session.SessionID+":"+"cancelado")

	w = s.do(http.MethodDelete, "/api/v1/cart/sessions/"+session.SessionID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// the cancelled line does not hold the book
	next := s.startSession(t, "2024002")
	assert.Equal(t, http.StatusCreated, s.addLine(t, next.SessionID, "TAG-A").Code)
}

func TestCartHandler_PublishControl(t *testing.T) {
	s := newTestStack(t)

	w := s.do(http.MethodPost, "/api/v1/cart/sessions/S-1/control", gin.H{"action": "cancelado"})
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []string{"S-1:cancelado"}, s.controlMessages())

	w = s.do(http.MethodPost, "/api/v1/cart/sessions/S-1/control", gin.H{"action": "reiniciar"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))
}
