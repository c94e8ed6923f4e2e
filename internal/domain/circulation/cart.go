package circulation

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"

	"github.com/biblioteca/backend/internal/domain/shared"
)

// Cart defaults
const (
	DefaultSessionTTL = time.Hour
	DefaultMaxItems   = 3

	accessCodeMin = 100000
	accessCodeMax = 999999
)

// CartSession is the single live checkout window at the kiosk
type CartSession struct {
	ID         string
	BorrowerID string
	AccessCode string
	CreatedAt  time.Time
}

// NewCartSession opens a session for borrowerID at now
func NewCartSession(borrowerID string, now time.Time) (*CartSession, error) {
	if borrowerID == "" {
		return nil, shared.ErrInvalidInput.WithMessage("borrower id is required")
	}
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}
	code, err := rand.Int(rand.Reader, big.NewInt(accessCodeMax-accessCodeMin+1))
	if err != nil {
		return nil, fmt.Errorf("generate access code: %w", err)
	}
	return &CartSession{
		ID:         fmt.Sprintf("%s_%d_%s", borrowerID, now.UnixMilli(), hex.EncodeToString(suffix)),
		BorrowerID: borrowerID,
		AccessCode: fmt.Sprintf("%06d", code.Int64()+accessCodeMin),
		CreatedAt:  now,
	}, nil
}

// IsExpired reports whether the session has outlived ttl at now
func (s *CartSession) IsExpired(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.CreatedAt) >= ttl
}

// ExpiresAt returns the instant the session stops being valid
func (s *CartSession) ExpiresAt(ttl time.Duration) time.Time {
	return s.CreatedAt.Add(ttl)
}

// CartLine records one tag read into a session
type CartLine struct {
	shared.BaseEntity
	SessionID  string
	BorrowerID string
	TagID      string
	ReadAt     time.Time
	Finalized  bool
}

// NewCartLine creates an open line for tagID
func NewCartLine(session *CartSession, tagID string, now time.Time) *CartLine {
	return &CartLine{
		BaseEntity: shared.NewBaseEntity(now),
		SessionID:  session.ID,
		BorrowerID: session.BorrowerID,
		TagID:      tagID,
		ReadAt:     now,
	}
}

// CartItem is an open line joined with its book
type CartItem struct {
	Book   *Book
	ReadAt time.Time
}
