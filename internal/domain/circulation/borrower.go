package circulation

import "time"

// Borrower is a library user identified by their registration number (matricula)
type Borrower struct {
	ID         string
	Name       string
	Email      string
	BlockDays  int
	BlockUntil *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsBlocked reports whether a fine-block is in effect at now
func (b *Borrower) IsBlocked(now time.Time) bool {
	if b == nil || b.BlockDays <= 0 || b.BlockUntil == nil {
		return false
	}
	return b.BlockUntil.After(now)
}

// ApplyBlock blocks the borrower for days starting at now
func (b *Borrower) ApplyBlock(days int, now time.Time) {
	if days <= 0 {
		return
	}
	until := now.Add(time.Duration(days) * Day)
	b.BlockDays = days
	b.BlockUntil = &until
	b.UpdatedAt = now
}
