package circulation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimitPolicy_Admit(t *testing.T) {
	policy := NewLimitPolicy(0)
	assert.Equal(t, DefaultMaxItems, policy.MaxItems)

	tests := []struct {
		name    string
		status  LimitStatus
		pending int
		wantErr error
	}{
		{"empty account", LimitStatus{}, 1, nil},
		{"third item fills the ceiling", LimitStatus{ActiveLoans: 0}, 3, nil},
		{"fourth item exceeds", LimitStatus{ActiveLoans: 0}, 4, ErrLoanLimitExceeded},
		{"two loans plus first add", LimitStatus{ActiveLoans: 2}, 1, nil},
		{"two loans plus second add", LimitStatus{ActiveLoans: 2}, 2, ErrLoanLimitExceeded},
		{"at ceiling", LimitStatus{ActiveLoans: 3}, 1, ErrLoanLimitExceeded},
		{"blocked wins over limit", LimitStatus{ActiveLoans: 3, Blocked: true}, 1, ErrBorrowerBlocked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := policy.Admit(tt.status, tt.pending)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestBorrower_IsBlocked(t *testing.T) {
	future := baseTime.Add(48 * time.Hour)
	past := baseTime.Add(-time.Hour)

	assert.False(t, (*Borrower)(nil).IsBlocked(baseTime))
	assert.False(t, (&Borrower{}).IsBlocked(baseTime))
	assert.False(t, (&Borrower{BlockDays: 2, BlockUntil: &past}).IsBlocked(baseTime))
	assert.False(t, (&Borrower{BlockDays: 0, BlockUntil: &future}).IsBlocked(baseTime))
	assert.True(t, (&Borrower{BlockDays: 2, BlockUntil: &future}).IsBlocked(baseTime))
}

func TestBorrower_ApplyBlock(t *testing.T) {
	b := &Borrower{ID: "2023001"}

	b.ApplyBlock(0, baseTime)
	assert.False(t, b.IsBlocked(baseTime))

	b.ApplyBlock(3, baseTime)
	assert.Equal(t, 3, b.BlockDays)
	assert.Equal(t, baseTime.Add(3*Day), *b.BlockUntil)
	assert.True(t, b.IsBlocked(baseTime.Add(2*Day)))
	assert.False(t, b.IsBlocked(baseTime.Add(3*Day)))
}

func TestUnavailableError_CarriesStatus(t *testing.T) {
	err := UnavailableError(BookStatusMaintenance)

	assert.ErrorIs(t, err, ErrBookUnavailable)
	assert.Contains(t, err.Error(), "manutencao")
}
