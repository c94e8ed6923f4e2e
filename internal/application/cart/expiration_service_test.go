package cart

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/biblioteca/backend/internal/domain/circulation"
)

func TestExpirationService_PurgeExpired(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	stale := f.start("2024001")

	_, err := f.ledger.AddLine(ctx, stale.ID, "TAG-A")
	require.NoError(t, err)

	f.clock.Advance(circulation.DefaultSessionTTL)
	fresh := f.start("2024002")
	_, err = f.ledger.AddLine(ctx, fresh.ID, "TAG-B")
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	svc := NewExpirationService(f.lines, circulation.DefaultSessionTTL, time.Minute, f.clock, zap.NewNop())

	n, err := svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	lines := f.lines.all()
	require.Len(t, lines, 1)
	assert.Equal(t, fresh.ID, lines[0].SessionID)
}

func TestExpirationService_Run(t *testing.T) {
	f := newFixture()
	stale := f.start("2024001")
	_, err := f.ledger.AddLine(context.Background(), stale.ID, "TAG-A")
	require.NoError(t, err)
	f.clock.Advance(2 * circulation.DefaultSessionTTL)

	svc := NewExpirationService(f.lines, circulation.DefaultSessionTTL, 5*time.Millisecond, f.clock, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	assert.Eventually(t, func() bool { return len(f.lines.all()) == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}
