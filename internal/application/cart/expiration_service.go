package cart

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/biblioteca/backend/internal/domain/circulation"
	"github.com/biblioteca/backend/internal/domain/shared"
)

// ExpirationService purges cart lines left behind by sessions that expired
// without being finalized or cancelled.
type ExpirationService struct {
	lines    circulation.CartLineRepository
	ttl      time.Duration
	interval time.Duration
	clock    shared.Clock
	logger   *zap.Logger
}

// NewExpirationService creates a new ExpirationService
func NewExpirationService(
	lines circulation.CartLineRepository,
	ttl, interval time.Duration,
	clock shared.Clock,
	logger *zap.Logger,
) *ExpirationService {
	if ttl <= 0 {
		ttl = circulation.DefaultSessionTTL
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &ExpirationService{
		lines:    lines,
		ttl:      ttl,
		interval: interval,
		clock:    clock,
		logger:   logger,
	}
}

// PurgeExpired deletes open lines read more than one session TTL ago.
// Such a line cannot belong to a valid session.
func (s *ExpirationService) PurgeExpired(ctx context.Context) (int64, error) {
	cutoff := s.clock.Now().Add(-s.ttl)
	n, err := s.lines.DeleteOpenReadBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("Failed to purge expired cart lines", zap.Error(err))
		return 0, err
	}
	if n > 0 {
		s.logger.Info("Purged expired cart lines",
			zap.Int64("count", n),
			zap.Time("cutoff", cutoff),
		)
	}
	return n, nil
}

// Run purges on every tick until ctx is cancelled
func (s *ExpirationService) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_, _ = s.PurgeExpired(ctx)
		}
	}
}
