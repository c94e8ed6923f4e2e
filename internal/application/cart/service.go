package cart

import (
	"context"

	"go.uber.org/zap"

	"github.com/biblioteca/backend/internal/domain/circulation"
	"github.com/biblioteca/backend/internal/infrastructure/logger"
	"github.com/biblioteca/backend/internal/infrastructure/telemetry"
)

// Service is the entry point for synchronous cart operations
type Service struct {
	sessions      SessionStore
	ledger        *Ledger
	finalizer     *Finalizer
	control       ControlPublisher
	metrics       *telemetry.CartMetrics
	replaceActive bool
	logger        *zap.Logger
}

// ServiceConfig holds the session start policy
type ServiceConfig struct {
	// ReplaceActiveSession cancels the running session instead of rejecting a new one
	ReplaceActiveSession bool
}

// NewService creates a new cart Service. control and metrics may be nil.
func NewService(
	sessions SessionStore,
	ledger *Ledger,
	finalizer *Finalizer,
	control ControlPublisher,
	metrics *telemetry.CartMetrics,
	cfg ServiceConfig,
	logger *zap.Logger,
) *Service {
	return &Service{
		sessions:      sessions,
		ledger:        ledger,
		finalizer:     finalizer,
		control:       control,
		metrics:       metrics,
		replaceActive: cfg.ReplaceActiveSession,
		logger:        logger,
	}
}

// StartSession opens the cart for borrowerID.
// When replacement is enabled the prior session's open lines are discarded first.
func (s *Service) StartSession(ctx context.Context, borrowerID string) (*circulation.CartSession, error) {
	session, replaced, err := s.sessions.Start(ctx, borrowerID, s.replaceActive)
	if err != nil {
		return nil, err
	}
	log := logger.Enrich(logger.WithSession(ctx, session.ID, session.BorrowerID), s.logger)

	if replaced != nil {
		n, err := s.ledger.Discard(ctx, replaced.ID)
		if err != nil {
			return nil, err
		}
		s.notify(ctx, replaced.ID, ActionCancelled)
		log.Info("Replaced active cart session",
			zap.String("replaced_session_id", replaced.ID),
			zap.Int("discarded_lines", n),
		)
	}

	log.Info("Cart session started")
	return session, nil
}

// ActiveSession returns the current valid session
func (s *Service) ActiveSession(ctx context.Context) (*circulation.CartSession, error) {
	return s.sessions.Active(ctx)
}

// SessionByAccessCode returns the valid session a kiosk was given the code for
func (s *Service) SessionByAccessCode(ctx context.Context, code string) (*circulation.CartSession, error) {
	return s.sessions.FindByAccessCode(ctx, code)
}

// CancelSession ends the session and drops its open lines
func (s *Service) CancelSession(ctx context.Context, sessionID string) error {
	if _, err := s.sessions.Get(ctx, sessionID); err != nil {
		return err
	}
	// End first so no read can be admitted after the discard
	if _, err := s.sessions.End(ctx, sessionID); err != nil {
		return err
	}
	n, err := s.ledger.Discard(ctx, sessionID)
	if err != nil {
		return err
	}
	s.notify(ctx, sessionID, ActionCancelled)

	logger.Enrich(logger.WithSession(ctx, sessionID, ""), s.logger).
		Info("Cart session cancelled", zap.Int("discarded_lines", n))
	return nil
}

// AddByTag adds a tag read received over HTTP
func (s *Service) AddByTag(ctx context.Context, sessionID, tagID string) (*AddResult, error) {
	result, err := s.ledger.AddLine(ctx, sessionID, tagID)
	if err != nil {
		s.metrics.RecordRejection(ctx, ErrorCode(err))
		return nil, err
	}
	if result.Added {
		s.metrics.RecordLineAdded(ctx, telemetry.SourceDirect)
	} else {
		s.metrics.RecordDuplicateRead(ctx, telemetry.SourceDirect)
	}
	return result, nil
}

// RemoveLine takes a tag out of the cart
func (s *Service) RemoveLine(ctx context.Context, sessionID, tagID string) error {
	return s.ledger.RemoveLine(ctx, sessionID, tagID)
}

// ListLines returns the books currently in the cart
func (s *Service) ListLines(ctx context.Context, sessionID string) ([]circulation.CartItem, error) {
	return s.ledger.ListLines(ctx, sessionID)
}

// Finalize checks the cart out into loans
func (s *Service) Finalize(ctx context.Context, sessionID string) (*FinalizeResult, error) {
	result, err := s.finalizer.Finalize(ctx, sessionID)
	if err != nil {
		s.metrics.RecordRejection(ctx, ErrorCode(err))
		return nil, err
	}
	s.metrics.RecordLoansCreated(ctx, len(result.Loans))
	return result, nil
}

// PublishControl forwards a control action to the session's kiosk
func (s *Service) PublishControl(ctx context.Context, sessionID, action string) error {
	if s.control == nil {
		return nil
	}
	return s.control.PublishControl(ctx, sessionID, action)
}

func (s *Service) notify(ctx context.Context, sessionID, action string) {
	if err := s.PublishControl(ctx, sessionID, action); err != nil {
		s.logger.Warn("Failed to publish control action",
			zap.String("session_id", sessionID),
			zap.String("action", action),
			zap.Error(err),
		)
	}
}
