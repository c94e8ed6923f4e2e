package cart

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/biblioteca/backend/internal/domain/circulation"
	"github.com/biblioteca/backend/internal/domain/shared"
)

// Control actions published to kiosks
const (
	ActionFinalized = "finalizado"
	ActionCancelled = "cancelado"
)

// ControlPublisher notifies the kiosk of a session state change
type ControlPublisher interface {
	PublishControl(ctx context.Context, sessionID, action string) error
}

// FinalizeResult carries the loans created by a checkout
type FinalizeResult struct {
	SessionID string
	Loans     []*circulation.Loan
}

// Finalizer converts a session's open lines into loans
type Finalizer struct {
	sessions     SessionStore
	lines        circulation.CartLineRepository
	guard        *LimitGuard
	txScope      TransactionScope
	locks        *KeyedLocker
	control      ControlPublisher
	clock        shared.Clock
	loanPeriod   time.Duration
	storeTimeout time.Duration
	logger       *zap.Logger
}

// FinalizerConfig holds the checkout settings
type FinalizerConfig struct {
	LoanPeriod   time.Duration
	StoreTimeout time.Duration
}

// NewFinalizer creates a new Finalizer. control may be nil.
func NewFinalizer(
	sessions SessionStore,
	lines circulation.CartLineRepository,
	guard *LimitGuard,
	txScope TransactionScope,
	locks *KeyedLocker,
	control ControlPublisher,
	clock shared.Clock,
	cfg FinalizerConfig,
	logger *zap.Logger,
) *Finalizer {
	if cfg.LoanPeriod <= 0 {
		cfg.LoanPeriod = circulation.DefaultLoanPeriod
	}
	return &Finalizer{
		sessions:     sessions,
		lines:        lines,
		guard:        guard,
		txScope:      txScope,
		locks:        locks,
		control:      control,
		clock:        clock,
		loanPeriod:   cfg.LoanPeriod,
		storeTimeout: cfg.StoreTimeout,
		logger:       logger,
	}
}

// Finalize checks out every open line of the session in one transaction.
// An empty cart fails with ErrEmptyCart before the session is consulted.
func (f *Finalizer) Finalize(ctx context.Context, sessionID string) (*FinalizeResult, error) {
	unlock, err := f.locks.LockContext(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	storeCtx, cancel := withStoreTimeout(ctx, f.storeTimeout)
	defer cancel()

	lines, err := f.lines.FindOpenBySession(storeCtx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list cart lines: %w", err)
	}
	if len(lines) == 0 {
		return nil, circulation.ErrEmptyCart
	}

	session, err := f.sessions.Get(storeCtx, sessionID)
	if err != nil {
		return nil, err
	}

	if err := f.guard.Admit(storeCtx, session.BorrowerID, len(lines)); err != nil {
		return nil, err
	}

	now := f.clock.Now()
	loans := make([]*circulation.Loan, len(lines))
	tags := make([]string, len(lines))
	for i, line := range lines {
		loans[i] = circulation.NewLoan(session.BorrowerID, line.TagID, now, f.loanPeriod)
		tags[i] = line.TagID
	}

	err = f.txScope.Execute(storeCtx, func(repos TransactionalRepositories) error {
		if err := repos.LoanRepo().CreateBatch(storeCtx, loans); err != nil {
			return fmt.Errorf("create loans: %w", err)
		}
		if err := repos.BookRepo().UpdateStatus(storeCtx, circulation.BookStatusOnLoan, tags...); err != nil {
			return fmt.Errorf("mark books on loan: %w", err)
		}
		n, err := repos.CartLineRepo().MarkFinalized(storeCtx, sessionID)
		if err != nil {
			return fmt.Errorf("finalize cart lines: %w", err)
		}
		if int(n) != len(lines) {
			return shared.ErrInvalidState.WithMessage("cart changed during checkout")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Loans are committed from here on; failures below are only logged
	if _, err := f.sessions.End(storeCtx, sessionID); err != nil {
		f.logger.Warn("Failed to clear finalized session",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
	}
	if f.control != nil {
		if err := f.control.PublishControl(ctx, sessionID, ActionFinalized); err != nil {
			f.logger.Warn("Failed to publish finalize control",
				zap.String("session_id", sessionID),
				zap.Error(err),
			)
		}
	}

	f.logger.Info("Cart finalized",
		zap.String("session_id", sessionID),
		zap.String("borrower_id", session.BorrowerID),
		zap.Int("loans", len(loans)),
	)
	return &FinalizeResult{SessionID: sessionID, Loans: loans}, nil
}
