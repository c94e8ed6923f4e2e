package persistence

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"gorm.io/gorm"

	"github.com/biblioteca/backend/internal/domain/shared"
)

// translateError maps driver failures onto domain errors.
// Timeouts and broken connections become shared.ErrTransientStore so
// callers can tell them apart from rule violations and retry.
func translateError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return shared.ErrNotFound
	}
	if isTransient(err) {
		return fmt.Errorf("%w: %w", shared.ErrTransientStore, err)
	}
	return err
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
