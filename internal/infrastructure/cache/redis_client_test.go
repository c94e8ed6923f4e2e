package cache

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/biblioteca/backend/internal/domain/shared"
)

func TestStoreError(t *testing.T) {
	assert.NoError(t, storeError(nil))

	err := storeError(context.DeadlineExceeded)
	assert.ErrorIs(t, err, shared.ErrTransientStore)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	opErr := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
	assert.ErrorIs(t, storeError(opErr), shared.ErrTransientStore)

	plain := errors.New("WRONGTYPE")
	assert.Equal(t, plain, storeError(plain))
}
