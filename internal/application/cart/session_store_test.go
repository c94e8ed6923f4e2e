package cart

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biblioteca/backend/internal/domain/circulation"
	"github.com/biblioteca/backend/internal/domain/shared"
)

func TestSessionRegistry_Start(t *testing.T) {
	ctx := context.Background()

	t.Run("opens a session", func(t *testing.T) {
		clock := newTestClock()
		registry := NewSessionRegistry(time.Hour, clock)

		session, replaced, err := registry.Start(ctx, "2024001", false)
		require.NoError(t, err)
		assert.Nil(t, replaced)
		assert.Equal(t, "2024001", session.BorrowerID)
		assert.True(t, strings.HasPrefix(session.ID, "2024001_"+strconv.FormatInt(baseTime.UnixMilli(), 10)+"_"))

		code, err := strconv.Atoi(session.AccessCode)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, code, 100000)
		assert.LessOrEqual(t, code, 999999)
	})

	t.Run("rejects a second session by default", func(t *testing.T) {
		registry := NewSessionRegistry(time.Hour, newTestClock())
		first, _, err := registry.Start(ctx, "2024001", false)
		require.NoError(t, err)

		_, _, err = registry.Start(ctx, "2024002", false)
		assert.ErrorIs(t, err, circulation.ErrSessionAlreadyActive)

		active, err := registry.Active(ctx)
		require.NoError(t, err)
		assert.Equal(t, first.ID, active.ID)
	})

	t.Run("replaces when asked", func(t *testing.T) {
		registry := NewSessionRegistry(time.Hour, newTestClock())
		first, _, err := registry.Start(ctx, "2024001", false)
		require.NoError(t, err)

		second, replaced, err := registry.Start(ctx, "2024002", true)
		require.NoError(t, err)
		require.NotNil(t, replaced)
		assert.Equal(t, first.ID, replaced.ID)

		_, err = registry.Get(ctx, first.ID)
		assert.ErrorIs(t, err, circulation.ErrSessionNotFound)
		got, err := registry.Get(ctx, second.ID)
		require.NoError(t, err)
		assert.Equal(t, "2024002", got.BorrowerID)
	})

	t.Run("expired session does not block a new one", func(t *testing.T) {
		clock := newTestClock()
		registry := NewSessionRegistry(time.Hour, clock)
		_, _, err := registry.Start(ctx, "2024001", false)
		require.NoError(t, err)

		clock.Advance(time.Hour)
		_, replaced, err := registry.Start(ctx, "2024002", false)
		require.NoError(t, err)
		assert.Nil(t, replaced)
	})

	t.Run("requires a borrower", func(t *testing.T) {
		registry := NewSessionRegistry(time.Hour, newTestClock())
		_, _, err := registry.Start(ctx, "", false)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})
}

func TestSessionRegistry_Expiry(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	registry := NewSessionRegistry(time.Hour, clock)
	session, _, err := registry.Start(ctx, "2024001", false)
	require.NoError(t, err)

	clock.Advance(time.Hour - time.Millisecond)
	_, err = registry.Get(ctx, session.ID)
	assert.NoError(t, err)

	clock.Advance(time.Millisecond)
	_, err = registry.Get(ctx, session.ID)
	assert.ErrorIs(t, err, circulation.ErrSessionNotFound)
	_, err = registry.Active(ctx)
	assert.ErrorIs(t, err, circulation.ErrSessionNotFound)
}

func TestSessionRegistry_FindByAccessCode(t *testing.T) {
	ctx := context.Background()
	registry := NewSessionRegistry(time.Hour, newTestClock())
	session, _, err := registry.Start(ctx, "2024001", false)
	require.NoError(t, err)

	found, err := registry.FindByAccessCode(ctx, session.AccessCode)
	require.NoError(t, err)
	assert.Equal(t, session.ID, found.ID)

	_, err = registry.FindByAccessCode(ctx, "")
	assert.ErrorIs(t, err, circulation.ErrSessionNotFound)
	_, err = registry.FindByAccessCode(ctx, "000000")
	assert.ErrorIs(t, err, circulation.ErrSessionNotFound)
}

func TestSessionRegistry_End(t *testing.T) {
	ctx := context.Background()
	registry := NewSessionRegistry(time.Hour, newTestClock())
	session, _, err := registry.Start(ctx, "2024001", false)
	require.NoError(t, err)

	ended, err := registry.End(ctx, "someone-else")
	require.NoError(t, err)
	assert.False(t, ended)

	ended, err = registry.End(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, ended)

	_, err = registry.Active(ctx)
	assert.ErrorIs(t, err, circulation.ErrSessionNotFound)
}

func TestSessionRegistry_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	registry := NewSessionRegistry(time.Hour, newTestClock())
	session, _, err := registry.Start(ctx, "2024001", false)
	require.NoError(t, err)

	active, err := registry.Active(ctx)
	require.NoError(t, err)
	active.BorrowerID = "tampered"

	again, err := registry.Get(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "2024001", again.BorrowerID)
}
