package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/biblioteca/backend/internal/infrastructure/config"
	"github.com/biblioteca/backend/internal/infrastructure/telemetry"
)

func TestNewMeterProvider_Disabled(t *testing.T) {
	ctx := context.Background()

	mp, err := telemetry.NewMeterProvider(ctx, config.TelemetryConfig{
		Enabled:           false,
		CollectorEndpoint: "localhost:14317",
		ServiceName:       "test-service",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("test"))
	assert.NoError(t, mp.Shutdown(ctx))
}

func TestNewMeterProvider_Enabled(t *testing.T) {
	// Requires a local OTEL collector
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	ctx := context.Background()

	mp, err := telemetry.NewMeterProvider(ctx, config.TelemetryConfig{
		Enabled:           true,
		CollectorEndpoint: "localhost:14317",
		ExportInterval:    time.Second,
		ServiceName:       "test-service",
		Insecure:          true,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.True(t, mp.IsEnabled())
	_ = mp.Shutdown(ctx)
}
