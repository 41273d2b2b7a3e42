package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/grimoire/internal/config"
)

func TestSetup(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.TelemetryConfig
	}{
		{name: "disabled", cfg: config.TelemetryConfig{ServiceName: "test"}},
		// 192.0.2.0/24 is TEST-NET-1: nothing is exported.
		{name: "url endpoint", cfg: config.TelemetryConfig{Endpoint: "http://192.0.2.1:4318", ServiceName: "test"}},
		{name: "host endpoint", cfg: config.TelemetryConfig{Endpoint: "192.0.2.1:4318", Insecure: true, ServiceName: "test"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shutdown, err := Setup(context.Background(), tt.cfg)
			require.NoError(t, err)
			assert.NoError(t, shutdown(context.Background()))
		})
	}
}

func TestSetup_NoopShutdownIgnoresCancelledContext(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TelemetryConfig{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, shutdown(ctx))
}
