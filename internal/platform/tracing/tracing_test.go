package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"registrar/internal/platform/config"
)

func TestNewProvider(t *testing.T) {
	t.Run("disabled is a no-op", func(t *testing.T) {
		p, err := NewProvider(context.Background(), config.TracingConfig{Exporter: ExporterNone})
		require.NoError(t, err)
		assert.NoError(t, p.Shutdown(context.Background()))
	})

	t.Run("unknown exporter", func(t *testing.T) {
		_, err := NewProvider(context.Background(), config.TracingConfig{Exporter: "zipkin"})
		assert.Error(t, err)
	})

	t.Run("stdout exporter flushes on shutdown", func(t *testing.T) {
		p, err := NewProvider(context.Background(), config.TracingConfig{
			Exporter:    ExporterStdout,
			ServiceName: "registrar-test",
		})
		require.NoError(t, err)
		assert.NoError(t, p.Shutdown(context.Background()))
	})

	t.Run("nil provider", func(t *testing.T) {
		var p *Provider
		assert.NoError(t, p.Shutdown(context.Background()))
	})
}
