package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

func TestDisabledTracerProviderStaysLocal(t *testing.T) {
	tp, err := NewTracerProvider(nil, Config{ServiceName: "feeledger", Environment: "test"}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	Setup(tp)
	_, span := otel.Tracer("test").Start(context.Background(), "payment")
	assert.True(t, span.SpanContext().IsValid())
	span.End()
}

func TestUnsupportedExporterProtocol(t *testing.T) {
	_, err := NewTracerProvider(nil, Config{Enabled: true, ExporterProtocol: "carrier-pigeon"}, zap.NewNop())
	assert.Error(t, err)
}
