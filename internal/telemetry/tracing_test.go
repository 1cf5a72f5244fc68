package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitTracing_WithoutEndpoint(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), "", "orders", "test")
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	require.NoError(t, shutdown(context.Background()))

	fields := otel.GetTextMapPropagator().Fields()
	require.Contains(t, fields, "traceparent")
	require.Contains(t, fields, "baggage")
}

func TestInitTracing_WithEndpoint(t *testing.T) {
	previous := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	// Экспортёр подключается лениво, поэтому недоступный collector не мешает инициализации.
	shutdown, err := InitTracing(context.Background(), "127.0.0.1:4317", "orders", "test")
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "span")
	span.End()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}
