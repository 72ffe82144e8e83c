package oteltrace

import (
	"context"

	"github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const DefaultName = "nganluong-gateway"

type tracer struct{ t trace.Tracer }

// New returns a tracer from the global provider. Spans are no-ops until an SDK
// TracerProvider is installed with otel.SetTracerProvider.
func New(name string) observability.Tracer {
	if name == "" {
		name = DefaultName
	}
	return &tracer{t: otel.Tracer(name)}
}

func (t *tracer) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.t.Start(ctx, name, trace.WithAttributes(attrs...))
}
