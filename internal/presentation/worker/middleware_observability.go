package workerpresentation

import (
	"context"
	"maps"
	"slices"

	"github.com/google/uuid"
	"github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/observability"
	"github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/observability/logctx"
	"go.opentelemetry.io/otel/trace"
)

const attrEventID = "event_id"

// WithEventContext injects an event-scoped logger for worker handlers: event_id
// (generated if empty), trace_id/span_id when valid, then attrs in key order.
func WithEventContext(
	ctx context.Context,
	base observability.Logger,
	tel observability.Observability,
	traceID trace.TraceID,
	spanID trace.SpanID,
	attrs map[string]string,
) context.Context {
	if base == nil {
		_, base, _ = observability.Components(tel, "")
	}

	evtID := attrs[attrEventID]
	if evtID == "" {
		evtID = uuid.NewString()
	}
	fields := make([]observability.Field, 0, len(attrs)+3)
	fields = append(fields, observability.F(attrEventID, evtID))

	if traceID.IsValid() {
		fields = append(fields, observability.F("trace_id", traceID.String()))
	}
	if spanID.IsValid() {
		fields = append(fields, observability.F("span_id", spanID.String()))
	}

	for _, k := range slices.Sorted(maps.Keys(attrs)) {
		if v := attrs[k]; k != attrEventID && v != "" {
			fields = append(fields, observability.F(k, v))
		}
	}

	return logctx.With(ctx, base.With(fields...))
}
