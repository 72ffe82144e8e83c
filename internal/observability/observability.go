// Package observability declares the tracing, logging and metrics ports the
// payment core depends on. Adapters live under infrastructure/observability;
// nop implementations stand in when no telemetry is wired.
package observability

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Observability bundles the three telemetry ports handed to use cases and workers.
type Observability interface {
	Tracer() Tracer
	Logger() Logger
	Metrics() Metrics
}

type Metrics interface {
	Counter(name MetricKey) Counter
	Histogram(name MetricKey) Histogram
}

// Tracer starts spans. Implementations must return a span even when tracing is off.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span)
}

// Counter is a labelled monotonic metric. Bind fixes labels for hot paths.
type Counter interface {
	Add(delta float64, labels ...Label)
	Bind(labels ...Label) BoundCounter
}

type BoundCounter interface {
	Add(delta float64)
}

type Histogram interface {
	Observe(value float64, labels ...Label)
	Bind(labels ...Label) BoundHistogram
}

type BoundHistogram interface {
	Observe(value float64)
}

type Label struct{ Key, Value string }

func L(k, v string) Label { return Label{Key: k, Value: v} }

type Field struct {
	Key   string
	Value any
}

func F(k string, v any) Field { return Field{Key: k, Value: v} }

// Logger is a structured, leveled logger. With returns a child carrying fields.
type Logger interface {
	With(fields ...Field) Logger
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// MetricKey names a registered instrument; see metrics.go for the catalogue.
type MetricKey string

// Components resolves the tracer, logger and metrics of tel, substituting no-op
// implementations when tel is nil. The logger is prebound with the service name.
func Components(tel Observability, service string) (Tracer, Logger, Metrics) {
	tracer, logger, metrics := NopTracer(), NopLogger(), NopMetrics()
	if tel != nil {
		tracer, logger, metrics = tel.Tracer(), tel.Logger(), tel.Metrics()
	}
	if service != "" {
		logger = logger.With(F("service", service))
	}
	return tracer, logger, metrics
}
