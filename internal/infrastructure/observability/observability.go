package observability

import (
	"maps"

	"github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/observability"
)

type provider struct {
	tracer  observability.Tracer
	logger  observability.Logger
	metrics observability.Metrics
}

// instruments resolves metric keys to registered instruments. Unknown keys
// fall back to no-ops so a missing registration never breaks a request path.
type instruments struct {
	counters   map[observability.MetricKey]observability.Counter
	histograms map[observability.MetricKey]observability.Histogram
}

func (m *instruments) Counter(name observability.MetricKey) observability.Counter {
	if c := m.counters[name]; c != nil {
		return c
	}
	return observability.NopCounter()
}

func (m *instruments) Histogram(name observability.MetricKey) observability.Histogram {
	if h := m.histograms[name]; h != nil {
		return h
	}
	return observability.NopHistogram()
}

// New bundles a tracer, logger and metric instruments into an Observability.
// Nil parts are replaced by no-ops.
func New(
	tracer observability.Tracer,
	logger observability.Logger,
	counters map[observability.MetricKey]observability.Counter,
	histograms map[observability.MetricKey]observability.Histogram,
) observability.Observability {
	if tracer == nil {
		tracer = observability.NopTracer()
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	var metrics observability.Metrics = observability.NopMetrics()
	if len(counters) > 0 || len(histograms) > 0 {
		metrics = &instruments{
			counters:   maps.Clone(counters),
			histograms: maps.Clone(histograms),
		}
	}
	return &provider{tracer: tracer, logger: logger, metrics: metrics}
}

func (p *provider) Tracer() observability.Tracer   { return p.tracer }
func (p *provider) Logger() observability.Logger   { return p.logger }
func (p *provider) Metrics() observability.Metrics { return p.metrics }
