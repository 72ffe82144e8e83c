package prometrics

import (
	"github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/observability"
)

// processorBuckets cover the processor's 45s call budget.
var processorBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 45}

// Instruments registers every metric the service records and returns them keyed for
// the observability provider.
func Instruments(r Registry) (map[observability.MetricKey]observability.Counter, map[observability.MetricKey]observability.Histogram) {
	counters := map[observability.MetricKey]observability.Counter{
		observability.MUsecaseRequests: r.Counter(string(observability.MUsecaseRequests),
			"Total number of use case invocations.", "use_case", "outcome"),
		observability.MHTTPRequests: r.Counter(string(observability.MHTTPRequests),
			"Total number of HTTP requests.", "method", "route", "status"),
		observability.MExternalRequests: r.Counter(string(observability.MExternalRequests),
			"Total number of calls to the payment processor.", "peer", "endpoint", "outcome"),
		observability.MPaymentOutcomes: r.Counter(string(observability.MPaymentOutcomes),
			"Settled payment sessions by method and outcome.", "method", "outcome"),
		observability.MCallbackRejected: r.Counter(string(observability.MCallbackRejected),
			"Callbacks rejected as unknown or forged.", "reason"),
	}
	histograms := map[observability.MetricKey]observability.Histogram{
		observability.MUsecaseDuration: r.Histogram(string(observability.MUsecaseDuration),
			"Duration of use case execution in seconds.", processorBuckets, "use_case"),
		observability.MHTTPRequestDuration: r.Histogram(string(observability.MHTTPRequestDuration),
			"Duration of HTTP requests in seconds.", nil, "method", "route", "status"),
		observability.MExternalRequestDuration: r.Histogram(string(observability.MExternalRequestDuration),
			"Duration of payment processor calls in seconds.", processorBuckets, "peer", "endpoint"),
	}
	return counters, histograms
}
