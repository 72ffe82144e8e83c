package prometrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/quochuydev/woocommerce-nganluong-gateway-plugin/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterRegisteredOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg, "")

	c1 := r.Counter("callbacks_total", "Callbacks.", "route")
	c2 := r.Counter("callbacks_total", "Callbacks.", "route")
	c1.Add(1, observability.L("route", "return"))
	c2.Bind(observability.L("route", "return")).Add(2)

	expected := `
# HELP callbacks_total Callbacks.
# TYPE callbacks_total counter
callbacks_total{route="return"} 3
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "callbacks_total"))
}

func TestInstruments(t *testing.T) {
	reg := prometheus.NewRegistry()
	counters, histograms := Instruments(New(reg, ""))

	require.Contains(t, counters, observability.MCallbackRejected)
	require.Contains(t, histograms, observability.MExternalRequestDuration)

	counters[observability.MCallbackRejected].Add(1, observability.L("reason", "token_mismatch"))
	histograms[observability.MExternalRequestDuration].Bind(
		observability.L("peer", "nganluong"),
		observability.L("endpoint", "GetTransactionDetail"),
	).Observe(0.3)

	n, err := testutil.GatherAndCount(reg, string(observability.MCallbackRejected), string(observability.MExternalRequestDuration))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
