package prometrics_test

import (
	"strings"
	"testing"

	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := prometrics.New(reg, "minishop", "")

	first := r.Counter("jobs_total", "Jobs.", "outcome")
	second := r.Counter("jobs_total", "Jobs.", "outcome")
	first.Add(1, observability.L("outcome", "success"))
	second.Bind(observability.L("outcome", "success")).Add(2)

	expected := `
# HELP minishop_jobs_total Jobs.
# TYPE minishop_jobs_total counter
minishop_jobs_total{outcome="success"} 3
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "minishop_jobs_total"))
}

func TestStandardRegistersEveryKey(t *testing.T) {
	reg := prometheus.NewRegistry()
	counters, histograms := prometrics.Standard(prometrics.New(reg, "", ""))

	for _, key := range []observability.MetricKey{
		observability.MUsecaseRequests,
		observability.MExternalRequests,
		observability.MHTTPRequests,
		observability.MPaymentAttempts,
		observability.MCompensations,
	} {
		assert.Contains(t, counters, key)
	}
	for _, key := range []observability.MetricKey{
		observability.MUsecaseDuration,
		observability.MExternalRequestDuration,
		observability.MHTTPRequestDuration,
	} {
		assert.Contains(t, histograms, key)
	}

	counters[observability.MCompensations].Add(1,
		observability.L("use_case", "order.create"),
		observability.L("action", "restock"),
		observability.L("outcome", "success"),
	)
	n, err := testutil.GatherAndCount(reg, "saga_compensations_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
