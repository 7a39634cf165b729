package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_AllRegistered(t *testing.T) {
	cases := []struct {
		name string
		c    prometheus.Collector
	}{
		{"HTTPRequestsTotal", HTTPRequestsTotal},
		{"HTTPRequestDuration", HTTPRequestDuration},
		{"PingsTotal", PingsTotal},
		{"WebhookAuthFailuresTotal", WebhookAuthFailuresTotal},
		{"DispatchesTotal", DispatchesTotal},
		{"Projects", Projects},
		{"TotalPings", TotalPings},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := prometheus.Register(tc.c)
			var already prometheus.AlreadyRegisteredError
			assert.ErrorAs(t, err, &already, "collector should already be registered by promauto")
		})
	}
}

func TestPingsTotal_BySource(t *testing.T) {
	before := testutil.ToFloat64(PingsTotal.WithLabelValues(SourceWebhook))

	PingsTotal.WithLabelValues(SourceWebhook).Inc()

	assert.InDelta(t, before+1, testutil.ToFloat64(PingsTotal.WithLabelValues(SourceWebhook)), 0.001)
}

func TestGauges_Set(t *testing.T) {
	Projects.Set(3)
	TotalPings.Set(42)

	assert.InDelta(t, 3.0, testutil.ToFloat64(Projects), 0.001)
	assert.InDelta(t, 42.0, testutil.ToFloat64(TotalPings), 0.001)
}
