// Package telemetry holds the Prometheus collectors exported at /metrics.
//
// All collectors are registered against the default registry at package
// init. HTTP metrics are labelled by route pattern, never by raw URL, so
// project names in paths do not blow up label cardinality.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "actionscounter"

// HTTP metrics, labelled by method, route pattern and status code.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests processed, by method, route pattern and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Histogram of HTTP request latencies, by method and route pattern.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)
)

// Ping sources for PingsTotal.
const (
	SourceAPI     = "api"
	SourceWebhook = "webhook"
)

// Counter metrics.
//
// PingsTotal counts successful increments by source (api or webhook).
// WebhookAuthFailuresTotal counts rejected webhook calls by reason
// (shape, unknown_alias, token_mismatch, rate_limited).
// DispatchesTotal counts repository_dispatch attempts by event type and result.
var (
	PingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pings_total",
			Help:      "Total number of counter increments, by source.",
		},
		[]string{"source"},
	)

	WebhookAuthFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_auth_failures_total",
			Help:      "Total number of rejected webhook calls, by reason.",
		},
		[]string{"reason"},
	)

	DispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatches_total",
			Help:      "Total number of repository_dispatch events sent, by event type and result.",
		},
		[]string{"event", "result"},
	)
)

// Snapshot gauges, set by the refresh loop.
var (
	Projects = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "projects",
		Help:      "Number of registered projects at the last refresh.",
	})

	TotalPings = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "project_pings",
		Help:      "Sum of all project counters at the last refresh.",
	})
)
