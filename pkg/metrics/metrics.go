// Package metrics holds the Prometheus instrumentation for vision-runner.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vision_runner_requests_total",
			Help: "Total analysis requests by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vision_runner_request_duration_seconds",
			Help:    "Analysis request latency by operation",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"operation"},
	)

	engineUp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vision_runner_engine_up",
			Help: "Whether the bound inference engine passed its startup probe (1=up)",
		},
	)
)

// Outcome labels for RecordRequest.
const (
	OutcomeOK          = "ok"
	OutcomeNoImage     = "no_image"
	OutcomeClientError = "client_error"
	OutcomeEngineError = "engine_error"
)

// RecordRequest counts one analysis request and observes its latency.
func RecordRequest(operation, outcome string, duration time.Duration) {
	requestsTotal.WithLabelValues(operation, outcome).Inc()
	requestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetEngineUp records the result of the startup engine probe.
func SetEngineUp(up bool) {
	if up {
		engineUp.Set(1)
		return
	}
	engineUp.Set(0)
}
