package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querypilot_http_requests_total",
			Help: "Total number of HTTP requests by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)

	// Ask requests wait on the model for tens of seconds, so the duration
	// buckets reach well past the prometheus defaults.
	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "querypilot_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"method", "route", "status"},
	)

	httpRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "querypilot_http_requests_in_flight",
			Help: "HTTP requests currently being served.",
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDurationSeconds, httpRequestsInFlight)
}
