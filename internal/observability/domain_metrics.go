package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	questionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querypilot_questions_total",
			Help: "Total number of questions answered, by outcome.",
		},
		[]string{"outcome"},
	)
	generationLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "querypilot_generation_latency_ms",
			Help:    "SQL generation latency in milliseconds by provider.",
			Buckets: []float64{100, 250, 500, 1000, 2000, 5000, 10000, 20000, 40000, 80000},
		},
		[]string{"provider"},
	)
	queryLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "querypilot_query_latency_ms",
			Help:    "Generated SQL execution latency in milliseconds.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000, 30000},
		},
	)
	queryFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "querypilot_query_failures_total",
			Help: "Total number of generated SQL statements that failed to execute.",
		},
	)
	substitutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querypilot_normalizer_substitutions_total",
			Help: "Total number of normalizer substitutions by kind.",
		},
		[]string{"kind"},
	)
	confirmationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querypilot_confirmations_total",
			Help: "Total number of query confirmations by status.",
		},
		[]string{"status"},
	)
	exportsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "querypilot_exports_total",
			Help: "Total number of result exports written to object storage.",
		},
	)
	exportBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "querypilot_export_bytes_total",
			Help: "Total bytes of Parquet written by result exports.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		questionsTotal,
		generationLatencyMs,
		queryLatencyMs,
		queryFailuresTotal,
		substitutionsTotal,
		confirmationsTotal,
		exportsTotal,
		exportBytesTotal,
	)
}

// ObserveQuestion records the outcome of one ask: "ok", "query_failed" or
// "error".
func ObserveQuestion(outcome string) {
	questionsTotal.WithLabelValues(outcome).Inc()
}

func ObserveGeneration(provider string, elapsed time.Duration) {
	generationLatencyMs.WithLabelValues(provider).Observe(float64(elapsed.Milliseconds()))
}

func ObserveQuery(elapsed time.Duration, failed bool) {
	queryLatencyMs.Observe(float64(elapsed.Milliseconds()))
	if failed {
		queryFailuresTotal.Inc()
	}
}

func ObserveSubstitutions(kind string, count int) {
	if count <= 0 {
		return
	}
	substitutionsTotal.WithLabelValues(kind).Add(float64(count))
}

func ObserveConfirmation(status string) {
	confirmationsTotal.WithLabelValues(status).Inc()
}

func ObserveExport(bytes int64) {
	exportsTotal.Inc()
	if bytes > 0 {
		exportBytesTotal.Add(float64(bytes))
	}
}
