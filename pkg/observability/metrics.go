// Package observability provides Prometheus metrics for the glmkit
// provider adapters: per-attempt outcomes, backend latency, token
// throughput, and active stream accounting.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets defines histogram buckets suited for LLM inference latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// ProviderRequestsTotal counts physical attempts sent to backends,
	// labeled by outcome (success, transient_error, fatal_error).
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glmkit_provider_requests_total",
			Help: "Provider attempts",
		},
		[]string{"provider", "model", "outcome"},
	)

	// ProviderLatency records backend attempt latency in seconds.
	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "glmkit_provider_latency_seconds",
			Help:    "Provider latency",
			Buckets: LLMBuckets,
		},
		[]string{"provider", "model"},
	)

	// RetryAttemptsTotal counts attempts beyond the first for a logical call.
	RetryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glmkit_retry_attempts_total",
			Help: "Retried attempts",
		},
		[]string{"provider", "model"},
	)

	// ProviderTokensTotal counts tokens processed by direction (input/output).
	ProviderTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "glmkit_provider_tokens_total",
			Help: "Token count",
		},
		[]string{"provider", "model", "direction"},
	)

	// StreamsActive tracks the number of open streaming responses.
	StreamsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "glmkit_streams_active",
			Help: "Active streaming responses",
		},
	)
)

func init() {
	prometheus.MustRegister(
		ProviderRequestsTotal,
		ProviderLatency,
		RetryAttemptsTotal,
		ProviderTokensTotal,
		StreamsActive,
	)
}

// ObserveUsage records token counters for one completed call. Absent
// counters are skipped rather than counted as zero.
func ObserveUsage(provider, model string, input, output *int) {
	if input != nil {
		ProviderTokensTotal.WithLabelValues(provider, model, "input").Add(float64(*input))
	}
	if output != nil {
		ProviderTokensTotal.WithLabelValues(provider, model, "output").Add(float64(*output))
	}
}
