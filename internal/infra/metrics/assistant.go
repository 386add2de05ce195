package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		assistantCallLatencyMs,
		transportRetries,
		transportRateLimited,
		transportExhausted,
		promptTokensEstimated,
	)
}

var (
	assistantCallLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assistant_call_latency_ms",
			Help:    "Remote assistant API call latency distribution in milliseconds.",
			Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000, 10000},
		},
		[]string{"operation", "success"},
	)

	transportRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "transport_retries_total",
			Help: "Count of backoff retries performed by the transport layer.",
		},
	)

	transportRateLimited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "transport_rate_limited_total",
			Help: "Count of rate-limit responses received from the remote service.",
		},
	)

	transportExhausted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "transport_retries_exhausted_total",
			Help: "Count of calls that failed after exhausting the retry budget.",
		},
	)

	promptTokensEstimated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "prompt_tokens_estimated_total",
			Help: "Sum of estimated prompt tokens submitted to the assistant.",
		},
	)
)

func ObserveAssistantCall(operation string, latencyMs int, success bool) {
	assistantCallLatencyMs.WithLabelValues(norm(operation), strconv.FormatBool(success)).
		Observe(float64(latencyMs))
}

func IncTransportRetry() { transportRetries.Inc() }

func IncRateLimited() { transportRateLimited.Inc() }

func IncTransportExhausted() { transportExhausted.Inc() }

func AddEstimatedTokens(n int) {
	if n > 0 {
		promptTokensEstimated.Add(float64(n))
	}
}
