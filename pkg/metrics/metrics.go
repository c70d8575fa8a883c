// Package metrics exposes the service's Prometheus collectors. Handlers
// record into these; main serves them at /metrics via promhttp.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	MessagesCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lucerna_messages_created_total",
		Help: "Messages successfully persisted.",
	})
	CreateFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lucerna_message_create_failures_total",
		Help: "Failed message creations by reason.",
	}, []string{"reason"})
	TokensRecorded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lucerna_tokens_recorded_total",
		Help: "Token counts accumulated across persisted messages.",
	})
	CreateDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "lucerna_message_create_seconds",
		Help:    "Latency of the message create path.",
		Buckets: prometheus.DefBuckets,
	})
	QueryDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "lucerna_message_query_seconds",
		Help:    "Latency of filtered message queries.",
		Buckets: prometheus.DefBuckets,
	})
	QueryResults = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "lucerna_message_query_results",
		Help:    "Result sizes of filtered message queries.",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	})
)

func init() {
	prometheus.MustRegister(
		MessagesCreated,
		CreateFailures,
		TokensRecorded,
		CreateDuration,
		QueryDuration,
		QueryResults,
	)
}
