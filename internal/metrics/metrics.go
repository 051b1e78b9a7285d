package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tracks messages received on protocol topics by result.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rfq_messages_total",
			Help: "Total number of protocol messages processed (by topic and result).",
		},
		[]string{"topic", "result"}, // result = "ok" | "decode_error" | "dropped"
	)

	// Measures publish latency per topic.
	PublishLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rfq_publish_latency_seconds",
			Help:    "Time taken to publish protocol messages.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"topic"},
	)

	// Tracks resubscribe attempts after subscribe failures.
	SubscribeRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rfq_subscribe_retries_total",
			Help: "Number of resubscribe attempts per topic.",
		},
		[]string{"topic"},
	)

	// Tracks pricing failures by reason.
	PricingErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rfq_pricing_errors_total",
			Help: "Count of pricing failures by reason.",
		},
		[]string{"reason"}, // missing_source_price | missing_dest_price | lookup_failed
	)

	// Counts successfully computed quotes.
	QuotesComputed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rfq_quotes_computed_total",
			Help: "Total number of quote responses computed.",
		},
	)

	// Gauges the last successful quote time (seconds since epoch).
	LastQuoteTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rfq_last_quote_timestamp",
			Help: "Timestamp (unix seconds) of the last computed quote.",
		},
	)
)

func IncMessage(topic, result string) {
	MessagesTotal.WithLabelValues(topic, result).Inc()
}

func ObservePublish(topic string, start time.Time) {
	PublishLatency.WithLabelValues(topic).Observe(time.Since(start).Seconds())
}

func IncSubscribeRetry(topic string) {
	SubscribeRetries.WithLabelValues(topic).Inc()
}

func IncPricingError(reason string) {
	PricingErrors.WithLabelValues(reason).Inc()
}

func MarkQuoteComputed(t time.Time) {
	QuotesComputed.Inc()
	LastQuoteTimestamp.Set(float64(t.Unix()))
}
