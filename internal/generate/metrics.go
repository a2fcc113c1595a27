package generate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks provider health across the failover chain.
type Metrics struct {
	Attempts  *prometheus.CounterVec
	Fallbacks prometheus.Counter
	Exhausted prometheus.Counter
	Latency   *prometheus.HistogramVec
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		Attempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_attempts_total",
			Help:      "Completion attempts by provider and outcome.",
		}, []string{"provider", "outcome"}),
		Fallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_fallbacks_total",
			Help:      "Completions served by a non-primary provider.",
		}),
		Exhausted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_exhaustion_total",
			Help:      "Requests for which every provider failed.",
		}),
		Latency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_latency_seconds",
			Help:      "Completion latency by provider.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
	}
}
