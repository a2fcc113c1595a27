package contextcache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks cache effectiveness for the context assembler.
type Metrics struct {
	Hits   prometheus.Counter
	Misses prometheus.Counter
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		Hits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "context_cache_hits_total",
			Help:      "Context reads served from cache.",
		}),
		Misses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "context_cache_misses_total",
			Help:      "Context reads that rebuilt from the turn log.",
		}),
	}
}
