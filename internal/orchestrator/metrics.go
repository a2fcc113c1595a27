package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics covers the pipeline's decision surface.
type Metrics struct {
	Decisions    *prometheus.CounterVec
	Suppressions *prometheus.CounterVec
	Replays      prometheus.Counter
	Crisis       *prometheus.CounterVec
	GateBlocks   *prometheus.CounterVec
	Latency      prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Pipeline completions by decision kind.",
		}, []string{"kind"}),
		Suppressions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "suppressions_total",
			Help:      "Suppressed outbounds by reason.",
		}, []string{"reason"}),
		Replays: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decision_replays_total",
			Help:      "Duplicate deliveries answered from the idempotency record.",
		}),
		Crisis: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "crisis_detections_total",
			Help:      "Crisis category firings.",
		}, []string{"category", "severity"}),
		GateBlocks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gate_blocks_total",
			Help:      "Pre-generation gate short-circuits by result.",
		}, []string{"result"}),
		Latency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_latency_seconds",
			Help:      "End-to-end inbound handling latency.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}
