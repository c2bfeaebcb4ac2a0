// Package metrics registers the Prometheus collectors the mediator
// exposes: gateway call latency/outcomes, cache hit ratio, and delta
// calculation duration. Promoted here from an indirect dependency in the
// corpus this service was modeled on, since nothing else in this tree
// otherwise exercised client_golang directly.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GatewayCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "workspacegraph",
		Subsystem: "gateway",
		Name:      "call_duration_seconds",
		Help:      "Duration of upstream gateway calls by operation and outcome.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "outcome"})

	GatewayRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "workspacegraph",
		Subsystem: "gateway",
		Name:      "retries_total",
		Help:      "Total number of retried upstream gateway calls.",
	}, []string{"operation"})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "workspacegraph",
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Cache lookups by kind and hit/miss outcome.",
	}, []string{"kind", "outcome"})

	CacheEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "workspacegraph",
		Subsystem: "cache",
		Name:      "entries",
		Help:      "Current number of entries held in the in-memory cache tier.",
	})

	DeltaCalculationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "workspacegraph",
		Subsystem: "delta",
		Name:      "calculation_duration_seconds",
		Help:      "Duration of delta calculation between before/after snapshots.",
		Buckets:   prometheus.DefBuckets,
	})

	InverseRelationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "workspacegraph",
		Subsystem: "maintainer",
		Name:      "partial_failures_total",
		Help:      "Total number of inverse-relation target updates that failed.",
	})
)

// ObserveGatewayCall records one gateway call's duration and outcome.
func ObserveGatewayCall(operation, outcome string, start time.Time) {
	GatewayCallDuration.WithLabelValues(operation, outcome).Observe(time.Since(start).Seconds())
}
