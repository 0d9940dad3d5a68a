package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecomputeTotal counts recompute runs by outcome.
	RecomputeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ttr_recompute_total",
		Help: "Total schedule recomputes by outcome",
	}, []string{"outcome"}) // "clean" or "conflicted"

	// RecomputeDuration tracks recompute latency per project.
	RecomputeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ttr_recompute_duration_seconds",
		Help:    "Schedule recompute duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
	})

	// TasksRecomputed counts task nodes whose dates moved.
	TasksRecomputed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ttr_tasks_recomputed_total",
		Help: "Total task nodes whose dates changed during recomputes",
	})

	// ViolationsDetected counts constraint violations found.
	ViolationsDetected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ttr_violations_detected_total",
		Help: "Total fixed-date constraint violations detected",
	})

	// CacheHits and CacheMisses track the calculation cache.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ttr_calc_cache_hits_total",
		Help: "Total calculation cache hits",
	})
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ttr_calc_cache_misses_total",
		Help: "Total calculation cache misses",
	})

	// ReportBuilds counts generated reports by kind.
	ReportBuilds = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ttr_report_builds_total",
		Help: "Total generated reports by kind",
	}, []string{"kind"})

	// ServeRequests counts HTTP requests served by status class.
	ServeRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ttr_serve_requests_total",
		Help: "Total HTTP requests by status class",
	}, []string{"class"})
)

// ObserveRecompute records one recompute run.
func ObserveRecompute(start time.Time, recomputed, conflicted, violations int) {
	RecomputeDuration.Observe(time.Since(start).Seconds())
	outcome := "clean"
	if conflicted > 0 {
		outcome = "conflicted"
	}
	RecomputeTotal.WithLabelValues(outcome).Inc()
	TasksRecomputed.Add(float64(recomputed))
	ViolationsDetected.Add(float64(violations))
}
