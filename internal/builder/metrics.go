package builder

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Build outcomes used as the result label.
const (
	resultBuilt  = "built"
	resultCached = "cached"
	resultFailed = "failed"
)

var (
	buildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strata_builds_total",
			Help: "Recipe builds by result (built, cached, failed)",
		},
		[]string{"result"},
	)
	buildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "strata_build_duration_seconds",
			Help:    "Duration of executed recipe builds in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
	)
	integrityFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "strata_integrity_failures_total",
			Help: "Builds rejected because the output hash did not match the declared hash",
		},
	)
	skippedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "strata_builds_skipped_total",
			Help: "Recipes not started because a dependency failed",
		},
	)
)
