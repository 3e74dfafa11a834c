package extract

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	extractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "motorpass_extractions_total",
			Help: "Total number of text extractions",
		},
		[]string{"source", "cached"}, // source: REMOTE, LOCAL, NONE
	)

	extractionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "motorpass_extraction_duration_seconds",
			Help:    "Text extraction duration in seconds",
			Buckets: []float64{.005, .05, .25, .5, 1, 2, 4, 6, 10, 15},
		},
		[]string{"source"},
	)

	remoteFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "motorpass_remote_fallbacks_total",
			Help: "Times the remote recognizer was skipped or failed and local recognition took over",
		},
		[]string{"reason"}, // reason: offline, unconfigured, rate_limited, empty, error
	)

	cacheWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "motorpass_cache_write_failures_total",
			Help: "Failed result cache writes",
		},
	)
)
