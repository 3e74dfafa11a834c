package capture

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "motorpass_capture_transitions_total",
			Help: "Capture state transitions",
		},
		[]string{"from", "to"},
	)

	scanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "motorpass_capture_scan_duration_seconds",
			Help:    "Duration of preview keyword scans",
			Buckets: []float64{.05, .1, .2, .4, .8, 1.6},
		},
	)

	scanKeywords = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "motorpass_capture_scan_keywords",
			Help:    "Keywords seen per preview scan",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13},
		},
	)
)
