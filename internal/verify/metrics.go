package verify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	verificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "motorpass_verifications_total",
			Help: "Total number of verification decisions",
		},
		[]string{"profile", "verified", "reason"},
	)

	matchScore = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "motorpass_name_match_score",
			Help:    "Name match score per verification",
			Buckets: []float64{.1, .2, .3, .4, .5, .6, .65, .7, .75, .8, .85, .9, .95, 1},
		},
		[]string{"profile"},
	)

	overridesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "motorpass_document_overrides_total",
			Help: "Decisions where a name match stood in for document detection",
		},
	)
)
