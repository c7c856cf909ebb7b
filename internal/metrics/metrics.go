package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PreviewsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lodekeep_previews_total",
		Help: "Bookmark previews by outcome.",
	}, []string{"outcome"})

	SavesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lodekeep_saves_total",
		Help: "Bookmark saves by outcome.",
	}, []string{"outcome"})

	SearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lodekeep_search_duration_seconds",
		Help:    "End to end search latency including parsing and embedding.",
		Buckets: prometheus.DefBuckets,
	})

	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lodekeep_jobs_total",
		Help: "Finished jobs by type and status.",
	}, []string{"job_type", "status"})

	JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lodekeep_job_duration_seconds",
		Help:    "Job execution time by type.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"job_type"})
)
