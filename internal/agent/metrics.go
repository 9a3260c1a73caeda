package agent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rootcause_queries_total",
		Help: "Pipeline executions by terminal status.",
	}, []string{"status"})

	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rootcause_stage_duration_seconds",
		Help:    "Wall time spent in each pipeline stage.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	documentsRetrieved = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "rootcause_documents_retrieved",
		Help:    "Documents returned by the retrieval stage per query.",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
	})
)
