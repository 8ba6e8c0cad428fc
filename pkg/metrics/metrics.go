// Package metrics provides Prometheus collectors for the RAG pipeline stages.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StageDuration tracks how long each orchestration stage takes.
	// Labels: stage (retrieval, prompt, inference, parse, reindex, ingest)
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "rag",
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	// StageFailures counts failed stage executions.
	StageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rag",
			Name:      "stage_failures_total",
			Help:      "Total number of failed pipeline stage executions",
		},
		[]string{"stage"},
	)

	// ParseStrategy counts which parse strategy produced the result.
	// Labels: strategy (direct, fenced, heuristic, failed)
	ParseStrategy = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rag",
			Name:      "parse_strategy_total",
			Help:      "Total number of model outputs handled by each parse strategy",
		},
		[]string{"strategy"},
	)

	// IndexVectors reports the number of vectors in the in-memory index.
	IndexVectors = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "rag",
			Name:      "index_vectors",
			Help:      "Number of vectors currently held by the nearest-neighbor index",
		},
	)
)

// ObserveStage records the duration of a stage started at start, and a failure when err is non-nil.
func ObserveStage(stage string, start time.Time, err error) {
	StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	if err != nil {
		StageFailures.WithLabelValues(stage).Inc()
	}
}
