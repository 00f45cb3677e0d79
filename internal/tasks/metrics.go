package tasks

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the task pipeline.
type Metrics struct {
	EnqueuedTotal  *prometheus.CounterVec   // filekeeper_tasks_enqueued_total{task,status}
	ProcessedTotal *prometheus.CounterVec   // filekeeper_tasks_processed_total{task,status}
	Duration       *prometheus.HistogramVec // filekeeper_task_duration_seconds{task}
}

// NewMetrics registers the task metrics with the given registry.
// A nil registry falls back to the default registerer.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	return &Metrics{
		EnqueuedTotal: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "filekeeper_tasks_enqueued_total",
			Help: "Tasks enqueued by name and publish status",
		}, []string{"task", "status"}),

		ProcessedTotal: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "filekeeper_tasks_processed_total",
			Help: "Tasks processed by name and outcome",
		}, []string{"task", "status"}),

		Duration: promauto.With(registry).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "filekeeper_task_duration_seconds",
			Help:    "Task handler duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"task"}),
	}
}

// RecordEnqueued records a publish attempt.
func (m *Metrics) RecordEnqueued(task, status string) {
	if m == nil {
		return
	}
	m.EnqueuedTotal.WithLabelValues(task, status).Inc()
}

// RecordProcessed records a handler run.
func (m *Metrics) RecordProcessed(task, status string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.ProcessedTotal.WithLabelValues(task, status).Inc()
	m.Duration.WithLabelValues(task).Observe(durationSeconds)
}
