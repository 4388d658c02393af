// internal/metrics/metrics.go

// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"

	SourceSync    = "sync"
	SourceWebhook = "webhook"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spygit_sync_runs_total",
			Help: "Student GitHub syncs by outcome",
		},
		[]string{"outcome"},
	)

	ActivitiesRecordedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spygit_activities_recorded_total",
			Help: "Activity rows written, by source and activity type",
		},
		[]string{"source", "type"},
	)

	AnalysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spygit_analyses_total",
			Help: "Code analyses by outcome",
		},
		[]string{"outcome"},
	)

	DispatchQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "spygit_dispatch_queue_depth",
			Help: "Background tasks waiting for a worker",
		},
	)

	DispatchTasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spygit_dispatch_tasks_total",
			Help: "Background tasks by outcome (success, failure, rejected)",
		},
		[]string{"outcome"},
	)
)
