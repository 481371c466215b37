// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RecordsGraded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grading_records_total",
			Help: "Total number of student records graded, by status",
		},
		[]string{"status"},
	)

	GradesDefaulted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "grading_grades_defaulted_total",
			Help: "Grade cells that were missing or unparsable and counted as 0",
		},
	)

	Runs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grading_runs_total",
			Help: "Total number of grading runs by engine and outcome",
		},
		[]string{"engine", "outcome"},
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "grading_run_duration_seconds",
			Help:    "Duration of a grading run in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		},
		[]string{"engine"},
	)

	ExportFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grading_export_failures_total",
			Help: "Total number of failed result exports by exporter",
		},
		[]string{"exporter"},
	)

	NotificationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "grading_notification_failures_total",
			Help: "Total number of failed run notifications by channel",
		},
		[]string{"channel"},
	)

	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)
)

// WriteTextfile dumps the default registry, plus any extra gatherers, in the
// node_exporter textfile format.
func WriteTextfile(path string, extra ...prometheus.Gatherer) error {
	gatherers := prometheus.Gatherers{prometheus.DefaultGatherer}
	gatherers = append(gatherers, extra...)
	return prometheus.WriteToTextfile(path, gatherers)
}
