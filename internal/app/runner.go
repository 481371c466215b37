// Package app runs the grading pipeline with its side channels: metrics,
// tracing, result export and run notifications.
package app

import (
	"context"
	"errors"
	"time"

	apperrors "student-grading/internal/common/errors"
	"student-grading/internal/common/logger"
	"student-grading/internal/common/metrics"
	"student-grading/internal/common/observability"
	"student-grading/internal/export"
	"student-grading/internal/grading"
	"student-grading/internal/models"

	"go.opentelemetry.io/otel/trace"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

type Runner struct {
	logger   logger.Logger
	obs      *observability.Observability
	exporter *export.Fanout
	notifier Notifier
	now      func() time.Time
}

// Notifier is satisfied by *notify.Notifier.
type Notifier interface {
	Notify(ctx context.Context, s models.RunSummary) error
}

type Option func(*Runner)

func WithObservability(o *observability.Observability) Option {
	return func(r *Runner) { r.obs = o }
}

func WithExporter(f *export.Fanout) Option {
	return func(r *Runner) { r.exporter = f }
}

// WithNotifier ignores a nil notifier.
func WithNotifier(n Notifier) Option {
	return func(r *Runner) {
		if n != nil {
			r.notifier = n
		}
	}
}

func NewRunner(log logger.Logger, opts ...Option) *Runner {
	r := &Runner{logger: log, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) tracer() trace.Tracer {
	if r.obs == nil {
		return nil
	}
	return r.obs.Tracer()
}

// Run executes one file-based grading run and publishes the result. Only
// pipeline errors are returned; export and notification failures are logged.
func (r *Runner) Run(ctx context.Context, opts grading.Options) (*models.GradingRun, error) {
	p := grading.NewPipeline(opts, r.logger, r.tracer())
	return r.finish(ctx, p.Options().Engine.Name(), r.now(), func() (*models.GradingRun, error) {
		return p.Run(ctx)
	})
}

// Grade grades in-memory records, writing opts.OutputPath when set, and
// publishes the result like Run does.
func (r *Runner) Grade(ctx context.Context, opts grading.Options, recs []models.StudentRecord) (*models.GradingRun, error) {
	p := grading.NewPipeline(opts, r.logger, r.tracer())
	return r.finish(ctx, p.Options().Engine.Name(), r.now(), func() (*models.GradingRun, error) {
		return p.GradeRecords(ctx, recs)
	})
}

func (r *Runner) finish(ctx context.Context, engine string, started time.Time, run func() (*models.GradingRun, error)) (*models.GradingRun, error) {
	result, err := run()
	elapsed := r.now().Sub(started)
	r.record(ctx, engine, result, err, elapsed)
	if err != nil {
		return nil, err
	}

	if err := r.Publish(ctx, result); err != nil {
		r.logger.Warn("run published with errors", map[string]interface{}{
			"runId": result.Summary.RunID,
			"error": err,
		})
	}
	return result, nil
}

// Publish exports run and sends the run notification. Every sink is tried;
// the returned error joins all sink failures.
func (r *Runner) Publish(ctx context.Context, run *models.GradingRun) error {
	var errs []error
	if r.exporter != nil && r.exporter.Len() > 0 {
		if err := r.exporter.Export(ctx, run); err != nil {
			errs = append(errs, err)
		}
	}
	if r.notifier != nil {
		if err := r.notifier.Notify(ctx, run.Summary); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Runner) record(ctx context.Context, engine string, run *models.GradingRun, err error, elapsed time.Duration) {
	outcome := OutcomeSuccess
	rows := 0
	if err != nil {
		outcome = OutcomeFailure
		code := apperrors.Normalize(err).Code
		r.logger.Error("grading run failed", map[string]interface{}{
			"engine":    engine,
			"errorCode": code,
			"error":     err,
		})
	} else {
		rows = run.Summary.Rows
		metrics.RecordsGraded.WithLabelValues(string(models.StatusPassed)).Add(float64(run.Summary.Passed))
		metrics.RecordsGraded.WithLabelValues(string(models.StatusFailed)).Add(float64(run.Summary.Failed))
		metrics.GradesDefaulted.Add(float64(run.Summary.DefaultedGrades))
	}

	metrics.Runs.WithLabelValues(engine, outcome).Inc()
	metrics.RunDuration.WithLabelValues(engine).Observe(elapsed.Seconds())
	if r.obs != nil {
		r.obs.RecordRun(ctx, engine, outcome, rows, elapsed)
	}
}
