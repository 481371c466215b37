package grading

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"student-grading/internal/common/config"
	apperrors "student-grading/internal/common/errors"
	"student-grading/internal/common/logger"
	"student-grading/internal/models"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Options is the fixed configuration of a run.
type Options struct {
	BaseDir       string
	InputName     string
	InputPath     string // skips the search when set
	OutputPath    string
	PassThreshold float64
	Schema        Schema
	Engine        Engine
	CRLF          bool
}

// DefaultOptions grades ./notas.csv into ./notas_procesadas.csv at 71.
func DefaultOptions() Options {
	return Options{
		BaseDir:       ".",
		InputName:     config.DefaultInputName,
		OutputPath:    config.DefaultOutputName,
		PassThreshold: config.DefaultPassThreshold,
		Schema:        SchemaEN,
		Engine:        CSVEngine{},
	}
}

// OptionsFromConfig resolves schema and engine names from cfg.
func OptionsFromConfig(cfg config.GradingConfig) (Options, error) {
	schema, err := SchemaByName(cfg.Schema)
	if err != nil {
		return Options{}, apperrors.NewConfigInvalidError(err.Error())
	}
	engine, err := EngineByName(cfg.Engine)
	if err != nil {
		return Options{}, apperrors.NewConfigInvalidError(err.Error())
	}
	opts := Options{
		BaseDir:       cfg.BaseDir,
		InputName:     cfg.InputName,
		InputPath:     cfg.InputPath,
		OutputPath:    cfg.OutputPath,
		PassThreshold: cfg.PassThreshold,
		Schema:        schema,
		Engine:        engine,
		CRLF:          cfg.CRLF,
	}
	return opts.withDefaults(), nil
}

func (o Options) withDefaults() Options {
	if o.BaseDir == "" {
		o.BaseDir = "."
	}
	if o.InputName == "" {
		o.InputName = config.DefaultInputName
	}
	if o.Engine == nil {
		o.Engine = CSVEngine{}
	}
	if o.Schema.Name == "" {
		o.Schema = SchemaEN
	}
	return o
}

type Pipeline struct {
	opts   Options
	grader *Grader
	logger logger.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// NewPipeline builds a pipeline; a nil tracer disables spans.
func NewPipeline(opts Options, log logger.Logger, tracer trace.Tracer) *Pipeline {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("grading")
	}
	opts = opts.withDefaults()
	return &Pipeline{
		opts:   opts,
		grader: NewGrader(opts.PassThreshold),
		logger: log,
		tracer: tracer,
		now:    time.Now,
	}
}

func (p *Pipeline) Options() Options { return p.opts }

// Run locates and reads the input, grades every row and writes the output file.
// The output is only created after the input has been found and fully read.
func (p *Pipeline) Run(ctx context.Context) (*models.GradingRun, error) {
	started := p.now().UTC()
	runID := uuid.NewString()
	log := p.logger.WithFields(map[string]interface{}{
		"runId":  runID,
		"engine": p.opts.Engine.Name(),
	})

	ctx, span := p.tracer.Start(ctx, "grading.run", trace.WithAttributes(
		attribute.String("grading.run_id", runID),
		attribute.String("grading.engine", p.opts.Engine.Name()),
	))
	defer span.End()

	inputPath, err := p.locate(ctx)
	if err != nil {
		return nil, failSpan(span, err)
	}
	log.Info("input located", map[string]interface{}{"inputPath": inputPath})

	if err := ctx.Err(); err != nil {
		return nil, failSpan(span, err)
	}
	ds, err := p.read(ctx, inputPath)
	if err != nil {
		return nil, failSpan(span, err)
	}
	if len(ds.MissingColumns) > 0 {
		log.Warn("input is missing columns, their cells read as empty", map[string]interface{}{
			"columns": ds.MissingColumns,
		})
	}

	if err := ctx.Err(); err != nil {
		return nil, failSpan(span, err)
	}
	run := p.grade(ctx, runID, started, inputPath, ds.Records)

	if err := ctx.Err(); err != nil {
		return nil, failSpan(span, err)
	}
	if err := p.write(ctx, p.opts.OutputPath, run.Records); err != nil {
		return nil, failSpan(span, err)
	}
	run.Summary.OutputPath = p.opts.OutputPath
	run.Summary.FinishedAt = p.now().UTC()

	log.Info("grading run finished", map[string]interface{}{
		"outputPath":      run.Summary.OutputPath,
		"rows":            run.Summary.Rows,
		"passed":          run.Summary.Passed,
		"failed":          run.Summary.Failed,
		"defaultedGrades": run.Summary.DefaultedGrades,
	})
	span.SetAttributes(attribute.Int("grading.rows", run.Summary.Rows))
	return run, nil
}

// GradeRecords grades records that did not come from a file. The output file
// is written only when OutputPath is set.
func (p *Pipeline) GradeRecords(ctx context.Context, recs []models.StudentRecord) (*models.GradingRun, error) {
	started := p.now().UTC()
	runID := uuid.NewString()

	ctx, span := p.tracer.Start(ctx, "grading.records", trace.WithAttributes(
		attribute.String("grading.run_id", runID),
	))
	defer span.End()

	run := p.grade(ctx, runID, started, "", recs)
	if p.opts.OutputPath != "" {
		if err := p.write(ctx, p.opts.OutputPath, run.Records); err != nil {
			return nil, failSpan(span, err)
		}
		run.Summary.OutputPath = p.opts.OutputPath
	}
	run.Summary.FinishedAt = p.now().UTC()
	return run, nil
}

func (p *Pipeline) locate(ctx context.Context) (string, error) {
	_, span := p.tracer.Start(ctx, "grading.locate")
	defer span.End()

	if p.opts.InputPath != "" {
		path, err := ResolveInput(p.opts.InputPath)
		return path, failSpan(span, err)
	}
	path, err := Locate(p.opts.BaseDir, p.opts.InputName)
	return path, failSpan(span, err)
}

func (p *Pipeline) read(ctx context.Context, path string) (*Dataset, error) {
	_, span := p.tracer.Start(ctx, "grading.read", trace.WithAttributes(
		attribute.String("grading.input_path", path),
	))
	defer span.End()

	f, err := os.Open(path)
	if err != nil {
		return nil, failSpan(span, apperrors.NewInputReadFailedError(path, err))
	}
	defer f.Close()

	ds, err := p.opts.Engine.Read(f, p.opts.Schema)
	if err != nil {
		return nil, failSpan(span, apperrors.NewInputReadFailedError(path, err))
	}
	span.SetAttributes(attribute.Int("grading.rows", len(ds.Records)))
	return ds, nil
}

func (p *Pipeline) grade(ctx context.Context, runID string, started time.Time, inputPath string, recs []models.StudentRecord) *models.GradingRun {
	_, span := p.tracer.Start(ctx, "grading.transform")
	defer span.End()

	graded := p.grader.GradeAll(recs)
	passed, failed, defaulted := Tally(recs, graded)
	return &models.GradingRun{
		Summary: models.RunSummary{
			RunID:           runID,
			InputPath:       inputPath,
			Engine:          p.opts.Engine.Name(),
			Schema:          p.opts.Schema.Name,
			Rows:            len(graded),
			Passed:          passed,
			Failed:          failed,
			DefaultedGrades: defaulted,
			PassThreshold:   p.opts.PassThreshold,
			StartedAt:       started,
		},
		Records: graded,
	}
}

func (p *Pipeline) write(ctx context.Context, path string, recs []models.GradedRecord) error {
	_, span := p.tracer.Start(ctx, "grading.write", trace.WithAttributes(
		attribute.String("grading.output_path", path),
	))
	defer span.End()

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return failSpan(span, apperrors.NewOutputWriteFailedError(path, err))
		}
	}
	err := WriteFileAtomic(path, func(w io.Writer) error {
		return Write(w, p.opts.Engine, p.opts.Schema, recs, p.opts.CRLF)
	})
	if err != nil {
		return failSpan(span, apperrors.NewOutputWriteFailedError(path, err))
	}
	return nil
}

// failSpan marks span as failed when err is non-nil and returns err unchanged.
func failSpan(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// Describe is the one-line report printed after a successful run.
func Describe(run *models.GradingRun) string {
	return fmt.Sprintf("Wrote %s with %d rows.", run.Summary.OutputPath, run.Summary.Rows)
}
