// internal/workers/grading/grade-student-records/handler.go
package gradestudentrecords

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"student-grading/internal/app"
	"student-grading/internal/common/config"
	"student-grading/internal/common/errors"
	"student-grading/internal/common/logger"
	"student-grading/internal/common/metrics"
	"student-grading/internal/grading"
	"student-grading/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = config.GradeWorkerTaskType

type Handler struct {
	config       *Config
	logger       logger.Logger
	runner       *app.Runner
	base         grading.Options
	errorHandler *errors.ErrorHandler
}

type HandlerOptions struct {
	AppConfig    *config.Config
	Runner       *app.Runner
	CustomConfig *Config
	Logger       logger.Logger
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	workerConfig := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err := workerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", TaskType, err)
	}

	base := grading.DefaultOptions()
	if opts.AppConfig != nil {
		var err error
		if base, err = grading.OptionsFromConfig(opts.AppConfig.Grading); err != nil {
			return nil, err
		}
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewStructured("info", "json")
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})

	runner := opts.Runner
	if runner == nil {
		runner = app.NewRunner(log)
	}

	return &Handler{
		config:       workerConfig,
		logger:       log,
		runner:       runner,
		base:         base,
		errorHandler: errors.NewErrorHandler(log),
	}, nil
}

func (h *Handler) GetTaskType() string { return TaskType }
func (h *Handler) IsEnabled() bool     { return h.config.Enabled }
func (h *Handler) GetConfig() *Config  { return h.config }

func (h *Handler) Handle(client worker.JobClient, job entities.Job) error {
	startTime := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	input, err := h.parseInput(job.GetVariables())
	if err != nil {
		h.fail(ctx, client, job, err)
		return err
	}

	output, err := h.Execute(ctx, input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return err
	}

	if err := h.completeJob(ctx, client, job, output); err != nil {
		return err
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(startTime).Seconds())
	return nil
}

// parseInput validates the raw job variables against the input schema and
// decodes them with numbers kept as json.Number.
func (h *Handler) parseInput(variables string) (*Input, error) {
	if strings.TrimSpace(variables) == "" {
		variables = "{}"
	}

	result, err := inputSchema.ValidateJSON([]byte(variables))
	if err != nil {
		return nil, errors.NewInvalidJobInputError(err.Error())
	}
	if !result.Valid {
		return nil, errors.NewInvalidJobInputError(result.Summary())
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(variables)))
	dec.UseNumber()
	var input Input
	if err := dec.Decode(&input); err != nil {
		return nil, errors.NewInvalidJobInputError(fmt.Sprintf("decode variables: %v", err))
	}
	return &input, nil
}

// Execute grades the job's records, or the CSV at InputPath when no records
// are given.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil || (input.Records == nil && input.InputPath == "") {
		return nil, errors.NewInvalidJobInputError("either records or inputPath is required")
	}

	opts := h.base
	if input.PassThreshold != nil {
		opts.PassThreshold = *input.PassThreshold
	}

	var (
		run *models.GradingRun
		err error
	)
	outputPath, err := resolveJobPath(opts.BaseDir, "outputPath", input.OutputPath)
	if err != nil {
		return nil, err
	}
	if input.Records != nil {
		opts.InputPath = ""
		opts.OutputPath = outputPath
		run, err = h.runner.Grade(ctx, opts, toStudentRecords(input.Records))
	} else {
		if opts.InputPath, err = resolveJobPath(opts.BaseDir, "inputPath", input.InputPath); err != nil {
			return nil, err
		}
		if outputPath != "" {
			opts.OutputPath = outputPath
		}
		run, err = h.runner.Run(ctx, opts)
	}
	if err != nil {
		return nil, err
	}

	h.logger.Info("records graded", map[string]interface{}{
		"runId":  run.Summary.RunID,
		"rows":   run.Summary.Rows,
		"passed": run.Summary.Passed,
		"failed": run.Summary.Failed,
	})
	return newOutput(run, opts.Schema), nil
}

// resolveJobPath places a job-supplied path under baseDir. Relative paths are
// joined to it; anything that lands outside it is rejected.
func resolveJobPath(baseDir, field, p string) (string, error) {
	if p == "" {
		return "", nil
	}
	if baseDir == "" {
		baseDir = "."
	}
	base, err := filepath.Abs(baseDir)
	if err != nil {
		return "", errors.NewInternalError(err)
	}
	target := p
	if !filepath.IsAbs(target) {
		target = filepath.Join(base, target)
	}
	target = filepath.Clean(target)

	rel, err := filepath.Rel(base, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.NewInvalidJobInputError(fmt.Sprintf("%s %q is outside %s", field, p, base))
	}
	return target, nil
}

func toStudentRecords(in []RecordInput) []models.StudentRecord {
	recs := make([]models.StudentRecord, len(in))
	for i, r := range in {
		var grades [3]string
		for j, g := range []interface{}{r.Grade1, r.Grade2, r.Grade3} {
			grades[j] = gradeText(g)
		}
		recs[i] = grading.NewStudentRecord(i+1, r.Name, r.ID, text(r.Age), grades)
	}
	return recs
}

// gradeText maps a decoded grade to the text the grade parser expects.
func gradeText(v interface{}) string {
	if _, ok := grading.ParseGradeValue(v); !ok {
		return ""
	}
	return text(v)
}

func text(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func newOutput(run *models.GradingRun, schema grading.Schema) *Output {
	out := &Output{
		RunID:       run.Summary.RunID,
		RowCount:    run.Summary.Rows,
		PassedCount: run.Summary.Passed,
		FailedCount: run.Summary.Failed,
		OutputPath:  run.Summary.OutputPath,
		Results:     make([]Result, len(run.Records)),
	}
	for i, rec := range run.Records {
		out.Results[i] = Result{
			ID:             rec.ID,
			Age:            rec.Age,
			AveragePercent: rec.AverageText(),
			Status:         schema.Label(rec.Status),
		}
	}
	return out
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	code := errors.Normalize(err).Code
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(code)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) error {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.GetKey()).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		h.fail(ctx, client, job, errors.NewInternalError(err))
		return err
	}

	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.GetKey(),
			"error":  err,
		})
		return err
	}

	h.logger.Info("job completed successfully", map[string]interface{}{
		"jobKey": job.GetKey(),
		"rows":   output.RowCount,
	})
	return nil
}
