// Package export ships finished grading runs to optional result stores.
// The CSV file stays the primary output; exporters only copy it elsewhere.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	apperrors "student-grading/internal/common/errors"
	"student-grading/internal/common/logger"
	"student-grading/internal/common/metrics"
	"student-grading/internal/models"
)

type Exporter interface {
	Name() string
	Export(ctx context.Context, run *models.GradingRun) error
}

// Fanout runs every exporter in order. One failing exporter does not stop the others.
type Fanout struct {
	exporters []Exporter
	logger    logger.Logger
}

func NewFanout(log logger.Logger, exporters ...Exporter) *Fanout {
	return &Fanout{exporters: exporters, logger: log}
}

func (f *Fanout) Len() int { return len(f.exporters) }

// Names lists the configured exporters in run order.
func (f *Fanout) Names() []string {
	names := make([]string, len(f.exporters))
	for i, e := range f.exporters {
		names[i] = e.Name()
	}
	return names
}

// Export returns the joined EXPORT_FAILED errors of every exporter that failed.
func (f *Fanout) Export(ctx context.Context, run *models.GradingRun) error {
	var errs []error
	for _, e := range f.exporters {
		if err := e.Export(ctx, run); err != nil {
			metrics.ExportFailures.WithLabelValues(e.Name()).Inc()
			f.logger.Error("export failed", map[string]interface{}{
				"exporter": e.Name(),
				"runId":    run.Summary.RunID,
				"error":    err,
			})
			errs = append(errs, apperrors.NewExportFailedError(e.Name(), err))
			continue
		}
		f.logger.Info("run exported", map[string]interface{}{
			"exporter": e.Name(),
			"runId":    run.Summary.RunID,
			"rows":     len(run.Records),
		})
	}
	return errors.Join(errs...)
}

// recordDoc is the stored shape of one graded row. The average keeps its
// two-decimal text but is emitted as a JSON number.
type recordDoc struct {
	RunID          string      `json:"runId"`
	Row            int         `json:"row"`
	StudentID      string      `json:"studentId"`
	Age            string      `json:"age"`
	AveragePercent json.Number `json:"averagePercent"`
	Status         string      `json:"status"`
}

func newRecordDoc(runID string, row int, rec models.GradedRecord) recordDoc {
	return recordDoc{
		RunID:          runID,
		Row:            row,
		StudentID:      rec.ID,
		Age:            rec.Age,
		AveragePercent: json.Number(rec.AverageText()),
		Status:         string(rec.Status),
	}
}

func docID(runID string, row int) string {
	return fmt.Sprintf("%s-%d", runID, row)
}
