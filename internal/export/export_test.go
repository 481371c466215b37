package export

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "student-grading/internal/common/errors"
	"student-grading/internal/common/logger"
	"student-grading/internal/common/metrics"
	"student-grading/internal/models"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func sampleRun() *models.GradingRun {
	started := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return &models.GradingRun{
		Summary: models.RunSummary{
			RunID:           "run-1",
			InputPath:       "/data/notas.csv",
			OutputPath:      "/data/notas_procesadas.csv",
			Engine:          "csv",
			Schema:          "en",
			Rows:            2,
			Passed:          1,
			Failed:          1,
			DefaultedGrades: 1,
			PassThreshold:   71,
			StartedAt:       started,
			FinishedAt:      started.Add(15 * time.Millisecond),
		},
		Records: []models.GradedRecord{
			{ID: "001", Age: "20", Average: decimal.RequireFromString("71.67"), Status: models.StatusPassed},
			{ID: "002", Age: "19", Average: decimal.RequireFromString("36.67"), Status: models.StatusFailed},
		},
	}
}

type fakeExporter struct {
	name  string
	err   error
	calls int
}

func (f *fakeExporter) Name() string { return f.name }

func (f *fakeExporter) Export(context.Context, *models.GradingRun) error {
	f.calls++
	return f.err
}

// ==========================
// Fanout
// ==========================

func TestFanout_AllSucceed(t *testing.T) {
	a, b := &fakeExporter{name: "a"}, &fakeExporter{name: "b"}
	f := NewFanout(logger.NewTestLogger(t), a, b)

	require.NoError(t, f.Export(context.Background(), sampleRun()))
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
	assert.Equal(t, []string{"a", "b"}, f.Names())
	assert.Equal(t, 2, f.Len())
}

func TestFanout_FailureDoesNotStopOthers(t *testing.T) {
	boom := errors.New("connection refused")
	failing := &fakeExporter{name: "fanout-test-failing", err: boom}
	ok := &fakeExporter{name: "ok"}
	before := testutil.ToFloat64(metrics.ExportFailures.WithLabelValues("fanout-test-failing"))

	err := NewFanout(logger.NewNoOpLogger(), failing, ok).Export(context.Background(), sampleRun())

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeExportFailed))
	assert.Equal(t, 1, ok.calls)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.ExportFailures.WithLabelValues("fanout-test-failing")))
}

func TestFanout_Empty(t *testing.T) {
	assert.NoError(t, NewFanout(logger.NewNoOpLogger()).Export(context.Background(), sampleRun()))
}

func TestNewRecordDoc(t *testing.T) {
	doc := newRecordDoc("run-1", 2, models.GradedRecord{
		ID: "007", Age: "020", Average: decimal.RequireFromString("71"), Status: models.StatusPassed,
	})
	assert.Equal(t, "71.00", doc.AveragePercent.String())
	assert.Equal(t, "007", doc.StudentID)
	assert.Equal(t, "run-1-2", docID(doc.RunID, doc.Row))
}
