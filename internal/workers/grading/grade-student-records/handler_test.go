// internal/workers/grading/grade-student-records/handler_test.go
package gradestudentrecords

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"student-grading/internal/common/config"
	"student-grading/internal/common/errors"
	"student-grading/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

// Create a test logger that implements your logger.Logger interface
type testLogger struct {
	t *testing.T
}

func (tl *testLogger) Debug(msg string, fields map[string]interface{}) {
	tl.t.Logf("DEBUG: %s %v", msg, fields)
}

func (tl *testLogger) Info(msg string, fields map[string]interface{}) {
	tl.t.Logf("INFO: %s %v", msg, fields)
}

func (tl *testLogger) Warn(msg string, fields map[string]interface{}) {
	tl.t.Logf("WARN: %s %v", msg, fields)
}

func (tl *testLogger) Error(msg string, fields map[string]interface{}) {
	tl.t.Logf("ERROR: %s %v", msg, fields)
}

func (tl *testLogger) WithFields(fields map[string]interface{}) logger.Logger {
	return tl
}

func (tl *testLogger) WithError(err error) logger.Logger {
	return tl.WithFields(map[string]interface{}{"error": err})
}

func (tl *testLogger) With(fields map[string]interface{}) logger.Logger {
	return tl
}

func createTestHandler(t *testing.T, appConfig *config.Config) *Handler {
	t.Helper()
	h, err := NewHandler(HandlerOptions{
		AppConfig: appConfig,
		Logger:    &testLogger{t: t},
	})
	require.NoError(t, err)
	return h
}

func createTestAppConfig(baseDir string) *config.Config {
	return &config.Config{
		Grading: config.GradingConfig{
			BaseDir:       baseDir,
			InputName:     "notas.csv",
			OutputPath:    filepath.Join(baseDir, "notas_procesadas.csv"),
			PassThreshold: 71,
			Engine:        "csv",
			Schema:        "en",
		},
	}
}

func float64Ptr(v float64) *float64 { return &v }

// ==========================
// Input Parsing Tests
// ==========================

func TestHandler_ParseInput(t *testing.T) {
	h := createTestHandler(t, nil)

	tests := []struct {
		name      string
		variables string
		wantErr   bool
		check     func(t *testing.T, in *Input)
	}{
		{
			name:      "inline records keep number text",
			variables: `{"records":[{"name":"Ana","id":"001","age":20,"grade1":60,"grade2":"75","grade3":80.5}]}`,
			check: func(t *testing.T, in *Input) {
				require.Len(t, in.Records, 1)
				assert.Equal(t, "001", in.Records[0].ID)
				assert.Equal(t, json.Number("20"), in.Records[0].Age)
				assert.Equal(t, json.Number("80.5"), in.Records[0].Grade3)
				assert.Equal(t, "75", in.Records[0].Grade2)
			},
		},
		{
			name:      "null grade allowed",
			variables: `{"records":[{"id":"002","grade1":null}]}`,
			check: func(t *testing.T, in *Input) {
				assert.Nil(t, in.Records[0].Grade1)
			},
		},
		{
			name:      "input path with threshold",
			variables: `{"inputPath":"/data/notas.csv","passThreshold":60}`,
			check: func(t *testing.T, in *Input) {
				assert.Equal(t, "/data/notas.csv", in.InputPath)
				require.NotNil(t, in.PassThreshold)
				assert.Equal(t, 60.0, *in.PassThreshold)
			},
		},
		{name: "numeric id rejected", variables: `{"records":[{"id":1}]}`, wantErr: true},
		{name: "missing id rejected", variables: `{"records":[{"name":"Ana"}]}`, wantErr: true},
		{name: "neither records nor path", variables: `{"passThreshold":71}`, wantErr: true},
		{name: "empty variables", variables: ``, wantErr: true},
		{name: "negative threshold", variables: `{"inputPath":"x.csv","passThreshold":-1}`, wantErr: true},
		{name: "boolean grade", variables: `{"records":[{"id":"1","grade1":true}]}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := h.parseInput(tt.variables)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidJobInput))
				return
			}
			require.NoError(t, err)
			tt.check(t, in)
		})
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_InlineRecords(t *testing.T) {
	h := createTestHandler(t, createTestAppConfig(t.TempDir()))

	in, err := h.parseInput(`{"records":[
		{"name":"Ana","id":"001","age":"20","grade1":60,"grade2":75,"grade3":80},
		{"name":"Luis","id":"002","age":19,"grade1":null,"grade2":50,"grade3":"60"}
	]}`)
	require.NoError(t, err)

	output, err := h.Execute(context.Background(), in)
	require.NoError(t, err)

	assert.NotEmpty(t, output.RunID)
	assert.Equal(t, 2, output.RowCount)
	assert.Equal(t, 1, output.PassedCount)
	assert.Equal(t, 1, output.FailedCount)
	assert.Empty(t, output.OutputPath)
	assert.Equal(t, []Result{
		{ID: "001", Age: "20", AveragePercent: "71.67", Status: "Passed"},
		{ID: "002", Age: "19", AveragePercent: "36.67", Status: "Failed"},
	}, output.Results)
}

func TestHandler_Execute_ThresholdOverrideAndOutputFile(t *testing.T) {
	dir := t.TempDir()
	h := createTestHandler(t, createTestAppConfig(dir))
	out := filepath.Join(dir, "job", "graded.csv")

	output, err := h.Execute(context.Background(), &Input{
		Records: []RecordInput{
			{ID: "a", Grade1: json.Number("70.995"), Grade2: json.Number("70.995"), Grade3: json.Number("70.995")},
		},
		OutputPath:    out,
		PassThreshold: float64Ptr(71.01),
	})
	require.NoError(t, err)
	assert.Equal(t, "71.00", output.Results[0].AveragePercent)
	assert.Equal(t, "Failed", output.Results[0].Status)
	assert.Equal(t, out, output.OutputPath)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "ID,Age,AveragePercent,Status\na,,71.00,Failed\n", string(data))
}

func TestHandler_Execute_InputPath(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "uploads", "notas.csv")
	require.NoError(t, os.MkdirAll(filepath.Dir(input), 0o755))
	require.NoError(t, os.WriteFile(input, []byte("Name,ID,Age,Grade1,Grade2,Grade3\nAna,001,20,60,75,80\n"), 0o644))

	h := createTestHandler(t, createTestAppConfig(dir))
	output, err := h.Execute(context.Background(), &Input{InputPath: input})
	require.NoError(t, err)
	assert.Equal(t, 1, output.RowCount)
	assert.Equal(t, filepath.Join(dir, "notas_procesadas.csv"), output.OutputPath)
}

func TestHandler_Execute_InputPathNotFound(t *testing.T) {
	dir := t.TempDir()
	h := createTestHandler(t, createTestAppConfig(dir))

	_, err := h.Execute(context.Background(), &Input{InputPath: filepath.Join(dir, "missing.csv")})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInputNotFound))

	bpmn := errors.ConvertToBPMNError(errors.Normalize(err))
	assert.Equal(t, 0, bpmn.Retries)
}

func TestHandler_Execute_RelativePathsResolveUnderBaseDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "uploads"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "uploads", "notas.csv"),
		[]byte("Name,ID,Age,Grade1,Grade2,Grade3\nAna,001,20,60,75,80\n"), 0o644))

	h := createTestHandler(t, createTestAppConfig(dir))
	output, err := h.Execute(context.Background(), &Input{
		InputPath:  "uploads/notas.csv",
		OutputPath: "reports/../graded.csv",
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "graded.csv"), output.OutputPath)
	assert.FileExists(t, filepath.Join(dir, "graded.csv"))
}

func TestHandler_Execute_RejectsPathsOutsideBaseDir(t *testing.T) {
	root := t.TempDir()
	base := filepath.Join(root, "base")
	require.NoError(t, os.MkdirAll(base, 0o755))
	outside := filepath.Join(root, "outside.csv")
	require.NoError(t, os.WriteFile(outside, []byte("keep\n"), 0o644))

	records := []RecordInput{{ID: "001", Grade1: "90", Grade2: "90", Grade3: "90"}}
	tests := []struct {
		name  string
		input *Input
	}{
		{"absolute input", &Input{InputPath: outside}},
		{"relative input escaping", &Input{InputPath: "../outside.csv"}},
		{"output escaping with records", &Input{Records: records, OutputPath: "../outside.csv"}},
		{"absolute output with records", &Input{Records: records, OutputPath: outside}},
		{"sibling with shared prefix", &Input{Records: records, OutputPath: base + "-evil/x.csv"}},
	}

	h := createTestHandler(t, createTestAppConfig(base))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Execute(context.Background(), tt.input)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidJobInput), "got %v", err)

			bpmn := errors.ConvertToBPMNError(errors.Normalize(err))
			assert.Equal(t, 0, bpmn.Retries)
		})
	}

	data, err := os.ReadFile(outside)
	require.NoError(t, err)
	assert.Equal(t, "keep\n", string(data))
	_, err = os.Stat(base + "-evil")
	assert.True(t, os.IsNotExist(err))
}

func TestHandler_Execute_SpanishLabels(t *testing.T) {
	cfg := createTestAppConfig(t.TempDir())
	cfg.Grading.Schema = "es"
	h := createTestHandler(t, cfg)

	output, err := h.Execute(context.Background(), &Input{Records: []RecordInput{
		{ID: "001", Grade1: "90", Grade2: "90", Grade3: "90"},
	}})
	require.NoError(t, err)
	assert.Equal(t, "Aprobado", output.Results[0].Status)
}

func TestHandler_Execute_InvalidInput(t *testing.T) {
	h := createTestHandler(t, nil)

	_, err := h.Execute(context.Background(), &Input{})
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidJobInput))

	_, err = h.Execute(context.Background(), nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidJobInput))
}

func TestHandler_Execute_EmptyRecords(t *testing.T) {
	h := createTestHandler(t, nil)

	output, err := h.Execute(context.Background(), &Input{Records: []RecordInput{}})
	require.NoError(t, err)
	assert.Equal(t, 0, output.RowCount)
	assert.Empty(t, output.Results)
}

// ==========================
// Configuration Tests
// ==========================

func TestCreateConfigFromAppConfig(t *testing.T) {
	cfg := createConfigFromAppConfig(&config.Config{
		Workers: map[string]config.WorkerConfig{
			TaskType: {Enabled: false, MaxJobsActive: 2, Timeout: 5000},
		},
	}, nil)
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 2, cfg.MaxJobsActive)
	assert.Equal(t, 5*time.Second, cfg.Timeout)

	def := createConfigFromAppConfig(nil, nil)
	assert.Equal(t, DefaultConfig(), def)

	custom := &Config{Enabled: true, MaxJobsActive: 1, Timeout: time.Second}
	assert.Same(t, custom, createConfigFromAppConfig(nil, custom))
}

func TestNewHandler_InvalidConfig(t *testing.T) {
	_, err := NewHandler(HandlerOptions{CustomConfig: &Config{MaxJobsActive: 1}})
	assert.Error(t, err)

	cfg := createTestAppConfig(t.TempDir())
	cfg.Grading.Engine = "spark"
	_, err = NewHandler(HandlerOptions{AppConfig: cfg, Logger: logger.NewNoOpLogger()})
	assert.True(t, errors.IsCode(err, errors.ErrCodeConfigInvalid))
}
