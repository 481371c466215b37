package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupEnv(t *testing.T, baseDir string) {
	t.Helper()
	t.Setenv("GRADING_BASE_DIR", baseDir)
	t.Setenv("GRADING_OUTPUT_PATH", "")
	t.Setenv("LOGGING_LEVEL", "error")
}

func TestRun_GradesAndReports(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "data"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data", "notas.csv"),
		[]byte("Name,ID,Age,Grade1,Grade2,Grade3\nAna,001,20,60,75,80\nLuis,002,19,,50,60\n"), 0o644))
	setupEnv(t, dir)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	out := filepath.Join(dir, "notas_procesadas.csv")
	assert.Equal(t, "Wrote "+out+" with 2 rows.\n", stdout.String())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "ID,Age,AveragePercent,Status\n001,20,71.67,Passed\n002,19,36.67,Failed\n", string(data))
}

func TestRun_MissingInputExitsOne(t *testing.T) {
	dir := t.TempDir()
	setupEnv(t, dir)

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "INPUT_NOT_FOUND")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRun_InvalidEngineExitsOne(t *testing.T) {
	setupEnv(t, t.TempDir())
	t.Setenv("GRADING_ENGINE", "spark")

	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, run(context.Background(), &stdout, &stderr))
	assert.Contains(t, stderr.String(), "CONFIG_INVALID")
}

func TestRun_WritesMetricsTextfile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notas.csv"),
		[]byte("Name,ID,Age,Grade1,Grade2,Grade3\nAna,001,20,60,75,80\n"), 0o644))
	setupEnv(t, dir)
	t.Setenv("GRADING_ENGINE", "dataframe")
	textfile := filepath.Join(t.TempDir(), "grading.prom")
	t.Setenv("METRICS_TEXTFILE", textfile)

	var stdout, stderr bytes.Buffer
	require.Equal(t, 0, run(context.Background(), &stdout, &stderr), stderr.String())

	data, err := os.ReadFile(textfile)
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.Contains(text, `grading_runs_total{engine="dataframe",outcome="success"}`), text)
	assert.Contains(t, text, `grading_pipeline_runs_total{engine="dataframe"`)
	assert.NotContains(t, text, `{"`)
}
