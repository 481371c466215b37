package logger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("info"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
}

func TestNewWithOutput_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grading.log")

	zl, err := NewWithOutput("info", "json", path)
	require.NoError(t, err)

	log := NewZapAdapter(zl).WithFields(map[string]interface{}{"runId": "run-1"})
	log.Debug("hidden", nil)
	log.Info("run finished", map[string]interface{}{"rows": 2, "cause": errors.New("none")})
	require.NoError(t, zl.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"run finished"`)
	assert.Contains(t, string(data), `"runId":"run-1"`)
	assert.Contains(t, string(data), `"rows":2`)
	assert.Contains(t, string(data), `"cause":"none"`)
	assert.NotContains(t, string(data), "hidden")
}

func TestTestAndNoOpLoggers(t *testing.T) {
	NewTestLogger(t).WithError(errors.New("x")).Warn("warned", map[string]interface{}{"k": "v"})
	NewNoOpLogger().With(map[string]interface{}{"k": "v"}).Error("dropped", nil)
}
