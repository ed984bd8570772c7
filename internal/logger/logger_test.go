package logger

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.in))
		})
	}
}

func TestNewWithoutOutputsIsNop(t *testing.T) {
	l := New("debug", FileConfig{}, false)
	require.NotNil(t, l)
	assert.False(t, l.Core().Enabled(zapcore.ErrorLevel))
}

func TestFileOutput(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "cluster.log")
	cfg := DefaultFileConfig(logFile)
	cfg.Compress = false

	require.NoError(t, InitWithFileConfig("info", cfg, false))
	Log.Debug("hidden")
	Log.Info("mesh clustered", zap.Int("groups", 4))
	Sync()

	f, err := os.Open(logFile)
	require.NoError(t, err)
	defer f.Close()

	var entries []map[string]interface{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e map[string]interface{}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &e))
		entries = append(entries, e)
	}
	require.Len(t, entries, 1)
	assert.Equal(t, "mesh clustered", entries[0]["msg"])
	assert.Equal(t, float64(4), entries[0]["groups"])
	assert.Equal(t, "info", entries[0]["level"])
}
