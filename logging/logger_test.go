package logging

import (
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
		input    string
		expected zapcore.Level
	}{
		{"", zapcore.WarnLevel},
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{" warn ", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
	}

	for _, test := range tests {
		t.Run(test.input, func(t *testing.T) {
			level, err := ParseLevel(test.input)
			require.NoError(t, err)
			assert.Equal(t, test.expected, level)
		})
	}

	_, err := ParseLevel("verbose")
	assert.ErrorContains(t, err, "invalid log level 'verbose'")
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger("info")
	require.NoError(t, err)

	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))

	_, err = NewLogger("loud")
	assert.Error(t, err)
}

func TestNewLogger_WritesConsoleLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kbchat.log")

	logger, err := newLogger("debug", path)
	require.NoError(t, err)

	logger.Info("skipping file", zap.String("path", "a.bin"))
	logger.Debug("retrieved segments")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "skipping file")
	assert.Contains(t, string(data), `{"path": "a.bin"}`)
	assert.Contains(t, string(data), "retrieved segments")
}
