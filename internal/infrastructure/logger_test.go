package infrastructure

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bearloader/internal/config"
)

func TestTraceIDContext(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		ctx := WithTraceID(context.Background(), "abc-123")
		assert.Equal(t, "abc-123", GetTraceID(ctx))
	})

	t.Run("absent", func(t *testing.T) {
		assert.Equal(t, "", GetTraceID(context.Background()))
	})

	t.Run("nil context", func(t *testing.T) {
		assert.Equal(t, "", GetTraceID(nil)) //nolint:staticcheck
	})

	t.Run("ensure generates once", func(t *testing.T) {
		ctx := EnsureTraceID(context.Background())
		id := GetTraceID(ctx)
		require.NotEmpty(t, id)

		ctx2 := EnsureTraceID(ctx)
		assert.Equal(t, id, GetTraceID(ctx2))
	})
}

func TestGenerateTraceID(t *testing.T) {
	a := GenerateTraceID()
	b := GenerateTraceID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, parseLogLevel(tt.in), tt.in)
	}
}

func TestLoggerWithContext(t *testing.T) {
	logger := LoggerWithContext(WithTraceID(context.Background(), "trace-1"))
	require.NotNil(t, logger)

	// Without a trace id the global logger is returned as-is.
	require.NotNil(t, LoggerWithContext(context.Background()))
}

func TestCreateLoggerFileOutput(t *testing.T) {
	dir := t.TempDir()
	logger, err := createLogger(config.LoggingConfig{
		Level:    "debug",
		Output:   "file",
		FilePath: dir + "/sub/loader.log",
	})
	require.NoError(t, err)
	require.NotNil(t, logger)

	logger.Info("hello")
	require.NoError(t, CloseLogger())
}
