package observability

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLoggingConfig(t *testing.T) {
	cfg := DefaultLoggingConfig()

	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, "stdout", cfg.Output)
	assert.False(t, cfg.AddSource)
}

func TestNewLogger(t *testing.T) {
	t.Run("creates logger with default config", func(t *testing.T) {
		cfg := DefaultLoggingConfig()
		logger := NewLogger(cfg)

		// Logger should be valid (non-zero)
		assert.NotEqual(t, zerolog.Logger{}, logger)
	})

	t.Run("creates logger with debug level", func(t *testing.T) {
		cfg := LoggingConfig{
			Level:  "debug",
			Format: "json",
			Output: "stdout",
		}
		logger := NewLogger(cfg)

		// Debug level should be enabled
		assert.NotEqual(t, zerolog.Logger{}, logger)
	})

	t.Run("creates logger with console format", func(t *testing.T) {
		cfg := LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stdout",
		}
		logger := NewLogger(cfg)

		assert.NotEqual(t, zerolog.Logger{}, logger)
	})

	t.Run("creates logger with pretty format", func(t *testing.T) {
		cfg := LoggingConfig{
			Level:  "info",
			Format: "pretty",
			Output: "stderr",
		}
		logger := NewLogger(cfg)

		assert.NotEqual(t, zerolog.Logger{}, logger)
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"TRACE", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"INFO", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"WARN", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"WARNING", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"ERROR", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"FATAL", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"PANIC", zerolog.PanicLevel},
		{"unknown", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := parseLevel(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func decodeEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var logEntry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry))
	return logEntry
}

func TestWithRunContext(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	l := WithRunContext(logger, "run-123")
	l.Info().Msg("run started")

	logEntry := decodeEntry(t, &buf)
	assert.Equal(t, "run-123", logEntry["run_id"])
	assert.Equal(t, "run started", logEntry["message"])
}

func TestWithInstitutionContext(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	l := WithInstitutionContext(logger, "I136199984", "Stanford University")
	l.Info().Msg("fetching")

	logEntry := decodeEntry(t, &buf)
	assert.Equal(t, "I136199984", logEntry["institution_id"])
	assert.Equal(t, "Stanford University", logEntry["institution_name"])
}

func TestWithSinkContext(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	l := WithSinkContext(logger, "postgres")
	l.Info().Msg("written")

	assert.Equal(t, "postgres", decodeEntry(t, &buf)["sink"])
}

func TestWithRequestContext(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	l := WithRequestContext(logger, "req-1", "GET", "/healthz")
	l.Info().Msg("request")

	logEntry := decodeEntry(t, &buf)
	assert.Equal(t, "req-1", logEntry["request_id"])
	assert.Equal(t, "GET", logEntry["method"])
	assert.Equal(t, "/healthz", logEntry["path"])
}

func TestLoggerContextChaining(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	enriched := WithRunContext(logger, "run-1")
	enriched = WithInstitutionContext(enriched, "I1", "Alpha")
	enriched.Info().Msg("chained context")

	logEntry := decodeEntry(t, &buf)
	assert.Equal(t, "run-1", logEntry["run_id"])
	assert.Equal(t, "I1", logEntry["institution_id"])
	assert.Equal(t, "Alpha", logEntry["institution_name"])
}
