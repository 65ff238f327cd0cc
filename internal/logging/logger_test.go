package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleking/energy-expert/internal/config"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var entries []map[string]any

	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}

		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}

	return entries
}

func TestLogLevelString(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
		{LogLevel(999), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.level.String())
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
	}{
		{"debug", DebugLevel},
		{"DEBUG", DebugLevel},
		{"info", InfoLevel},
		{"warn", WarnLevel},
		{"warning", WarnLevel},
		{"error", ErrorLevel},
		{"bogus", InfoLevel},
		{"", InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLogLevel(tt.input))
		})
	}
}

func TestNewLoggerOutputs(t *testing.T) {
	for _, output := range []string{"stdout", "stderr"} {
		t.Run(output, func(t *testing.T) {
			logger, err := NewLogger(config.LoggingConfig{
				Level:  "debug",
				Format: "json",
				Output: output,
			})
			require.NoError(t, err)
			assert.Equal(t, DebugLevel, logger.Level())
			assert.NoError(t, logger.Close())
		})
	}
}

func TestNewLoggerFile(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "nested", "app.log")

	logger, err := NewLogger(config.LoggingConfig{
		Level:  "warn",
		Format: "text",
		Output: "file",
		File:   logFile,
	})
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("kept")
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=kept")
	assert.NotContains(t, string(data), "dropped")
}

func TestNewLoggerErrors(t *testing.T) {
	_, err := NewLogger(config.LoggingConfig{Output: "file"})
	assert.ErrorContains(t, err, "log file path is required")

	_, err = NewLogger(config.LoggingConfig{Output: "syslog"})
	assert.ErrorContains(t, err, "invalid log output")
}

func TestLoggerFields(t *testing.T) {
	var buf bytes.Buffer

	logger := NewWithWriter(&buf, InfoLevel, "json", false)
	logger.WithField("run_id", "abc").
		WithFields(map[string]any{"state": "executing", "attempt": 2}).
		Info("transition")

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "transition", entries[0]["msg"])
	assert.Equal(t, "abc", entries[0]["run_id"])
	assert.Equal(t, "executing", entries[0]["state"])
	assert.InDelta(t, 2, entries[0]["attempt"], 0)
}

func TestLoggerWithError(t *testing.T) {
	var buf bytes.Buffer

	logger := NewWithWriter(&buf, InfoLevel, "json", false)
	assert.Same(t, logger, logger.WithError(nil))

	logger.WithError(errors.New("boom")).Warn("recorder failed")
	logger.ErrorWithErr("query failed", errors.New("timeout"))

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "boom", entries[0]["error"])
	assert.Equal(t, "WARN", entries[0]["level"])
	assert.Equal(t, "timeout", entries[1]["error"])
	assert.Equal(t, "ERROR", entries[1]["level"])
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer

	logger := NewWithWriter(&buf, WarnLevel, "json", false)
	logger.Debug("debug")
	logger.Debugf("debug %d", 1)
	logger.Info("info")
	logger.Infof("info %d", 2)
	logger.Warnf("warn %d", 3)
	logger.Errorf("error %d", 4)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 2)
	assert.Equal(t, "warn 3", entries[0]["msg"])
	assert.Equal(t, "error 4", entries[1]["msg"])
}

func TestGlobalLogger(t *testing.T) {
	var buf bytes.Buffer

	previous := GetLogger()
	t.Cleanup(func() { SetLogger(previous) })

	SetLogger(NewWithWriter(&buf, DebugLevel, "text", false))

	Debugf("d %s", "x")
	Infof("i %s", "x")
	Warnf("w %s", "x")
	Errorf("e %s", "x")
	WithField("k", "v").Info("field")
	WithFields(map[string]any{"a": 1}).Info("fields")

	out := buf.String()
	assert.Contains(t, out, `msg="d x"`)
	assert.Contains(t, out, `msg="e x"`)
	assert.Contains(t, out, "k=v")
	assert.Contains(t, out, "a=1")
}

func TestLoggerMiddleware(t *testing.T) {
	var buf bytes.Buffer

	logger := NewWithWriter(&buf, DebugLevel, "json", false)

	require.NoError(t, LoggerMiddleware(logger, "catalog", func() error { return nil }))

	failure := errors.New("introspection failed")
	err := LoggerMiddleware(logger, "catalog", func() error { return failure })
	assert.ErrorIs(t, err, failure)

	entries := decodeLines(t, &buf)
	require.Len(t, entries, 4)
	assert.Equal(t, "Operation completed successfully", entries[1]["msg"])
	assert.Equal(t, "Operation failed", entries[3]["msg"])
	assert.Equal(t, "catalog", entries[3]["operation"])
	assert.Equal(t, "introspection failed", entries[3]["error"])
}
