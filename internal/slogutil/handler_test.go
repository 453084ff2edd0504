package slogutil

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineHandler_Format(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo)

	logger.Info("Moving file", "src", "003_T1.nii.gz", "count", 2, "note", "two words")

	assert.Equal(t, "INFO     - Moving file | src=003_T1.nii.gz count=2 note=\"two words\"\n", buf.String())
}

func TestLineHandler_Timestamp(t *testing.T) {
	var buf bytes.Buffer
	h := NewLineHandler(&buf, DefaultTimeFormat, nil)

	r := slog.NewRecord(time.Date(2024, 3, 1, 9, 5, 7, 120_000_000, time.Local), slog.LevelWarn, "careful", 0)
	require.NoError(t, h.Handle(context.Background(), r))

	assert.Equal(t, "2024-03-01 09:05:07.120 - WARNING  - careful\n", buf.String())
}

func TestLineHandler_Levels(t *testing.T) {
	tests := []struct {
		level slog.Level
		want  string
	}{
		{slog.LevelDebug, "DEBUG"},
		{slog.LevelInfo, "INFO"},
		{slog.LevelWarn, "WARNING"},
		{slog.LevelError, "ERROR"},
		{LevelCritical, "CRITICAL"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(&buf, slog.LevelDebug)
			logger.Log(context.Background(), tt.level, "msg")
			assert.True(t, strings.HasPrefix(buf.String(), tt.want+" "), buf.String())
		})
	}
}

func TestLineHandler_Filtering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelWarn)

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestLineHandler_AttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, slog.LevelInfo).With("run", "abc").WithGroup("acq")

	logger.Info("done", "suffix", "_T1w")

	assert.Contains(t, buf.String(), "| run=abc acq.suffix=_T1w")
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"DEBUG", slog.LevelDebug},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"WARNING", slog.LevelWarn},
		{"warn", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"CRITICAL", LevelCritical},
		{"nonsense", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelFromString(tt.in), tt.in)
	}
}

func TestTeeHandler(t *testing.T) {
	var info, debug bytes.Buffer
	logger := slog.New(NewTeeHandler(
		NewLineHandler(&info, "", &slog.HandlerOptions{Level: slog.LevelInfo}),
		NewLineHandler(&debug, "", &slog.HandlerOptions{Level: slog.LevelDebug}),
	))

	logger.Debug("details")
	logger.Info("summary")

	assert.Equal(t, "INFO     - summary\n", info.String())
	assert.Contains(t, debug.String(), "details")
	assert.Contains(t, debug.String(), "summary")
}

func TestNewDiscardLogger(t *testing.T) {
	logger := NewDiscardLogger()
	assert.False(t, logger.Enabled(context.Background(), LevelCritical))
}
