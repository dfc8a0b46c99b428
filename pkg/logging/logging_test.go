package logging

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{in: "debug", want: LevelDebug},
		{in: "info", want: LevelInfo},
		{in: "warn", want: LevelWarn},
		{in: "warning", want: LevelWarn},
		{in: "error", want: LevelError},
		{in: "", want: LevelInfo},
		{in: "verbose", want: LevelInfo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), "input %q", tt.in)
	}
}

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "INFO", LevelInfo.String())
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "ERROR", LevelError.String())
}

func TestCLILoggingWritesToOutput(t *testing.T) {
	var buf bytes.Buffer
	InitForCLI(LevelInfo, &buf)

	Info("TestSubsystem", "endpoint %d tracked", 8181)
	Error("TestSubsystem", errors.New("boom"), "probe failed")

	out := buf.String()
	assert.Contains(t, out, "endpoint 8181 tracked")
	assert.Contains(t, out, "subsystem=TestSubsystem")
	assert.Contains(t, out, "probe failed")
	assert.Contains(t, out, "boom")
}

func TestCLILoggingFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	InitForCLI(LevelWarn, &buf)

	Debug("TestSubsystem", "discovery detail")
	Info("TestSubsystem", "endpoint tracked")
	Warn("TestSubsystem", "forward refused")

	out := buf.String()
	assert.NotContains(t, out, "discovery detail")
	assert.NotContains(t, out, "endpoint tracked")
	assert.Contains(t, out, "forward refused")
}

func TestTUILoggingDeliversEntries(t *testing.T) {
	ch := InitForTUI(LevelDebug)
	defer CloseTUIChannel()
	defer InitForCLI(LevelInfo, &bytes.Buffer{})

	Warn("ConnectionManager", "endpoint on remote port %d unreachable", 8181)

	select {
	case entry := <-ch:
		assert.Equal(t, LevelWarn, entry.Level)
		assert.Equal(t, "ConnectionManager", entry.Subsystem)
		assert.Equal(t, "endpoint on remote port 8181 unreachable", entry.Message)
		assert.False(t, entry.Timestamp.IsZero())
	default:
		t.Fatal("expected a log entry on the TUI channel")
	}
}

func TestTUILoggingNeverBlocks(t *testing.T) {
	InitForTUI(LevelDebug)
	defer CloseTUIChannel()
	defer InitForCLI(LevelInfo, &bytes.Buffer{})

	// Nobody reads; overflowing the buffer must not wedge the caller.
	for i := 0; i < tuiChannelBufferSize+10; i++ {
		Info("TestSubsystem", "entry %d", i)
	}
}

func TestCloseTUIChannelIsIdempotent(t *testing.T) {
	ch := InitForTUI(LevelInfo)
	require.NotNil(t, ch)
	CloseTUIChannel()
	CloseTUIChannel()
	InitForCLI(LevelInfo, &bytes.Buffer{})
}
