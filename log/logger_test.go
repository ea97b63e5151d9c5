package log

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWriteTimeTermFormat(t *testing.T) {
	buf := bytes.NewBufferString("")
	writeTimeTermFormat(buf, time.Date(2024, time.March, 5, 13, 4, 5, 0, time.UTC))
	require.Equal(t, "03-05|13:04:05.000", buf.String())
}

func TestLoggerWritesMessageAndAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(NewTerminalHandlerWithLevel(&buf, LevelTrace, false))
	logger.Info("committing batch", "identifier", "accounts", "commit", 1)

	out := buf.String()
	require.Contains(t, out, "committing batch")
	require.Contains(t, out, "identifier=accounts")
	require.Contains(t, out, "commit=1")
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(NewTerminalHandlerWithLevel(&buf, slog.LevelWarn, false))
	logger.Info("suppressed")
	require.Empty(t, buf.String())

	logger.Warn("kept")
	require.Contains(t, buf.String(), "kept")
}
