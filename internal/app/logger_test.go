package app

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"parcel-dispatch/internal/config"
	"parcel-dispatch/internal/logx"
)

func TestNewLogger_SlogJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := newLogger(&buf, config.Log{Level: "info", Format: "json"})
	l.Debug("hidden")
	l.Info("delivery created", logx.Int64("delivery_id", 7))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	require.Equal(t, "delivery created", entry["msg"])
	require.EqualValues(t, 7, entry["delivery_id"])
}

func TestNewLogger_SlogText(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	newLogger(&buf, config.Log{Level: "warn", Format: "text"}).Warn("offer expired", logx.String("rider", "r1"))

	require.Contains(t, buf.String(), `msg="offer expired"`)
	require.Contains(t, buf.String(), "rider=r1")
}

func TestNewLogger_Logrus(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := newLogger(&buf, config.Log{Backend: "logrus", Level: "warn"})
	l.Info("hidden")
	l.Error("settlement failed", logx.String("component", "settlement"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	require.Equal(t, "settlement failed", entry["msg"])
	require.Equal(t, "error", entry["level"])
	require.Equal(t, "settlement", entry["component"])
}

func TestSlogLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		require.Equal(t, want, slogLevel(in), in)
	}
}
