package app

import (
	"io"
	"log/slog"
	"os"

	"github.com/sirupsen/logrus"

	"parcel-dispatch/internal/config"
	"parcel-dispatch/internal/logx"
)

// NewLogger builds the process logger on stdout. slog is the default backend.
func NewLogger(cfg config.Log) logx.Logger {
	return newLogger(os.Stdout, cfg)
}

func newLogger(w io.Writer, cfg config.Log) logx.Logger {
	if cfg.Backend == "logrus" {
		l := logrus.New()
		l.SetOutput(w)
		if lvl, err := logrus.ParseLevel(cfg.Level); err == nil {
			l.SetLevel(lvl)
		}
		if cfg.Format == "text" {
			l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		} else {
			l.SetFormatter(&logrus.JSONFormatter{})
		}
		return logx.NewLogrusAdapter(l)
	}

	opts := &slog.HandlerOptions{Level: slogLevel(cfg.Level)}
	var h slog.Handler = slog.NewJSONHandler(w, opts)
	if cfg.Format == "text" {
		h = slog.NewTextHandler(w, opts)
	}
	return logx.NewSlogAdapter(slog.New(h))
}

func slogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
