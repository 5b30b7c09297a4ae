package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"studysync/internal/platform/config"
)

// New builds the process logger. Records go to stderr and, when a log file
// is configured, to a size-rotated file as well. The returned closer
// releases the file sink.
func New(cfg config.LogConfig, stderr io.Writer) (*slog.Logger, io.Closer) {
	if stderr == nil {
		stderr = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	if cfg.File == "" {
		return slog.New(slog.NewTextHandler(stderr, opts)), nopCloser{}
	}
	rotator := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		Compress:   true,
	}
	handler := fanout{
		slog.NewTextHandler(stderr, opts),
		slog.NewJSONHandler(rotator, opts),
	}
	return slog.New(handler), rotator
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 4}))
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
