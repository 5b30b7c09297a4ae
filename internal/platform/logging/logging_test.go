package logging_test

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"studysync/internal/platform/config"
	"studysync/internal/platform/logging"
)

func TestNewWritesToStderrAndFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "studysync.log")
	var stderr bytes.Buffer
	logger, closer := logging.New(config.LogConfig{Level: "debug", File: path, MaxSizeMB: 1, MaxBackups: 1}, &stderr)
	logger.Debug("sync started", slog.String("run", "r1"))
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !strings.Contains(stderr.String(), "sync started") {
		t.Fatalf("stderr missing record: %q", stderr.String())
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(raw), `"run":"r1"`) {
		t.Fatalf("file missing json record: %q", raw)
	}
}

func TestParseLevel(t *testing.T) {
	t.Parallel()
	cases := map[string]slog.Level{"debug": slog.LevelDebug, "WARN": slog.LevelWarn, "error": slog.LevelError, "": slog.LevelInfo}
	for in, want := range cases {
		if got := logging.ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q)=%v want %v", in, got, want)
		}
	}
}
