package logging_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"crittersync/internal/config"
	"crittersync/internal/logging"
	"crittersync/internal/services"
)

func newFileLogger(t *testing.T, format, level string) (*slog.Logger, string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "crittersync.log")
	logger, err := logging.New(logging.Options{
		Format:      format,
		Level:       level,
		OutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return logger, logPath
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	return string(content)
}

func TestNewFromConfigConsole(t *testing.T) {
	cfg := config.Default()
	logger, err := logging.NewFromConfig(&cfg, 0, false, nil)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger instance")
	}
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected debug disabled at default info level")
	}
}

func TestNewFromConfigVerbosityRaisesLevel(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Level = "warn"
	logger, err := logging.NewFromConfig(&cfg, 2, false, io.Discard)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	if !logger.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("expected -vv on warn to enable debug")
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestConsoleLoggerFormatsComponentAndFields(t *testing.T) {
	logger, path := newFileLogger(t, "console", "info")
	logger = logging.NewComponentLogger(logger, "taxonomy")
	logger.Info("taxon resolved", logging.String("scientific_name", "Chromis viridis"), logging.Int("attempt", 1))

	content := readLog(t, path)
	if !strings.Contains(content, "INFO taxonomy: taxon resolved") {
		t.Fatalf("expected component prefix, got %q", content)
	}
	if !strings.Contains(content, `scientific_name="Chromis viridis"`) {
		t.Fatalf("expected quoted value with spaces, got %q", content)
	}
	if !strings.Contains(content, "attempt=1") {
		t.Fatalf("expected attempt field, got %q", content)
	}
	if strings.Contains(content, "\x1b[") {
		t.Fatalf("expected no ANSI codes without color, got %q", content)
	}
}

func TestConsoleLoggerIncludesSourceForDebug(t *testing.T) {
	logger, path := newFileLogger(t, "console", "debug")
	logger.Debug("message with caller")

	if content := readLog(t, path); !strings.Contains(content, ".go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestJSONLoggerEmitsStructuredRecord(t *testing.T) {
	logger, path := newFileLogger(t, "json", "info")
	logger.Warn("lookup failed", logging.Error(errors.New("boom")))

	var record map[string]any
	line := strings.TrimSpace(readLog(t, path))
	if err := json.Unmarshal([]byte(line), &record); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", line, err)
	}
	if record["level"] != "warn" {
		t.Fatalf("expected lower-case level, got %v", record["level"])
	}
	if record["error"] != "boom" {
		t.Fatalf("expected error field, got %v", record["error"])
	}
	if _, ok := record["ts"]; !ok {
		t.Fatalf("expected ts key, got %v", record)
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	logger, path := newFileLogger(t, "console", "info")
	logging.WarnWithContext(logger, "classification gap", "classification_gap")

	content := readLog(t, path)
	for _, fragment := range []string{"event_type=classification_gap", "error_hint=", "impact="} {
		if !strings.Contains(content, fragment) {
			t.Fatalf("expected %q in %q", fragment, content)
		}
	}
}

func TestWithContextAddsRunFields(t *testing.T) {
	logger, path := newFileLogger(t, "console", "info")
	ctx := services.WithRunID(context.Background(), "run-1")
	ctx = services.WithEntityID(ctx, 7)
	logging.WithContext(ctx, logger).Info("processing")

	content := readLog(t, path)
	if !strings.Contains(content, "run_id=run-1") || !strings.Contains(content, "entity_id=7") {
		t.Fatalf("expected context fields, got %q", content)
	}
}

func TestNopLoggerIsDisabled(t *testing.T) {
	if logging.NewNop().Enabled(context.Background(), slog.LevelError) {
		t.Fatal("expected nop logger to be disabled")
	}
}

func TestNewWritesToProvidedWriter(t *testing.T) {
	var buf strings.Builder
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("hello", logging.String("species", "Chromis viridis"))
	if !strings.Contains(buf.String(), "hello") || !strings.Contains(buf.String(), "Chromis viridis") {
		t.Fatalf("expected message in writer, got %q", buf.String())
	}
}
