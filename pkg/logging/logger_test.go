package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/offlinefirst/motionreplay/pkg/config"
)

func TestNewJSONLoggerRendersDurations(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(FromConfig(config.LoggingConfig{Level: "debug", Format: "json"}, &buf))
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	Component(logger, "worker").Debug("tick", "elapsed", 1500*time.Microsecond)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry["component"] != "worker" {
		t.Fatalf("missing component attribute: %v", entry)
	}
	if entry["elapsed_ms"] != 1.5 {
		t.Fatalf("expected elapsed_ms=1.5, got %v", entry["elapsed_ms"])
	}
	if _, err := time.Parse(time.RFC3339, entry["time"].(string)); err != nil {
		t.Fatalf("time not RFC3339: %v", entry["time"])
	}
}

func TestNewConsoleLoggerFiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "warn", Format: "console", Output: &buf})
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown")
	if out := buf.String(); strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestNewRejectsUnknownSettings(t *testing.T) {
	if _, err := New(Options{Level: "loud"}); err == nil {
		t.Fatalf("expected level error")
	}
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatalf("expected format error")
	}
}
