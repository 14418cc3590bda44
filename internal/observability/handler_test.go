package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
)

func newTestHandler(t *testing.T, buf *bytes.Buffer, level slog.Level) *LogHandler {
	t.Helper()

	h, err := NewLogHandler(otel.Meter("test"), "test-service", HandlerOptions{
		Level:  level,
		Writer: buf,
	})
	if err != nil {
		t.Fatalf("NewLogHandler() error = %v", err)
	}
	t.Cleanup(func() { h.Shutdown(context.Background()) })
	return h
}

func drainHandler(t *testing.T, h *LogHandler) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := h.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
}

func TestLogHandlerJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	h := newTestHandler(t, &buf, slog.LevelInfo)
	logger := slog.New(h)

	logger.Info("agent registered", slog.String("agent_id", "alice"), slog.Int("capabilities", 2))
	drainHandler(t, h)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if line["msg"] != "agent registered" {
		t.Errorf("msg = %v, want %q", line["msg"], "agent registered")
	}
	if line["level"] != "INFO" {
		t.Errorf("level = %v, want INFO", line["level"])
	}
	if line["service"] != "test-service" {
		t.Errorf("service = %v, want test-service", line["service"])
	}
	if line["agent_id"] != "alice" {
		t.Errorf("agent_id = %v, want alice", line["agent_id"])
	}
	if line["capabilities"] != float64(2) {
		t.Errorf("capabilities = %v, want 2", line["capabilities"])
	}
}

func TestLogHandlerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	h := newTestHandler(t, &buf, slog.LevelWarn)
	logger := slog.New(h)

	logger.Info("dropped")
	logger.Warn("kept")
	drainHandler(t, h)

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Error("info record passed a warn-level handler")
	}
	if !strings.Contains(out, "kept") {
		t.Error("warn record missing from output")
	}
}

func TestLogHandlerWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	h := newTestHandler(t, &buf, slog.LevelInfo)
	logger := slog.New(h).With(slog.String("hub", "test-hub"))

	logger.Info("message routed")
	drainHandler(t, h)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if line["hub"] != "test-hub" {
		t.Errorf("hub = %v, want test-hub", line["hub"])
	}
}

func TestLogHandlerWithGroup(t *testing.T) {
	var buf bytes.Buffer
	h := newTestHandler(t, &buf, slog.LevelInfo)
	logger := slog.New(h).WithGroup("delivery")

	logger.Info("queued", slog.String("to", "bob"))
	drainHandler(t, h)

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if line["delivery.to"] != "bob" {
		t.Errorf("delivery.to = %v, want bob; line = %v", line["delivery.to"], line)
	}
}

func TestLogHandlerShutdownDrains(t *testing.T) {
	var buf bytes.Buffer
	h := newTestHandler(t, &buf, slog.LevelInfo)
	logger := slog.New(h)

	for i := 0; i < 100; i++ {
		logger.Info("entry", slog.Int("n", i))
	}
	drainHandler(t, h)

	lines := strings.Count(buf.String(), "\n")
	if lines != 100 {
		t.Errorf("wrote %d lines, want 100", lines)
	}
}
