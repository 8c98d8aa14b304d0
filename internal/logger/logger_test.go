package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
)

func TestLogger_WritesJSONWithService(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelInfo, "depth-compare", nil)

	log.Info(context.Background(), "book synced", "exchange", "binance", "levels", 42)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}

	if entry["service"] != "depth-compare" {
		t.Errorf("expected service depth-compare, got %v", entry["service"])
	}
	if entry["msg"] != "book synced" {
		t.Errorf("expected msg 'book synced', got %v", entry["msg"])
	}
	if entry["exchange"] != "binance" {
		t.Errorf("expected exchange binance, got %v", entry["exchange"])
	}
	if _, ok := entry["file"]; !ok {
		t.Error("expected caller file attribute")
	}
}

func TestLogger_RespectsMinLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelWarn, "svc", nil)

	log.Debug(context.Background(), "dropped")
	log.Info(context.Background(), "dropped")

	if buf.Len() != 0 {
		t.Fatalf("expected no output below warn, got %s", buf.String())
	}

	log.Warn(context.Background(), "kept")
	if buf.Len() == 0 {
		t.Fatal("expected warn to be written")
	}
}

func TestLogger_TraceIDFn(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, LevelDebug, "svc", func(ctx context.Context) string { return "abc123" })

	log.Error(context.Background(), "boom")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if entry["trace_id"] != "abc123" {
		t.Errorf("expected trace_id abc123, got %v", entry["trace_id"])
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"error", LevelError},
		{"verbose", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
