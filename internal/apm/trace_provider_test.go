package apm

import (
	"context"
	"errors"
	"testing"
)

type mockLogger struct {
	warned int
}

func (m *mockLogger) Debug(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Info(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Warn(ctx context.Context, msg string, args ...any)               { m.warned++ }
func (m *mockLogger) Error(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Debugc(ctx context.Context, caller int, msg string, args ...any) {}
func (m *mockLogger) Infoc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Warnc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Errorc(ctx context.Context, caller int, msg string, args ...any) {}

func TestNewTraceProvider_UnknownFallsBackToEmpty(t *testing.T) {
	log := &mockLogger{}
	tp, err := NewTraceProvider(context.Background(), Config{Provider: "jaeger"}, log)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := tp.(emptyTraceProvider); !ok {
		t.Fatalf("expected empty provider, got %T", tp)
	}
	if log.warned != 1 {
		t.Errorf("expected one warning, got %d", log.warned)
	}
	if err := tp.Stop(); err != nil {
		t.Errorf("Stop: %v", err)
	}
}

func TestNewTraceProvider_NoneIsSilent(t *testing.T) {
	log := &mockLogger{}
	if _, err := NewTraceProvider(context.Background(), Config{Provider: EmptyProvider}, log); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if log.warned != 0 {
		t.Errorf("expected no warning, got %d", log.warned)
	}
}

func TestParseHeader(t *testing.T) {
	tests := []struct {
		raw  string
		ok   bool
		key  string
		want string
	}{
		{"x-honeycomb-team=abc", true, "x-honeycomb-team", "abc"},
		{"api-key = k=v", true, "api-key", "k=v"},
		{"", false, "", ""},
		{"novalue", false, "", ""},
	}
	for _, tt := range tests {
		h, ok := parseHeader(tt.raw)
		if ok != tt.ok {
			t.Errorf("parseHeader(%q) ok = %v, want %v", tt.raw, ok, tt.ok)
			continue
		}
		if ok && h[tt.key] != tt.want {
			t.Errorf("parseHeader(%q)[%q] = %q, want %q", tt.raw, tt.key, h[tt.key], tt.want)
		}
	}
}

func TestTracer_NoticeErrorIgnoresNil(t *testing.T) {
	_, span := NewTracer("test").StartSpanFromContext(context.Background(), "op")
	span.NoticeError(nil)
	span.NoticeError(errors.New("boom"))
	span.End()
}
