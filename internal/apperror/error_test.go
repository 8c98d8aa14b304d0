package apperror

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew_DefaultMessage(t *testing.T) {
	tests := []struct {
		code Code
		want string
	}{
		{CodeInsufficientLiquidity, "Insufficient liquidity for trade size"},
		{CodeFeeScheduleNotFound, "No fee schedule for exchange"},
		{Code("SOMETHING_NEW"), "SOMETHING_NEW"},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := New(tt.code).Message; got != tt.want {
				t.Errorf("expected message %q, got %q", tt.want, got)
			}
		})
	}

	if got := New(CodeBookUnavailable, WithMessage("okx not synced")).Message; got != "okx not synced" {
		t.Errorf("expected custom message, got %q", got)
	}
}

func TestWithDetail(t *testing.T) {
	err := New(CodeInsufficientLiquidity,
		WithDetail("requested", "5"),
		WithDetail("available", "3"),
		WithDetail("levels_seen", 2),
	)

	if v, ok := err.Detail("requested"); !ok || v != "5" {
		t.Errorf("expected requested=5, got %v", v)
	}
	if v, ok := err.Detail("levels_seen"); !ok || v != 2 {
		t.Errorf("expected levels_seen=2, got %v", v)
	}
	if _, ok := err.Detail("missing"); ok {
		t.Error("expected missing detail to be absent")
	}
}

func TestLogArgs(t *testing.T) {
	err := New(CodeSnapshotFetchFailed,
		WithContext("kraken XBT/USD"),
		WithStatusCode(503),
		WithCause(errors.New("upstream down")),
		WithDetail("attempt", 3),
		WithDetail("backoff", "2s"),
	)

	got := fmt.Sprint(LogArgs(fmt.Errorf("wrapped: %w", err)))
	want := "[code SNAPSHOT_FETCH_FAILED message Failed to fetch order book snapshot context kraken XBT/USD status 503 cause upstream down detail.attempt 3 detail.backoff 2s]"
	if got != want {
		t.Errorf("LogArgs()\n got %s\nwant %s", got, want)
	}

	plain := errors.New("boom")
	if args := LogArgs(plain); len(args) != 2 || args[1] != plain {
		t.Errorf("expected plain error passthrough, got %v", args)
	}
}

func TestIs_ComparesCode(t *testing.T) {
	cause := errors.New("dial failed")
	err := fmt.Errorf("wrapped: %w", New(CodeResyncFailed, WithCause(cause), WithContext("binance BTCUSDT")))

	if !errors.Is(err, New(CodeResyncFailed)) {
		t.Error("expected errors.Is to match on code")
	}
	if errors.Is(err, New(CodeStreamDisconnected)) {
		t.Error("expected different code not to match")
	}
	if !errors.Is(err, cause) {
		t.Error("expected cause to be reachable through Unwrap")
	}
	if GetCode(err) != CodeResyncFailed {
		t.Errorf("expected GetCode RESYNC_FAILED, got %s", GetCode(err))
	}
	if GetCode(cause) != CodeUnknownError {
		t.Errorf("expected unknown code for plain error, got %s", GetCode(cause))
	}
	if !strings.Contains(err.Error(), "[binance BTCUSDT]: dial failed") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestStack_CapturesCaller(t *testing.T) {
	if s := New(CodeInternalError).Stack(); !strings.Contains(s, "TestStack_CapturesCaller") {
		t.Errorf("expected caller in stack, got %s", s)
	}
}
