package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/fd1az/depth-compare/internal/apperror"
)

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cfg := DefaultConfig("test")
	cfg.ConsecutiveFailures = 3
	cfg.Timeout = time.Minute

	var transitions []gobreaker.State
	cfg.OnStateChange = func(name string, from, to gobreaker.State) {
		transitions = append(transitions, to)
	}

	cb := New[int](cfg)
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		if _, err := cb.Execute(func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
			t.Fatalf("attempt %d: expected boom, got %v", i, err)
		}
	}

	if cb.State() != gobreaker.StateOpen {
		t.Fatalf("expected open state, got %v", cb.State())
	}

	_, err := cb.Execute(func() (int, error) { return 1, nil })
	if apperror.GetCode(err) != apperror.CodeCircuitOpen {
		t.Errorf("expected CodeCircuitOpen, got %v", err)
	}

	if len(transitions) != 1 || transitions[0] != gobreaker.StateOpen {
		t.Errorf("expected one transition to open, got %v", transitions)
	}
}

func TestBreaker_PassesResult(t *testing.T) {
	cb := New[string](DefaultConfig("ok"))

	got, err := cb.Execute(func() (string, error) { return "snapshot", nil })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "snapshot" {
		t.Errorf("expected snapshot, got %s", got)
	}
	if cb.Name() != "ok" {
		t.Errorf("expected name ok, got %s", cb.Name())
	}
}

func TestBreaker_IsSuccessfulExcludesErrors(t *testing.T) {
	cfg := DefaultConfig("filtered")
	cfg.ConsecutiveFailures = 1
	notFound := errors.New("not found")
	cfg.IsSuccessful = func(err error) bool { return err == nil || errors.Is(err, notFound) }

	cb := New[int](cfg)
	for i := 0; i < 3; i++ {
		_, _ = cb.Execute(func() (int, error) { return 0, notFound })
	}

	if cb.State() != gobreaker.StateClosed {
		t.Errorf("expected closed state, got %v", cb.State())
	}
}
