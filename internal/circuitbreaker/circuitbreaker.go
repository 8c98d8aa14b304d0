// Package circuitbreaker wraps sony/gobreaker with application defaults and
// apperror translation.
package circuitbreaker

import (
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/fd1az/depth-compare/internal/apperror"
)

// Config holds circuit breaker settings.
type Config struct {
	Name string
	// MaxRequests allowed through while half-open.
	MaxRequests uint32
	// Interval clears counts while closed. 0 never clears.
	Interval time.Duration
	// Timeout is how long the breaker stays open before going half-open.
	Timeout time.Duration
	// ConsecutiveFailures trips the breaker.
	ConsecutiveFailures uint32
	// IsSuccessful classifies errors that should not count as failures.
	IsSuccessful  func(err error) bool
	OnStateChange func(name string, from, to gobreaker.State)
}

// DefaultConfig returns a breaker that opens after 5 consecutive failures.
func DefaultConfig(name string) Config {
	return Config{
		Name:                name,
		MaxRequests:         1,
		Interval:            time.Minute,
		Timeout:             15 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// CircuitBreaker is a typed circuit breaker.
type CircuitBreaker[T any] struct {
	cb *gobreaker.CircuitBreaker[T]
}

// New builds a breaker from cfg.
func New[T any](cfg Config) *CircuitBreaker[T] {
	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = 5
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: cfg.OnStateChange,
		IsSuccessful:  cfg.IsSuccessful,
	}

	return &CircuitBreaker[T]{cb: gobreaker.NewCircuitBreaker[T](settings)}
}

// Execute runs fn through the breaker. Rejections are reported as
// CodeCircuitOpen.
func (b *CircuitBreaker[T]) Execute(fn func() (T, error)) (T, error) {
	result, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		var zero T
		return zero, apperror.New(apperror.CodeCircuitOpen,
			apperror.WithCause(err),
			apperror.WithContext(b.cb.Name()))
	}
	return result, err
}

// State returns the current breaker state.
func (b *CircuitBreaker[T]) State() gobreaker.State {
	return b.cb.State()
}

// Name returns the breaker name.
func (b *CircuitBreaker[T]) Name() string {
	return b.cb.Name()
}
