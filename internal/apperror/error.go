// Package apperror provides coded errors with structured diagnostics.
package apperror

import (
	"errors"
	"fmt"
	"maps"
	"runtime"
	"slices"
	"strings"
)

// AppError is an error carrying a stable Code. Details hold machine-readable
// diagnostics, e.g. requested and available depth for an
// insufficient-liquidity outcome.
type AppError struct {
	Code    Code           `json:"code"`
	Message string         `json:"message"`
	Context string         `json:"context,omitempty"`
	Details map[string]any `json:"details,omitempty"`
	// StatusCode is the upstream HTTP status when the error came from a REST
	// call, zero otherwise.
	StatusCode int `json:"status_code,omitempty"`

	cause error
	stack []uintptr
}

func (e *AppError) Error() string {
	var sb strings.Builder
	sb.WriteString(string(e.Code))
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	if e.Context != "" {
		sb.WriteString(" [")
		sb.WriteString(e.Context)
		sb.WriteString("]")
	}
	if e.cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.cause.Error())
	}
	return sb.String()
}

func (e *AppError) Unwrap() error {
	return e.cause
}

// Is matches any *AppError with the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && e.Code == t.Code
}

// Detail returns a structured detail by key.
func (e *AppError) Detail(key string) (any, bool) {
	v, ok := e.Details[key]
	return v, ok
}

// LogArgs flattens the error into logger key/value pairs. Details are
// emitted in key order under a "detail." prefix.
func (e *AppError) LogArgs() []any {
	args := []any{"code", string(e.Code), "message", e.Message}
	if e.Context != "" {
		args = append(args, "context", e.Context)
	}
	if e.StatusCode != 0 {
		args = append(args, "status", e.StatusCode)
	}
	if e.cause != nil {
		args = append(args, "cause", e.cause.Error())
	}
	for _, k := range slices.Sorted(maps.Keys(e.Details)) {
		args = append(args, "detail."+k, e.Details[k])
	}
	return args
}

// Stack renders the frames captured at construction.
func (e *AppError) Stack() string {
	var sb strings.Builder
	frames := runtime.CallersFrames(e.stack)
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "runtime/") {
			fmt.Fprintf(&sb, "\n\t%s:%d %s", frame.File, frame.Line, frame.Function)
		}
		if !more {
			break
		}
	}
	return sb.String()
}

// New creates an AppError. The message defaults to the code's registered
// text, or the code itself.
func New(code Code, opts ...Option) *AppError {
	var pcs [32]uintptr
	n := runtime.Callers(2, pcs[:])

	err := &AppError{
		Code:    code,
		Message: messages[code],
		stack:   pcs[:n],
	}
	for _, opt := range opts {
		opt(err)
	}
	if err.Message == "" {
		err.Message = string(code)
	}
	return err
}

// Option configures an AppError.
type Option func(*AppError)

func WithMessage(message string) Option {
	return func(e *AppError) { e.Message = message }
}

// WithContext names what failed, typically "<exchange> <symbol>".
func WithContext(context string) Option {
	return func(e *AppError) { e.Context = context }
}

// WithStatusCode records the upstream HTTP status.
func WithStatusCode(statusCode int) Option {
	return func(e *AppError) { e.StatusCode = statusCode }
}

func WithCause(cause error) Option {
	return func(e *AppError) { e.cause = cause }
}

// WithDetail attaches a structured diagnostic field.
func WithDetail(key string, value any) Option {
	return func(e *AppError) {
		if e.Details == nil {
			e.Details = make(map[string]any)
		}
		e.Details[key] = value
	}
}

// GetCode extracts the error code, CodeUnknownError for foreign errors.
func GetCode(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknownError
}

// LogArgs returns logger key/value pairs for err, expanding an AppError.
func LogArgs(err error) []any {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.LogArgs()
	}
	return []any{"error", err}
}
