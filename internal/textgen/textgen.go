// Package textgen is the engine's text-generation contract: a prompt in, a
// reply out. [LLM] implements it over an llm.Provider with a per-call
// timeout, tracing and metrics, and classifies provider failures into the
// [Error] taxonomy so callers can tell a bad key from an outage.
package textgen

import (
	"context"
	"errors"
	"strings"
)

// ErrGeneration matches every [*Error] via errors.Is.
var ErrGeneration = errors.New("textgen: generation failed")

// ErrorKind classifies a generation failure.
type ErrorKind string

const (
	InvalidCredentials ErrorKind = "invalid_credentials"
	QuotaExceeded      ErrorKind = "quota_exceeded"
	ModelNotFound      ErrorKind = "model_not_found"
	Unavailable        ErrorKind = "unavailable"
	EmptyResponse      ErrorKind = "empty_response"
	Timeout            ErrorKind = "timeout"
)

// Error is a classified generation failure.
type Error struct {
	Kind     ErrorKind
	Provider string
	Err      error
}

func (e *Error) Error() string {
	msg := "textgen: " + string(e.Kind)
	if e.Provider != "" {
		msg += " (" + e.Provider + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is [ErrGeneration].
func (e *Error) Is(target error) bool { return target == ErrGeneration }

// KindOf returns the kind of a generation error, or "" when err is not one.
func KindOf(err error) ErrorKind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ""
}

// Classify maps a provider error onto an [ErrorKind]. Providers surface
// failures as free text, so classification is by well-known status codes
// and phrases.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return Timeout
	}
	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "api key", "api_key", "apikey", "401", "unauthenticated", "unauthorized",
		"permission denied", "403", "suspended"):
		return InvalidCredentials
	case containsAny(msg, "429", "quota", "resource_exhausted", "resource exhausted", "rate limit"):
		return QuotaExceeded
	case containsAny(msg, "404", "not found", "not supported"):
		return ModelNotFound
	case containsAny(msg, "refused", "prompt blocked", "content filter"):
		// The backend answered but withheld the text.
		return EmptyResponse
	default:
		return Unavailable
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// Generator turns a prompt into text. Implementations must be safe for
// concurrent use. Failures are [*Error] values.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts ...CallOption) (string, error)
}

// CallSettings are the per-call knobs set by [CallOption]s.
type CallSettings struct {
	// Kind labels the call in metrics and traces (main, sub, thought, ...).
	Kind        string
	MaxTokens   int
	Temperature float64

	// JSON requests a JSON object reply where the backend supports it.
	JSON bool
}

// CallOption adjusts a single Generate call.
type CallOption func(*CallSettings)

// WithKind labels the call.
func WithKind(kind string) CallOption {
	return func(s *CallSettings) { s.Kind = kind }
}

// WithMaxTokens bounds the reply length.
func WithMaxTokens(n int) CallOption {
	return func(s *CallSettings) { s.MaxTokens = n }
}

// WithJSON asks the backend for a JSON object reply.
func WithJSON() CallOption {
	return func(s *CallSettings) { s.JSON = true }
}

// WithTemperature sets the sampling temperature.
func WithTemperature(t float64) CallOption {
	return func(s *CallSettings) { s.Temperature = t }
}

// Settings applies opts to a zero CallSettings. The kind defaults to
// "generic".
func Settings(opts ...CallOption) CallSettings {
	s := CallSettings{Kind: "generic"}
	for _, o := range opts {
		o(&s)
	}
	return s
}
