package textgen

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/synk-web/synk/internal/observe"
	"github.com/synk-web/synk/pkg/provider/llm"
)

// DefaultTimeout bounds a generation call when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// LLM is a [Generator] backed by an llm.Provider.
type LLM struct {
	provider llm.Provider
	timeout  time.Duration
	metrics  *observe.Metrics
}

var _ Generator = (*LLM)(nil)

// Option configures an [LLM].
type Option func(*LLM)

// WithTimeout bounds every call. Non-positive values keep [DefaultTimeout].
func WithTimeout(d time.Duration) Option {
	return func(g *LLM) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(g *LLM) { g.metrics = m }
}

// NewLLM wraps p.
func NewLLM(p llm.Provider, opts ...Option) *LLM {
	g := &LLM{provider: p, timeout: DefaultTimeout}
	for _, o := range opts {
		o(g)
	}
	if g.metrics == nil {
		g.metrics = observe.DefaultMetrics()
	}
	return g
}

// Generate implements [Generator]. The reply is trimmed; an empty reply is
// an [EmptyResponse] error.
func (g *LLM) Generate(ctx context.Context, prompt string, opts ...CallOption) (string, error) {
	s := Settings(opts...)
	name := g.provider.Name()

	ctx, span := observe.StartSpan(ctx, "textgen.generate",
		trace.WithAttributes(attribute.String("kind", s.Kind), attribute.String("provider", name)))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req := llm.UserPrompt(prompt)
	req.MaxTokens = s.MaxTokens
	req.Temperature = s.Temperature
	req.JSON = s.JSON

	start := time.Now()
	resp, err := g.provider.Complete(ctx, req)
	g.metrics.RecordGeneration(ctx, s.Kind, name, time.Since(start).Seconds())

	if err == nil && (resp == nil || strings.TrimSpace(resp.Content) == "") {
		return "", g.fail(ctx, span, s.Kind, &Error{Kind: EmptyResponse, Provider: name})
	}
	if err != nil {
		return "", g.fail(ctx, span, s.Kind, &Error{Kind: Classify(err), Provider: name, Err: err})
	}
	return strings.TrimSpace(resp.Content), nil
}

func (g *LLM) fail(ctx context.Context, span trace.Span, kind string, err *Error) error {
	span.SetStatus(codes.Error, err.Error())
	g.metrics.RecordGenerationError(ctx, kind, string(err.Kind))
	return err
}
