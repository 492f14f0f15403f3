// Package mock provides a scriptable [textgen.Generator] for engine tests.
package mock

import (
	"context"
	"sync"

	"github.com/synk-web/synk/internal/textgen"
)

// Call records one Generate invocation.
type Call struct {
	Kind   string
	Prompt string
}

// Generator answers each call with Func when set, otherwise with the entry
// of ByKind for the call's kind, otherwise with Default. Err, when non-nil,
// fails every call.
type Generator struct {
	mu sync.Mutex

	Func    func(kind, prompt string) (string, error)
	ByKind  map[string]string
	Default string
	Err     error

	calls []Call
}

var _ textgen.Generator = (*Generator)(nil)

// Generate implements [textgen.Generator].
func (g *Generator) Generate(ctx context.Context, prompt string, opts ...textgen.CallOption) (string, error) {
	s := textgen.Settings(opts...)

	g.mu.Lock()
	g.calls = append(g.calls, Call{Kind: s.Kind, Prompt: prompt})
	fn, err := g.Func, g.Err
	out, ok := g.ByKind[s.Kind]
	if !ok {
		out = g.Default
	}
	g.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", &textgen.Error{Kind: textgen.Timeout, Provider: "mock", Err: err}
	}
	if err != nil {
		return "", err
	}
	if fn != nil {
		return fn(s.Kind, prompt)
	}
	return out, nil
}

// Calls returns a copy of the recorded calls.
func (g *Generator) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Call(nil), g.calls...)
}

// CallsOfKind returns the recorded calls with the given kind.
func (g *Generator) CallsOfKind(kind string) []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []Call
	for _, c := range g.calls {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}
