package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/synk-web/synk/internal/config"
	"github.com/synk-web/synk/internal/resilience"
	"github.com/synk-web/synk/pkg/provider/llm"
	"github.com/synk-web/synk/pkg/provider/llm/anyllm"
	"github.com/synk-web/synk/pkg/provider/llm/gemini"
	"github.com/synk-web/synk/pkg/provider/llm/openai"
)

// ErrNoProvider is returned by every call to the provider that stands in
// when llm.providers is empty.
var ErrNoProvider = errors.New("app: no llm provider configured")

// RegisterBuiltinLLMs wires the built-in provider factories into reg:
//
//   - "gemini" uses the Google GenAI SDK directly.
//   - "openai" uses the OpenAI SDK; BaseURL points it at any compatible
//     endpoint.
//   - "anyllm:<backend>" routes through any-llm-go (anthropic, mistral,
//     ollama, ...).
func RegisterBuiltinLLMs(reg *config.Registry) {
	reg.RegisterLLM("gemini", func(e config.ProviderEntry) (llm.Provider, error) {
		p, err := gemini.New(context.Background(), e.APIKey, e.Model)
		if err != nil {
			return nil, err
		}
		return p, nil
	})

	reg.RegisterLLM("openai", func(e config.ProviderEntry) (llm.Provider, error) {
		// The fallback chain covers provider outages; one SDK retry is enough.
		opts := []openai.Option{openai.WithMaxRetries(1)}
		if e.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(e.BaseURL))
		}
		p, err := openai.New(e.APIKey, e.Model, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	})

	reg.RegisterLLM("anyllm", func(e config.ProviderEntry) (llm.Provider, error) {
		_, backend, _ := strings.Cut(e.Name, ":")
		if backend == "" {
			return nil, fmt.Errorf("anyllm entries are named anyllm:<backend>, one of %s", strings.Join(anyllm.Backends, ", "))
		}
		var opts []anyllmlib.Option
		if e.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(e.APIKey))
		}
		if e.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(e.BaseURL))
		}
		p, err := anyllm.New(backend, e.Model, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	})
}

// BuildLLM creates every configured provider and chains them behind
// circuit breakers, first entry primary. Entries that cannot be built are
// logged and skipped; it fails only when none can be. With no entries at
// all it returns a provider whose every call fails with [ErrNoProvider], so
// the engine runs and every generation degrades.
func BuildLLM(cfg config.LLMConfig, reg *config.Registry) (llm.Provider, error) {
	if len(cfg.Providers) == 0 {
		slog.Warn("no llm provider configured; replies will use fallbacks")
		return unconfigured{}, nil
	}

	providers, err := reg.CreateLLMs(cfg.Providers)
	if len(providers) == 0 {
		return nil, fmt.Errorf("app: no llm provider could be created: %w", err)
	}
	if err != nil {
		slog.Warn("some llm providers were skipped", "err", err)
	}

	if len(providers) == 1 {
		slog.Info("provider created", "kind", "llm", "name", providers[0].Name())
		return providers[0], nil
	}
	fb := resilience.NewLLMFallback(providers[0], resilience.FallbackConfig{})
	for _, p := range providers[1:] {
		fb.AddFallback(p)
	}
	slog.Info("provider created", "kind", "llm", "name", fb.Name())
	return fb, nil
}

type unconfigured struct{}

func (unconfigured) Name() string { return "none" }

func (unconfigured) Complete(context.Context, llm.CompletionRequest) (*llm.CompletionResponse, error) {
	return nil, ErrNoProvider
}
