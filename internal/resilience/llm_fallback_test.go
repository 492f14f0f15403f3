package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/synk-web/synk/pkg/provider/llm"
	llmmock "github.com/synk-web/synk/pkg/provider/llm/mock"
)

func TestLLMFallback_Complete_PrimarySuccess(t *testing.T) {
	t.Parallel()

	primary := &llmmock.Provider{ProviderName: "gemini", CompleteResponse: &llm.CompletionResponse{Content: "primary"}}
	secondary := &llmmock.Provider{ProviderName: "openai", CompleteResponse: &llm.CompletionResponse{Content: "secondary"}}

	fb := NewLLMFallback(primary, FallbackConfig{})
	fb.AddFallback(secondary)

	resp, err := fb.Complete(context.Background(), llm.UserPrompt("안녕"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "primary" {
		t.Fatalf("content: want primary, got %q", resp.Content)
	}
	if len(primary.Calls()) != 1 || len(secondary.Calls()) != 0 {
		t.Fatalf("calls: primary %d, secondary %d", len(primary.Calls()), len(secondary.Calls()))
	}
	if fb.Name() != "fallback(gemini,openai)" {
		t.Fatalf("name: got %q", fb.Name())
	}
}

func TestLLMFallback_Complete_Failover(t *testing.T) {
	t.Parallel()

	primary := &llmmock.Provider{ProviderName: "gemini", CompleteErr: errors.New("429 quota")}
	secondary := &llmmock.Provider{ProviderName: "openai", CompleteResponse: &llm.CompletionResponse{Content: "secondary"}}

	fb := NewLLMFallback(primary, FallbackConfig{})
	fb.AddFallback(secondary)

	resp, err := fb.Complete(context.Background(), llm.UserPrompt("안녕"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "secondary" {
		t.Fatalf("content: want secondary, got %q", resp.Content)
	}
}

func TestLLMFallback_Complete_AllFail(t *testing.T) {
	t.Parallel()

	cause := errors.New("backend down")
	fb := NewLLMFallback(&llmmock.Provider{CompleteErr: cause}, FallbackConfig{})

	_, err := fb.Complete(context.Background(), llm.UserPrompt("안녕"))
	if !errors.Is(err, ErrAllFailed) || !errors.Is(err, cause) {
		t.Fatalf("want ErrAllFailed wrapping cause, got %v", err)
	}
}
