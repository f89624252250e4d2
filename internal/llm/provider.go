// Package llm selects and wraps the language-model backend used for
// digital-presence extraction and chat.
package llm

import (
	"context"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"

	"github.com/sells-group/cnpj-enrich/internal/config"
)

// Provider names accepted by New.
const (
	ProviderOpenAI = "openai"
	ProviderClaude = "claude"
	ProviderGemini = "gemini"
)

// Provider sends a single prompt and returns the model's text.
type Provider interface {
	Invoke(ctx context.Context, prompt string) (*Result, error)
	Name() string
	Model() string
}

// Result is the text output of one invocation.
type Result struct {
	Content string
	Usage   *Usage // nil when the backend does not report usage
}

// Usage is the token accounting reported by the backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Total returns TotalTokens, or prompt + completion when the backend only
// reports the parts.
func (u *Usage) Total() int {
	if u == nil {
		return 0
	}
	if u.TotalTokens > 0 {
		return u.TotalTokens
	}
	return u.PromptTokens + u.CompletionTokens
}

// New builds the provider named in cfg.LLM.Provider with the given sampling
// temperature. Unknown names are an error.
func New(ctx context.Context, cfg *config.Config, temperature float64) (Provider, error) {
	timeout := time.Duration(cfg.LLM.TimeoutSecs) * time.Second
	switch cfg.LLM.Provider {
	case ProviderOpenAI:
		return NewOpenAI(cfg.OpenAI.Key, cfg.OpenAI.Model, cfg.OpenAI.BaseURL, temperature, cfg.LLM.MaxTokens, timeout)
	case ProviderClaude:
		return NewClaude(cfg.Anthropic.Key, cfg.Anthropic.Model, temperature, cfg.LLM.MaxTokens, timeout), nil
	case ProviderGemini:
		return NewGemini(ctx, cfg.Gemini.Key, cfg.Gemini.Model, temperature, cfg.LLM.MaxTokens, timeout)
	default:
		return nil, eris.Errorf("llm: unknown provider %q", cfg.LLM.Provider)
	}
}

// EstimateTokens approximates the token count of text as a quarter of its
// character count after collapsing whitespace.
func EstimateTokens(text string) int {
	cleaned := strings.Join(strings.Fields(text), " ")
	if cleaned == "" {
		return 0
	}
	return int(math.Round(float64(utf8.RuneCountInString(cleaned)) / 4))
}

// TokensFor returns the reported usage of res, falling back to an estimate
// over prompt and response.
func TokensFor(prompt string, res *Result) int {
	if res == nil {
		return EstimateTokens(prompt)
	}
	if n := res.Usage.Total(); n > 0 {
		return n
	}
	return EstimateTokens(prompt + "\n\n" + res.Content)
}
