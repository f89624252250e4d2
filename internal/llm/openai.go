package llm

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

type openAIProvider struct {
	model       llms.Model
	modelName   string
	temperature float64
	maxTokens   int
}

// NewOpenAI creates an OpenAI-backed provider through langchaingo. An empty
// baseURL uses the public API.
func NewOpenAI(apiKey, model, baseURL string, temperature float64, maxTokens int, timeout time.Duration) (Provider, error) {
	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	if timeout > 0 {
		opts = append(opts, openai.WithHTTPClient(&http.Client{Timeout: timeout}))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, eris.Wrap(err, "llm: create openai client")
	}
	return &openAIProvider{model: client, modelName: model, temperature: temperature, maxTokens: maxTokens}, nil
}

func (p *openAIProvider) Name() string  { return ProviderOpenAI }
func (p *openAIProvider) Model() string { return p.modelName }

func (p *openAIProvider) Invoke(ctx context.Context, prompt string) (*Result, error) {
	callOpts := []llms.CallOption{llms.WithTemperature(p.temperature)}
	if p.maxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(p.maxTokens))
	}

	resp, err := p.model.GenerateContent(ctx, []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}, callOpts...)
	if err != nil {
		return nil, eris.Wrap(err, "llm: openai generate")
	}
	if len(resp.Choices) == 0 {
		return nil, eris.New("llm: openai returned no choices")
	}

	choice := resp.Choices[0]
	return &Result{Content: choice.Content, Usage: usageFromGenerationInfo(choice.GenerationInfo)}, nil
}

func usageFromGenerationInfo(info map[string]any) *Usage {
	if info == nil {
		return nil
	}
	u := &Usage{
		PromptTokens:     intFrom(info["PromptTokens"]),
		CompletionTokens: intFrom(info["CompletionTokens"]),
		TotalTokens:      intFrom(info["TotalTokens"]),
	}
	if u.Total() == 0 {
		return nil
	}
	return u
}

func intFrom(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
