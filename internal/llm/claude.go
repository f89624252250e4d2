package llm

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/cnpj-enrich/pkg/anthropic"
)

type claudeProvider struct {
	client      anthropic.Client
	model       string
	temperature float64
	maxTokens   int64
}

// NewClaude creates an Anthropic-backed provider. Each Invoke is exactly one
// request: SDK retries are disabled. A zero timeout keeps the SDK default.
func NewClaude(apiKey, model string, temperature float64, maxTokens int, timeout time.Duration, opts ...anthropic.Option) Provider {
	clientOpts := []anthropic.Option{anthropic.WithMaxRetries(0)}
	if timeout > 0 {
		clientOpts = append(clientOpts, anthropic.WithTimeout(timeout))
	}
	clientOpts = append(clientOpts, opts...)
	return newClaudeWithClient(anthropic.NewClient(apiKey, clientOpts...), model, temperature, maxTokens)
}

func newClaudeWithClient(client anthropic.Client, model string, temperature float64, maxTokens int) *claudeProvider {
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &claudeProvider{client: client, model: model, temperature: temperature, maxTokens: int64(maxTokens)}
}

func (p *claudeProvider) Name() string  { return ProviderClaude }
func (p *claudeProvider) Model() string { return p.model }

func (p *claudeProvider) Invoke(ctx context.Context, prompt string) (*Result, error) {
	temp := p.temperature
	resp, err := p.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       p.model,
		MaxTokens:   p.maxTokens,
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
	})
	if err != nil {
		return nil, eris.Wrap(err, "llm: claude invoke")
	}
	resp.Usage.LogCost(p.model, "invoke")

	return &Result{
		Content: resp.Text(),
		Usage: &Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.Total()),
		},
	}, nil
}
