package generate

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/sells-group/investor-cli/internal/model"
	"github.com/sells-group/investor-cli/pkg/anthropic"
)

const jsonOnlySystem = "Respond with raw JSON only. No markdown, no commentary."

// AnthropicProvider generates text with the Anthropic Messages API.
type AnthropicProvider struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicProvider creates a provider.
func NewAnthropicProvider(client anthropic.Client, modelName string, maxTokens int) *AnthropicProvider {
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	return &AnthropicProvider{client: client, model: modelName, maxTokens: int64(maxTokens)}
}

// Name implements Provider.
func (p *AnthropicProvider) Name() string { return model.SourceClaude }

// Complete implements Provider.
func (p *AnthropicProvider) Complete(ctx context.Context, req Request) (string, error) {
	mr := anthropic.MessageRequest{
		Model:     p.model,
		MaxTokens: p.maxTokens,
		Messages:  []anthropic.Message{{Role: "user", Content: req.Prompt}},
	}
	if req.MaxTokens > 0 {
		mr.MaxTokens = int64(req.MaxTokens)
	}
	if req.JSON {
		mr.System = jsonOnlySystem
	}
	if req.Temperature != 0 {
		t := req.Temperature
		mr.Temperature = &t
	}

	resp, err := p.client.CreateMessage(ctx, mr)
	if err != nil {
		var apiErr *anthropic.APIError
		if errors.As(err, &apiErr) {
			return "", &StatusError{StatusCode: apiErr.StatusCode, RetryAfter: apiErr.RetryAfter, Err: apiErr}
		}
		return "", eris.Wrap(err, "generate: anthropic")
	}
	return resp.Text(), nil
}
