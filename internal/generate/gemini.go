package generate

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/sells-group/investor-cli/internal/model"
	"github.com/sells-group/investor-cli/pkg/gemini"
)

// GeminiProvider generates text with pkg/gemini.
type GeminiProvider struct {
	client gemini.Client
	model  string
}

// NewGeminiProvider creates a provider. An empty model uses the client default.
func NewGeminiProvider(client gemini.Client, modelName string) *GeminiProvider {
	return &GeminiProvider{client: client, model: modelName}
}

// Name implements Provider.
func (p *GeminiProvider) Name() string { return model.SourceGemini }

// Complete implements Provider.
func (p *GeminiProvider) Complete(ctx context.Context, req Request) (string, error) {
	gr := gemini.GenerateContentRequest{
		Model:    p.model,
		Contents: gemini.UserText(req.Prompt),
	}
	if req.JSON || req.Temperature != 0 || req.MaxTokens > 0 {
		gr.GenerationConfig = &gemini.GenerationConfig{MaxOutputTokens: req.MaxTokens}
		if req.JSON {
			gr.GenerationConfig.ResponseMIMEType = "application/json"
		}
		if req.Temperature != 0 {
			t := req.Temperature
			gr.GenerationConfig.Temperature = &t
		}
	}

	resp, err := p.client.GenerateContent(ctx, gr)
	if err != nil {
		var apiErr *gemini.APIError
		if errors.As(err, &apiErr) {
			return "", &StatusError{StatusCode: apiErr.StatusCode, RetryAfter: apiErr.RetryAfter, Err: apiErr}
		}
		return "", eris.Wrap(err, "generate: gemini")
	}
	return resp.Text(), nil
}
