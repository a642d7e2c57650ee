// Package gemini wraps the Google Gen AI SDK for single-turn generateContent calls.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"google.golang.org/genai"
)

const defaultModel = "gemini-2.0-flash"

// Client generates content with a Gemini model.
type Client interface {
	GenerateContent(ctx context.Context, req GenerateContentRequest) (*GenerateContentResponse, error)
}

// GenerateContentRequest is our own request type for GenerateContent.
type GenerateContentRequest struct {
	Model            string            `json:"-"`
	Contents         []Content         `json:"contents"`
	GenerationConfig *GenerationConfig `json:"generationConfig,omitempty"`
}

// Content is a single turn.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Part is a text fragment of a Content.
type Part struct {
	Text string `json:"text"`
}

// GenerationConfig tunes sampling and output format.
type GenerationConfig struct {
	Temperature      *float64 `json:"temperature,omitempty"`
	MaxOutputTokens  int      `json:"maxOutputTokens,omitempty"`
	ResponseMIMEType string   `json:"responseMimeType,omitempty"`
}

// GenerateContentResponse is our own response type. The JSON tags follow the
// REST wire shape.
type GenerateContentResponse struct {
	Candidates    []Candidate   `json:"candidates"`
	UsageMetadata UsageMetadata `json:"usageMetadata"`
}

// Candidate is one generated alternative.
type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason"`
}

// UsageMetadata reports token consumption.
type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
}

// Text concatenates the text parts of the first candidate, or returns "".
func (r *GenerateContentResponse) Text() string {
	if r == nil || len(r.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

// UserText builds a single-turn request for prompt.
func UserText(prompt string) []Content {
	return []Content{{Role: string(genai.RoleUser), Parts: []Part{{Text: prompt}}}}
}

// APIError is returned when the API answers with a non-2xx status.
type APIError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini: unexpected status %d: %s", e.StatusCode, e.Message)
}

type settings struct {
	baseURL string
	model   string
	http    *http.Client
}

// Option configures the client.
type Option func(*settings)

// WithBaseURL overrides the SDK's default endpoint. The SDK appends the API
// version to it.
func WithBaseURL(url string) Option {
	return func(s *settings) {
		s.baseURL = url
	}
}

// WithModel overrides the default model.
func WithModel(model string) Option {
	return func(s *settings) {
		if model != "" {
			s.model = model
		}
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *settings) {
		s.http = hc
	}
}

// sdkClient implements Client using google.golang.org/genai.
type sdkClient struct {
	client *genai.Client
	model  string
}

// NewClient creates a Gemini API client backed by the SDK. Each
// GenerateContent is a single request; callers own the retry policy.
func NewClient(ctx context.Context, apiKey string, opts ...Option) (Client, error) {
	s := settings{model: defaultModel}
	for _, o := range opts {
		o(&s)
	}

	base := http.DefaultTransport
	if s.http != nil && s.http.Transport != nil {
		base = s.http.Transport
	}
	hc := &http.Client{Transport: &retryAfterTransport{base: base}, Timeout: 90 * time.Second}
	if s.http != nil {
		hc.Timeout = s.http.Timeout
	}

	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: hc,
	}
	if s.baseURL != "" {
		cfg.HTTPOptions.BaseURL = s.baseURL
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "gemini: create client")
	}
	return &sdkClient{client: client, model: s.model}, nil
}

func (c *sdkClient) GenerateContent(ctx context.Context, req GenerateContentRequest) (*GenerateContentResponse, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	slot := &retryAfterSlot{}
	ctx = context.WithValue(ctx, retryAfterKey{}, slot)

	resp, err := c.client.Models.GenerateContent(ctx, model, toSDKContents(req.Contents), toSDKConfig(req.GenerationConfig))
	if err != nil {
		if apiErr := fromSDKError(err); apiErr != nil {
			apiErr.RetryAfter = slot.value
			return nil, apiErr
		}
		return nil, eris.Wrap(err, "gemini: generate content")
	}

	return fromSDKResponse(resp), nil
}

func toSDKContents(contents []Content) []*genai.Content {
	out := make([]*genai.Content, 0, len(contents))
	for _, c := range contents {
		role := genai.RoleUser
		if c.Role == string(genai.RoleModel) {
			role = genai.RoleModel
		}
		var text strings.Builder
		for _, p := range c.Parts {
			text.WriteString(p.Text)
		}
		out = append(out, genai.NewContentFromText(text.String(), genai.Role(role)))
	}
	return out
}

func toSDKConfig(gc *GenerationConfig) *genai.GenerateContentConfig {
	if gc == nil {
		return nil
	}
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: gc.ResponseMIMEType,
		MaxOutputTokens:  int32(gc.MaxOutputTokens),
	}
	if gc.Temperature != nil {
		t := float32(*gc.Temperature)
		cfg.Temperature = &t
	}
	return cfg
}

func fromSDKResponse(resp *genai.GenerateContentResponse) *GenerateContentResponse {
	out := &GenerateContentResponse{}
	if resp == nil {
		return out
	}
	for _, cand := range resp.Candidates {
		if cand == nil {
			continue
		}
		c := Candidate{FinishReason: string(cand.FinishReason)}
		if cand.Content != nil {
			c.Content.Role = cand.Content.Role
			for _, p := range cand.Content.Parts {
				if p != nil && p.Text != "" {
					c.Content.Parts = append(c.Content.Parts, Part{Text: p.Text})
				}
			}
		}
		out.Candidates = append(out.Candidates, c)
	}
	if resp.UsageMetadata != nil {
		out.UsageMetadata = UsageMetadata{
			PromptTokenCount:     int(resp.UsageMetadata.PromptTokenCount),
			CandidatesTokenCount: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	return out
}

// fromSDKError returns nil when err carries no HTTP status.
func fromSDKError(err error) *APIError {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &APIError{StatusCode: apiErr.Code, Message: apiErr.Message}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &APIError{StatusCode: apiErrPtr.Code, Message: apiErrPtr.Message}
	}
	return nil
}

type retryAfterKey struct{}

// retryAfterSlot receives the Retry-After of the last response for one call.
// The SDK's APIError does not carry response headers.
type retryAfterSlot struct {
	value time.Duration
}

type retryAfterTransport struct {
	base http.RoundTripper
}

func (t *retryAfterTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return resp, err
	}
	if slot, ok := req.Context().Value(retryAfterKey{}).(*retryAfterSlot); ok {
		slot.value = parseRetryAfter(resp.Header.Get("Retry-After"))
	}
	return resp, nil
}

// parseRetryAfter reads a delay-seconds Retry-After header. HTTP-date values
// are ignored.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
