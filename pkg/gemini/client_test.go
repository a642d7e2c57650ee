package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, url string, opts ...Option) Client {
	t.Helper()
	hc := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	opts = append([]Option{WithBaseURL(url), WithHTTPClient(hc)}, opts...)
	c, err := NewClient(context.Background(), "test-key", opts...)
	require.NoError(t, err)
	return c
}

func TestGenerateContent(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		header     map[string]string
		body       string
		wantStatus int
		wantRetry  time.Duration
		wantErr    string
		wantText   string
	}{
		{
			name:     "success",
			status:   http.StatusOK,
			body:     `{"candidates":[{"content":{"role":"model","parts":[{"text":"[{\"firmName\":\"Acme\"}]"}]}}],"usageMetadata":{"candidatesTokenCount":7}}`,
			wantText: `[{"firmName":"Acme"}]`,
		},
		{
			name:       "rate_limit",
			status:     http.StatusTooManyRequests,
			header:     map[string]string{"Retry-After": "4"},
			body:       `{"error":{"code":429,"message":"quota exceeded","status":"RESOURCE_EXHAUSTED"}}`,
			wantStatus: 429,
			wantRetry:  4 * time.Second,
			wantErr:    "unexpected status 429",
		},
		{
			name:       "server_error",
			status:     http.StatusServiceUnavailable,
			body:       `{"error":{"code":503,"message":"overloaded","status":"UNAVAILABLE"}}`,
			wantStatus: 503,
			wantErr:    "overloaded",
		},
		{
			name:    "malformed_response",
			status:  http.StatusOK,
			body:    `{invalid json`,
			wantErr: "gemini: generate content",
		},
		{
			name:     "no_candidates",
			status:   http.StatusOK,
			body:     `{"candidates":[]}`,
			wantText: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				assert.Equal(t, http.MethodPost, r.Method)
				assert.True(t, strings.HasSuffix(r.URL.Path, "models/test-model:generateContent"), r.URL.Path)
				assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))

				w.Header().Set("Content-Type", "application/json")
				for k, v := range tt.header {
					w.Header().Set(k, v)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := newTestClient(t, srv.URL, WithModel("test-model"))
			resp, err := client.GenerateContent(context.Background(), GenerateContentRequest{
				Contents: UserText("hi"),
			})

			// One request per call; retries belong to the caller.
			assert.Equal(t, int32(1), calls.Load())

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, resp)
				var apiErr *APIError
				if tt.wantStatus != 0 {
					require.True(t, errors.As(err, &apiErr))
					assert.Equal(t, tt.wantStatus, apiErr.StatusCode)
					assert.Equal(t, tt.wantRetry, apiErr.RetryAfter)
				} else {
					assert.False(t, errors.As(err, &apiErr))
				}
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantText, resp.Text())
		})
	}
}

func TestGenerateContent_RequestBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "models/gemini-2.0-flash:generateContent"), r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.NotContains(t, body, "Model")
		contents := body["contents"].([]any)
		require.Len(t, contents, 1)
		assert.Equal(t, "user", contents[0].(map[string]any)["role"])

		cfg := body["generationConfig"].(map[string]any)
		assert.Equal(t, "application/json", cfg["responseMimeType"])
		assert.InDelta(t, 0.2, cfg["temperature"], 0.0001)
		assert.EqualValues(t, 256, cfg["maxOutputTokens"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"o"},{"text":"k"}]}}],"usageMetadata":{"promptTokenCount":3,"candidatesTokenCount":1}}`))
	}))
	defer srv.Close()

	temp := 0.2
	client := newTestClient(t, srv.URL)
	resp, err := client.GenerateContent(context.Background(), GenerateContentRequest{
		Contents: UserText("hi"),
		GenerationConfig: &GenerationConfig{
			Temperature:      &temp,
			MaxOutputTokens:  256,
			ResponseMIMEType: "application/json",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text())
	assert.Equal(t, 3, resp.UsageMetadata.PromptTokenCount)
	assert.Equal(t, 1, resp.UsageMetadata.CandidatesTokenCount)
}

func TestGenerateContent_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := newTestClient(t, url)
	_, err := client.GenerateContent(context.Background(), GenerateContentRequest{Contents: UserText("hi")})
	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 2*time.Second, parseRetryAfter("2"))
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, time.Duration(0), parseRetryAfter("Wed, 21 Oct 2015 07:28:00 GMT"))
	assert.Equal(t, time.Duration(0), parseRetryAfter("-1"))
}

func TestText_NilResponse(t *testing.T) {
	var r *GenerateContentResponse
	assert.Equal(t, "", r.Text())
}
