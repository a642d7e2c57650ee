package generate

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sells-group/investor-cli/internal/apperr"
	"github.com/sells-group/investor-cli/pkg/gemini"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptedProvider returns one scripted outcome per call.
type scriptedProvider struct {
	steps []func() (string, error)
	calls int
	reqs  []Request
}

func (p *scriptedProvider) Name() string { return "Scripted" }

func (p *scriptedProvider) Complete(_ context.Context, req Request) (string, error) {
	p.reqs = append(p.reqs, req)
	i := p.calls
	p.calls++
	if i >= len(p.steps) {
		i = len(p.steps) - 1
	}
	return p.steps[i]()
}

func status(code int) func() (string, error) {
	return func() (string, error) {
		return "", &StatusError{StatusCode: code, Err: errors.New(http.StatusText(code))}
	}
}

func text(s string) func() (string, error) {
	return func() (string, error) { return s, nil }
}

func fastPolicy() Policy {
	return Policy{
		MaxAttempts:        3,
		ServerErrorBackoff: 20 * time.Millisecond,
		ServerErrorStep:    10 * time.Millisecond,
		RateLimitBackoff:   40 * time.Millisecond,
		RateLimitStep:      40 * time.Millisecond,
	}
}

func TestGenerate_RetriesServerErrorsThenSucceeds(t *testing.T) {
	p := &scriptedProvider{steps: []func() (string, error){status(503), status(503), text(`[]`)}}
	c := New(p, fastPolicy())

	start := time.Now()
	out, err := c.Generate(context.Background(), Request{Prompt: "p"})
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, `[]`, out)
	assert.Equal(t, 3, p.calls)
	// 20ms after the first failure plus 30ms after the second.
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
}

func TestGenerate_ClientErrorNotRetried(t *testing.T) {
	p := &scriptedProvider{steps: []func() (string, error){status(401), text("never")}}
	c := New(p, fastPolicy())

	_, err := c.Generate(context.Background(), Request{Prompt: "p"})
	require.Error(t, err)
	assert.Equal(t, 1, p.calls)

	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindUpstream, e.Kind)
	assert.Equal(t, 401, e.Status)
	assert.Equal(t, http.StatusBadGateway, apperr.HTTPStatus(err))
}

func TestGenerate_ExhaustsAttempts(t *testing.T) {
	p := &scriptedProvider{steps: []func() (string, error){status(500)}}
	c := New(p, fastPolicy())

	_, err := c.Generate(context.Background(), Request{Prompt: "p"})
	require.Error(t, err)
	assert.Equal(t, 3, p.calls)
	assert.Contains(t, err.Error(), "generation service returned 500")
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
}

func TestGenerate_RateLimitUsesLongerBackoff(t *testing.T) {
	p := &scriptedProvider{steps: []func() (string, error){status(429), text("ok")}}
	c := New(p, fastPolicy())

	start := time.Now()
	out, err := c.Generate(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 2, p.calls)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestGenerate_TransientNetworkErrorRetried(t *testing.T) {
	p := &scriptedProvider{steps: []func() (string, error){
		func() (string, error) { return "", syscall.ECONNRESET },
		text("ok"),
	}}
	c := New(p, fastPolicy())

	out, err := c.Generate(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
	assert.Equal(t, 2, p.calls)
}

func TestGenerate_MissingText(t *testing.T) {
	p := &scriptedProvider{steps: []func() (string, error){text("  ")}}
	c := New(p, fastPolicy())

	_, err := c.Generate(context.Background(), Request{Prompt: "p"})
	require.Error(t, err)
	assert.Equal(t, 1, p.calls)
	assert.True(t, apperr.Is(err, apperr.KindUpstream))
	assert.Contains(t, err.Error(), "missing text")
}

func TestGenerate_ContextCancelledDuringBackoff(t *testing.T) {
	p := &scriptedProvider{steps: []func() (string, error){status(503)}}
	c := New(p, Policy{MaxAttempts: 3, ServerErrorBackoff: time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := c.Generate(ctx, Request{Prompt: "p"})
	require.Error(t, err)
	assert.Equal(t, 1, p.calls)
	assert.False(t, apperr.Is(err, apperr.KindUpstream))
}

func TestRetryConfig_Schedule(t *testing.T) {
	c := New(&scriptedProvider{}, DefaultPolicy())
	cfg := c.retryConfig()

	se := &StatusError{StatusCode: 503}
	assert.Equal(t, 300*time.Millisecond, cfg.Backoff(1, se))
	assert.Equal(t, 800*time.Millisecond, cfg.Backoff(2, se))

	rl := &StatusError{StatusCode: 429}
	assert.Equal(t, 2*time.Second, cfg.Backoff(1, rl))
	assert.Equal(t, 4*time.Second, cfg.Backoff(2, rl))

	rl.RetryAfter = 10 * time.Second
	assert.Equal(t, 10*time.Second, cfg.Backoff(1, rl))

	assert.True(t, cfg.ShouldRetry(&StatusError{StatusCode: 502}))
	assert.True(t, cfg.ShouldRetry(&StatusError{StatusCode: 429}))
	assert.False(t, cfg.ShouldRetry(&StatusError{StatusCode: 404}))
	assert.False(t, cfg.ShouldRetry(errors.New("bad prompt")))
}

func TestNew_ZeroPolicyUsesDefaultSchedule(t *testing.T) {
	c := New(&scriptedProvider{}, Policy{})
	assert.Equal(t, DefaultPolicy(), c.policy)

	cfg := c.retryConfig()
	se := &StatusError{StatusCode: 503}
	assert.Equal(t, 300*time.Millisecond, cfg.Backoff(1, se))
	assert.Equal(t, 800*time.Millisecond, cfg.Backoff(2, se))
	rl := &StatusError{StatusCode: 429}
	assert.Equal(t, 2*time.Second, cfg.Backoff(1, rl))
	assert.Equal(t, 4*time.Second, cfg.Backoff(2, rl))
}

func TestNew_NegativeStepKeepsBackoffConstant(t *testing.T) {
	c := New(&scriptedProvider{}, Policy{ServerErrorStep: -1, RateLimitStep: -1})
	assert.Equal(t, time.Duration(0), c.policy.ServerErrorStep)
	assert.Equal(t, time.Duration(0), c.policy.RateLimitStep)

	cfg := c.retryConfig()
	se := &StatusError{StatusCode: 503}
	assert.Equal(t, 300*time.Millisecond, cfg.Backoff(1, se))
	assert.Equal(t, 300*time.Millisecond, cfg.Backoff(2, se))
	rl := &StatusError{StatusCode: 429}
	assert.Equal(t, 2*time.Second, cfg.Backoff(2, rl))
}

func TestWithRateLimit(t *testing.T) {
	c := New(&scriptedProvider{}, Policy{}, WithRateLimit(0))
	assert.Nil(t, c.limiter)

	c = New(&scriptedProvider{}, Policy{}, WithRateLimit(5))
	require.NotNil(t, c.limiter)
	assert.Equal(t, 3, c.policy.MaxAttempts)
}

func TestGeminiProvider_EndToEnd(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"code":503,"message":"overloaded","status":"UNAVAILABLE"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"[{\"firmName\":\"Acme\"}]"}]}}]}`))
	}))
	defer srv.Close()

	hc := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	gc, err := gemini.NewClient(context.Background(), "k", gemini.WithBaseURL(srv.URL), gemini.WithHTTPClient(hc))
	require.NoError(t, err)
	c := New(NewGeminiProvider(gc, "m"), fastPolicy())

	out, err := c.Generate(context.Background(), Request{Prompt: "p", JSON: true, Temperature: 0.2})
	require.NoError(t, err)
	assert.Equal(t, `[{"firmName":"Acme"}]`, out)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, "Gemini", c.Source())
}

func TestGeminiProvider_Unauthorized(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":401,"message":"bad key","status":"UNAUTHENTICATED"}}`))
	}))
	defer srv.Close()

	hc := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	gc, err := gemini.NewClient(context.Background(), "k", gemini.WithBaseURL(srv.URL), gemini.WithHTTPClient(hc))
	require.NoError(t, err)
	c := New(NewGeminiProvider(gc, ""), fastPolicy())

	_, err = c.Generate(context.Background(), Request{Prompt: "p"})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, 401, e.Status)
}

func TestGeminiProvider_RateLimitStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer srv.Close()

	hc := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	gc, err := gemini.NewClient(context.Background(), "k", gemini.WithBaseURL(srv.URL), gemini.WithHTTPClient(hc))
	require.NoError(t, err)

	_, err = NewGeminiProvider(gc, "m").Complete(context.Background(), Request{Prompt: "p"})
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusTooManyRequests, se.StatusCode)
	assert.Equal(t, 7*time.Second, se.RetryAfter)
}
