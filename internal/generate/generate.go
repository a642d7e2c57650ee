// Package generate calls the external text-generation service with the
// retry policy shared by every pipeline.
package generate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/investor-cli/internal/apperr"
	"github.com/sells-group/investor-cli/internal/resilience"
)

// Request is a single generation call.
type Request struct {
	Prompt string
	// JSON asks the provider for a JSON response when it supports it.
	JSON bool
	// Temperature is passed through when non-zero.
	Temperature float64
	MaxTokens   int
}

// Provider is one backend for the generation service.
type Provider interface {
	// Name is the label recorded as a firm's source, e.g. "Gemini".
	Name() string
	// Complete returns the generated text. Non-2xx responses must be
	// reported as *StatusError.
	Complete(ctx context.Context, req Request) (string, error)
}

// StatusError is a non-2xx response from the generation service.
type StatusError struct {
	StatusCode int
	RetryAfter time.Duration
	Err        error
}

func (e *StatusError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("generate: status %d", e.StatusCode)
	}
	return e.Err.Error()
}

func (e *StatusError) Unwrap() error { return e.Err }

// Policy is the retry schedule.
type Policy struct {
	MaxAttempts        int
	ServerErrorBackoff time.Duration
	ServerErrorStep    time.Duration
	RateLimitBackoff   time.Duration
	RateLimitStep      time.Duration
}

// DefaultPolicy retries 5xx after 300ms then 800ms and 429 after 2s then 4s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:        3,
		ServerErrorBackoff: 300 * time.Millisecond,
		ServerErrorStep:    500 * time.Millisecond,
		RateLimitBackoff:   2 * time.Second,
		RateLimitStep:      2 * time.Second,
	}
}

// Option configures a Client.
type Option func(*Client)

// WithRateLimit caps outbound calls to rps requests per second. Zero disables
// the limiter.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// Client wraps a Provider with retries and an optional rate limiter.
type Client struct {
	provider Provider
	policy   Policy
	limiter  *rate.Limiter
}

// New creates a Client. Zero fields of policy take their defaults. A
// negative step keeps the backoff constant across attempts.
func New(p Provider, policy Policy, opts ...Option) *Client {
	def := DefaultPolicy()
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = def.MaxAttempts
	}
	if policy.ServerErrorBackoff <= 0 {
		policy.ServerErrorBackoff = def.ServerErrorBackoff
	}
	policy.ServerErrorStep = stepOrDefault(policy.ServerErrorStep, def.ServerErrorStep)
	if policy.RateLimitBackoff <= 0 {
		policy.RateLimitBackoff = def.RateLimitBackoff
	}
	policy.RateLimitStep = stepOrDefault(policy.RateLimitStep, def.RateLimitStep)
	c := &Client{provider: p, policy: policy}
	for _, o := range opts {
		o(c)
	}
	return c
}

func stepOrDefault(step, def time.Duration) time.Duration {
	switch {
	case step == 0:
		return def
	case step < 0:
		return 0
	}
	return step
}

// Source is the provider label stored on generated firms.
func (c *Client) Source() string {
	return c.provider.Name()
}

// Generate runs req through the provider. 5xx, 429 and transient network
// failures are retried up to MaxAttempts; any other non-2xx status fails on
// the first attempt. Failures are returned as apperr KindUpstream.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	attempts := 0
	text, err := resilience.DoVal(ctx, c.retryConfig(), func(ctx context.Context) (string, error) {
		attempts++
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", eris.Wrap(err, "generate: rate limit wait")
			}
		}
		return c.provider.Complete(ctx, req)
	})
	if err != nil {
		return "", c.classify(ctx, err, attempts)
	}
	if strings.TrimSpace(text) == "" {
		return "", apperr.Upstream(0, nil, "generation response envelope missing text")
	}
	return text, nil
}

func (c *Client) retryConfig() resilience.RetryConfig {
	server := resilience.LinearBackoff(c.policy.ServerErrorBackoff, c.policy.ServerErrorStep)
	limited := resilience.LinearBackoff(c.policy.RateLimitBackoff, c.policy.RateLimitStep)
	return resilience.RetryConfig{
		MaxAttempts: c.policy.MaxAttempts,
		ShouldRetry: retryable,
		Backoff: func(attempt int, err error) time.Duration {
			var se *StatusError
			if errors.As(err, &se) && se.StatusCode == http.StatusTooManyRequests {
				return max(limited(attempt, err), se.RetryAfter)
			}
			return server(attempt, err)
		},
		OnRetry: resilience.RetryLogger(c.provider.Name(), "generate"),
	}
}

func retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}
	return resilience.IsTransient(err)
}

func (c *Client) classify(ctx context.Context, err error, attempts int) error {
	if ctx.Err() != nil {
		return eris.Wrap(err, "generate: cancelled")
	}
	status := 0
	var se *StatusError
	if errors.As(err, &se) {
		status = se.StatusCode
	}
	zap.L().Warn("generation failed",
		zap.String("provider", c.provider.Name()),
		zap.Int("status", status),
		zap.Int("attempts", attempts),
		zap.Error(err),
	)
	if status != 0 {
		return apperr.Upstream(status, err, "generation service returned %d", status)
	}
	return apperr.Upstream(0, err, "generation service unavailable")
}
