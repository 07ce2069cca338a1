package forge

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RetryConfig bounds the backoff loop around retryable forge errors.
type RetryConfig struct {
	// MaxAttempts is the total attempt ceiling, including the first try.
	MaxAttempts int
	// BaseDelay is the first backoff delay; it doubles per attempt.
	BaseDelay time.Duration
	// RateLimitDelay replaces the computed delay after a rate-limit error.
	RateLimitDelay time.Duration
	// OnRetry, if set, observes each retry before its delay.
	OnRetry func(op string, attempt int, delay time.Duration)
}

// DefaultRetryConfig matches the engine's bounded retry budget.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    4,
		BaseDelay:      2 * time.Second,
		RateLimitDelay: 30 * time.Second,
	}
}

// RetryingClient decorates a Client with capped exponential backoff for
// RateLimited and TransientNetwork failures. Unauthorized and NotFound are
// surfaced immediately. The decorator satisfies the same capability
// interface, so callers stay retry-agnostic.
type RetryingClient struct {
	inner Client
	cfg   RetryConfig
}

// NewRetryingClient wraps inner with the given retry budget.
func NewRetryingClient(inner Client, cfg RetryConfig) *RetryingClient {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultRetryConfig().MaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultRetryConfig().BaseDelay
	}
	if cfg.RateLimitDelay <= 0 {
		cfg.RateLimitDelay = DefaultRetryConfig().RateLimitDelay
	}
	return &RetryingClient{inner: inner, cfg: cfg}
}

// do runs fn under the retry budget.
func (c *RetryingClient) do(ctx context.Context, op string, fn func() error) error {
	delay := c.cfg.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		var forgeErr *ForgeError
		if !errors.As(lastErr, &forgeErr) || !forgeErr.Retryable() {
			return lastErr
		}
		if attempt == c.cfg.MaxAttempts {
			break
		}

		wait := delay
		if forgeErr.Kind == KindRateLimited {
			wait = c.cfg.RateLimitDelay
		}
		if c.cfg.OnRetry != nil {
			c.cfg.OnRetry(op, attempt, wait)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
		delay *= 2
	}

	return fmt.Errorf("retry budget exhausted after %d attempts: %w", c.cfg.MaxAttempts, lastErr)
}

func (c *RetryingClient) FindIssue(ctx context.Context, label string) (*Issue, error) {
	var issue *Issue
	err := c.do(ctx, "find issue", func() error {
		var e error
		issue, e = c.inner.FindIssue(ctx, label)
		return e
	})
	return issue, err
}

func (c *RetryingClient) CreateIssue(ctx context.Context, label, title, body string) (*Issue, error) {
	var issue *Issue
	err := c.do(ctx, "create issue", func() error {
		var e error
		issue, e = c.inner.CreateIssue(ctx, label, title, body)
		return e
	})
	return issue, err
}

func (c *RetryingClient) CloseIssue(ctx context.Context, number int) error {
	return c.do(ctx, "close issue", func() error {
		return c.inner.CloseIssue(ctx, number)
	})
}

func (c *RetryingClient) FindPullRequest(ctx context.Context, headBranch string) (*PullRequest, error) {
	var pr *PullRequest
	err := c.do(ctx, "find pull request", func() error {
		var e error
		pr, e = c.inner.FindPullRequest(ctx, headBranch)
		return e
	})
	return pr, err
}

func (c *RetryingClient) CreatePullRequest(ctx context.Context, opts CreatePullRequestOptions) (*PullRequest, error) {
	var pr *PullRequest
	err := c.do(ctx, "create pull request", func() error {
		var e error
		pr, e = c.inner.CreatePullRequest(ctx, opts)
		return e
	})
	return pr, err
}

func (c *RetryingClient) AddLabels(ctx context.Context, prNumber int, labels ...string) error {
	return c.do(ctx, "add labels", func() error {
		return c.inner.AddLabels(ctx, prNumber, labels...)
	})
}
