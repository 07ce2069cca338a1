package forge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyClient fails FindIssue a configurable number of times before
// succeeding.
type flakyClient struct {
	Client
	failures  int
	failKind  ErrorKind
	callCount int
}

func (f *flakyClient) FindIssue(_ context.Context, label string) (*Issue, error) {
	f.callCount++
	if f.callCount <= f.failures {
		return nil, &ForgeError{Kind: f.failKind, Op: "find issue"}
	}
	return &Issue{Number: 1, Labels: []Label{{Name: label}}}, nil
}

func testRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		BaseDelay:      time.Millisecond,
		RateLimitDelay: time.Millisecond,
	}
}

// TestRetry_TransientRecovers tests that transient failures are retried to
// success within the budget.
func TestRetry_TransientRecovers(t *testing.T) {
	inner := &flakyClient{failures: 2, failKind: KindTransient}
	client := NewRetryingClient(inner, testRetryConfig())

	issue, err := client.FindIssue(context.Background(), "setup")
	require.NoError(t, err)
	assert.Equal(t, 1, issue.Number)
	assert.Equal(t, 3, inner.callCount)
}

// TestRetry_BudgetExhausted tests that the attempt ceiling is honored and
// the underlying error is surfaced.
func TestRetry_BudgetExhausted(t *testing.T) {
	inner := &flakyClient{failures: 10, failKind: KindRateLimited}
	client := NewRetryingClient(inner, testRetryConfig())

	_, err := client.FindIssue(context.Background(), "setup")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retry budget exhausted after 3 attempts")
	assert.Equal(t, 3, inner.callCount)

	var forgeErr *ForgeError
	require.ErrorAs(t, err, &forgeErr)
	assert.Equal(t, KindRateLimited, forgeErr.Kind)
}

// TestRetry_FatalNotRetried tests that unauthorized errors surface
// immediately.
func TestRetry_FatalNotRetried(t *testing.T) {
	inner := &flakyClient{failures: 10, failKind: KindUnauthorized}
	client := NewRetryingClient(inner, testRetryConfig())

	_, err := client.FindIssue(context.Background(), "setup")
	require.Error(t, err)
	assert.Equal(t, 1, inner.callCount)
}

// TestRetry_OnRetryObserved tests the retry callback sees each attempt.
func TestRetry_OnRetryObserved(t *testing.T) {
	inner := &flakyClient{failures: 2, failKind: KindTransient}
	cfg := testRetryConfig()

	var attempts []int
	cfg.OnRetry = func(op string, attempt int, delay time.Duration) {
		assert.Equal(t, "find issue", op)
		attempts = append(attempts, attempt)
	}

	client := NewRetryingClient(inner, cfg)
	_, err := client.FindIssue(context.Background(), "setup")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, attempts)
}

// TestRetry_ContextCancelled tests that cancellation interrupts the backoff
// sleep.
func TestRetry_ContextCancelled(t *testing.T) {
	inner := &flakyClient{failures: 10, failKind: KindTransient}
	cfg := testRetryConfig()
	cfg.BaseDelay = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	client := NewRetryingClient(inner, cfg)
	_, err := client.FindIssue(ctx, "setup")
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, inner.callCount)
}
