package llm

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/wanderlyst/agentcore/engine/breaker"
	"github.com/wanderlyst/agentcore/engine/core"
	"github.com/wanderlyst/agentcore/pkg/logger"
)

// RetryConfig controls the exponential backoff around LLM invocations
// (spec §5: "LLM invoke retried up to 3 times with exponential backoff
// capped at 10 s, reraising on final failure").
type RetryConfig struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	MaxRetries   uint64
}

// DefaultRetryConfig returns the spec's documented retry policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{InitialDelay: time.Second, MaxDelay: 10 * time.Second, MaxRetries: 3}
}

// BreakerName is the registry name protecting every LLM invocation.
const BreakerName = "llm"

// RetryingClient wraps a Client with exponential-backoff retry and circuit
// breaker protection, grounded on the teacher's
// engine/auth/org.Service.provisionTemporalNamespaceWithRetry use of
// sethvargo/go-retry (NewExponential + WithCappedDuration + WithMaxRetries).
type RetryingClient struct {
	inner       Client
	breakers    *breaker.Registry
	retry       RetryConfig
	breakerName string
}

// NewRetryingClient wraps inner with retry and breaker policy, guarding
// calls under the default "llm" breaker name. breakers may be nil, in which
// case calls are retried but not circuit-broken.
func NewRetryingClient(inner Client, breakers *breaker.Registry, cfg RetryConfig) *RetryingClient {
	return NewNamedRetryingClient(BreakerName, inner, breakers, cfg)
}

// NewNamedRetryingClient is like NewRetryingClient but guards calls under a
// caller-chosen breaker name, so distinct call sites (e.g. the context
// window manager's "llm-summarizer") trip independently of the main "llm"
// breaker used for turn completions.
func NewNamedRetryingClient(name string, inner Client, breakers *breaker.Registry, cfg RetryConfig) *RetryingClient {
	if cfg.MaxRetries == 0 {
		cfg = DefaultRetryConfig()
	}
	return &RetryingClient{inner: inner, breakers: breakers, retry: cfg, breakerName: name}
}

// Complete invokes the wrapped client, retrying retryable failures with
// exponential backoff, and — when a Registry is configured — executing the
// whole retry loop through the client's named circuit breaker so sustained failures
// trip the breaker instead of retrying forever.
func (c *RetryingClient) Complete(ctx context.Context, req Request) (*Response, error) {
	call := func(ctx context.Context) (*Response, error) {
		var resp *Response
		backoff := retry.NewExponential(c.retry.InitialDelay)
		backoff = retry.WithCappedDuration(c.retry.MaxDelay, backoff)
		backoff = retry.WithMaxRetries(c.retry.MaxRetries, backoff)
		err := retry.Do(ctx, backoff, func(ctx context.Context) error {
			log := logger.FromContext(ctx)
			r, err := c.inner.Complete(ctx, req)
			if err != nil {
				log.Warn("llm completion failed, will retry", "error", err)
				return retry.RetryableError(err)
			}
			resp = r
			return nil
		})
		if err != nil {
			return nil, core.NewKindError(core.KindDependency, err, core.CodeLLMFailure, nil)
		}
		return resp, nil
	}

	if c.breakers == nil {
		return call(ctx)
	}

	result, err := c.breakers.Call(ctx, c.breakerName, func(ctx context.Context) (any, error) {
		return call(ctx)
	})
	if err != nil {
		return nil, err
	}
	resp, _ := result.(*Response)
	return resp, nil
}
