package llm

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanderlyst/agentcore/engine/breaker"
	"github.com/wanderlyst/agentcore/engine/core"
)

type fakeClient struct {
	failUntil int32
	calls     int32
}

func (f *fakeClient) Complete(ctx context.Context, req Request) (*Response, error) {
	n := atomic.AddInt32(&f.calls, 1)
	if n <= f.failUntil {
		return nil, errors.New("upstream unavailable")
	}
	return &Response{Content: "ok"}, nil
}

func TestRetryingClient_Complete(t *testing.T) {
	ctx := context.Background()

	t.Run("Should succeed without retry when the first call succeeds", func(t *testing.T) {
		fake := &fakeClient{}
		c := NewRetryingClient(fake, nil, RetryConfig{InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, MaxRetries: 3})
		resp, err := c.Complete(ctx, Request{})
		require.NoError(t, err)
		assert.Equal(t, "ok", resp.Content)
		assert.Equal(t, int32(1), fake.calls)
	})

	t.Run("Should retry transient failures and eventually succeed", func(t *testing.T) {
		fake := &fakeClient{failUntil: 2}
		c := NewRetryingClient(fake, nil, RetryConfig{InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, MaxRetries: 3})
		resp, err := c.Complete(ctx, Request{})
		require.NoError(t, err)
		assert.Equal(t, "ok", resp.Content)
	})

	t.Run("Should return a DependencyError after exhausting retries", func(t *testing.T) {
		fake := &fakeClient{failUntil: 100}
		c := NewRetryingClient(fake, nil, RetryConfig{InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, MaxRetries: 2})
		_, err := c.Complete(ctx, Request{})
		require.Error(t, err)
		var domainErr *core.Error
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, core.KindDependency, domainErr.Kind)
		assert.Equal(t, core.CodeLLMFailure, domainErr.Code)
	})

	t.Run("Should trip the llm breaker after repeated exhaustion", func(t *testing.T) {
		fake := &fakeClient{failUntil: 1000}
		registry := breaker.NewRegistry(ctx)
		registry.Register(BreakerName, breaker.Config{
			FailureThreshold: 2, RecoveryTimeout: time.Second, HalfOpenMaxCalls: 1, SuccessThreshold: 1,
		})
		c := NewRetryingClient(fake, registry, RetryConfig{InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, MaxRetries: 0})

		for i := 0; i < 2; i++ {
			_, _ = c.Complete(ctx, Request{})
		}
		_, err := c.Complete(ctx, Request{})
		require.Error(t, err)
		var domainErr *core.Error
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, core.KindBusy, domainErr.Kind)
	})
}
