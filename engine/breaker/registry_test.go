package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wanderlyst/agentcore/engine/core"
)

var errBoom = errors.New("boom")

func TestRegistry_Call(t *testing.T) {
	ctx := context.Background()

	t.Run("Should stay closed below the failure threshold", func(t *testing.T) {
		r := NewRegistry(ctx)
		r.Register("llm", Config{FailureThreshold: 5, RecoveryTimeout: 30 * time.Second, HalfOpenMaxCalls: 3, SuccessThreshold: 2})

		for i := 0; i < 4; i++ {
			_, err := r.Call(ctx, "llm", func(ctx context.Context) (any, error) {
				return nil, errBoom
			})
			assert.ErrorIs(t, err, errBoom)
		}

		stats := r.Stats()
		require.Len(t, stats, 1)
		assert.Equal(t, "closed", stats[0].State)
	})

	t.Run("Should open after Ft consecutive failures and fail fast", func(t *testing.T) {
		r := NewRegistry(ctx)
		r.Register("llm", Config{FailureThreshold: 3, RecoveryTimeout: 30 * time.Second, HalfOpenMaxCalls: 3, SuccessThreshold: 2})

		for i := 0; i < 3; i++ {
			_, _ = r.Call(ctx, "llm", func(ctx context.Context) (any, error) {
				return nil, errBoom
			})
		}

		_, err := r.Call(ctx, "llm", func(ctx context.Context) (any, error) {
			t.Fatal("fn must not be invoked while circuit is open")
			return nil, nil
		})
		require.Error(t, err)
		var domainErr *core.Error
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, core.KindBusy, domainErr.Kind)
		assert.Equal(t, core.CodeCircuitOpen, domainErr.Code)
		assert.Greater(t, domainErr.RetryAfter, time.Duration(0))
	})

	t.Run("Should transition half-open to closed after St successes", func(t *testing.T) {
		r := NewRegistry(ctx)
		r.Register("vector-store", Config{
			FailureThreshold: 2, RecoveryTimeout: 10 * time.Millisecond, HalfOpenMaxCalls: 2, SuccessThreshold: 2,
		})

		for i := 0; i < 2; i++ {
			_, _ = r.Call(ctx, "vector-store", func(ctx context.Context) (any, error) {
				return nil, errBoom
			})
		}
		stats := r.Stats()
		require.Len(t, stats, 1)
		assert.Equal(t, "open", stats[0].State)

		time.Sleep(20 * time.Millisecond)

		for i := 0; i < 2; i++ {
			_, err := r.Call(ctx, "vector-store", func(ctx context.Context) (any, error) {
				return "ok", nil
			})
			require.NoError(t, err)
		}

		stats = r.Stats()
		require.Len(t, stats, 1)
		assert.Equal(t, "closed", stats[0].State)
	})

	t.Run("Should auto-register unseen names with defaults", func(t *testing.T) {
		r := NewRegistry(ctx)
		result, err := r.Call(ctx, "map-api", func(ctx context.Context) (any, error) {
			return 42, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 42, result)
	})
}
