package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T, cfg *Config) (*Service, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	return NewService(client, cfg), s
}

func TestService_Check(t *testing.T) {
	ctx := context.Background()

	t.Run("Should allow exactly Rm calls then reject the Rm+1th", func(t *testing.T) {
		svc, _ := newTestService(t, &Config{RequestsPerMinute: 3, RequestsPerHour: 1000})
		for i := 0; i < 3; i++ {
			result, err := svc.Check(ctx, "user:a", true)
			require.NoError(t, err)
			assert.True(t, result.Allowed)
		}
		result, err := svc.Check(ctx, "user:a", true)
		require.NoError(t, err)
		assert.False(t, result.Allowed)
		assert.Greater(t, result.RetryAfter, time.Duration(0))
		assert.LessOrEqual(t, result.RetryAfter, 60*time.Second)
	})

	t.Run("Should reject on hour limit even under the minute limit", func(t *testing.T) {
		svc, _ := newTestService(t, &Config{RequestsPerMinute: 1000, RequestsPerHour: 2})
		for i := 0; i < 2; i++ {
			result, err := svc.Check(ctx, "user:b", true)
			require.NoError(t, err)
			assert.True(t, result.Allowed)
		}
		result, err := svc.Check(ctx, "user:b", true)
		require.NoError(t, err)
		assert.False(t, result.Allowed)
	})

	t.Run("Should not increment when increment=false", func(t *testing.T) {
		svc, _ := newTestService(t, &Config{RequestsPerMinute: 1, RequestsPerHour: 1000})
		result, err := svc.Check(ctx, "user:c", false)
		require.NoError(t, err)
		assert.True(t, result.Allowed)

		result, err = svc.Check(ctx, "user:c", false)
		require.NoError(t, err)
		assert.True(t, result.Allowed, "dry-run checks must not consume the budget")
	})

	t.Run("Should isolate counters per identifier", func(t *testing.T) {
		svc, _ := newTestService(t, &Config{RequestsPerMinute: 1, RequestsPerHour: 1000})
		r1, err := svc.Check(ctx, "user:d", true)
		require.NoError(t, err)
		assert.True(t, r1.Allowed)

		r2, err := svc.Check(ctx, "user:e", true)
		require.NoError(t, err)
		assert.True(t, r2.Allowed)
	})
}

func TestIdentifier(t *testing.T) {
	t.Run("Should prefer user id over ip", func(t *testing.T) {
		assert.Equal(t, "user:42", Identifier("42", "1.2.3.4"))
	})
	t.Run("Should fall back to ip when no user id", func(t *testing.T) {
		assert.Equal(t, "ip:1.2.3.4", Identifier("", "1.2.3.4"))
	})
}
