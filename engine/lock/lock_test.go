package lock

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	return NewManager(client, 10*time.Millisecond)
}

func TestManager_Acquire(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	t.Run("Should acquire with the spec token format", func(t *testing.T) {
		token, err := m.Acquire(ctx, "res-1", time.Second, false, 0)
		require.NoError(t, err)
		parts := strings.SplitN(token, ":", 2)
		require.Len(t, parts, 2)
		assert.Len(t, parts[0], 32) // 16 random bytes, hex-encoded

		ok, err := m.Release(ctx, "res-1", token)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Should fail fast when non-blocking and already held", func(t *testing.T) {
		_, err := m.Acquire(ctx, "res-2", time.Second, false, 0)
		require.NoError(t, err)

		_, err = m.Acquire(ctx, "res-2", time.Second, false, 0)
		assert.ErrorIs(t, err, ErrNotAcquired)
	})

	t.Run("Should block and retry until timeout, then report LockTimeout", func(t *testing.T) {
		_, err := m.Acquire(ctx, "res-3", time.Second, false, 0)
		require.NoError(t, err)

		start := time.Now()
		_, err = m.Acquire(ctx, "res-3", time.Second, true, 50*time.Millisecond)
		elapsed := time.Since(start)

		require.Error(t, err)
		assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	})

	t.Run("Should block and succeed once the holder releases", func(t *testing.T) {
		token, err := m.Acquire(ctx, "res-4", 2*time.Second, false, 0)
		require.NoError(t, err)

		go func() {
			time.Sleep(30 * time.Millisecond)
			_, _ = m.Release(ctx, "res-4", token)
		}()

		_, err = m.Acquire(ctx, "res-4", time.Second, true, time.Second)
		assert.NoError(t, err)
	})
}

func TestManager_Release(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	t.Run("Should no-op when token does not match", func(t *testing.T) {
		token, err := m.Acquire(ctx, "res-5", time.Second, false, 0)
		require.NoError(t, err)

		ok, err := m.Release(ctx, "res-5", "wrong-token")
		require.NoError(t, err)
		assert.False(t, ok)

		locked, err := m.Locked(ctx, "res-5")
		require.NoError(t, err)
		assert.True(t, locked)

		ok, err = m.Release(ctx, "res-5", token)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestManager_Extend(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	t.Run("Should extend TTL for the owning token only", func(t *testing.T) {
		token, err := m.Acquire(ctx, "res-6", 100*time.Millisecond, false, 0)
		require.NoError(t, err)

		ok, err := m.Extend(ctx, "res-6", "wrong", time.Second)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = m.Extend(ctx, "res-6", token, time.Second)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestManager_WithLock(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	t.Run("Should release even when fn fails", func(t *testing.T) {
		err := m.WithLock(ctx, "res-7", time.Second, time.Second, func(ctx context.Context) error {
			return assert.AnError
		})
		assert.ErrorIs(t, err, assert.AnError)

		locked, err := m.Locked(ctx, "res-7")
		require.NoError(t, err)
		assert.False(t, locked)
	})

	t.Run("Should serialize concurrent callers", func(t *testing.T) {
		var active int32
		var maxObserved int32
		var wg sync.WaitGroup

		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = m.WithLock(ctx, "res-8", time.Second, 2*time.Second, func(ctx context.Context) error {
					n := atomic.AddInt32(&active, 1)
					for {
						cur := atomic.LoadInt32(&maxObserved)
						if n <= cur || atomic.CompareAndSwapInt32(&maxObserved, cur, n) {
							break
						}
					}
					time.Sleep(5 * time.Millisecond)
					atomic.AddInt32(&active, -1)
					return nil
				})
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), maxObserved)
	})
}

func TestConversationLock(t *testing.T) {
	m := newTestManager(t)
	cl := NewConversationLock(m, 0, 0)
	ctx := context.Background()

	t.Run("Should use the conversation:<thread_id> resource key", func(t *testing.T) {
		token, err := cl.Acquire(ctx, "thread-1")
		require.NoError(t, err)

		locked, err := m.Locked(ctx, "conversation:thread-1")
		require.NoError(t, err)
		assert.True(t, locked)

		_, err = cl.Acquire(context.Background(), "thread-2")
		require.NoError(t, err)

		ok, err := cl.Release(ctx, "thread-1", token)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}
