// Package lock implements the distributed, Redis-backed mutual-exclusion
// primitive that guards per-thread mutation (spec §4.B). It follows the
// teacher's SETNX-plus-Lua-checked-release pattern for Redis locking, but
// adds blocking-retry-with-timeout acquisition and a caller-observable
// token format that the middleware core's failure semantics depend on.
package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/wanderlyst/agentcore/engine/cache"
	"github.com/wanderlyst/agentcore/engine/core"
)

// ErrNotAcquired is returned by Acquire when blocking=false and the resource
// is already locked.
var ErrNotAcquired = errors.New("lock: not acquired")

// ErrTimeout is the cause wrapped in the LockTimeout error that Acquire
// returns when blocking=true and the timeout elapses before the lock becomes
// available.
var ErrTimeout = errors.New("lock: acquisition timed out")

const (
	defaultRetryInterval = 100 * time.Millisecond
	keyPrefix            = "lock:"
)

const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("del", KEYS[1])
else
    return 0
end`

const extendScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
    return redis.call("pexpire", KEYS[1], ARGV[2])
else
    return 0
end`

// Info describes the current holder of a resource, if any.
type Info struct {
	Token string
	TTL   time.Duration
}

// Manager is the distributed lock operating on a shared Redis client.
type Manager struct {
	client        cache.RedisInterface
	retryInterval time.Duration
}

// NewManager constructs a Manager. retryInterval of 0 uses the spec default
// of 100ms.
func NewManager(client cache.RedisInterface, retryInterval time.Duration) *Manager {
	if retryInterval <= 0 {
		retryInterval = defaultRetryInterval
	}
	return &Manager{client: client, retryInterval: retryInterval}
}

// newToken produces the "<random128>:<unix_seconds>" token format mandated
// by spec §4.B.
func newToken(now time.Time) string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%d:%d", now.UnixNano(), now.Unix())
	}
	return fmt.Sprintf("%s:%d", hex.EncodeToString(b), now.Unix())
}

// Acquire attempts to atomically SET the resource's key only if absent, with
// expiry ttl. When blocking is true and the resource is held, it retries at
// a fixed interval until acquired, ctx is done, or timeout elapses.
func (m *Manager) Acquire(
	ctx context.Context,
	resource string,
	ttl time.Duration,
	blocking bool,
	timeout time.Duration,
) (string, error) {
	key := keyPrefix + resource
	deadline := time.Now().Add(timeout)

	for {
		token := newToken(time.Now())
		ok, err := m.client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return "", core.NewKindError(core.KindDependency, err, core.CodeStoreFailure, nil)
		}
		if ok {
			return token, nil
		}
		if !blocking {
			return "", ErrNotAcquired
		}
		if timeout > 0 && time.Now().After(deadline) {
			return "", core.NewKindError(core.KindBusy, ErrTimeout, core.CodeLockTimeout, map[string]any{
				"resource": resource,
			}).WithRetryAfter(ttl)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(m.retryInterval):
		}
	}
}

// Release performs an atomic check-and-delete: the key is removed only if
// its value equals token. A mismatch is non-fatal and reported as false.
func (m *Manager) Release(ctx context.Context, resource, token string) (bool, error) {
	key := keyPrefix + resource
	result, err := m.client.Eval(ctx, releaseScript, []string{key}, token).Result()
	if err != nil {
		return false, fmt.Errorf("release lock %q: %w", resource, err)
	}
	n, _ := result.(int64)
	return n == 1, nil
}

// Extend performs an atomic check-and-extend under the same token-match
// condition as Release.
func (m *Manager) Extend(ctx context.Context, resource, token string, ttl time.Duration) (bool, error) {
	key := keyPrefix + resource
	result, err := m.client.Eval(ctx, extendScript, []string{key}, token, int64(ttl/time.Millisecond)).Result()
	if err != nil {
		return false, fmt.Errorf("extend lock %q: %w", resource, err)
	}
	n, _ := result.(int64)
	return n == 1, nil
}

// Locked reports whether resource currently has an active lock record.
func (m *Manager) Locked(ctx context.Context, resource string) (bool, error) {
	n, err := m.client.Exists(ctx, keyPrefix+resource).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Info returns the current holder token and remaining TTL for resource.
func (m *Manager) Info(ctx context.Context, resource string) (Info, error) {
	key := keyPrefix + resource
	token, err := m.client.Get(ctx, key).Result()
	if err != nil {
		return Info{}, err
	}
	ttl, err := m.client.TTL(ctx, key).Result()
	if err != nil {
		return Info{}, err
	}
	return Info{Token: token, TTL: ttl}, nil
}

// WithLock acquires resource, runs fn, and guarantees release even if fn
// panics or returns an error.
func (m *Manager) WithLock(
	ctx context.Context,
	resource string,
	ttl, timeout time.Duration,
	fn func(ctx context.Context) error,
) error {
	token, err := m.Acquire(ctx, resource, ttl, true, timeout)
	if err != nil {
		return err
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_, _ = m.Release(releaseCtx, resource, token)
	}()
	return fn(ctx)
}
