package lock

import (
	"context"
	"fmt"
	"time"
)

const (
	// DefaultConversationTTL is the per-thread lock lifetime (spec §4.B).
	DefaultConversationTTL = 60 * time.Second
	// DefaultConversationTimeout bounds blocking acquisition of a thread lock.
	DefaultConversationTimeout = 10 * time.Second
)

// ConversationLock is the thin, thread-keyed specialization of Manager used
// by the agent pipeline: while held, no other processor may mutate the
// thread's state.
type ConversationLock struct {
	manager *Manager
	ttl     time.Duration
	timeout time.Duration
}

// NewConversationLock wraps manager with the conversation-specific defaults.
// A zero ttl/timeout falls back to DefaultConversationTTL/DefaultConversationTimeout.
func NewConversationLock(manager *Manager, ttl, timeout time.Duration) *ConversationLock {
	if ttl <= 0 {
		ttl = DefaultConversationTTL
	}
	if timeout <= 0 {
		timeout = DefaultConversationTimeout
	}
	return &ConversationLock{manager: manager, ttl: ttl, timeout: timeout}
}

func resourceFor(threadID string) string {
	return fmt.Sprintf("conversation:%s", threadID)
}

// Acquire blocks (with the configured timeout) until the thread's lock is
// obtained, returning the holder token.
func (c *ConversationLock) Acquire(ctx context.Context, threadID string) (string, error) {
	return c.manager.Acquire(ctx, resourceFor(threadID), c.ttl, true, c.timeout)
}

// Release is a best-effort check-and-delete; failures are logged by the
// caller, never raised, per spec §4.B failure semantics.
func (c *ConversationLock) Release(ctx context.Context, threadID, token string) (bool, error) {
	return c.manager.Release(ctx, resourceFor(threadID), token)
}

// Extend refreshes the thread lock's TTL.
func (c *ConversationLock) Extend(ctx context.Context, threadID, token string) (bool, error) {
	return c.manager.Extend(ctx, resourceFor(threadID), token, c.ttl)
}

// WithLock runs fn while holding threadID's conversation lock.
func (c *ConversationLock) WithLock(ctx context.Context, threadID string, fn func(ctx context.Context) error) error {
	return c.manager.WithLock(ctx, resourceFor(threadID), c.ttl, c.timeout, fn)
}
