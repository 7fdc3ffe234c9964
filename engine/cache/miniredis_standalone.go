package cache

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/wanderlyst/agentcore/pkg/logger"
)

// MiniredisStandalone embeds a miniredis server and exposes a go-redis client
// connected to it. It exists purely for package tests that exercise the lock
// manager, rate limiter, and observer queue without a real Redis instance.
type MiniredisStandalone struct {
	server *miniredis.Miniredis
	client *redis.Client
	closed atomic.Bool
}

// NewMiniredisStandalone creates and starts an embedded Redis server and a
// standard go-redis client connected to it, validating the connection with a
// Ping before returning.
func NewMiniredisStandalone(ctx context.Context) (*MiniredisStandalone, error) {
	log := logger.FromContext(ctx)

	mr := miniredis.NewMiniRedis()
	if err := mr.Start(); err != nil {
		return nil, fmt.Errorf("start miniredis: %w", err)
	}

	log.Debug("started embedded redis server", "addr", mr.Addr())

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	if err := client.Ping(ctx).Err(); err != nil {
		mr.Close()
		return nil, fmt.Errorf("ping miniredis: %w", err)
	}

	return &MiniredisStandalone{server: mr, client: client}, nil
}

// Client returns the go-redis client connected to the embedded server.
func (m *MiniredisStandalone) Client() *redis.Client {
	return m.client
}

// Close gracefully shuts down the embedded Redis server and go-redis client.
func (m *MiniredisStandalone) Close(ctx context.Context) error {
	if m == nil {
		return nil
	}
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}

	log := logger.FromContext(ctx)
	if m.client != nil {
		if err := m.client.Close(); err != nil {
			log.Warn("failed to close redis client", "error", err)
		}
	}
	if m.server != nil {
		m.server.Close()
	}
	return nil
}
