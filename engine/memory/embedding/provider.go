// Package embedding implements the Memory Pipeline's embedding provider
// chain (spec §4.G): an ordered list of providers, each exposing
// embed(texts) and a frozen dimension, falling through on provider failure
// and caching the last-successful provider so failed ones aren't re-probed
// every call.
//
// Grounded on original_source's apps/api/src/services/memory/embeddings.py
// EmbeddingService: the same provider-priority-list-with-fallback shape,
// translated from Python ABC subclasses to a Go interface + slice of
// implementations. The "first success wins, remember it" behavior is kept
// verbatim; concrete providers are adapted to Go idioms rather than ported
// 1:1 (Upstage/vLLM/OpenAI's near-identical HTTP bodies collapse into one
// configurable RemoteProvider).
package embedding

import (
	"context"
	"sync"

	"github.com/wanderlyst/agentcore/pkg/logger"
)

// Provider generates vector embeddings for text.
type Provider interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Chain tries providers in priority order, returning the first success and
// remembering it so later calls try that provider first (best-effort, not
// strict — spec §4.G: "caches the last-successful provider... not strict").
type Chain struct {
	mu        sync.Mutex
	providers []Provider
	active    int
}

// NewChain builds a provider chain. Order is priority order: first is
// preferred, last is the final fallback.
func NewChain(providers ...Provider) *Chain {
	return &Chain{providers: providers}
}

// Dimension reports the dimension of the currently active (or first,
// if none has succeeded yet) provider.
func (c *Chain) Dimension() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.providers) == 0 {
		return 0
	}
	return c.providers[c.active].Dimension()
}

// Embed tries the cached active provider first, then walks the remaining
// providers in order on failure.
func (c *Chain) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	log := logger.FromContext(ctx)
	c.mu.Lock()
	order := append([]int{c.active}, otherIndexes(len(c.providers), c.active)...)
	providers := c.providers
	c.mu.Unlock()

	var lastErr error
	for _, idx := range order {
		vecs, err := providers[idx].Embed(ctx, texts)
		if err != nil {
			log.Warn("embedding provider failed, falling through", "provider", providers[idx].Name(), "error", err)
			lastErr = err
			continue
		}
		c.mu.Lock()
		c.active = idx
		c.mu.Unlock()
		return vecs, nil
	}
	return nil, &AllProvidersFailedError{Cause: lastErr}
}

func otherIndexes(n, skip int) []int {
	out := make([]int, 0, n-1)
	for i := 0; i < n; i++ {
		if i != skip {
			out = append(out, i)
		}
	}
	return out
}

// AllProvidersFailedError is returned when every provider in the chain
// failed to produce an embedding.
type AllProvidersFailedError struct {
	Cause error
}

func (e *AllProvidersFailedError) Error() string {
	if e.Cause == nil {
		return "all embedding providers failed"
	}
	return "all embedding providers failed: " + e.Cause.Error()
}

func (e *AllProvidersFailedError) Unwrap() error { return e.Cause }
