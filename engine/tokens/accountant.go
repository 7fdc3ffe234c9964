// Package tokens implements the Token Accountant (spec §4.A): pure,
// thread-safe token counting over a tiktoken cl100k_base encoder with a
// deterministic chars/4 fallback, memoized with a bounded LRU.
//
// Grounded on the teradata-labs-loom pack repo's pkg/agent.TokenCounter
// (cl100k_base via pkoukk/tiktoken-go, a singleton-encoder wrapper, a
// fixed-per-message overhead for EstimateMessagesTokens) — generalized
// here to an injectable, non-singleton Accountant and hashicorp/golang-lru
// memoization, since the spec calls for the count to be "memoizable with a
// bounded LRU (~1000 entries)" rather than a process-wide singleton.
package tokens

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkoukk/tiktoken-go"

	"github.com/wanderlyst/agentcore/engine/core"
)

// PerMessageOverhead is the fixed token cost spec §4.A assigns to role
// framing in count_messages.
const PerMessageOverhead = 4

const defaultCacheSize = 1000

// Budget is the result of a budget check against soft/hard token limits.
type Budget struct {
	Total       uint
	WithinSoft  bool
	WithinHard  bool
	Utilization float64 // Total / hard, as a fraction
}

// Accountant counts tokens for text and message sequences. All methods are
// safe for concurrent use.
type Accountant struct {
	mu      sync.Mutex
	encoder *tiktoken.Tiktoken
	cache   *lru.Cache[string, uint]
}

// New constructs an Accountant. It attempts to load the cl100k_base
// encoding; if unavailable (offline, or a test sandbox with no network
// access to tiktoken's vocabulary files), Count falls back to chars÷4.
func New() *Accountant {
	enc, _ := tiktoken.GetEncoding("cl100k_base")
	cache, _ := lru.New[string, uint](defaultCacheSize)
	return &Accountant{encoder: enc, cache: cache}
}

// Count returns the token count for text, byte-stream tokenized via the
// cl100k_base encoder when available, memoized by a stable hash of text.
func (a *Accountant) Count(text string) uint {
	key := core.ETagFromAny(text)
	if v, ok := a.cache.Get(key); ok {
		return v
	}
	n := a.countUncached(text)
	a.cache.Add(key, n)
	return n
}

func (a *Accountant) countUncached(text string) uint {
	if a.encoder == nil {
		return uint(len(text)+3) / 4 //nolint:mnd // chars÷4 fallback per spec §4.A
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	tokens := a.encoder.Encode(text, nil, nil)
	return uint(len(tokens))
}

// CountMessages returns the sum of Count(content) across messages plus a
// fixed per-message overhead of PerMessageOverhead to account for role
// framing.
func (a *Accountant) CountMessages(messages []core.Message) uint {
	var total uint
	for _, m := range messages {
		total += a.Count(m.Content) + PerMessageOverhead
	}
	return total
}

// BudgetCheck reports whether messages fit within soft/hard token limits and
// the resulting utilization ratio against hard.
func (a *Accountant) BudgetCheck(messages []core.Message, soft, hard uint) Budget {
	total := a.CountMessages(messages)
	var utilization float64
	if hard > 0 {
		utilization = float64(total) / float64(hard)
	}
	return Budget{
		Total:       total,
		WithinSoft:  total <= soft,
		WithinHard:  total <= hard,
		Utilization: utilization,
	}
}

