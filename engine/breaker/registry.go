// Package breaker implements the per-dependency circuit breaker registry
// (spec §4.D): a process-local named registry holding one breaker per
// protected dependency (LLM, vector-store, external map API), wrapping
// github.com/sony/gobreaker the way the pack's agent-planner example does
// (newBreaker(name) factory, ReadyToTrip on consecutive failures,
// OnStateChange logged) generalized from a single hardcoded pair of
// breakers into a named registry sized to spec.md's defaults
// (Ft=5, recovery_timeout=30s, half_open_max_calls=3, St=2).
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/wanderlyst/agentcore/engine/core"
	"github.com/wanderlyst/agentcore/pkg/logger"
)

// Config holds the thresholds for a single named breaker.
type Config struct {
	FailureThreshold int
	RecoveryTimeout  time.Duration
	HalfOpenMaxCalls int
	SuccessThreshold int
	// IsSuccessful, when set, overrides the default success classification
	// (by default, any non-nil error counts as a failure). This is the hook
	// spec §4.D calls "excluded_exceptions".
	IsSuccessful func(err error) bool
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		HalfOpenMaxCalls: 3,
		SuccessThreshold: 2,
	}
}

// Registry is a global named registry of breakers, one per protected
// dependency, matching spec §4.D's "global named registry" note.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
	configs  map[string]Config
	ctx      context.Context
}

// NewRegistry constructs an empty Registry. ctx is used only to obtain a
// logger for OnStateChange transitions.
func NewRegistry(ctx context.Context) *Registry {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Registry{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		configs:  make(map[string]Config),
		ctx:      ctx,
	}
}

// Register creates (or replaces) the named breaker with cfg.
func (r *Registry) Register(name string, cfg Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[name] = cfg
	r.breakers[name] = r.newBreaker(name, cfg)
}

func (r *Registry) newBreaker(name string, cfg Config) *gobreaker.CircuitBreaker {
	log := logger.FromContext(r.ctx)
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(cfg.HalfOpenMaxCalls),
		Timeout:     cfg.RecoveryTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.FailureThreshold)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Info("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	}
	if cfg.IsSuccessful != nil {
		settings.IsSuccessful = cfg.IsSuccessful
	}
	// In gobreaker, MaxRequests both caps the half-open probes and sets how
	// many consecutive half-open successes close the breaker. When
	// SuccessThreshold is set and differs from HalfOpenMaxCalls, MaxRequests
	// takes SuccessThreshold and HalfOpenMaxCalls is not applied.
	if cfg.SuccessThreshold > 0 && cfg.SuccessThreshold != cfg.HalfOpenMaxCalls {
		settings.MaxRequests = uint32(cfg.SuccessThreshold)
	}
	return gobreaker.NewCircuitBreaker(settings)
}

// get returns the named breaker, registering it with DefaultConfig if it
// doesn't exist yet — so callers don't need an explicit bootstrap step for
// every dependency name they invent.
func (r *Registry) get(name string) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[name]; ok {
		return b
	}
	cfg := DefaultConfig()
	r.configs[name] = cfg
	b := r.newBreaker(name, cfg)
	r.breakers[name] = b
	return b
}

// ErrCircuitOpen is wrapped by core.Error when a breaker is open or its
// half-open probe budget is exhausted.
var ErrCircuitOpen = errors.New("breaker: circuit open")

// Call executes fn through the named breaker. On gobreaker's open-state or
// too-many-requests errors, it returns a core.Error with KindBusy carrying
// the breaker's configured recovery timeout as RetryAfter.
func (r *Registry) Call(ctx context.Context, name string, fn func(ctx context.Context) (any, error)) (any, error) {
	cb := r.get(name)
	result, err := cb.Execute(func() (any, error) {
		return fn(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			r.mu.Lock()
			cfg := r.configs[name]
			r.mu.Unlock()
			return nil, core.NewKindError(core.KindBusy, ErrCircuitOpen, core.CodeCircuitOpen, map[string]any{
				"breaker": name,
			}).WithRetryAfter(cfg.RecoveryTimeout)
		}
		return nil, err
	}
	return result, nil
}

// Stats reports the observable state of a named breaker, per spec §4.D
// ("Stats are observable").
type Stats struct {
	Name   string
	State  string
	Counts gobreaker.Counts
}

// Stats returns the current state for every registered breaker.
func (r *Registry) Stats() []Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Stats, 0, len(r.breakers))
	for name, b := range r.breakers {
		out = append(out, Stats{Name: name, State: b.State().String(), Counts: b.Counts()})
	}
	return out
}
