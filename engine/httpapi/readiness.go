package httpapi

import (
	"context"
	"time"
)

const defaultProbeTimeout = 3 * time.Second

// Probe checks one dependency, returning a non-nil error if it is down.
type Probe func(ctx context.Context) error

// ReadinessChecker runs a named set of dependency probes for GET /ready
// (spec §6: "returns per-dependency pass/fail; 503 if required deps
// down").
type ReadinessChecker struct {
	probes  map[string]Probe
	timeout time.Duration
}

// NewReadinessChecker builds an empty ReadinessChecker; register probes
// with Register.
func NewReadinessChecker(timeout time.Duration) *ReadinessChecker {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	return &ReadinessChecker{probes: make(map[string]Probe), timeout: timeout}
}

// Register adds a named dependency probe.
func (r *ReadinessChecker) Register(name string, probe Probe) {
	r.probes[name] = probe
}

// Check runs every registered probe with the configured timeout, returning
// each dependency's result keyed by name.
func (r *ReadinessChecker) Check(ctx context.Context) map[string]error {
	results := make(map[string]error, len(r.probes))
	for name, probe := range r.probes {
		probeCtx, cancel := context.WithTimeout(ctx, r.timeout)
		results[name] = probe(probeCtx)
		cancel()
	}
	return results
}
