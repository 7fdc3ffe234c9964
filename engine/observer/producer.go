// Package observer implements the Observer Bus (spec §4.H): a producer
// that enqueues typed events to a shared Redis list, and a consumer that
// drains, logs, counts, detects anomalies, periodically aggregates latency,
// and dispatches alerts. Grounded on the teacher's engine/cache Redis
// wrapper for the queue transport and pkg/logger for structured logging;
// no direct teacher analog exists for the consumer loop itself, since the
// teacher has no event-bus middleware — its shape follows
// original_source's ObserverAgent (log-and-drop producer, blocking-pop
// consumer, sliding-window anomaly detection).
package observer

import (
	"context"
	"encoding/json"

	"github.com/wanderlyst/agentcore/engine/cache"
	"github.com/wanderlyst/agentcore/engine/core"
	"github.com/wanderlyst/agentcore/pkg/logger"
)

// QueueKey is the shared Redis list the producer pushes to and the
// consumer blocks on (spec §6 Redis key layout).
const QueueKey = "agent:events"

// Producer enqueues events without blocking the caller's turn.
type Producer struct {
	client cache.RedisInterface
}

// NewProducer builds a Producer over the given Redis client.
func NewProducer(client cache.RedisInterface) *Producer {
	return &Producer{client: client}
}

// Emit JSON-encodes and RPushes event to the shared queue. Failure to
// enqueue is logged and dropped — it must never fail the caller's turn
// (spec §4.H "Non-blocking on the producer side").
func (p *Producer) Emit(ctx context.Context, event core.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		logger.FromContext(ctx).Error("observer: failed to encode event", "event_type", event.EventType, "error", err)
		return
	}
	if err := p.client.RPush(ctx, QueueKey, payload).Err(); err != nil {
		logger.FromContext(ctx).Error("observer: failed to enqueue event", "event_type", event.EventType, "error", err)
	}
}
