package observer

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wanderlyst/agentcore/engine/cache"
	"github.com/wanderlyst/agentcore/engine/core"
	"github.com/wanderlyst/agentcore/pkg/logger"
)

const (
	blockPopTimeout       = time.Second
	latencyAnomalyMS      = 5000
	errorAlertThreshold   = 5
	latencyReportSampleAt = 100
)

// Sink is an optional downstream the consumer initializes on start and
// drains on cancellation (spec §4.H "initialize optional sinks... drain
// in-flight sinks"). Error-tracker and remote-log integrations are
// external services outside this module's scope; callers that configure
// one implement Sink and wire it into Config.
type Sink interface {
	Name() string
	Init(ctx context.Context) error
	Close(ctx context.Context) error
}

// LatencyReport is the periodic aggregate emitted every
// latencyReportSampleAt buffered latency samples.
type LatencyReport struct {
	SampleCount int
	Avg         float64
	P50         float64
	P95         float64
	P99         float64
}

// Config controls consumer behavior.
type Config struct {
	AnomalyDetectionEnabled bool
	Sinks                   []Sink
}

// DefaultConfig returns the spec's documented default (anomaly detection
// on, no sinks).
func DefaultConfig() Config {
	return Config{AnomalyDetectionEnabled: true}
}

// Consumer drains the shared event queue, tallying counts and detecting
// anomalies (spec §4.H "Consumer loop").
type Consumer struct {
	client  cache.RedisInterface
	alerter *Alerter
	metrics *Metrics
	config  Config

	mu             sync.Mutex
	errorCounts    map[string]int
	apiCallCounts  map[string]int
	latencyBuffer  []float64
	lastReport     LatencyReport
	reportCallback func(LatencyReport)
}

// NewConsumer builds a Consumer. metrics may be nil if monitoring is
// disabled.
func NewConsumer(client cache.RedisInterface, alerter *Alerter, metrics *Metrics, cfg Config) *Consumer {
	return &Consumer{
		client:        client,
		alerter:       alerter,
		metrics:       metrics,
		config:        cfg,
		errorCounts:   make(map[string]int),
		apiCallCounts: make(map[string]int),
	}
}

// OnReport registers a callback invoked with each periodic latency report,
// primarily for tests; production callers may leave this unset and rely on
// the Prometheus gauge.
func (c *Consumer) OnReport(fn func(LatencyReport)) {
	c.reportCallback = fn
}

// Run initializes configured sinks, then loops block-popping the queue
// until ctx is canceled, at which point configured sinks are drained
// before returning.
func (c *Consumer) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)
	for _, sink := range c.config.Sinks {
		if err := sink.Init(ctx); err != nil {
			log.Error("observer: sink failed to initialize", "sink", sink.Name(), "error", err)
		}
	}
	defer c.drainSinks(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		result, err := c.client.BLPop(ctx, blockPopTimeout, QueueKey).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error("observer: BLPOP failed", "error", err)
			continue
		}
		if len(result) < 2 {
			continue
		}
		c.handle(ctx, result[1])
	}
}

func (c *Consumer) drainSinks(ctx context.Context) {
	log := logger.FromContext(ctx)
	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	for _, sink := range c.config.Sinks {
		if err := sink.Close(drainCtx); err != nil {
			log.Error("observer: sink failed to close cleanly", "sink", sink.Name(), "error", err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, raw string) {
	log := logger.FromContext(ctx)

	var event core.Event
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		log.Warn("observer: dropping undecodable event", "error", err)
		return
	}

	log.Info("observer event", "event_type", event.EventType, "thread_id", event.ThreadID, "event_id", event.EventID)
	c.metrics.recordEvent(ctx, string(event.EventType))

	switch event.EventType {
	case core.EventErrorOccurred:
		c.handleError(ctx, event)
	case core.EventNaverAPICalled:
		c.handleAPICall(ctx, event)
	}

	if event.LatencyMS != nil {
		c.handleLatency(ctx, event, float64(*event.LatencyMS))
	}

	if c.config.AnomalyDetectionEnabled {
		c.detectAnomaly(ctx, event)
	}
}

func (c *Consumer) handleError(ctx context.Context, event core.Event) {
	c.metrics.recordError(ctx, event.ErrorCode)

	c.mu.Lock()
	c.errorCounts[event.ErrorCode]++
	count := c.errorCounts[event.ErrorCode]
	c.mu.Unlock()

	if count >= errorAlertThreshold {
		c.alert(ctx, SeverityCritical, "error threshold reached", map[string]any{
			"error_code": event.ErrorCode,
			"count":      count,
			"thread_id":  event.ThreadID,
		})
	}
}

func (c *Consumer) handleAPICall(ctx context.Context, event core.Event) {
	apiType, _ := event.Payload["api_type"].(string)
	c.metrics.recordAPICall(ctx, apiType)

	c.mu.Lock()
	c.apiCallCounts[apiType]++
	c.mu.Unlock()
}

func (c *Consumer) handleLatency(ctx context.Context, _ core.Event, latencyMS float64) {
	c.mu.Lock()
	c.latencyBuffer = append(c.latencyBuffer, latencyMS)
	full := len(c.latencyBuffer) >= latencyReportSampleAt
	var report LatencyReport
	if full {
		report = summarizeLatency(c.latencyBuffer)
		c.lastReport = report
		c.latencyBuffer = nil
		c.errorCounts = make(map[string]int)
		c.apiCallCounts = make(map[string]int)
	}
	c.mu.Unlock()

	if full {
		c.metrics.recordLatencyReport(ctx, report)
		if c.reportCallback != nil {
			c.reportCallback(report)
		}
		logger.FromContext(ctx).Info("observer: periodic latency report",
			"sample_count", report.SampleCount, "avg_ms", report.Avg,
			"p50_ms", report.P50, "p95_ms", report.P95, "p99_ms", report.P99)
	}
}

func (c *Consumer) detectAnomaly(ctx context.Context, event core.Event) {
	switch {
	case event.EventType == core.EventPromptInjectionDetect:
		c.alert(ctx, SeverityCritical, "prompt injection detected", map[string]any{
			"thread_id": event.ThreadID, "user_id": event.UserID,
		})
	case event.EventType == core.EventRateLimited:
		logger.FromContext(ctx).Warn("observer: rate limited", "thread_id", event.ThreadID, "user_id", event.UserID)
	case event.LatencyMS != nil && *event.LatencyMS > latencyAnomalyMS:
		c.alert(ctx, SeverityWarning, "latency anomaly", map[string]any{
			"thread_id": event.ThreadID, "latency_ms": *event.LatencyMS,
		})
	}
}

func (c *Consumer) alert(ctx context.Context, severity Severity, message string, alertContext map[string]any) {
	c.metrics.recordAlert(ctx, severity)
	if c.alerter != nil {
		c.alerter.Dispatch(ctx, severity, message, alertContext)
	}
}

// summarizeLatency computes avg/p50/p95/p99 over samples (spec §4.H step
// 4). Samples are sorted ascending; percentiles use nearest-rank.
func summarizeLatency(samples []float64) LatencyReport {
	n := len(samples)
	sorted := make([]float64, n)
	copy(sorted, samples)
	sort.Float64s(sorted)

	var sum float64
	for _, s := range sorted {
		sum += s
	}

	return LatencyReport{
		SampleCount: n,
		Avg:         sum / float64(n),
		P50:         percentile(sorted, 0.50),
		P95:         percentile(sorted, 0.95),
		P99:         percentile(sorted, 0.99),
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(math.Ceil(p*float64(len(sorted)))) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}
