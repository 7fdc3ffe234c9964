package observer

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics bundles the instruments the consumer loop exposes on the
// process's /metrics surface, following the teacher's
// engine/infra/monitoring.ExecutionMetrics shape: one counter per tallied
// dimension, an Int64Counter keyed by label attributes rather than one
// instrument per label value.
type Metrics struct {
	eventsTotal       metric.Int64Counter
	errorsTotal       metric.Int64Counter
	apiCallsTotal     metric.Int64Counter
	alertsTotal       metric.Int64Counter
	latencyPercentile metric.Float64Gauge
}

// NewMetrics builds the observer's instruments against meter. A nil meter
// (monitoring disabled) yields a zero-value Metrics whose record* methods
// are safe no-ops.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		return &Metrics{}, nil
	}
	events, err := meter.Int64Counter(
		"agentcore_observer_events_total",
		metric.WithDescription("Total events processed by the observer consumer, labeled by event_type"),
	)
	if err != nil {
		return nil, fmt.Errorf("create events counter: %w", err)
	}
	errs, err := meter.Int64Counter(
		"agentcore_observer_errors_total",
		metric.WithDescription("Total ERROR_OCCURRED events, labeled by error_code"),
	)
	if err != nil {
		return nil, fmt.Errorf("create errors counter: %w", err)
	}
	apiCalls, err := meter.Int64Counter(
		"agentcore_observer_api_calls_total",
		metric.WithDescription("Total NAVER_API_CALLED events, labeled by api_type"),
	)
	if err != nil {
		return nil, fmt.Errorf("create api calls counter: %w", err)
	}
	alerts, err := meter.Int64Counter(
		"agentcore_observer_alerts_total",
		metric.WithDescription("Total alerts dispatched, labeled by severity"),
	)
	if err != nil {
		return nil, fmt.Errorf("create alerts counter: %w", err)
	}
	latency, err := meter.Float64Gauge(
		"agentcore_observer_latency_ms",
		metric.WithDescription("Latency percentile from the most recent periodic report, labeled by quantile"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("create latency gauge: %w", err)
	}
	return &Metrics{
		eventsTotal:       events,
		errorsTotal:       errs,
		apiCallsTotal:     apiCalls,
		alertsTotal:       alerts,
		latencyPercentile: latency,
	}, nil
}

func (m *Metrics) recordEvent(ctx context.Context, eventType string) {
	if m == nil || m.eventsTotal == nil {
		return
	}
	m.eventsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("event_type", eventType)))
}

func (m *Metrics) recordError(ctx context.Context, errorCode string) {
	if m == nil || m.errorsTotal == nil {
		return
	}
	m.errorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("error_code", errorCode)))
}

func (m *Metrics) recordAPICall(ctx context.Context, apiType string) {
	if m == nil || m.apiCallsTotal == nil {
		return
	}
	m.apiCallsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("api_type", apiType)))
}

func (m *Metrics) recordAlert(ctx context.Context, severity Severity) {
	if m == nil || m.alertsTotal == nil {
		return
	}
	m.alertsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("severity", string(severity))))
}

func (m *Metrics) recordLatencyReport(ctx context.Context, report LatencyReport) {
	if m == nil || m.latencyPercentile == nil {
		return
	}
	for quantile, value := range map[string]float64{
		"avg": report.Avg, "p50": report.P50, "p95": report.P95, "p99": report.P99,
	} {
		m.latencyPercentile.Record(ctx, value, metric.WithAttributes(attribute.String("quantile", quantile)))
	}
}
