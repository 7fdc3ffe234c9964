// Package monitoring bootstraps the process's OpenTelemetry meter provider
// and exposes it on a Prometheus-scrapable /metrics surface, following the
// teacher's engine/infra/monitoring.Service pattern: a Prometheus registry
// backs an OTel metric exporter, which backs a meter provider, which hands
// out the single meter every instrumented package (engine/observer) takes
// as a constructor argument.
package monitoring

import (
	"context"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Service owns the meter provider and the Prometheus registry backing it.
type Service struct {
	registry    *prom.Registry
	provider    *sdkmetric.MeterProvider
	meter       metric.Meter
	initialized bool
	initErr     error
}

// NewDisabled returns a Service whose ExporterHandler always reports 503 and
// whose Meter returns a no-op meter, for processes that run with metrics
// turned off.
func NewDisabled() *Service {
	return &Service{meter: otel.GetMeterProvider().Meter("agentcore")}
}

// New builds a registry-backed meter provider. ctx is only consulted for
// cancellation before any exporter I/O begins; construction itself is
// synchronous and local.
func New(ctx context.Context, meterName string) (*Service, error) {
	if err := ctx.Err(); err != nil {
		return &Service{meter: otel.GetMeterProvider().Meter(meterName), initErr: err}, err
	}

	registry := prom.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return &Service{meter: otel.GetMeterProvider().Meter(meterName), initErr: err}, err
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	meter := provider.Meter(meterName)

	return &Service{
		registry:    registry,
		provider:    provider,
		meter:       meter,
		initialized: true,
	}, nil
}

// Meter returns the meter every instrumented package's constructor takes.
func (s *Service) Meter() metric.Meter {
	return s.meter
}

// IsInitialized reports whether a real Prometheus-backed provider is active.
func (s *Service) IsInitialized() bool {
	return s.initialized
}

// InitializationError returns the error from New, if any.
func (s *Service) InitializationError() error {
	return s.initErr
}

// SetAsGlobal installs this service's provider as the process-wide OTel
// default, so packages that call otel.Meter(name) directly also get it.
func (s *Service) SetAsGlobal() {
	if s.provider != nil {
		otel.SetMeterProvider(s.provider)
	}
}

// ExporterHandler returns the /metrics HTTP handler. It answers 503 until
// the service is initialized, matching the teacher's monitoring.Service
// convention of never panicking on a disabled monitoring stack.
func (s *Service) ExporterHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.initialized {
			http.Error(w, "metrics not initialized", http.StatusServiceUnavailable)
			return
		}
		promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}

// Shutdown flushes and releases the meter provider. A zero-value timeout
// falls back to a 5 second bound.
func (s *Service) Shutdown(ctx context.Context) error {
	if s.provider == nil {
		return nil
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	return s.provider.Shutdown(ctx)
}
