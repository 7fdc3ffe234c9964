package observer

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/wanderlyst/agentcore/pkg/logger"
)

// Severity is the closed set of alert severities the consumer can raise.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

const alertWebhookTimeout = 5 * time.Second

// Alerter dispatches alerts to a structured logger and, if configured, a
// webhook (spec §4.H "Alert dispatch").
type Alerter struct {
	webhookURL string
	http       *resty.Client
}

// NewAlerter builds an Alerter. An empty webhookURL disables the webhook
// POST; alerts are still logged.
func NewAlerter(webhookURL string) *Alerter {
	return &Alerter{
		webhookURL: webhookURL,
		http:       resty.New().SetTimeout(alertWebhookTimeout),
	}
}

type webhookPayload struct {
	Severity string         `json:"severity"`
	Message  string         `json:"message"`
	Context  map[string]any `json:"context,omitempty"`
}

// Dispatch logs the alert at a severity-appropriate level and, when a
// webhook is configured, POSTs a compact JSON payload. Webhook failures are
// logged, never propagated — an alert sink outage must not interrupt the
// consumer loop.
func (a *Alerter) Dispatch(ctx context.Context, severity Severity, message string, alertContext map[string]any) {
	log := logger.FromContext(ctx)
	if severity == SeverityCritical {
		log.Error("observer alert", "severity", severity, "message", message, "context", alertContext)
	} else {
		log.Warn("observer alert", "severity", severity, "message", message, "context", alertContext)
	}

	if a.webhookURL == "" {
		return
	}
	resp, err := a.http.R().
		SetContext(ctx).
		SetBody(webhookPayload{Severity: string(severity), Message: message, Context: alertContext}).
		Post(a.webhookURL)
	if err != nil {
		log.Error("observer: alert webhook request failed", "error", err)
		return
	}
	if resp.IsError() {
		log.Error("observer: alert webhook returned an error status", "status", resp.StatusCode())
	}
}
