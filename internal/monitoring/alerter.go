package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/catalog-enricher/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertErrorRate   AlertType = "product_error_rate"
	AlertBatchHalted AlertType = "batch_halted"
	AlertCostOverrun AlertType = "cost_overrun"
)

// minFinished is the number of finished products below which the error
// rate is not evaluated.
const minFinished = 5

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	BatchID   string         `json:"batch_id,omitempty"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a Snapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled reports whether alerts have somewhere to go.
func (a *Alerter) Enabled() bool { return a.cfg.WebhookURL != "" }

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()
	scope := a.scope(snap)

	if snap.Halted {
		alerts = append(alerts, Alert{
			Type:      AlertBatchHalted,
			Severity:  "critical",
			BatchID:   snap.BatchID,
			Message:   fmt.Sprintf("Batch %s halted: %s", scope, snap.HaltReason),
			Details:   map[string]any{"pending": snap.Pending, "completed": snap.Completed},
			Timestamp: now,
		})
	}

	finished := snap.Completed + snap.Failed
	if finished >= minFinished && snap.FailRate > a.cfg.FailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertErrorRate,
			Severity: "high",
			BatchID:  snap.BatchID,
			Message: fmt.Sprintf(
				"Product error rate %.1f%% exceeds threshold %.1f%% (%d failed / %d finished, %s)",
				snap.FailRate*100, a.cfg.FailureRateThreshold*100,
				snap.Failed, finished, scope,
			),
			Details: map[string]any{
				"fail_rate": snap.FailRate,
				"threshold": a.cfg.FailureRateThreshold,
				"failed":    snap.Failed,
				"finished":  finished,
			},
			Timestamp: now,
		})
	}

	if a.cfg.CostThresholdUSD > 0 && snap.CostUSD > a.cfg.CostThresholdUSD {
		alerts = append(alerts, Alert{
			Type:     AlertCostOverrun,
			Severity: "high",
			BatchID:  snap.BatchID,
			Message: fmt.Sprintf(
				"Estimated cost $%.2f exceeds threshold $%.2f (%s)",
				snap.CostUSD, a.cfg.CostThresholdUSD, scope,
			),
			Details: map[string]any{
				"cost_usd":      snap.CostUSD,
				"threshold_usd": a.cfg.CostThresholdUSD,
				"products":      snap.Products,
			},
			Timestamp: now,
		})
	}

	return alerts
}

func (a *Alerter) scope(snap *Snapshot) string {
	if snap.BatchID != "" {
		if snap.BatchName != "" {
			return fmt.Sprintf("%s (%s)", snap.BatchName, snap.BatchID)
		}
		return snap.BatchID
	}
	return fmt.Sprintf("%d batch(es) in last %dh", snap.Batches, snap.LookbackHours)
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if !a.Enabled() || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
