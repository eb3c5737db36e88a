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

	"github.com/sells-group/community-solar/internal/config"
	"github.com/sells-group/community-solar/internal/store"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertLoadFailure    AlertType = "load_failure"
	AlertRowFailureRate AlertType = "row_failure_rate"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
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

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if snap.FailedLoads > 0 {
		var tables []string
		for _, l := range snap.RecentLoads {
			if l.Status == store.LoadFailed {
				tables = append(tables, l.Table)
			}
		}
		alerts = append(alerts, Alert{
			Type:     AlertLoadFailure,
			Severity: "high",
			Message: fmt.Sprintf(
				"%d of the last %d table load(s) failed",
				snap.FailedLoads, len(snap.RecentLoads),
			),
			Details: map[string]any{
				"failed_count": snap.FailedLoads,
				"tables":       tables,
			},
			Timestamp: now,
		})
	}

	// Small loads are too noisy to rate.
	processed := snap.LoadedRows + snap.FailedRows
	if a.cfg.RowFailureThreshold > 0 && processed >= 100 {
		rate := float64(snap.FailedRows) / float64(processed)
		if rate > a.cfg.RowFailureThreshold {
			alerts = append(alerts, Alert{
				Type:     AlertRowFailureRate,
				Severity: "medium",
				Message: fmt.Sprintf(
					"Row failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d rows)",
					rate*100, a.cfg.RowFailureThreshold*100, snap.FailedRows, processed,
				),
				Details: map[string]any{
					"failure_rate": rate,
					"threshold":    a.cfg.RowFailureThreshold,
					"failed_rows":  snap.FailedRows,
					"rows":         processed,
				},
				Timestamp: now,
			})
		}
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
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
