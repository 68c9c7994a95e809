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

	"github.com/sells-group/callsync/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertWriteFailureRate AlertType = "write_failure_rate"
	AlertFetchFailure     AlertType = "fetch_failure"
	AlertCyclePanic       AlertType = "cycle_panic"
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
func (a *Alerter) Evaluate(snap Snapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	// CRM write failure rate across the stored history.
	var failed, writes int
	for _, r := range snap.Recent {
		failed += r.Dispatch.Failed
		writes += r.Dispatch.Created + r.Dispatch.Updated + r.Dispatch.Failed
	}
	if writes > 0 && writes >= a.cfg.MinWrites {
		rate := float64(failed) / float64(writes)
		if rate > a.cfg.FailureRateThreshold {
			alerts = append(alerts, Alert{
				Type:     AlertWriteFailureRate,
				Severity: "high",
				Message: fmt.Sprintf(
					"CRM write failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d attempted in last %d cycles)",
					rate*100, a.cfg.FailureRateThreshold*100, failed, writes, len(snap.Recent),
				),
				Details: map[string]any{
					"failure_rate": rate,
					"threshold":    a.cfg.FailureRateThreshold,
					"failed":       failed,
					"attempted":    writes,
				},
				Timestamp: now,
			})
		}
	}

	// Call source unreachable for several cycles in a row.
	if n := a.cfg.FetchFailureCycles; n > 0 && len(snap.Recent) >= n {
		streak := 0
		for _, r := range snap.Recent[:n] {
			if r.Ingest.FetchError == "" {
				break
			}
			streak++
		}
		if streak == n {
			alerts = append(alerts, Alert{
				Type:     AlertFetchFailure,
				Severity: "high",
				Message:  fmt.Sprintf("call listing failed in the last %d cycles", n),
				Details: map[string]any{
					"last_error": snap.Recent[0].Ingest.FetchError,
				},
				Timestamp: now,
			})
		}
	}

	if last := snap.LastCycle; last != nil && last.Panic != "" {
		alerts = append(alerts, Alert{
			Type:     AlertCyclePanic,
			Severity: "critical",
			Message:  "last sync cycle panicked: " + last.Panic,
			Details: map[string]any{
				"started_at": last.StartedAt,
			},
			Timestamp: now,
		})
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
