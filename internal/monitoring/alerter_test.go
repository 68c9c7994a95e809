package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/callsync/internal/callsync"
	"github.com/sells-group/callsync/internal/config"
)

func testMonitoringConfig() config.MonitoringConfig {
	return config.MonitoringConfig{
		FailureRateThreshold: 0.10,
		MinWrites:            5,
		FetchFailureCycles:   3,
	}
}

func cycle(created, updated, failed int) callsync.CycleReport {
	return callsync.CycleReport{
		Dispatch: callsync.DispatchStats{Created: created, Updated: updated, Failed: failed},
	}
}

func snapshotOf(reports ...callsync.CycleReport) Snapshot {
	r := NewRecorder(20)
	for i := len(reports) - 1; i >= 0; i-- {
		r.Record(reports[i])
	}
	return r.Snapshot()
}

func TestAlerter_Evaluate_NoAlerts(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())
	alerts := a.Evaluate(snapshotOf(cycle(10, 9, 1), cycle(0, 0, 0)))
	assert.Empty(t, alerts)
}

func TestAlerter_Evaluate_EmptySnapshot(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())
	assert.Empty(t, a.Evaluate(Snapshot{}))
}

func TestAlerter_Evaluate_WriteFailureRate(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())

	alerts := a.Evaluate(snapshotOf(cycle(3, 3, 4)))
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertWriteFailureRate, alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "40.0%")
}

func TestAlerter_Evaluate_WriteFailureRateNeedsMinWrites(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())
	assert.Empty(t, a.Evaluate(snapshotOf(cycle(0, 1, 2))))
}

func TestAlerter_Evaluate_FetchFailureStreak(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())

	failing := callsync.CycleReport{Ingest: callsync.IngestStats{FetchError: "threec: unexpected status 503"}}
	ok := callsync.CycleReport{}

	alerts := a.Evaluate(snapshotOf(failing, failing, failing, ok))
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertFetchFailure, alerts[0].Type)
	assert.Equal(t, "threec: unexpected status 503", alerts[0].Details["last_error"])

	// Broken streak.
	assert.Empty(t, a.Evaluate(snapshotOf(failing, ok, failing, failing)))
}

func TestAlerter_Evaluate_Panic(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())
	alerts := a.Evaluate(snapshotOf(callsync.CycleReport{Panic: "nil map"}))
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertCyclePanic, alerts[0].Type)
	assert.Equal(t, "critical", alerts[0].Severity)
}

func TestAlerter_SendAlerts_Webhook(t *testing.T) {
	var received atomic.Int32
	var lastAlert Alert

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		_ = json.NewDecoder(r.Body).Decode(&lastAlert)
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cfg := testMonitoringConfig()
	cfg.WebhookURL = srv.URL
	a := NewAlerter(cfg)

	sent := a.SendAlerts(context.Background(), []Alert{
		{Type: AlertFetchFailure, Severity: "high", Message: "down"},
		{Type: AlertCyclePanic, Severity: "critical", Message: "boom"},
	})

	assert.Equal(t, 2, sent)
	assert.Equal(t, int32(2), received.Load())
	assert.Equal(t, AlertCyclePanic, lastAlert.Type)
}

func TestAlerter_SendAlerts_NoWebhook(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())
	assert.Zero(t, a.SendAlerts(context.Background(), []Alert{{Type: AlertCyclePanic}}))
}

func TestAlerter_SendAlerts_WebhookError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testMonitoringConfig()
	cfg.WebhookURL = srv.URL
	a := NewAlerter(cfg)

	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertFetchFailure}})
	assert.Zero(t, sent)
}
