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

	"github.com/sells-group/catalog-enricher/internal/config"
)

func testAlerter(webhook string) *Alerter {
	return NewAlerter(config.MonitoringConfig{
		WebhookURL:           webhook,
		FailureRateThreshold: 0.10,
		CostThresholdUSD:     5.0,
	})
}

func TestAlerter_Evaluate(t *testing.T) {
	tests := []struct {
		name  string
		snap  Snapshot
		types []AlertType
	}{
		{
			name: "healthy",
			snap: Snapshot{BatchID: "b1", Completed: 95, Failed: 5, FailRate: 0.05, CostUSD: 1.2},
		},
		{
			name:  "error rate",
			snap:  Snapshot{BatchID: "b1", Completed: 12, Failed: 8, FailRate: 0.4},
			types: []AlertType{AlertErrorRate},
		},
		{
			name: "too few finished for error rate",
			snap: Snapshot{BatchID: "b1", Completed: 1, Failed: 2, FailRate: 0.666},
		},
		{
			name:  "cost overrun",
			snap:  Snapshot{BatchID: "b1", Completed: 48, Failed: 2, FailRate: 0.04, CostUSD: 12.5},
			types: []AlertType{AlertCostOverrun},
		},
		{
			name:  "halted",
			snap:  Snapshot{BatchID: "b1", Completed: 3, Pending: 97, Halted: true, HaltReason: "auth failed"},
			types: []AlertType{AlertBatchHalted},
		},
		{
			name:  "everything",
			snap:  Snapshot{BatchID: "b1", Completed: 10, Failed: 10, FailRate: 0.5, CostUSD: 30, Halted: true},
			types: []AlertType{AlertBatchHalted, AlertErrorRate, AlertCostOverrun},
		},
	}

	a := testAlerter("")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alerts := a.Evaluate(&tt.snap)
			var got []AlertType
			for _, al := range alerts {
				got = append(got, al.Type)
				assert.Equal(t, "b1", al.BatchID)
			}
			assert.Equal(t, tt.types, got)
		})
	}
}

func TestAlerter_Evaluate_Messages(t *testing.T) {
	a := testAlerter("")

	alerts := a.Evaluate(&Snapshot{BatchID: "b1", BatchName: "lampade", Completed: 12, Failed: 8, FailRate: 0.4})
	require.Len(t, alerts, 1)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "40.0%")
	assert.Contains(t, alerts[0].Message, "lampade (b1)")

	alerts = a.Evaluate(&Snapshot{Batches: 3, LookbackHours: 24, CostUSD: 7.25})
	require.Len(t, alerts, 1)
	assert.Contains(t, alerts[0].Message, "$7.25")
	assert.Contains(t, alerts[0].Message, "3 batch(es) in last 24h")

	alerts = a.Evaluate(&Snapshot{BatchID: "b1", Halted: true, HaltReason: "pipeline: batch halted at SKU A1"})
	require.Len(t, alerts, 1)
	assert.Equal(t, "critical", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "SKU A1")
}

func TestAlerter_CostThresholdDisabled(t *testing.T) {
	a := NewAlerter(config.MonitoringConfig{FailureRateThreshold: 0.10})
	assert.Empty(t, a.Evaluate(&Snapshot{CostUSD: 1000}))
}

func TestAlerter_SendAlerts_Webhook(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var alert Alert
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&alert))
		assert.NotEmpty(t, alert.Type)
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a := testAlerter(ts.URL)
	alerts := []Alert{
		{Type: AlertErrorRate, Severity: "high", Message: "test 1"},
		{Type: AlertCostOverrun, Severity: "high", Message: "test 2"},
	}

	sent := a.SendAlerts(context.Background(), alerts)
	assert.Equal(t, 2, sent)
	assert.Equal(t, int32(2), received.Load())
}

func TestAlerter_SendAlerts_NoWebhook(t *testing.T) {
	a := testAlerter("")
	assert.False(t, a.Enabled())
	assert.Equal(t, 0, a.SendAlerts(context.Background(), []Alert{{Type: AlertErrorRate}}))
}

func TestAlerter_SendAlerts_WebhookError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	a := testAlerter(ts.URL)
	sent := a.SendAlerts(context.Background(), []Alert{{Type: AlertErrorRate, Message: "x"}})
	assert.Equal(t, 0, sent)
}
