package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestChatMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewChatMetrics(reg)
	m.ObserveTurn("COLLECTING", "ok", 0.5)
	m.ObserveTurn("COLLECTING", "ok", 0.2)
	m.ObserveFieldCaptured("phone")
	m.ObserveLeadCaptured()
	m.ObserveSync("success")
	m.ObserveCompletion("ok", 1.2)
	m.ObserveStoreError("save")

	var metric dto.Metric
	if err := m.turnsTotal.WithLabelValues("COLLECTING", "ok").Write(&metric); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	if got := metric.GetCounter().GetValue(); got != 2 {
		t.Fatalf("expected 2 turns, got %v", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) != 7 {
		t.Fatalf("expected 7 metric families, got %d", len(families))
	}

	metric.Reset()
	if err := m.storeErrorsTotal.WithLabelValues("save").Write(&metric); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	if got := metric.GetCounter().GetValue(); got != 1 {
		t.Fatalf("expected 1 store error, got %v", got)
	}
}

func TestChatMetricsNilSafe(t *testing.T) {
	var m *ChatMetrics
	m.ObserveTurn("GREETING", "ok", 0.1)
	m.ObserveFieldCaptured("email")
	m.ObserveLeadCaptured()
	m.ObserveSync("failed")
	m.ObserveCompletion("error", 0.1)
	m.ObserveStoreError("get")
}
