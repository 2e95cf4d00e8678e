package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestNewDeskMetricsWithRegisterer(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewDeskMetricsWithRegisterer(reg)

	if m.ordersSaved == nil || m.salesTotal == nil || m.orderValue == nil {
		t.Fatal("order collectors should not be nil")
	}
	if m.productChanges == nil || m.imports == nil || m.seedRuns == nil {
		t.Fatal("catalog collectors should not be nil")
	}
	if m.operationDuration == nil || m.catalogSize == nil || m.historySize == nil {
		t.Fatal("operation collectors should not be nil")
	}
}

func TestNewDeskMetrics_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewDeskMetricsWithRegisterer(reg)
	second := NewDeskMetricsWithRegisterer(reg)

	first.RecordOrderSaved(10)
	second.RecordOrderSaved(20)

	if got := testutil.ToFloat64(first.ordersSaved); got != 2 {
		t.Fatalf("expected shared counter value 2, got %v", got)
	}
	if got := testutil.ToFloat64(second.salesTotal); got != 30 {
		t.Fatalf("expected sales total 30, got %v", got)
	}
}

func TestRegister_PanicsOnTypeMismatch(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGauge(prometheus.GaugeOpts{Name: "dairy_orders_saved_total", Help: "gauge"}))

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for collector type mismatch")
		}
	}()
	NewDeskMetricsWithRegisterer(reg)
}

func TestDeskMetrics_Recorders(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewDeskMetricsWithRegisterer(reg)

	m.RecordOrderSaved(150)
	m.RecordHistoryDeleted(3)
	m.RecordHistoryDeleted(0)
	m.RecordCatalogChange("add")
	m.RecordCatalogChange("add")
	m.RecordCatalogChange("remove")
	m.RecordImport(true)
	m.RecordImport(false)
	m.RecordSeed("seeded")
	m.RecordNotice("nothing_to_save")
	m.RecordOutboxEvent()
	m.RecordOperationDuration("save_order", 5*time.Millisecond)
	m.SetSnapshotSizes(12, 4)

	if got := testutil.ToFloat64(m.historyPurge); got != 3 {
		t.Fatalf("history deleted = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.productChanges.WithLabelValues("add")); got != 2 {
		t.Fatalf("catalog add = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.imports.WithLabelValues("invalid")); got != 1 {
		t.Fatalf("invalid imports = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.catalogSize); got != 12 {
		t.Fatalf("catalog size = %v, want 12", got)
	}
	if got := testutil.ToFloat64(m.historySize); got != 4 {
		t.Fatalf("history size = %v, want 4", got)
	}

	var metric dto.Metric
	if err := m.orderValue.Write(&metric); err != nil {
		t.Fatalf("write histogram: %v", err)
	}
	if metric.GetHistogram().GetSampleCount() != 1 || metric.GetHistogram().GetSampleSum() != 150 {
		t.Fatalf("unexpected order value histogram: %v", metric.GetHistogram())
	}

	if n := testutil.CollectAndCount(m.operationDuration); n != 1 {
		t.Fatalf("expected one operation series, got %d", n)
	}
}

func TestDeskMetrics_NilReceiverIsNoop(t *testing.T) {
	var m *DeskMetrics

	m.RecordOrderSaved(1)
	m.RecordHistoryDeleted(1)
	m.RecordCatalogChange("add")
	m.RecordImport(true)
	m.RecordSeed("failed")
	m.RecordNotice("no_orders")
	m.RecordOperationDuration("quote", time.Millisecond)
	m.RecordOutboxEvent()
	m.SetSnapshotSizes(1, 1)
}
