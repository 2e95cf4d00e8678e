package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DeskMetrics содержит метрики операций desk.
// Методы безопасно вызывать на nil: тогда метрики не пишутся.
type DeskMetrics struct {
	// Заказы
	ordersSaved  prometheus.Counter
	salesTotal   prometheus.Counter
	orderValue   prometheus.Histogram
	historyPurge prometheus.Counter

	// Каталог и резервные копии
	productChanges *prometheus.CounterVec
	imports        *prometheus.CounterVec
	seedRuns       *prometheus.CounterVec

	notices           *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	outboxEvents      prometheus.Counter

	catalogSize prometheus.Gauge
	historySize prometheus.Gauge
}

// NewDeskMetrics регистрирует метрики в DefaultRegisterer.
func NewDeskMetrics() *DeskMetrics {
	return NewDeskMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewDeskMetricsWithRegisterer регистрирует метрики в заданном реестре.
// Повторная регистрация возвращает уже существующие коллекторы.
func NewDeskMetricsWithRegisterer(registerer prometheus.Registerer) *DeskMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &DeskMetrics{
		ordersSaved: registerCounter(registerer, prometheus.CounterOpts{
			Name: "dairy_orders_saved_total",
			Help: "Total number of orders saved to history",
		}),
		salesTotal: registerCounter(registerer, prometheus.CounterOpts{
			Name: "dairy_sales_amount_total",
			Help: "Sum of saved order totals",
		}),
		orderValue: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "dairy_order_value",
			Help:    "Distribution of saved order totals",
			Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000, 25000},
		}),
		historyPurge: registerCounter(registerer, prometheus.CounterOpts{
			Name: "dairy_history_deleted_total",
			Help: "Total number of history records deleted",
		}),
		productChanges: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "dairy_catalog_changes_total",
			Help: "Catalog mutations grouped by operation",
		}, []string{"operation"}),
		imports: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "dairy_backup_imports_total",
			Help: "Backup imports grouped by result",
		}, []string{"result"}),
		seedRuns: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "dairy_catalog_seed_total",
			Help: "Default catalog seeding attempts grouped by result",
		}, []string{"result"}),
		notices: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "dairy_notices_total",
			Help: "Nothing-to-do notices returned to the user grouped by kind",
		}, []string{"kind"}),
		operationDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "dairy_operation_duration_seconds",
			Help:    "Duration of desk operations in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"operation"}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "dairy_outbox_events_total",
			Help: "Total number of domain events enqueued to the outbox",
		}),
		catalogSize: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "dairy_catalog_products",
			Help: "Number of products in the current catalog snapshot",
		}),
		historySize: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "dairy_history_records",
			Help: "Number of saved orders in history",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	return register(registerer, opts.Name, prometheus.Collector(prometheus.NewCounter(opts))).(prometheus.Counter)
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	return register(registerer, opts.Name, prometheus.NewCounterVec(opts, labels)).(*prometheus.CounterVec)
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	return register(registerer, opts.Name, prometheus.Collector(prometheus.NewGauge(opts))).(prometheus.Gauge)
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	return register(registerer, opts.Name, prometheus.Collector(prometheus.NewHistogram(opts))).(prometheus.Histogram)
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	return register(registerer, opts.Name, prometheus.NewHistogramVec(opts, labels)).(*prometheus.HistogramVec)
}

// register возвращает уже зарегистрированный коллектор того же типа, если он есть.
func register(registerer prometheus.Registerer, name string, collector prometheus.Collector) prometheus.Collector {
	err := registerer.Register(collector)
	if err == nil {
		return collector
	}
	alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError)
	if !ok {
		panic(fmt.Sprintf("register collector %q: %v", name, err))
	}
	if fmt.Sprintf("%T", alreadyRegistered.ExistingCollector) != fmt.Sprintf("%T", collector) {
		panic(fmt.Sprintf("collector %q already registered with unexpected type", name))
	}
	return alreadyRegistered.ExistingCollector
}

// RecordOrderSaved учитывает сохранённый заказ.
func (m *DeskMetrics) RecordOrderSaved(total float64) {
	if m == nil {
		return
	}
	m.ordersSaved.Inc()
	if total > 0 {
		m.salesTotal.Add(total)
	}
	m.orderValue.Observe(total)
}

// RecordHistoryDeleted учитывает удалённые записи истории.
func (m *DeskMetrics) RecordHistoryDeleted(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.historyPurge.Add(float64(count))
}

// RecordCatalogChange учитывает изменение каталога (add, update, remove).
func (m *DeskMetrics) RecordCatalogChange(operation string) {
	if m == nil {
		return
	}
	m.productChanges.WithLabelValues(operation).Inc()
}

// RecordImport учитывает попытку импорта резервной копии.
func (m *DeskMetrics) RecordImport(ok bool) {
	if m == nil {
		return
	}
	m.imports.WithLabelValues(resultLabel(ok)).Inc()
}

// RecordSeed учитывает результат начального заполнения каталога (seeded, skipped, failed).
func (m *DeskMetrics) RecordSeed(result string) {
	if m == nil {
		return
	}
	m.seedRuns.WithLabelValues(result).Inc()
}

// RecordNotice учитывает уведомление "нечего делать".
func (m *DeskMetrics) RecordNotice(kind string) {
	if m == nil {
		return
	}
	m.notices.WithLabelValues(kind).Inc()
}

// RecordOperationDuration записывает длительность операции.
func (m *DeskMetrics) RecordOperationDuration(operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *DeskMetrics) RecordOutboxEvent() {
	if m == nil {
		return
	}
	m.outboxEvents.Inc()
}

// SetSnapshotSizes обновляет размеры каталога и истории после Refresh.
func (m *DeskMetrics) SetSnapshotSizes(products, records int) {
	if m == nil {
		return
	}
	m.catalogSize.Set(float64(products))
	m.historySize.Set(float64(records))
}

func resultLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "invalid"
}
