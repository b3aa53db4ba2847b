package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты отправки отдельного заказа.
const (
	ResultSynced = "synced"
	ResultFailed = "failed"
)

// SyncMetrics содержит метрики очереди офлайн-заказов.
type SyncMetrics struct {
	// Счётчики операций
	ordersEnqueued   prometheus.Counter
	ordersSubmitted  *prometheus.CounterVec
	ordersRetried    prometheus.Counter
	ordersPruned     prometheus.Counter
	passesStarted    prometheus.Counter
	passesSkipped    prometheus.Counter
	persistFailures  prometheus.Counter
	connectivityFlip *prometheus.CounterVec

	// Гистограммы времени выполнения
	passDuration   prometheus.Histogram
	submitDuration prometheus.Histogram

	// Состояние очереди
	queueOrders *prometheus.GaugeVec
	online      prometheus.Gauge
	syncActive  prometheus.Gauge
}

// NewSyncMetrics регистрирует метрики в default registry.
func NewSyncMetrics() *SyncMetrics {
	return NewSyncMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewSyncMetricsWithRegisterer регистрирует метрики в переданном registry.
func NewSyncMetricsWithRegisterer(registerer prometheus.Registerer) *SyncMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &SyncMetrics{
		ordersEnqueued: registerCounter(registerer, prometheus.CounterOpts{
			Name: "vendorsync_orders_enqueued_total",
			Help: "Total number of offline orders added to the queue",
		}),
		ordersSubmitted: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "vendorsync_orders_submitted_total",
			Help: "Total number of order submissions grouped by result",
		}, []string{"result"}),
		ordersRetried: registerCounter(registerer, prometheus.CounterOpts{
			Name: "vendorsync_orders_retried_total",
			Help: "Total number of failed orders explicitly returned to pending",
		}),
		ordersPruned: registerCounter(registerer, prometheus.CounterOpts{
			Name: "vendorsync_orders_pruned_total",
			Help: "Total number of orders removed from the queue",
		}),
		passesStarted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "vendorsync_sync_passes_total",
			Help: "Total number of sync passes started",
		}),
		passesSkipped: registerCounter(registerer, prometheus.CounterOpts{
			Name: "vendorsync_sync_passes_skipped_total",
			Help: "Total number of sync triggers ignored because a pass was in flight",
		}),
		persistFailures: registerCounter(registerer, prometheus.CounterOpts{
			Name: "vendorsync_persist_failures_total",
			Help: "Total number of failed queue slot writes",
		}),
		connectivityFlip: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "vendorsync_connectivity_transitions_total",
			Help: "Total number of connectivity transitions grouped by new state",
		}, []string{"state"}),
		passDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "vendorsync_sync_pass_duration_seconds",
			Help:    "Duration of sync passes in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		submitDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "vendorsync_submit_duration_seconds",
			Help:    "Duration of individual order submissions in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}),
		queueOrders: registerGaugeVec(registerer, prometheus.GaugeOpts{
			Name: "vendorsync_queue_orders",
			Help: "Current number of orders in the offline queue grouped by status",
		}, []string{"status"}),
		online: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "vendorsync_online",
			Help: "1 when the order acceptance service is reachable",
		}),
		syncActive: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "vendorsync_sync_in_flight",
			Help: "1 while a sync pass is running",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerGaugeVec(registerer prometheus.Registerer, opts prometheus.GaugeOpts, labels []string) *prometheus.GaugeVec {
	collector := prometheus.NewGaugeVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.GaugeVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

// RecordEnqueued увеличивает счётчик новых заказов.
func (m *SyncMetrics) RecordEnqueued() {
	m.ordersEnqueued.Inc()
}

// RecordSubmit фиксирует результат и длительность отправки заказа.
func (m *SyncMetrics) RecordSubmit(result string, duration time.Duration) {
	m.ordersSubmitted.WithLabelValues(result).Inc()
	m.submitDuration.Observe(duration.Seconds())
}

// RecordRetried увеличивает счётчик ручных retry.
func (m *SyncMetrics) RecordRetried(n int) {
	m.ordersRetried.Add(float64(n))
}

// RecordPruned увеличивает счётчик удалённых из очереди заказов.
func (m *SyncMetrics) RecordPruned(n int) {
	m.ordersPruned.Add(float64(n))
}

// RecordPassStarted отмечает начало прохода синхронизации.
func (m *SyncMetrics) RecordPassStarted() {
	m.passesStarted.Inc()
	m.syncActive.Set(1)
}

// RecordPassFinished отмечает конец прохода и его длительность.
func (m *SyncMetrics) RecordPassFinished(duration time.Duration) {
	m.passDuration.Observe(duration.Seconds())
	m.syncActive.Set(0)
}

// RecordPassSkipped отмечает триггер, проигнорированный из-за активного прохода.
func (m *SyncMetrics) RecordPassSkipped() {
	m.passesSkipped.Inc()
}

// RecordPersistFailure увеличивает счётчик неудачных записей слота.
func (m *SyncMetrics) RecordPersistFailure() {
	m.persistFailures.Inc()
}

// RecordConnectivity фиксирует текущее состояние сети.
func (m *SyncMetrics) RecordConnectivity(online bool) {
	state := "offline"
	value := 0.0
	if online {
		state = "online"
		value = 1
	}
	m.connectivityFlip.WithLabelValues(state).Inc()
	m.online.Set(value)
}

// SetQueueSizes обновляет gauge размеров очереди.
func (m *SyncMetrics) SetQueueSizes(pending, synced, failed int) {
	m.queueOrders.WithLabelValues("pending").Set(float64(pending))
	m.queueOrders.WithLabelValues("synced").Set(float64(synced))
	m.queueOrders.WithLabelValues("failed").Set(float64(failed))
}
