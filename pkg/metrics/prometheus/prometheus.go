package prometheus

import (
	"time"

	"chat-to-rich/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements MetricsCollector for Prometheus.
// It also implements prometheus.Collector so it can be registered as one unit.
type PrometheusCollector struct {
	namespace string

	// Storage backends
	storageGets    *prometheus.CounterVec
	storageSets    *prometheus.CounterVec
	storageDeletes *prometheus.CounterVec
	storageErrors  *prometheus.CounterVec

	// Circuit breaker
	circuitOpens *prometheus.CounterVec
	circuitState *prometheus.GaugeVec

	// Snapshot writer
	queueDepth      *prometheus.GaugeVec
	coalescedWrites *prometheus.CounterVec
	droppedWrites   *prometheus.CounterVec
	asyncWrites     *prometheus.CounterVec

	// Histograms
	getLatency   *prometheus.HistogramVec
	setLatency   *prometheus.HistogramVec
	asyncLatency *prometheus.HistogramVec

	// Ledger
	mutations *prometheus.CounterVec
	balance   prometheus.Gauge
}

// NewPrometheusCollector creates a new Prometheus metrics collector.
func NewPrometheusCollector(namespace string) *PrometheusCollector {
	latencyBuckets := prometheus.ExponentialBuckets(0.0001, 2, 15) // 0.1ms to ~3s

	return &PrometheusCollector{
		namespace: namespace,
		storageGets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_gets_total",
				Help:      "Total number of snapshot reads per backend and result",
			},
			[]string{"backend", "result"},
		),
		storageSets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_sets_total",
				Help:      "Total number of snapshot writes per backend and status",
			},
			[]string{"backend", "status"},
		),
		storageDeletes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_deletes_total",
				Help:      "Total number of snapshot deletes per backend and status",
			},
			[]string{"backend", "status"},
		),
		storageErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_errors_total",
				Help:      "Total number of storage errors per backend, operation and error type",
			},
			[]string{"backend", "operation", "error_type"},
		),
		circuitOpens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_opens_total",
				Help:      "Total number of circuit breaker opens per backend",
			},
			[]string{"backend"},
		),
		circuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_state",
				Help:      "Current circuit breaker state per backend (0=closed, 1=open, 2=half-open)",
			},
			[]string{"backend"},
		),
		queueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "snapshot_queue_depth",
				Help:      "Snapshots waiting to be written per backend",
			},
			[]string{"backend"},
		),
		coalescedWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "snapshot_coalesced_total",
				Help:      "Snapshots superseded by a newer one before being written",
			},
			[]string{"backend"},
		),
		droppedWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "snapshot_dropped_total",
				Help:      "Snapshots rejected because the writer was full or closed",
			},
			[]string{"backend"},
		),
		asyncWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "snapshot_writes_total",
				Help:      "Snapshots written by the async writer per backend and status",
			},
			[]string{"backend", "status"},
		),
		getLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "storage_get_duration_seconds",
				Help:      "Snapshot read latency",
				Buckets:   latencyBuckets,
			},
			[]string{"backend"},
		),
		setLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "storage_set_duration_seconds",
				Help:      "Snapshot write latency",
				Buckets:   latencyBuckets,
			},
			[]string{"backend"},
		),
		asyncLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "snapshot_write_duration_seconds",
				Help:      "Async snapshot write latency",
				Buckets:   latencyBuckets,
			},
			[]string{"backend"},
		),
		mutations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_mutations_total",
				Help:      "Ledger mutations per operation",
			},
			[]string{"operation"},
		),
		balance: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ledger_balance",
				Help:      "Current balance after the last mutation",
			},
		),
	}
}

func (pc *PrometheusCollector) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		pc.storageGets,
		pc.storageSets,
		pc.storageDeletes,
		pc.storageErrors,
		pc.circuitOpens,
		pc.circuitState,
		pc.queueDepth,
		pc.coalescedWrites,
		pc.droppedWrites,
		pc.asyncWrites,
		pc.getLatency,
		pc.setLatency,
		pc.asyncLatency,
		pc.mutations,
		pc.balance,
	}
}

// Register registers all metrics with the given registry.
func (pc *PrometheusCollector) Register(registry prometheus.Registerer) error {
	for _, c := range pc.collectors() {
		if err := registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Describe implements prometheus.Collector.
func (pc *PrometheusCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, c := range pc.collectors() {
		c.Describe(ch)
	}
}

// Collect implements prometheus.Collector.
func (pc *PrometheusCollector) Collect(ch chan<- prometheus.Metric) {
	for _, c := range pc.collectors() {
		c.Collect(ch)
	}
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordGet records a snapshot read.
func (pc *PrometheusCollector) RecordGet(backend string, found bool, duration time.Duration) {
	result := "miss"
	if found {
		result = "hit"
	}
	pc.storageGets.WithLabelValues(backend, result).Inc()
	pc.getLatency.WithLabelValues(backend).Observe(duration.Seconds())
}

// RecordSet records a snapshot write.
func (pc *PrometheusCollector) RecordSet(backend string, success bool, duration time.Duration) {
	pc.storageSets.WithLabelValues(backend, status(success)).Inc()
	pc.setLatency.WithLabelValues(backend).Observe(duration.Seconds())
}

// RecordDelete records a snapshot delete.
func (pc *PrometheusCollector) RecordDelete(backend string, success bool, duration time.Duration) {
	pc.storageDeletes.WithLabelValues(backend, status(success)).Inc()
}

// RecordError records a classified storage error.
func (pc *PrometheusCollector) RecordError(backend string, operation string, errorType string) {
	pc.storageErrors.WithLabelValues(backend, operation, errorType).Inc()
}

// RecordCircuitState records the current circuit breaker state.
func (pc *PrometheusCollector) RecordCircuitState(backend string, state metrics.CircuitState) {
	pc.circuitState.WithLabelValues(backend).Set(float64(state))
	if state == metrics.CircuitOpen {
		pc.circuitOpens.WithLabelValues(backend).Inc()
	}
}

// RecordQueueDepth records how many snapshots are waiting.
func (pc *PrometheusCollector) RecordQueueDepth(backend string, depth int) {
	pc.queueDepth.WithLabelValues(backend).Set(float64(depth))
}

// RecordWriteCoalesced records a snapshot replaced before it was written.
func (pc *PrometheusCollector) RecordWriteCoalesced(backend string) {
	pc.coalescedWrites.WithLabelValues(backend).Inc()
}

// RecordWriteDropped records a rejected snapshot.
func (pc *PrometheusCollector) RecordWriteDropped(backend string) {
	pc.droppedWrites.WithLabelValues(backend).Inc()
}

// RecordAsyncWrite records a snapshot written by the async writer.
func (pc *PrometheusCollector) RecordAsyncWrite(backend string, success bool, duration time.Duration) {
	pc.asyncWrites.WithLabelValues(backend, status(success)).Inc()
	pc.asyncLatency.WithLabelValues(backend).Observe(duration.Seconds())
}

// RecordMutation records a ledger mutation.
func (pc *PrometheusCollector) RecordMutation(operation string) {
	pc.mutations.WithLabelValues(operation).Inc()
}

// RecordBalance records the current balance.
func (pc *PrometheusCollector) RecordBalance(balance float64) {
	pc.balance.Set(balance)
}
