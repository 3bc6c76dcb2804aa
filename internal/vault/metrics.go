package vault

import "github.com/prometheus/client_golang/prometheus"

// Metrics collects the Prometheus series VaultManager updates during normal
// operation — region/object population, checkpoint duration and failures,
// query latency. Grounded on the teacher's eventbus.MetricsExporter
// (internal/eventbus/metrics.go): same prometheus.NewGauge/NewCounter/
// NewHistogram construction, same Namespace convention.
//
// Each VaultManager owns a private registry rather than registering into
// prometheus.DefaultRegisterer, so that multiple VaultManager instances
// (e.g. one per test) can coexist without a duplicate-registration panic.
// Collectors() returns that registry, which is a prometheus.Gatherer rather
// than a Collector. VaultManager keeps its Metrics in an unexported field
// and has no accessor for it.
type Metrics struct {
	registry *prometheus.Registry

	RegionCount       prometheus.Gauge
	ObjectCount       prometheus.Gauge
	DirtyRegionCount  prometheus.Gauge
	QueryDuration     prometheus.Histogram
	CheckpointSeconds prometheus.Histogram
	CheckpointFailure prometheus.Counter
}

// NewMetrics builds and registers a fresh metric set.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RegionCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pebblevault",
			Name:      "regions",
			Help:      "Количество резидентных регионов.",
		}),
		ObjectCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pebblevault",
			Name:      "objects",
			Help:      "Количество объектов под управлением object_index.",
		}),
		DirtyRegionCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pebblevault",
			Name:      "dirty_regions",
			Help:      "Количество регионов с несохранёнными изменениями.",
		}),
		QueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pebblevault",
			Name:      "query_region_seconds",
			Help:      "Длительность query_region.",
			Buckets:   prometheus.DefBuckets,
		}),
		CheckpointSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pebblevault",
			Name:      "checkpoint_seconds",
			Help:      "Длительность persist_to_disk по всем грязным регионам.",
			Buckets:   prometheus.DefBuckets,
		}),
		CheckpointFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pebblevault",
			Name:      "checkpoint_failures_total",
			Help:      "Количество регионов, чекпоинт которых завершился ошибкой.",
		}),
	}

	m.registry.MustRegister(
		m.RegionCount, m.ObjectCount, m.DirtyRegionCount,
		m.QueryDuration, m.CheckpointSeconds, m.CheckpointFailure,
	)
	return m
}

// Collectors exposes the underlying registry for callers that want to wire
// an HTTP /metrics endpoint (§6 "observability" ambient concern).
func (m *Metrics) Collectors() *prometheus.Registry {
	return m.registry
}
