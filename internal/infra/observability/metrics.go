package observability

import (
	"time"

	"github.com/boddenberg/finance-tracker-bfa-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Resolution sources for child lookups.
const (
	SourceCache = "cache"
	SourceQuery = "query"
)

// Metrics holds all Prometheus metrics for the tracker.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration  *prometheus.HistogramVec
	storeErrors      *prometheus.CounterVec
	childResolutions *prometheus.CounterVec
	batchSize        prometheus.Histogram
	cacheHits        *prometheus.CounterVec
	cacheMisses      *prometheus.CounterVec
	requestsTotal    *prometheus.CounterVec
	eventsPublished  *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tracker_operation_duration_seconds",
				Help:    "Duration of service operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		storeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_store_errors_total",
				Help: "Total document store failures.",
			},
			[]string{"backend"},
		),
		childResolutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_child_resolutions_total",
				Help: "Child sets resolved, by source (cache or query).",
			},
			[]string{"source"},
		),
		batchSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tracker_batch_documents",
				Help:    "Documents written per committed batch.",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_requests_total",
				Help: "Total operations processed.",
			},
			[]string{"status"},
		),
		eventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_events_published_total",
				Help: "Domain events handed to the publisher.",
			},
			[]string{"result"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrStoreError increments the store error counter.
func (m *Metrics) IncrStoreError(backend string) {
	m.storeErrors.WithLabelValues(backend).Inc()
}

// IncrChildResolution counts one child set resolved from source.
func (m *Metrics) IncrChildResolution(source string) {
	m.childResolutions.WithLabelValues(source).Inc()
}

// ObserveBatch records a committed batch of n documents.
func (m *Metrics) ObserveBatch(n int) {
	m.batchSize.Observe(float64(n))
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrRequest increments the request counter with a status label.
func (m *Metrics) IncrRequest(status string) {
	m.requestsTotal.WithLabelValues(status).Inc()
}

// IncrEventPublished counts a publish attempt; ok=false means it failed.
func (m *Metrics) IncrEventPublished(ok bool) {
	if ok {
		m.eventsPublished.WithLabelValues("ok").Inc()
		return
	}
	m.eventsPublished.WithLabelValues("error").Inc()
}

// GetCoordinatorSnapshot returns cumulative values suitable for the
// GET /v1/metrics/coordinator endpoint.
func (m *Metrics) GetCoordinatorSnapshot() *domain.CoordinatorMetrics {
	success := getCounterValue(m.requestsTotal, "success")
	errCount := getCounterValue(m.requestsTotal, "error")
	fromCache := getCounterValue(m.childResolutions, SourceCache)
	fromQuery := getCounterValue(m.childResolutions, SourceQuery)

	total := success + errCount
	errorRate := float64(0)
	if total > 0 {
		errorRate = errCount / total
	}
	hitRate := float64(0)
	if fromCache+fromQuery > 0 {
		hitRate = fromCache / (fromCache + fromQuery)
	}

	batches, docs := getHistogramValues(m.batchSize)

	return &domain.CoordinatorMetrics{
		TotalRequests:      int64(total),
		ErrorRate:          errorRate,
		CacheResolutions:   int64(fromCache),
		QueryResolutions:   int64(fromQuery),
		CacheHitRate:       hitRate,
		BatchesCommitted:   int64(batches),
		DocumentsWritten:   int64(docs),
		StoreErrors:        int64(sumCounterVec(m.storeErrors)),
		EventsPublished:    int64(getCounterValue(m.eventsPublished, "ok")),
		EventPublishErrors: int64(getCounterValue(m.eventsPublished, "error")),
		Period:             "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

func sumCounterVec(cv *prometheus.CounterVec) float64 {
	ch := make(chan prometheus.Metric)
	go func() {
		cv.Collect(ch)
		close(ch)
	}()

	var total float64
	for metric := range ch {
		m := &dto.Metric{}
		if err := metric.Write(m); err == nil && m.Counter != nil {
			total += m.Counter.GetValue()
		}
	}
	return total
}

func getHistogramValues(h prometheus.Histogram) (count, sum float64) {
	m := &dto.Metric{}
	if err := h.Write(m); err != nil || m.Histogram == nil {
		return 0, 0
	}
	return float64(m.Histogram.GetSampleCount()), m.Histogram.GetSampleSum()
}
