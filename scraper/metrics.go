package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for a crawl.
type Metrics struct {
	Registry          *prometheus.Registry
	RequestsTotal     *prometheus.CounterVec
	RequestDuration   prometheus.Histogram
	ListingPagesTotal prometheus.Counter
	ItemsStoredTotal  prometheus.Counter
	RetriesTotal      *prometheus.CounterVec
	ErrorsTotal       *prometheus.CounterVec
	QueueDepth        prometheus.Gauge
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_requests_total",
			Help: "Total HTTP requests issued by the crawler.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "catalog_request_duration_seconds",
			Help:    "HTTP request latency for crawler requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	listingPages := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_listing_pages_total",
			Help: "Total number of listing pages walked.",
		},
	)
	itemsStored := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_items_stored_total",
			Help: "Total number of items upserted into the store.",
		},
	)
	retries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_retries_total",
			Help: "Total number of retry attempts by stage.",
		},
		[]string{"stage"},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_errors_total",
			Help: "Total number of crawl errors by type.",
		},
		[]string{"error_type"},
	)
	queueDepth := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_queue_depth",
			Help: "Detail URLs waiting for a worker.",
		},
	)

	registry.MustRegister(requests, requestDuration, listingPages, itemsStored, retries, errorsTotal, queueDepth)

	return &Metrics{
		Registry:          registry,
		RequestsTotal:     requests,
		RequestDuration:   requestDuration,
		ListingPagesTotal: listingPages,
		ItemsStoredTotal:  itemsStored,
		RetriesTotal:      retries,
		ErrorsTotal:       errorsTotal,
		QueueDepth:        queueDepth,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncListingPages increments the walked listing pages counter.
func (m *Metrics) IncListingPages() {
	if m == nil {
		return
	}
	m.ListingPagesTotal.Inc()
}

// IncItems increments the stored items counter.
func (m *Metrics) IncItems() {
	if m == nil {
		return
	}
	m.ItemsStoredTotal.Inc()
}

// IncRetries increments the retries counter for a stage.
func (m *Metrics) IncRetries(stage string) {
	if m == nil {
		return
	}
	m.RetriesTotal.WithLabelValues(stage).Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// SetQueueDepth records the number of queued detail URLs.
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(n))
}
