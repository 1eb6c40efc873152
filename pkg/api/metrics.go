package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the API
type Metrics struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	writesTotal       *prometheus.CounterVec
	queriesTotal      prometheus.Counter
	queryResultsTotal prometheus.Counter

	storageSyncGap prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		httpRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ringdb_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),
		httpRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ringdb_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		writesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ringdb_writes_total",
				Help: "Total number of sample writes by outcome",
			},
			[]string{"status"},
		),
		queriesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ringdb_queries_total",
				Help: "Total number of range queries",
			},
		),
		queryResultsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "ringdb_query_results_total",
				Help: "Total number of results returned by range queries",
			},
		),
		storageSyncGap: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "ringdb_storage_sync_gap_entries",
				Help: "Entries appended but not yet published to the index, summed over volumes",
			},
		),
	}
}

// statusRecorder captures the response status code for metrics
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

// InstrumentHandler wraps an HTTP handler with request metrics
func (m *Metrics) InstrumentHandler(method, endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		handler(rec, r)

		m.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(rec.statusCode)).Inc()
		m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(time.Since(start).Seconds())
	}
}
