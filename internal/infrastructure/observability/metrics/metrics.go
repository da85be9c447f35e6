// Package metrics provides Prometheus collectors for the survey service.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all the metric collectors for the application. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	uploadsTotal    *prometheus.CounterVec
	uploadBytes     prometheus.Histogram
	deletesTotal    *prometheus.CounterVec
	loginsTotal     *prometheus.CounterVec
	onlineVisitors  prometheus.Gauge
	liveConnections prometheus.Gauge
	thumbnailErrors prometheus.Counter
}

// NewMetrics creates a new registry and registers every collector on it.
func NewMetrics() (*Metrics, error) {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "makhaen_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status_code"})

	m.httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "makhaen_http_request_duration_seconds",
		Help:    "Time taken for HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	m.uploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "makhaen_uploads_total",
		Help: "Survey uploads by outcome",
	}, []string{"outcome"}) // outcome: stored, invalid, forbidden, busy, failed

	m.uploadBytes = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "makhaen_upload_bytes",
		Help:    "Size of stored survey images",
		Buckets: prometheus.ExponentialBuckets(64<<10, 2, 10),
	})

	m.deletesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "makhaen_deletes_total",
		Help: "Survey delete requests by outcome",
	}, []string{"outcome"}) // outcome: deleted, not_found, unauthorized, busy, failed

	m.loginsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "makhaen_logins_total",
		Help: "Login attempts by outcome",
	}, []string{"outcome"}) // outcome: success, failure, throttled

	m.onlineVisitors = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "makhaen_online_visitors",
		Help: "Visitors seen within the presence window at the last count",
	})

	m.liveConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "makhaen_live_connections",
		Help: "Open websocket live feed connections",
	})

	m.thumbnailErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "makhaen_thumbnail_errors_total",
		Help: "Thumbnail generation failures",
	})

	toRegister := []prometheus.Collector{
		m.httpRequestsTotal, m.httpRequestDuration,
		m.uploadsTotal, m.uploadBytes, m.deletesTotal, m.loginsTotal,
		m.onlineVisitors, m.liveConnections, m.thumbnailErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, c := range toRegister {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %w", err)
		}
	}
	return m, nil
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequestsTotal.WithLabelValues(method, route, fmt.Sprintf("%d", status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordUpload counts an upload outcome. bytes is only observed for stored uploads.
func (m *Metrics) RecordUpload(outcome string, bytes int64) {
	if m == nil {
		return
	}
	m.uploadsTotal.WithLabelValues(outcome).Inc()
	if outcome == "stored" && bytes > 0 {
		m.uploadBytes.Observe(float64(bytes))
	}
}

// RecordDelete counts a delete outcome.
func (m *Metrics) RecordDelete(outcome string) {
	if m == nil {
		return
	}
	m.deletesTotal.WithLabelValues(outcome).Inc()
}

// RecordLogin counts a login outcome.
func (m *Metrics) RecordLogin(outcome string) {
	if m == nil {
		return
	}
	m.loginsTotal.WithLabelValues(outcome).Inc()
}

// SetOnlineVisitors publishes the latest presence count.
func (m *Metrics) SetOnlineVisitors(n int) {
	if m == nil {
		return
	}
	m.onlineVisitors.Set(float64(n))
}

// LiveConnected adjusts the open websocket gauge by delta.
func (m *Metrics) LiveConnected(delta int) {
	if m == nil {
		return
	}
	m.liveConnections.Add(float64(delta))
}

// ThumbnailFailed counts a thumbnail failure.
func (m *Metrics) ThumbnailFailed() {
	if m == nil {
		return
	}
	m.thumbnailErrors.Inc()
}
