// Package metrics exposes Prometheus collectors for the catalog sync service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	partnerRequestsTotal     *prometheus.CounterVec
	syncItemsTotal           *prometheus.CounterVec
	syncStageDurationSeconds *prometheus.HistogramVec
	httpRequestsTotal        *prometheus.CounterVec
	httpRequestDuration      *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		partnerRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalogsync_partner_requests_total",
				Help: "Total outbound partner API calls, labeled by tenant and outcome.",
			},
			[]string{"tenant", "outcome"},
		)

		syncItemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalogsync_sync_items_total",
				Help: "Total per-item results in pipeline stages, labeled by tenant, stage and outcome.",
			},
			[]string{"tenant", "stage", "outcome"},
		)

		syncStageDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "catalogsync_sync_stage_duration_seconds",
				Help:    "Histogram of pipeline stage durations, labeled by stage.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"stage"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of inbound HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of inbound HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePartnerRequest counts one outbound partner call.
func ObservePartnerRequest(tenant, outcome string) {
	partnerRequestsTotal.WithLabelValues(tenant, outcome).Inc()
}

// ObserveSyncItem counts one per-item result inside a pipeline stage.
func ObserveSyncItem(tenant, stage, outcome string) {
	syncItemsTotal.WithLabelValues(tenant, stage, outcome).Inc()
}

// ObserveStageDuration records how long a full stage invocation took.
func ObserveStageDuration(stage string, duration time.Duration) {
	syncStageDurationSeconds.WithLabelValues(stage).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the inbound HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
