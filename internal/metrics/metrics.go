// Package metrics provides Prometheus metrics for the teledrive API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teledrive_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "teledrive_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	upstreamCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teledrive_upstream_calls_total",
			Help: "Total calls to the messaging service",
		},
		[]string{"operation", "status"},
	)

	upstreamCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "teledrive_upstream_call_duration_seconds",
			Help:    "Messaging service call duration in seconds, connection setup included",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"operation"},
	)

	uploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "teledrive_upload_bytes_total",
			Help: "Total bytes staged for upload",
		},
	)

	loginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teledrive_logins_total",
			Help: "Login attempts by outcome",
		},
		[]string{"outcome"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordUpstreamCall records one call to the messaging service.
func RecordUpstreamCall(operation string, err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	upstreamCallsTotal.WithLabelValues(operation, status).Inc()
	upstreamCallDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordUpload records the size of a staged upload.
func RecordUpload(bytes int64) {
	uploadBytesTotal.Add(float64(bytes))
}

// RecordLogin records a login outcome.
func RecordLogin(outcome string) {
	loginsTotal.WithLabelValues(outcome).Inc()
}
