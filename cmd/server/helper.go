package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const version = "1.0.0"

// serverMetrics holds Prometheus metrics for the server.
type serverMetrics struct {
	requestCounter  *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	feedErrors      prometheus.Counter
	poolCount       prometheus.Gauge
}

// registerMetrics sets up Prometheus metrics collection.
func registerMetrics() *serverMetrics {
	m := &serverMetrics{
		requestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yieldscout_requests_total",
				Help: "Total number of requests processed",
			},
			[]string{"endpoint", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "yieldscout_request_duration_seconds",
				Help:    "Request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		feedErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "yieldscout_feed_errors_total",
				Help: "Total number of upstream feed failures with no snapshot to fall back on",
			},
		),
		poolCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "yieldscout_pool_count",
				Help: "Number of pools in the current snapshot",
			},
		),
	}

	prometheus.MustRegister(
		m.requestCounter,
		m.requestDuration,
		m.feedErrors,
		m.poolCount,
	)

	return m
}

// registerSnapshotAge exposes the snapshot age as a live gauge so
// dashboards can alert on a cache stuck serving stale data.
func (m *serverMetrics) registerSnapshotAge(age func() float64) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "yieldscout_snapshot_age_seconds",
			Help: "Age of the current pool snapshot in seconds",
		},
		age,
	))
}

// observe records the outcome and latency of one handled request.
func (s *Server) observe(endpoint, status string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.requestCounter.WithLabelValues(endpoint, status).Inc()
	s.metrics.requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

// publishSnapshotMetrics keeps the snapshot gauges aligned with the
// latest published snapshot.
func (s *Server) publishSnapshotMetrics(poolCount int) {
	if s.metrics == nil {
		return
	}
	s.metrics.poolCount.Set(float64(poolCount))
}

// handleMetrics exposes Prometheus metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// writeJSON serializes a response body with the standard headers.
func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}
