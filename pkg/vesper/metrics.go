package vesper

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	kindRoute = "route"
	kindFile  = "file"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vesper_requests_total",
			Help: "Total number of completed request cycles",
		},
		[]string{"kind", "status"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vesper_request_duration_seconds",
			Help:    "Time from the end of the request to the flush of the response",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	requestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vesper_requests_in_flight",
			Help: "Current number of request cycles being served",
		},
	)

	fileBytesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vesper_file_bytes_sent_total",
			Help: "Static file bytes handed to connections",
		},
	)

	activeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vesper_active_connections",
			Help: "Current number of open connections",
		},
	)

	rejectedConnections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vesper_rejected_connections_total",
			Help: "Connections refused because the connection limit was reached",
		},
	)
)

// observeCycle records a finished request cycle. status 0 marks a cycle
// that ended without a response.
func observeCycle(kind string, status int, start time.Time) {
	label := strconv.Itoa(status)
	if status == 0 {
		label = "aborted"
	}
	requestsTotal.WithLabelValues(kind, label).Inc()
	requestDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}
