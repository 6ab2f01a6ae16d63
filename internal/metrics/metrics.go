// Package metrics defines custom Prometheus metrics for elasto.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// registerOnce ensures Register() is idempotent.
var registerOnce sync.Once

// sizeBuckets are exponential buckets for request/response size histograms (bytes).
var sizeBuckets = []float64{256, 1024, 4096, 16384, 65536, 262144, 1048576, 4194304, 16777216, 67108864}

// Operation metrics (RED: Rate, Errors, Duration).
var (
	// OpsTotal counts completed operations by backend, opcode, and outcome.
	OpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "elasto_ops_total",
			Help: "Total elasto operations dispatched, by backend, opcode, and outcome",
		},
		[]string{"backend", "opcode", "outcome"},
	)

	// OpDuration observes end-to-end operation latency in seconds.
	OpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "elasto_op_duration_seconds",
			Help:    "elasto operation latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "opcode"},
	)

	// RequestBodySize observes request body size in bytes.
	RequestBodySize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "elasto_request_body_bytes",
			Help:    "Request body size in bytes",
			Buckets: sizeBuckets,
		},
		[]string{"backend", "opcode"},
	)

	// ResponseBodySize observes response body size in bytes.
	ResponseBodySize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "elasto_response_body_bytes",
			Help:    "Response body size in bytes",
			Buckets: sizeBuckets,
		},
		[]string{"backend", "opcode"},
	)
)

// Pipeline metrics: redirects, reconnects, and multipart part issuance.
var (
	// RedirectsTotal counts redirect hops followed, by backend.
	RedirectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "elasto_redirects_total",
			Help: "Total redirect hops followed, by backend",
		},
		[]string{"backend"},
	)

	// ReconnectsTotal counts reconnect-and-retry cycles after a transport
	// close, by backend.
	ReconnectsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "elasto_reconnects_total",
			Help: "Total reconnect-and-retry cycles after a transport close, by backend",
		},
		[]string{"backend"},
	)

	// MultipartPartsTotal counts multipart upload parts issued, by outcome.
	MultipartPartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "elasto_multipart_parts_total",
			Help: "Total multipart upload parts issued, by outcome",
		},
		[]string{"outcome"},
	)
)

// Register registers all Prometheus collectors with the default registry.
// elasto.Init calls it, and internal/conn's package init also calls it, so
// the collectors are registered whenever the connection layer is imported.
// It is safe to call multiple times; subsequent calls are no-ops.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			OpsTotal,
			OpDuration,
			RequestBodySize,
			ResponseBodySize,
			RedirectsTotal,
			ReconnectsTotal,
			MultipartPartsTotal,
		)
	})
}
