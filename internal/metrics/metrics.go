// Package metrics exposes the Prometheus collectors for connection state,
// retries, SASL outcomes, per-opcode operation counts and latency, and
// pipeline batch sizes. The connection layer updates ConnectionState,
// RetriesTotal and AuthOutcomes and the engine updates OpsTotal; nothing in
// this module observes OpDuration or PipelineSize.
//
// The shape is grounded on the reference application's
// internal/gateway/metrics/collector.go (promauto-registered counters,
// histograms and gauges keyed by label), generalized from HTTP
// method/endpoint labels to memcached endpoint/opcode/status labels.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OpsTotal counts every operation the engine issues, by endpoint,
	// opcode and outcome status.
	OpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bmemcached_ops_total",
			Help: "Total number of memcached operations issued, by endpoint, opcode and status.",
		},
		[]string{"endpoint", "opcode", "status"},
	)

	// OpDuration tracks per-operation latency.
	OpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bmemcached_op_duration_seconds",
			Help:    "Duration of memcached operations, by endpoint and opcode.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint", "opcode"},
	)

	// PipelineSize records how many frames a multi-key batch contained.
	PipelineSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bmemcached_pipeline_size",
			Help:    "Number of frames in a pipelined multi-key batch.",
			Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 250, 500},
		},
		[]string{"endpoint", "opcode"},
	)

	// ConnectionState is a gauge of 1 for the engine's currently-observed
	// connection state per endpoint (see internal/connection.State); only
	// the current state's series is set to 1, others to 0.
	ConnectionState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bmemcached_connection_state",
			Help: "1 if the connection to the endpoint is currently in this state, else 0.",
		},
		[]string{"endpoint", "state"},
	)

	// RetriesTotal counts reconnect attempts, split by whether they
	// succeeded.
	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bmemcached_reconnect_attempts_total",
			Help: "Total number of reconnect attempts, by endpoint and outcome.",
		},
		[]string{"endpoint", "outcome"},
	)

	// AuthOutcomes counts SASL PLAIN handshake results.
	AuthOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bmemcached_auth_outcomes_total",
			Help: "Total number of SASL authentication attempts, by endpoint and outcome.",
		},
		[]string{"endpoint", "outcome"},
	)
)
