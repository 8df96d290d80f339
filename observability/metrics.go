package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "drops"
	metricsSubsystem = "observability"
)

// FineGrainedLatencyBuckets provides sub-millisecond to multi-second
// measurement. Use for: catalog queries, liveness probes, claim
// submissions and other upstream calls.
// Buckets: 1ms, 2ms, 5ms, 10ms, 25ms, 50ms, 100ms, 250ms, 500ms, 1s, 2.5s, 5s, 10s, 30s
var FineGrainedLatencyBuckets = []float64{0.001, 0.002, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

var (
	// OperationDurationSeconds tracks the duration of high-level
	// operations (discovery pass, session start, inventory poll).
	OperationDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "operation_duration_seconds",
			Help:      "Duration of high-level operations",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
		[]string{"component", "operation", "status"},
	)

	// StartupDurationSeconds tracks how long component startup took.
	StartupDurationSeconds = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "startup_duration_seconds",
			Help:      "Startup duration per component",
		},
		[]string{"component"},
	)
)
