package discovery

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "drops"
	metricsSubsystem = "discovery"
)

var (
	livenessProbes = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "liveness_probes_total",
			Help:      "Individual channel liveness probes issued",
		},
	)

	probeFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "probe_failures_total",
			Help:      "Liveness probes and pool queries that failed",
		},
	)

	channelsDiscovered = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "eligible_channels",
			Help:      "Eligible channels found by the last full discovery",
		},
	)
)
