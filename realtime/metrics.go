package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "drops"
	metricsSubsystem = "realtime"
)

var (
	connected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "connected",
			Help:      "Whether the realtime subscription is currently active (0/1)",
		},
	)

	reconnections = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "connection_attempts_total",
			Help:      "Realtime connection attempts, including reconnections",
		},
	)

	eventsReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "progress_events_total",
			Help:      "Drop-progress events received on the push channel",
		},
	)
)
