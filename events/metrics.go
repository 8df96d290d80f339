package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "drops"
	metricsSubsystem = "events"
)

var (
	eventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "published_total",
			Help:      "Total events published to the bus by kind",
		},
		[]string{"kind"},
	)

	eventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "dropped_total",
			Help:      "Events dropped from a slow subscriber's buffer",
		},
		[]string{"kind"},
	)

	redisPublishes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "redis_publishes_total",
			Help:      "Events published to Redis by result",
		},
		[]string{"result"},
	)

	redisPayloadBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "redis_payload_bytes",
			Help:      "Size of compressed event payloads published to Redis",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
		},
	)
)
