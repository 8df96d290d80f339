package client

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dropstream/drops-miner/observability"
)

const (
	metricsNamespace = "drops"
	metricsSubsystem = "client"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "requests_total",
			Help:      "Total catalog API requests by operation and result",
		},
		[]string{"operation", "result"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "request_duration_seconds",
			Help:      "Catalog API request latency",
			Buckets:   observability.FineGrainedLatencyBuckets,
		},
		[]string{"operation"},
	)

	rateLimitWaits = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "rate_limit_wait_total",
			Help:      "Requests delayed by the client-side rate limiter",
		},
	)
)
