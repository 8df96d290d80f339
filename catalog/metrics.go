package catalog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "drops"
	metricsSubsystem = "catalog"
)

var (
	campaignsFetched = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "active_campaigns",
			Help:      "Structurally valid campaigns returned by the last fetch",
		},
	)

	cacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "cache_hits_total",
			Help:      "Campaign cache hits (TTL still fresh)",
		},
	)

	cacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "cache_misses_total",
			Help:      "Campaign cache misses (fetch performed)",
		},
	)
)
