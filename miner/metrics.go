package miner

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "drops",
		Subsystem: "miner",
		Name:      "sessions_started_total",
		Help:      "Mining sessions started.",
	})

	heartbeatsSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "drops",
		Subsystem: "miner",
		Name:      "heartbeats_sent_total",
		Help:      "Watch signals acknowledged by the platform.",
	})

	heartbeatFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "drops",
		Subsystem: "miner",
		Name:      "heartbeat_failures_total",
		Help:      "Watch signals that failed or were rejected.",
	})

	channelSwitches = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "drops",
		Subsystem: "miner",
		Name:      "channel_switches_total",
		Help:      "Failovers to another channel after repeated heartbeat failures.",
	})

	poolRefreshes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "drops",
		Subsystem: "miner",
		Name:      "pool_refreshes_total",
		Help:      "Full channel-pool rescans triggered by exhausting the cached pool.",
	})

	progressUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "drops",
		Subsystem: "miner",
		Name:      "progress_updates_total",
		Help:      "Progress reconciliations, partitioned by source.",
	}, []string{"source"})

	campaignsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "drops",
		Subsystem: "miner",
		Name:      "campaigns_completed_total",
		Help:      "Campaigns finished with every mineable drop satisfied.",
	})

	claimsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "drops",
		Subsystem: "miner",
		Name:      "claims_submitted_total",
		Help:      "Claim submissions, partitioned by result.",
	}, []string{"result"})
)
