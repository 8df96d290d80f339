package miner

import (
	"context"
	"sync"
	"time"

	"github.com/dropstream/drops-miner/client"
	"github.com/dropstream/drops-miner/drops"
	"github.com/dropstream/drops-miner/logging"
)

// HeartbeatConfig contains configuration for the watch-signal loop.
type HeartbeatConfig struct {
	// Interval is the watch-signal tick.
	// Default: 60s
	Interval time.Duration `yaml:"interval"`

	// EmitTimeout bounds a single watch-signal emission, distinct from
	// the interval so a hung call cannot stall subsequent heartbeats.
	// Default: 15s
	EmitTimeout time.Duration `yaml:"emit_timeout"`

	// FailureThreshold is the consecutive-failure count that triggers
	// failover.
	// Default: 3
	FailureThreshold int `yaml:"failure_threshold"`
}

// DefaultHeartbeatConfig returns sensible defaults.
func DefaultHeartbeatConfig() HeartbeatConfig {
	return HeartbeatConfig{
		Interval:         60 * time.Second,
		EmitTimeout:      15 * time.Second,
		FailureThreshold: 3,
	}
}

func (c HeartbeatConfig) normalized() HeartbeatConfig {
	def := DefaultHeartbeatConfig()
	if c.Interval <= 0 {
		c.Interval = def.Interval
	}
	if c.EmitTimeout <= 0 {
		c.EmitTimeout = def.EmitTimeout
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = def.FailureThreshold
	}
	return c
}

// thresholdFunc is invoked when the consecutive-failure threshold is
// reached. It attempts a channel switch and returns the replacement,
// or false when the session must stop (no channels anywhere).
type thresholdFunc func(ctx context.Context, failing drops.MiningChannel) (*SwitchResult, bool)

// Heartbeat emits the periodic synthetic watch signal for the currently
// watched channel and escalates repeated failures to the failover
// threshold callback.
//
// State machine per session: Idle -> Watching -> {Watching, Failing} ->
// {Watching, Switching, Stopped}; the failures counter is the Failing
// dimension, the threshold callback is the Switching edge.
type Heartbeat struct {
	logger logging.Logger
	client client.CatalogClient
	config HeartbeatConfig

	// userID is resolved once by the controller for the lifetime of the
	// session.
	userID string

	onThreshold thresholdFunc

	mu          sync.Mutex
	channel     drops.MiningChannel
	broadcastID string
	failures    int
}

// NewHeartbeat creates a heartbeat for one session.
func NewHeartbeat(
	logger logging.Logger,
	cc client.CatalogClient,
	config HeartbeatConfig,
	userID string,
	onThreshold thresholdFunc,
) *Heartbeat {
	return &Heartbeat{
		logger:      logging.ForComponent(logger, logging.ComponentHeartbeat),
		client:      cc,
		config:      config.normalized(),
		userID:      userID,
		onThreshold: onThreshold,
	}
}

// SetChannel points the heartbeat at a new channel and resets the
// failure counter. Called on session start and after every switch.
func (h *Heartbeat) SetChannel(channel drops.MiningChannel, broadcastID string) {
	h.mu.Lock()
	h.channel = channel
	h.broadcastID = broadcastID
	h.failures = 0
	h.mu.Unlock()
}

// Channel returns the currently watched channel.
func (h *Heartbeat) Channel() drops.MiningChannel {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.channel
}

// Run drives the heartbeat loop until the session ends. The first beat
// fires after one full interval; the controller has just verified the
// channel live, so an immediate signal would be redundant.
func (h *Heartbeat) Run(ctx context.Context, handle *SessionHandle, seq uint64) {
	ticker := time.NewTicker(h.config.Interval)
	defer ticker.Stop()

	h.logger.Info().
		Dur("interval", h.config.Interval).
		Msg("heartbeat loop started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if !handle.ActiveFor(seq) {
			h.logger.Debug().Uint64(logging.FieldSessionSeq, seq).Msg("heartbeat loop superseded, exiting")
			return
		}

		if stopped := h.Beat(ctx); stopped {
			return
		}
	}
}

// Beat performs one heartbeat iteration: emit the watch signal, track
// consecutive failures, and escalate at the threshold. It returns true
// when the session ended (no replacement channel anywhere).
func (h *Heartbeat) Beat(ctx context.Context) bool {
	h.mu.Lock()
	channel := h.channel
	broadcastID := h.broadcastID
	h.mu.Unlock()

	emitCtx, cancel := context.WithTimeout(ctx, h.config.EmitTimeout)
	err := h.client.SubmitWatchSignal(emitCtx, channel, broadcastID, h.userID)
	cancel()

	if err == nil {
		heartbeatsSent.Inc()
		h.mu.Lock()
		if h.failures > 0 {
			h.logger.Info().
				Int("recovered_after", h.failures).
				Str(logging.FieldChannel, channel.Login).
				Msg("heartbeat recovered")
		}
		h.failures = 0
		h.mu.Unlock()
		return false
	}

	heartbeatFailures.Inc()

	h.mu.Lock()
	h.failures++
	failures := h.failures
	h.mu.Unlock()

	h.logger.Warn().Err(err).
		Str(logging.FieldChannel, channel.Login).
		Int(logging.FieldAttempt, failures).
		Int("threshold", h.config.FailureThreshold).
		Msg("watch signal failed")

	if failures < h.config.FailureThreshold {
		// A transient failure does not interrupt watching.
		return false
	}

	result, ok := h.onThreshold(ctx, channel)
	if !ok {
		return true
	}

	h.SetChannel(result.Channel, result.BroadcastID)
	return false
}
