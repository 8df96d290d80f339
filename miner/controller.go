package miner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dropstream/drops-miner/catalog"
	"github.com/dropstream/drops-miner/client"
	"github.com/dropstream/drops-miner/discovery"
	"github.com/dropstream/drops-miner/drops"
	"github.com/dropstream/drops-miner/events"
	"github.com/dropstream/drops-miner/logging"
	"github.com/dropstream/drops-miner/observability"
	"github.com/dropstream/drops-miner/realtime"
	"github.com/dropstream/drops-miner/settings"
)

// startCallTimeout bounds the synchronous part of session startup:
// identity resolution, catalog fetch and channel selection.
const startCallTimeout = 60 * time.Second

// Target selects what a session mines. A zero Target means fully
// automatic selection across all filtered campaigns. CampaignID pins
// the campaign; ChannelID additionally pins the channel within it.
type Target struct {
	CampaignID string
	ChannelID  string
}

// Automatic reports whether campaign selection is left to the engine.
func (t Target) Automatic() bool { return t.CampaignID == "" }

// PushSubscriber is the realtime progress feed a session attaches to.
type PushSubscriber interface {
	Connect(ctx context.Context, userID string) error
	Disconnect()
}

// SubscriberFactory builds a fresh push subscriber wired to the given
// sink. One subscriber exists per session.
type SubscriberFactory func(sink realtime.Sink) PushSubscriber

// noopSubscriber satisfies sessions running without a realtime feed.
type noopSubscriber struct{}

func (noopSubscriber) Connect(context.Context, string) error { return nil }
func (noopSubscriber) Disconnect()                           {}

// Controller owns the mining session lifecycle: selection, the
// heartbeat and poll loops, failover, and teardown. At most one
// session runs at a time; starting while running is rejected and a
// superseded session's loops exit on their next tick.
type Controller struct {
	logger          logging.Logger
	client          client.CatalogClient
	catalog         *catalog.Catalog
	discoverer      *discovery.Discoverer
	failover        *Failover
	progress        *drops.ProgressStore
	status          *StatusStore
	bus             *events.Bus
	settings        settings.Provider
	newSubscriber   SubscriberFactory
	heartbeatConfig HeartbeatConfig

	handle *SessionHandle
	wg     sync.WaitGroup

	// startMu serializes Start calls; the handle's run flag alone
	// cannot reject a second Start racing the first one's setup.
	startMu sync.Mutex

	mu         sync.Mutex
	cancel     context.CancelFunc
	subscriber PushSubscriber
	target     CampaignTarget
	pool       []drops.MiningChannel
	lastIndex  int
}

// NewController wires the session controller. A nil subscriber factory
// disables the realtime push path.
func NewController(
	logger logging.Logger,
	cc client.CatalogClient,
	cat *catalog.Catalog,
	disc *discovery.Discoverer,
	progress *drops.ProgressStore,
	status *StatusStore,
	bus *events.Bus,
	sp settings.Provider,
	newSubscriber SubscriberFactory,
	heartbeatConfig HeartbeatConfig,
) *Controller {
	if newSubscriber == nil {
		newSubscriber = func(realtime.Sink) PushSubscriber { return noopSubscriber{} }
	}
	return &Controller{
		logger:          logging.ForComponent(logger, logging.ComponentController),
		client:          cc,
		catalog:         cat,
		discoverer:      disc,
		failover:        NewFailover(logger, cc, disc),
		progress:        progress,
		status:          status,
		bus:             bus,
		settings:        sp,
		newSubscriber:   newSubscriber,
		heartbeatConfig: heartbeatConfig,
		handle:          NewSessionHandle(),
	}
}

// Running reports whether a session is active.
func (c *Controller) Running() bool { return c.handle.Running() }

// Status returns the current session snapshot.
func (c *Controller) Status() drops.MiningStatus { return c.status.Snapshot() }

// Start begins a mining session. It resolves the viewer identity,
// selects a campaign and channel per target and settings, then launches
// the heartbeat and reconciliation loops. Calling Start while a session
// is already active is a no-op; ErrNoChannelsAvailable is returned when
// nothing eligible is live.
func (c *Controller) Start(ctx context.Context, target Target) (err error) {
	c.startMu.Lock()
	defer c.startMu.Unlock()

	if c.handle.Running() {
		c.logger.Debug().Msg("start ignored, mining session already running")
		return nil
	}

	startedAt := time.Now()
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		observability.OperationDurationSeconds.
			WithLabelValues(logging.ComponentController, "session_start", status).
			Observe(time.Since(startedAt).Seconds())
	}()

	startCtx, cancelStart := context.WithTimeout(ctx, startCallTimeout)
	defer cancelStart()

	userID, err := c.client.CurrentUserID(startCtx)
	if err != nil {
		return fmt.Errorf("resolving viewer identity: %w", err)
	}

	campaign, channel, broadcastID, pool, err := c.selectTarget(startCtx, target)
	if err != nil {
		return err
	}

	seq := c.handle.Begin()
	sessionsStarted.Inc()
	sessionLogger := logging.ForSession(c.logger, seq)

	sessionCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	campTarget := CampaignTarget{Campaign: campaign}
	claimer := NewAutoClaimer(sessionLogger, c.client, c.progress, c.bus, userID)
	reconciler := NewReconciler(
		sessionLogger, c.client, c.catalog, c.progress, c.status,
		c.settings, claimer, campTarget,
		func(reason string) { c.completeMining(campTarget, reason) },
	)
	hbConfig := sessionHeartbeatConfig(c.heartbeatConfig, c.settings.Current())
	heartbeat := NewHeartbeat(sessionLogger, c.client, hbConfig, userID, c.thresholdHandler(campTarget))
	heartbeat.SetChannel(channel, broadcastID)

	subscriber := c.newSubscriber(reconciler)

	c.mu.Lock()
	c.cancel = cancel
	c.subscriber = subscriber
	c.target = campTarget
	c.pool = pool
	c.lastIndex = indexOf(pool, channel.ID)
	c.mu.Unlock()

	// The push path is best-effort; a dead socket degrades the session
	// to poll-only rather than failing the start.
	if err := subscriber.Connect(sessionCtx, userID); err != nil {
		sessionLogger.Warn().Err(err).Msg("realtime feed unavailable, continuing poll-only")
	}

	c.status.Update(func(st *drops.MiningStatus) {
		ch := channel
		st.Active = true
		st.Channel = &ch
		st.CampaignName = campaign.Name
		st.CurrentDrop = nil
		st.Channels = pool
	})

	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		logging.RecoverGoRoutine(sessionLogger, logging.ComponentHeartbeat, func(ctx context.Context) {
			heartbeat.Run(ctx, c.handle, seq)
		})(sessionCtx)
	}()
	go func() {
		defer c.wg.Done()
		logging.RecoverGoRoutine(sessionLogger, logging.ComponentReconciler, func(ctx context.Context) {
			reconciler.Run(ctx, c.handle, seq)
		})(sessionCtx)
	}()

	sessionLogger.Info().
		Str(logging.FieldCampaignID, campaign.ID).
		Str(logging.FieldCampaign, campaign.Name).
		Str(logging.FieldGame, campaign.GameName).
		Str(logging.FieldChannel, channel.Login).
		Str(logging.FieldBroadcastID, broadcastID).
		Int("pool_size", len(pool)).
		Msg("mining session started")
	return nil
}

// selectTarget resolves the campaign, the channel to watch, its live
// broadcast id, and the full eligible channel pool.
func (c *Controller) selectTarget(ctx context.Context, target Target) (drops.Campaign, drops.MiningChannel, string, []drops.MiningChannel, error) {
	var zeroCamp drops.Campaign
	var zeroCh drops.MiningChannel

	campaigns, err := c.catalog.Cached(ctx)
	if err != nil {
		return zeroCamp, zeroCh, "", nil, fmt.Errorf("loading campaign catalog: %w", err)
	}
	s := c.settings.Current()

	var campaign drops.Campaign
	var pool []drops.MiningChannel

	if target.Automatic() {
		filtered := catalog.ApplyFilters(campaigns, s)
		ch, camp, ok := c.discoverer.FirstEligible(ctx, filtered, s)
		if !ok {
			c.publishNoChannels("no filtered campaign has a live eligible channel")
			return zeroCamp, zeroCh, "", nil, ErrNoChannelsAvailable
		}
		campaign = *camp
		pool = c.discoverer.Eligible(ctx, []drops.Campaign{campaign}, s)
		if len(pool) == 0 {
			pool = []drops.MiningChannel{*ch}
		}
	} else {
		// An explicitly requested campaign bypasses the game filters:
		// the user's direct choice outranks their standing preferences.
		found := false
		for _, camp := range campaigns {
			if camp.ID == target.CampaignID {
				campaign, found = camp, true
				break
			}
		}
		if !found {
			return zeroCamp, zeroCh, "", nil, fmt.Errorf("campaign %q not found in active catalog", target.CampaignID)
		}
		pool = c.discoverer.Eligible(ctx, []drops.Campaign{campaign}, s)
		if len(pool) == 0 {
			c.publishNoChannels("requested campaign has no live eligible channel")
			return zeroCamp, zeroCh, "", nil, ErrNoChannelsAvailable
		}
	}

	var channel drops.MiningChannel
	if target.ChannelID != "" {
		idx := indexOf(pool, target.ChannelID)
		if idx < 0 {
			return zeroCamp, zeroCh, "", nil, fmt.Errorf("channel %q is not live for campaign %q", target.ChannelID, campaign.ID)
		}
		channel = pool[idx]
	} else if best := discovery.SelectBest(pool, s); best != nil {
		channel = *best
	} else {
		c.publishNoChannels("channel pool empty after scoring")
		return zeroCamp, zeroCh, "", nil, ErrNoChannelsAvailable
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	stream, err := c.client.ProbeLiveness(probeCtx, channel.ID)
	cancel()
	if err != nil {
		return zeroCamp, zeroCh, "", nil, fmt.Errorf("probing channel %q: %w", channel.Login, err)
	}
	if stream == nil || stream.BroadcastID == "" {
		c.publishNoChannels("selected channel went offline before start")
		return zeroCamp, zeroCh, "", nil, ErrNoChannelsAvailable
	}
	channel.Online = true
	channel.Viewers = stream.Viewers
	channel.DropsEnabled = stream.DropsEnabled

	return campaign, channel, stream.BroadcastID, pool, nil
}

// sessionHeartbeatConfig overlays the runtime settings' heartbeat
// interval on the configured defaults, the same way the poll interval
// is taken from settings when the reconciler is built.
func sessionHeartbeatConfig(base HeartbeatConfig, s settings.Settings) HeartbeatConfig {
	if s.HeartbeatInterval > 0 {
		base.Interval = s.HeartbeatInterval
	}
	return base
}

// thresholdHandler builds the heartbeat's failover callback. It scans
// the cached pool, refreshing it once when exhausted, and ends the
// session when even the refreshed pool has nothing live.
func (c *Controller) thresholdHandler(target CampaignTarget) thresholdFunc {
	return func(ctx context.Context, failing drops.MiningChannel) (*SwitchResult, bool) {
		c.mu.Lock()
		pool := c.pool
		lastIndex := c.lastIndex
		c.mu.Unlock()

		s := c.settings.Current()
		result, ok := c.failover.TrySwitchWithRefresh(ctx, pool, failing.ID, lastIndex, []drops.Campaign{target.Campaign}, s)
		if !ok {
			c.stopNoChannels(failing)
			return nil, false
		}

		c.mu.Lock()
		if result.Refreshed != nil {
			c.pool = result.Refreshed
		}
		c.lastIndex = result.Index
		updatedPool := c.pool
		c.mu.Unlock()

		channelSwitches.Inc()
		c.client.InvalidateWatchTarget(failing.Login)
		c.status.Update(func(st *drops.MiningStatus) {
			ch := result.Channel
			st.Channel = &ch
			st.Channels = updatedPool
		})

		c.logger.Info().
			Str("from", failing.Login).
			Str("to", result.Channel.Login).
			Str(logging.FieldReason, "heartbeat failures").
			Msg("switched channel")

		if c.bus != nil && s.NotifyOnChannelSwitch {
			c.bus.Publish(events.Event{
				Kind: events.KindChannelSwitched,
				ChannelSwitched: &events.ChannelSwitchedPayload{
					From:   failing.Login,
					To:     result.Channel.Login,
					Reason: "heartbeat failures",
				},
			})
		}
		return result, true
	}
}

// Stop ends the running session, waits for its loops to exit, and
// clears the status snapshot. Safe to call when idle.
func (c *Controller) Stop() {
	if !c.handle.Running() {
		return
	}
	c.handle.StopRun()
	c.teardown()
	c.wg.Wait()

	c.status.Clear()
	c.catalog.Invalidate()
	c.logger.Info().Msg("mining session stopped")
}

// completeMining handles campaign completion signalled by the poll
// loop. It runs on the reconciler goroutine, so it must not wait for
// the session's own loops.
func (c *Controller) completeMining(target CampaignTarget, reason string) {
	c.handle.StopRun()
	c.teardown()

	c.status.ClearMiningFields()
	c.logger.Info().
		Str(logging.FieldCampaignID, target.Campaign.ID).
		Str(logging.FieldReason, reason).
		Msg("mining complete")

	if c.bus != nil && c.settings.Current().NotifyOnComplete {
		c.bus.Publish(events.Event{
			Kind: events.KindMiningComplete,
			MiningComplete: &events.MiningCompletePayload{
				CampaignID:   target.Campaign.ID,
				CampaignName: target.Campaign.Name,
				GameName:     target.Campaign.GameName,
				Reason:       reason,
			},
		})
	}
}

// stopNoChannels ends the session because no eligible channel is live
// anywhere, cached or refreshed. Runs on the heartbeat goroutine.
func (c *Controller) stopNoChannels(failing drops.MiningChannel) {
	c.handle.StopRun()
	c.teardown()

	c.status.ClearMiningFields()
	c.logger.Warn().
		Str(logging.FieldChannel, failing.Login).
		Msg("no eligible channels remain, stopping session")
	c.publishNoChannels("no eligible channels remain live")
}

// teardown cancels the session context and detaches the subscriber.
func (c *Controller) teardown() {
	c.mu.Lock()
	cancel := c.cancel
	subscriber := c.subscriber
	c.cancel = nil
	c.subscriber = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if subscriber != nil {
		subscriber.Disconnect()
	}
}

func (c *Controller) publishNoChannels(reason string) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(events.Event{
		Kind:          events.KindMiningStoppedNoChannels,
		MiningStopped: &events.MiningStoppedPayload{Reason: reason},
	})
}

func indexOf(pool []drops.MiningChannel, id string) int {
	for i, ch := range pool {
		if ch.ID == id {
			return i
		}
	}
	return -1
}
