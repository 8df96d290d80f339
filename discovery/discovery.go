// Package discovery finds live channels eligible to earn campaign
// progress and ranks them for selection. ACL campaigns are probed
// channel-by-channel with a per-campaign live cap; open campaigns are
// queried as a game pool.
package discovery

import (
	"context"
	"sync"
	"time"

	pond "github.com/alitto/pond/v2"

	"github.com/dropstream/drops-miner/client"
	"github.com/dropstream/drops-miner/drops"
	"github.com/dropstream/drops-miner/logging"
	"github.com/dropstream/drops-miner/observability"
	"github.com/dropstream/drops-miner/settings"
)

// defaultCampaignWorkers bounds how many campaigns are probed
// concurrently. Discovery latency stays bounded without hammering the
// liveness endpoint.
const defaultCampaignWorkers = 4

// Discoverer locates eligible mining channels across campaigns.
type Discoverer struct {
	logger logging.Logger
	client client.CatalogClient
	pool   pond.Pool
}

// New creates a Discoverer. The pool parameter may be a subpool of the
// process-wide worker pool; nil creates a private bounded pool.
func New(logger logging.Logger, cc client.CatalogClient, pool pond.Pool) *Discoverer {
	if pool == nil {
		pool = pond.NewPool(defaultCampaignWorkers)
	}
	return &Discoverer{
		logger: logging.ForComponent(logger, logging.ComponentDiscovery),
		client: cc,
		pool:   pool,
	}
}

// Eligible discovers currently live channels eligible to earn progress
// for the given (already filtered) campaigns. Campaigns are processed
// concurrently on the bounded pool; a probe failure for one channel
// never aborts discovery for the rest. The result is deduplicated by
// channel id, ACL-sourced channels first, preserving campaign order
// within each class.
func (d *Discoverer) Eligible(ctx context.Context, campaigns []drops.Campaign, s settings.Settings) []drops.MiningChannel {
	start := time.Now()
	defer func() {
		observability.OperationDurationSeconds.
			WithLabelValues(logging.ComponentDiscovery, "discovery_pass", "ok").
			Observe(time.Since(start).Seconds())
	}()

	perCampaign := make([][]drops.MiningChannel, len(campaigns))

	group := d.pool.NewGroup()
	var mu sync.Mutex
	for i, camp := range campaigns {
		i, camp := i, camp
		group.Submit(func() {
			found := d.campaignChannels(ctx, camp, s)
			mu.Lock()
			perCampaign[i] = found
			mu.Unlock()
		})
	}
	_ = group.Wait()

	// Dedup by channel id; a channel may legitimately serve multiple
	// simultaneous campaigns. ACL channels enumerate first so they keep
	// their rank advantage downstream.
	seen := make(map[string]struct{})
	var acl, open []drops.MiningChannel
	for _, chans := range perCampaign {
		for _, ch := range chans {
			if _, dup := seen[ch.ID]; dup {
				continue
			}
			seen[ch.ID] = struct{}{}
			if ch.FromACL {
				acl = append(acl, ch)
			} else {
				open = append(open, ch)
			}
		}
	}

	channelsDiscovered.Set(float64(len(acl) + len(open)))
	return append(acl, open...)
}

// campaignChannels discovers channels for one campaign.
func (d *Discoverer) campaignChannels(ctx context.Context, camp drops.Campaign, s settings.Settings) []drops.MiningChannel {
	if camp.ACLEnforced {
		return d.probeACL(ctx, camp, s.MaxLiveChannelsPerCampaign)
	}

	channels, err := d.client.LiveChannelsForGame(ctx, camp.GameID, s.OpenPoolChannelLimit)
	if err != nil {
		probeFailures.Inc()
		d.logger.Warn().Err(err).
			Str(logging.FieldCampaignID, camp.ID).
			Str(logging.FieldGame, camp.GameName).
			Msg("open-pool channel query failed")
		return nil
	}
	return channels
}

// probeACL probes an access-controlled campaign's allow-list channel by
// channel, stopping once liveCap live channels are found. The cap
// bounds worst-case discovery latency on large allow-lists.
func (d *Discoverer) probeACL(ctx context.Context, camp drops.Campaign, liveCap int) []drops.MiningChannel {
	if liveCap <= 0 {
		liveCap = 1
	}

	var live []drops.MiningChannel
	for _, ref := range camp.AllowedChannels {
		if ctx.Err() != nil {
			break
		}

		ch, ok := d.probeOne(ctx, ref, camp)
		if !ok {
			continue
		}
		live = append(live, ch)
		if len(live) >= liveCap {
			break
		}
	}
	return live
}

// probeOne checks a single allow-listed channel's liveness. Failures
// are logged and reported as "not live" so the caller's loop continues.
func (d *Discoverer) probeOne(ctx context.Context, ref drops.ChannelRef, camp drops.Campaign) (drops.MiningChannel, bool) {
	livenessProbes.Inc()

	stream, err := d.client.ProbeLiveness(ctx, ref.ID)
	if err != nil {
		probeFailures.Inc()
		d.logger.Debug().Err(err).
			Str(logging.FieldChannel, ref.Login).
			Str(logging.FieldCampaignID, camp.ID).
			Msg("liveness probe failed")
		return drops.MiningChannel{}, false
	}
	if stream == nil || !stream.DropsEnabled {
		return drops.MiningChannel{}, false
	}

	return drops.MiningChannel{
		ID:           ref.ID,
		Login:        ref.Login,
		GameID:       camp.GameID,
		GameName:     camp.GameName,
		Viewers:      stream.Viewers,
		DropsEnabled: true,
		Online:       true,
		FromACL:      true,
	}, true
}

// FirstEligible is the fast path for automatic mode: it returns as soon
// as ANY live channel is found instead of exhaustively enumerating.
// ACL channels are checked first; open campaigns fall back to a
// single-channel pool query. Completeness is traded for latency because
// auto-mode only ever needs one channel at a time.
func (d *Discoverer) FirstEligible(ctx context.Context, campaigns []drops.Campaign, s settings.Settings) (*drops.MiningChannel, *drops.Campaign, bool) {
	for i := range campaigns {
		camp := campaigns[i]

		if camp.ACLEnforced {
			for _, ref := range camp.AllowedChannels {
				if ctx.Err() != nil {
					return nil, nil, false
				}
				if ch, ok := d.probeOne(ctx, ref, camp); ok {
					return &ch, &camp, true
				}
			}
			continue
		}

		channels, err := d.client.LiveChannelsForGame(ctx, camp.GameID, 1)
		if err != nil {
			probeFailures.Inc()
			d.logger.Warn().Err(err).
				Str(logging.FieldCampaignID, camp.ID).
				Msg("open-pool query failed during fast discovery")
			continue
		}
		if len(channels) > 0 {
			ch := channels[0]
			return &ch, &camp, true
		}
	}
	return nil, nil, false
}
