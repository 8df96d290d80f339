package miner

import (
	"context"
	"time"

	"github.com/dropstream/drops-miner/client"
	"github.com/dropstream/drops-miner/discovery"
	"github.com/dropstream/drops-miner/drops"
	"github.com/dropstream/drops-miner/logging"
	"github.com/dropstream/drops-miner/settings"
)

// probeTimeout bounds individual liveness probes during a switch scan.
const probeTimeout = 15 * time.Second

// SwitchResult describes a successful channel switch.
type SwitchResult struct {
	// Channel is the new channel to watch.
	Channel drops.MiningChannel

	// BroadcastID is the new channel's live broadcast id.
	BroadcastID string

	// Index is the new channel's position in the (possibly refreshed)
	// cached list; the next scan starts after it.
	Index int

	// Refreshed is non-nil when the scan required a fresh discovery
	// pass; the caller must replace its cached channel list with it.
	Refreshed []drops.MiningChannel
}

// Failover scans for a replacement channel when the heartbeat gives up
// on the current one.
type Failover struct {
	logger     logging.Logger
	client     client.CatalogClient
	discoverer *discovery.Discoverer
}

// NewFailover creates the failover scanner.
func NewFailover(logger logging.Logger, cc client.CatalogClient, disc *discovery.Discoverer) *Failover {
	return &Failover{
		logger:     logging.ForComponent(logger, logging.ComponentFailover),
		client:     cc,
		discoverer: disc,
	}
}

// TrySwitch scans the cached channel list starting after lastIndex,
// skipping the failing channel, probing each candidate's live status.
// It returns the first still-live candidate with a resolved broadcast
// id, or false when the cached pool is exhausted.
func (f *Failover) TrySwitch(ctx context.Context, cached []drops.MiningChannel, failingID string, lastIndex int) (*SwitchResult, bool) {
	n := len(cached)
	if n == 0 {
		return nil, false
	}

	// One full lap over the list, starting after the last position so
	// repeated switches rotate through the pool instead of hammering
	// the front.
	for step := 1; step <= n; step++ {
		idx := (lastIndex + step) % n
		candidate := cached[idx]
		if candidate.ID == failingID {
			continue
		}

		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		stream, err := f.client.ProbeLiveness(probeCtx, candidate.ID)
		cancel()

		if err != nil {
			f.logger.Debug().Err(err).
				Str(logging.FieldChannel, candidate.Login).
				Msg("switch candidate probe failed")
			continue
		}
		if stream == nil || stream.BroadcastID == "" {
			continue
		}

		candidate.Online = true
		candidate.Viewers = stream.Viewers
		candidate.DropsEnabled = stream.DropsEnabled

		f.logger.Info().
			Str(logging.FieldChannel, candidate.Login).
			Str(logging.FieldBroadcastID, stream.BroadcastID).
			Msg("found live switch candidate")

		return &SwitchResult{
			Channel:     candidate,
			BroadcastID: stream.BroadcastID,
			Index:       idx,
		}, true
	}

	return nil, false
}

// TrySwitchWithRefresh first scans the cached pool; when that yields no
// live candidate it re-runs channel discovery against the catalog
// client for a fresh pool and repeats the scan. Returns false only when
// even the refreshed pool has no live channel - the caller must treat
// that as terminal for the session, not as a retryable error.
func (f *Failover) TrySwitchWithRefresh(
	ctx context.Context,
	cached []drops.MiningChannel,
	failingID string,
	lastIndex int,
	campaigns []drops.Campaign,
	s settings.Settings,
) (*SwitchResult, bool) {
	if result, ok := f.TrySwitch(ctx, cached, failingID, lastIndex); ok {
		return result, true
	}

	f.logger.Info().
		Int("cached_channels", len(cached)).
		Msg("cached pool exhausted, refreshing channel discovery")
	poolRefreshes.Inc()

	refreshed := f.discoverer.Eligible(ctx, campaigns, s)
	if len(refreshed) == 0 {
		return nil, false
	}

	// Fresh pool, fresh scan: no position to resume from.
	result, ok := f.TrySwitch(ctx, refreshed, failingID, -1)
	if !ok {
		return nil, false
	}
	result.Refreshed = refreshed
	return result, true
}
