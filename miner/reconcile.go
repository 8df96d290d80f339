package miner

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dropstream/drops-miner/auth"
	"github.com/dropstream/drops-miner/catalog"
	"github.com/dropstream/drops-miner/client"
	"github.com/dropstream/drops-miner/drops"
	"github.com/dropstream/drops-miner/logging"
	"github.com/dropstream/drops-miner/realtime"
	"github.com/dropstream/drops-miner/settings"
)

// pollCallTimeout bounds a single inventory fetch, distinct from the
// poll interval.
const pollCallTimeout = 15 * time.Second

// CampaignTarget identifies the campaign a session is mining.
type CampaignTarget struct {
	Campaign drops.Campaign
}

// Reconciler merges drop progress from the realtime push path and the
// inventory poll path into the shared progress store and the status
// snapshot. The push path is faster but unreliable; the poll path is
// authoritative and the only one allowed to declare completion.
type Reconciler struct {
	logger   logging.Logger
	client   client.CatalogClient
	catalog  *catalog.Catalog
	progress *drops.ProgressStore
	status   *StatusStore
	settings settings.Provider
	claimer  *AutoClaimer

	pollInterval time.Duration

	mu     sync.RWMutex
	target CampaignTarget

	// onComplete stops the session; set by the controller.
	onComplete func(reason string)
}

var _ realtime.Sink = (*Reconciler)(nil)

// NewReconciler creates the reconciliation component for one session.
func NewReconciler(
	logger logging.Logger,
	cc client.CatalogClient,
	cat *catalog.Catalog,
	progress *drops.ProgressStore,
	status *StatusStore,
	sp settings.Provider,
	claimer *AutoClaimer,
	target CampaignTarget,
	onComplete func(reason string),
) *Reconciler {
	pollInterval := sp.Current().PollInterval

	return &Reconciler{
		logger:       logging.ForComponent(logger, logging.ComponentReconciler),
		client:       cc,
		catalog:      cat,
		progress:     progress,
		status:       status,
		settings:     sp,
		claimer:      claimer,
		pollInterval: pollInterval,
		target:       target,
		onComplete:   onComplete,
	}
}

// Target returns the mined campaign.
func (r *Reconciler) Target() CampaignTarget {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.target
}

// OnProgress implements realtime.Sink: the push path. If the event's
// drop is the status's current drop it is updated in place; otherwise
// the cached campaigns are searched for the drop and, when found and
// mineable, the current-drop pointer is replaced with freshly resolved
// metadata. Zero-minute badge entries never become the tracked drop.
// Drops from campaigns other than the one nominally mined are handled
// exactly this way.
func (r *Reconciler) OnProgress(ctx context.Context, ev realtime.Event) {
	merged, changed := r.progress.Merge(ev.DropID, drops.DropProgress{
		CurrentMinutes:  ev.CurrentMinutes,
		RequiredMinutes: ev.RequiredMinutes,
	})
	if !changed && merged.CurrentMinutes > ev.CurrentMinutes {
		// Stale push behind an earlier poll; keep-highest already won.
		r.logger.Debug().
			Str(logging.FieldDropID, ev.DropID).
			Int(logging.FieldMinutes, ev.CurrentMinutes).
			Int("kept_minutes", merged.CurrentMinutes).
			Str(logging.FieldSource, logging.SourcePush).
			Msg("discarded regressive push update")
	}
	progressUpdates.WithLabelValues(logging.SourcePush).Inc()

	current := r.status.Snapshot().CurrentDrop
	d, camp, found := r.findDrop(ev.DropID)

	switch {
	case found && !d.Mineable():
		// Zero-minute badge entries arrive over push too; they never
		// become the watch target.
		r.logger.Debug().
			Str(logging.FieldDropID, ev.DropID).
			Msg("push update for non-mineable drop, tracking unchanged")
	case current != nil && current.ID == ev.DropID:
		r.status.Update(func(st *drops.MiningStatus) {
			if st.CurrentDrop == nil || st.CurrentDrop.ID != ev.DropID {
				return
			}
			// Snapshots share the pointer; replace rather than mutate.
			updated := *st.CurrentDrop
			updated.CurrentMinutes = merged.CurrentMinutes
			if merged.RequiredMinutes > 0 {
				updated.RequiredMinutes = merged.RequiredMinutes
			}
			updated.UpdatedAt = time.Now()
			st.CurrentDrop = &updated
		})
	case found:
		tracked := trackedFrom(d, camp, merged)
		r.status.Update(func(st *drops.MiningStatus) {
			st.CurrentDrop = &tracked
		})
	default:
		r.logger.Debug().
			Str(logging.FieldDropID, ev.DropID).
			Msg("push update for unknown drop, no cached campaign carries it")
		return
	}

	if found {
		r.claimer.MaybeClaim(ctx, d, camp, r.settings.Current())
	}
}

// findDrop resolves a drop id against the mined campaign first, then
// the full cached catalog.
func (r *Reconciler) findDrop(dropID string) (drops.Drop, drops.Campaign, bool) {
	target := r.Target().Campaign
	if d, ok := target.FindDrop(dropID); ok {
		return d, target, true
	}
	return r.catalog.FindDrop(dropID)
}

// Run drives the inventory poll loop until the session ends.
func (r *Reconciler) Run(ctx context.Context, handle *SessionHandle, seq uint64) {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	r.logger.Info().
		Dur("interval", r.pollInterval).
		Str(logging.FieldCampaignID, r.Target().Campaign.ID).
		Msg("inventory poll loop started")

	// First pass runs immediately so the session surfaces a current
	// drop without waiting a full interval.
	if complete := r.Poll(ctx); complete {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if !handle.ActiveFor(seq) {
			r.logger.Debug().Uint64(logging.FieldSessionSeq, seq).Msg("poll loop superseded, exiting")
			return
		}

		if complete := r.Poll(ctx); complete {
			return
		}
	}
}

// Poll performs one inventory reconciliation pass. It returns true when
// the mined campaign is complete and the session has been stopped.
func (r *Reconciler) Poll(ctx context.Context) bool {
	fetchCtx, cancel := context.WithTimeout(ctx, pollCallTimeout)
	inv, err := r.client.FetchInventory(fetchCtx)
	cancel()

	if err != nil {
		if errors.Is(err, auth.ErrUnauthenticated) {
			r.logger.Error().Err(err).Msg("inventory poll unauthenticated, re-authentication required")
			return false
		}
		// Transport and parse errors are soft: re-attempt on next tick.
		r.logger.Warn().Err(err).Msg("inventory poll failed")
		return false
	}
	progressUpdates.WithLabelValues(logging.SourcePoll).Inc()

	target := r.Target().Campaign

	// Fold inventory progress for the mined campaign into the shared
	// store. The claimed-benefit heuristic covers drops that carry no
	// self-progress at all.
	invCampaign, inInventory := inv.FindCampaign(target.ID)
	if inInventory {
		for _, d := range invCampaign.Drops {
			if d.Progress != nil {
				merged, _ := r.progress.Merge(d.ID, *d.Progress)
				if merged.CurrentMinutes > d.Progress.CurrentMinutes {
					r.logger.Debug().
						Str(logging.FieldDropID, d.ID).
						Int(logging.FieldMinutes, d.Progress.CurrentMinutes).
						Int("kept_minutes", merged.CurrentMinutes).
						Str(logging.FieldSource, logging.SourcePoll).
						Msg("poll reported lower minutes than merged state, keeping higher value")
				}
			}
		}
	}
	for _, d := range target.MineableDrops() {
		invDrop := d
		if inInventory {
			if id, ok := invCampaign.FindDrop(d.ID); ok {
				invDrop = id
			}
		}
		if inv.DropClaimed(invDrop) {
			r.progress.MarkClaimed(d.ID)
		}
	}

	// Remaining = mineable drops not yet satisfied.
	var remaining []drops.Drop
	for _, d := range target.MineableDrops() {
		if p, ok := r.progress.Get(d.ID); ok && p.Satisfied() {
			r.claimer.MaybeClaim(ctx, d, target, r.settings.Current())
			continue
		}
		remaining = append(remaining, d)
	}

	if len(remaining) == 0 {
		r.logger.Info().
			Str(logging.FieldCampaignID, target.ID).
			Str(logging.FieldGame, target.GameName).
			Msg("all mineable drops satisfied, campaign complete")
		campaignsCompleted.Inc()
		r.onComplete("all drops claimed or satisfied")
		return true
	}

	// Surface the drop closest to completion.
	best := remaining[0]
	bestPct := r.percentFor(best)
	for _, d := range remaining[1:] {
		if pct := r.percentFor(d); pct > bestPct {
			best, bestPct = d, pct
		}
	}

	p, _ := r.progress.Get(best.ID)
	tracked := trackedFrom(best, target, p)
	r.status.Update(func(st *drops.MiningStatus) {
		st.CurrentDrop = &tracked
	})

	return false
}

func (r *Reconciler) percentFor(d drops.Drop) float64 {
	p, ok := r.progress.Get(d.ID)
	if !ok {
		return 0
	}
	return p.Percent()
}

// trackedFrom builds the status's current-drop record from a drop, its
// owning campaign and the merged progress.
func trackedFrom(d drops.Drop, camp drops.Campaign, p drops.DropProgress) drops.TrackedDrop {
	required := d.RequiredMinutes
	if p.RequiredMinutes > 0 {
		required = p.RequiredMinutes
	}
	imageURL := ""
	if len(d.Benefits) > 0 {
		imageURL = d.Benefits[0].ImageURL
	}
	return drops.TrackedDrop{
		ID:              d.ID,
		Name:            d.Name,
		ImageURL:        imageURL,
		CampaignID:      camp.ID,
		CampaignName:    camp.Name,
		GameName:        camp.GameName,
		CurrentMinutes:  p.CurrentMinutes,
		RequiredMinutes: required,
		UpdatedAt:       time.Now(),
	}
}
