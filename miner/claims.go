package miner

import (
	"context"
	"sync"
	"time"

	"github.com/dropstream/drops-miner/client"
	"github.com/dropstream/drops-miner/drops"
	"github.com/dropstream/drops-miner/events"
	"github.com/dropstream/drops-miner/logging"
	"github.com/dropstream/drops-miner/settings"
)

const claimCallTimeout = 15 * time.Second

// AutoClaimer submits claims for satisfied drops. Each drop gets
// exactly one submission attempt per session: the claim endpoint is
// not idempotent on every backend revision, and a failed claim will be
// retried naturally when the next session starts.
type AutoClaimer struct {
	logger   logging.Logger
	client   client.CatalogClient
	progress *drops.ProgressStore
	bus      *events.Bus
	userID   string

	mu        sync.Mutex
	attempted map[string]struct{}
	notified  map[string]struct{}
}

// NewAutoClaimer creates a claimer for one session. A nil bus disables
// notifications (tests).
func NewAutoClaimer(
	logger logging.Logger,
	cc client.CatalogClient,
	progress *drops.ProgressStore,
	bus *events.Bus,
	userID string,
) *AutoClaimer {
	return &AutoClaimer{
		logger:    logging.ForComponent(logger, logging.ComponentClaimer),
		client:    cc,
		progress:  progress,
		bus:       bus,
		userID:    userID,
		attempted: make(map[string]struct{}),
		notified:  make(map[string]struct{}),
	}
}

// MaybeClaim inspects the drop's merged progress and, when the drop is
// satisfied and unclaimed, emits a ready notification and (with
// auto-claim enabled) submits one claim. Safe to call repeatedly.
func (a *AutoClaimer) MaybeClaim(ctx context.Context, d drops.Drop, camp drops.Campaign, s settings.Settings) {
	p, ok := a.progress.Get(d.ID)
	if !ok || !p.Satisfied() || p.Claimed {
		return
	}

	a.notifyReady(d, camp, s)

	if !s.AutoClaim {
		return
	}

	a.mu.Lock()
	if _, done := a.attempted[d.ID]; done {
		a.mu.Unlock()
		return
	}
	a.attempted[d.ID] = struct{}{}
	a.mu.Unlock()

	a.submit(ctx, d, camp, s, p)
}

func (a *AutoClaimer) submit(ctx context.Context, d drops.Drop, camp drops.Campaign, s settings.Settings, p drops.DropProgress) {
	token := drops.ClaimTokenFor(p, a.userID, camp.ID, d.ID)

	claimCtx, cancel := context.WithTimeout(ctx, claimCallTimeout)
	err := a.client.SubmitClaim(claimCtx, token)
	cancel()

	result := "ok"
	if err != nil {
		result = "error"
		a.logger.Warn().Err(err).
			Str(logging.FieldDropID, d.ID).
			Str(logging.FieldCampaignID, camp.ID).
			Msg("claim submission failed, not retrying this session")
	} else {
		a.logger.Info().
			Str(logging.FieldDropID, d.ID).
			Str(logging.FieldDrop, d.Name).
			Str(logging.FieldCampaignID, camp.ID).
			Msg("drop claimed")
	}
	claimsSubmitted.WithLabelValues(result).Inc()

	// Either way the drop is marked claimed locally so the session
	// moves on instead of hammering the claim endpoint.
	a.progress.MarkClaimed(d.ID)

	if err == nil && a.bus != nil && s.NotifyOnDropClaim {
		a.bus.Publish(events.Event{
			Kind:        events.KindDropClaimed,
			DropClaimed: dropPayload(d, camp),
		})
	}
}

func (a *AutoClaimer) notifyReady(d drops.Drop, camp drops.Campaign, s settings.Settings) {
	a.mu.Lock()
	if _, done := a.notified[d.ID]; done {
		a.mu.Unlock()
		return
	}
	a.notified[d.ID] = struct{}{}
	a.mu.Unlock()

	if a.bus == nil || !s.NotifyOnDropReady {
		return
	}
	a.bus.Publish(events.Event{
		Kind:      events.KindDropReadyToClaim,
		DropReady: dropPayload(d, camp),
	})
}

func dropPayload(d drops.Drop, camp drops.Campaign) *events.DropPayload {
	imageURL := ""
	if len(d.Benefits) > 0 {
		imageURL = d.Benefits[0].ImageURL
	}
	return &events.DropPayload{
		DropID:       d.ID,
		DropName:     d.Name,
		ImageURL:     imageURL,
		CampaignID:   camp.ID,
		CampaignName: camp.Name,
		GameName:     camp.GameName,
	}
}
