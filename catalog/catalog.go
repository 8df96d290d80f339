// Package catalog maintains the campaign catalog: fetching active
// campaigns from the catalog client, normalizing them, caching the
// result with a short TTL, and applying the user's campaign filters.
package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/dropstream/drops-miner/client"
	"github.com/dropstream/drops-miner/drops"
	"github.com/dropstream/drops-miner/logging"
	"github.com/dropstream/drops-miner/settings"
)

// defaultTTL is how long a fetch result stays fresh.
const defaultTTL = 5 * time.Minute

// Catalog fetches and caches active reward campaigns. Safe for
// concurrent use: the cache is RWMutex-guarded and a fetch in flight is
// shared by all waiting callers rather than stampeding the upstream.
type Catalog struct {
	logger   logging.Logger
	client   client.CatalogClient
	progress *drops.ProgressStore
	ttl      time.Duration

	mu        sync.RWMutex
	cached    []drops.Campaign
	fetchedAt time.Time

	// fetchMu serializes upstream fetches (single-flight).
	fetchMu sync.Mutex
}

// New creates a campaign catalog. The progress store receives the
// self-progress carried by fetch responses as a side effect, so other
// components see fresh progress without a separate round-trip.
func New(logger logging.Logger, cc client.CatalogClient, progress *drops.ProgressStore) *Catalog {
	return &Catalog{
		logger:   logging.ForComponent(logger, logging.ComponentCatalog),
		client:   cc,
		progress: progress,
		ttl:      defaultTTL,
	}
}

// WithTTL overrides the cache TTL. Zero or negative restores default.
func (c *Catalog) WithTTL(ttl time.Duration) *Catalog {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	c.ttl = ttl
	return c
}

// FetchActive fetches all currently running campaigns, keeping only
// structurally valid ones (non-empty game, window containing now), and
// refreshes the cache and the shared progress store.
func (c *Catalog) FetchActive(ctx context.Context) ([]drops.Campaign, error) {
	raw, err := c.client.ListActiveCampaigns(ctx)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	valid := make([]drops.Campaign, 0, len(raw))
	skipped := 0
	for _, camp := range raw {
		if !camp.Valid(now) {
			skipped++
			continue
		}
		valid = append(valid, camp)
		c.mergeSelfProgress(camp)
	}

	c.mu.Lock()
	c.cached = valid
	c.fetchedAt = now
	c.mu.Unlock()

	campaignsFetched.Set(float64(len(valid)))
	c.logger.Debug().
		Int("campaigns", len(valid)).
		Int("skipped", skipped).
		Msg("fetched active campaigns")

	return valid, nil
}

// Cached returns the last fetch result if it is younger than the TTL,
// fetching otherwise. Idempotent and safe for concurrent callers.
func (c *Catalog) Cached(ctx context.Context) ([]drops.Campaign, error) {
	if campaigns, ok := c.fresh(); ok {
		cacheHits.Inc()
		return campaigns, nil
	}

	// Single-flight: one caller fetches, the rest reuse its result.
	c.fetchMu.Lock()
	defer c.fetchMu.Unlock()

	if campaigns, ok := c.fresh(); ok {
		cacheHits.Inc()
		return campaigns, nil
	}

	cacheMisses.Inc()
	return c.FetchActive(ctx)
}

func (c *Catalog) fresh() ([]drops.Campaign, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.fetchedAt.IsZero() || time.Since(c.fetchedAt) >= c.ttl {
		return nil, false
	}
	return c.cached, true
}

// Invalidate forces the next Cached call to fetch.
func (c *Catalog) Invalidate() {
	c.mu.Lock()
	c.fetchedAt = time.Time{}
	c.mu.Unlock()
}

// FindDrop searches the cached campaigns for a drop by id, returning
// the drop and its owning campaign. Used by the push reconciliation
// path to resolve metadata for drops outside the mined campaign.
func (c *Catalog) FindDrop(dropID string) (drops.Drop, drops.Campaign, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, camp := range c.cached {
		if d, ok := camp.FindDrop(dropID); ok {
			return d, camp, true
		}
	}
	return drops.Drop{}, drops.Campaign{}, false
}

// mergeSelfProgress folds drop self-progress from a fetch response into
// the shared progress store.
func (c *Catalog) mergeSelfProgress(camp drops.Campaign) {
	if c.progress == nil {
		return
	}
	for _, d := range camp.Drops {
		if d.Progress != nil {
			c.progress.Merge(d.ID, *d.Progress)
		}
	}
}

// ApplyFilters drops campaigns whose game is excluded, and in
// priority-only mode with a non-empty priority list, campaigns whose
// game is absent from that list. Pure function.
func ApplyFilters(campaigns []drops.Campaign, s settings.Settings) []drops.Campaign {
	priorityOnly := s.PriorityMode == settings.PriorityModePriorityOnly && len(s.PriorityGames) > 0

	out := make([]drops.Campaign, 0, len(campaigns))
	for _, camp := range campaigns {
		if s.GameExcluded(camp.GameName) {
			continue
		}
		if priorityOnly && s.PriorityIndex(camp.GameName) < 0 {
			continue
		}
		out = append(out, camp)
	}
	return out
}
