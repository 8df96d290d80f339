//go:build test

package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropstream/drops-miner/drops"
	"github.com/dropstream/drops-miner/settings"
	"github.com/dropstream/drops-miner/testutil"
)

func TestFetchActive_DropsInvalidCampaigns(t *testing.T) {
	fake := testutil.NewFakeCatalogClient()
	valid := testutil.NewCampaignBuilder(1).WithDrop("d1", 30).Build()
	expired := testutil.NewCampaignBuilder(2).
		WithWindow(time.Now().Add(-2*time.Hour), time.Now().Add(-time.Hour)).
		Build()
	noGame := testutil.NewCampaignBuilder(3).Build()
	noGame.GameName = ""
	fake.Campaigns = []drops.Campaign{valid, expired, noGame}

	cat := New(testutil.NewTestLogger(), fake, nil)
	campaigns, err := cat.FetchActive(context.Background())
	require.NoError(t, err)
	require.Len(t, campaigns, 1)
	require.Equal(t, valid.ID, campaigns[0].ID)
}

func TestFetchActive_MergesSelfProgress(t *testing.T) {
	fake := testutil.NewFakeCatalogClient()
	camp := testutil.NewCampaignBuilder(1).
		WithDropProgress("d1", 60, drops.DropProgress{CurrentMinutes: 25, RequiredMinutes: 60}).
		Build()
	fake.Campaigns = []drops.Campaign{camp}

	progress := drops.NewProgressStore()
	cat := New(testutil.NewTestLogger(), fake, progress)

	_, err := cat.FetchActive(context.Background())
	require.NoError(t, err)

	p, ok := progress.Get("d1")
	require.True(t, ok)
	require.Equal(t, 25, p.CurrentMinutes)
}

func TestCached_ServesWithinTTL(t *testing.T) {
	fake := testutil.NewFakeCatalogClient()
	fake.Campaigns = []drops.Campaign{testutil.NewCampaignBuilder(1).WithDrop("d1", 30).Build()}

	cat := New(testutil.NewTestLogger(), fake, nil).WithTTL(time.Minute)

	first, err := cat.Cached(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 1)

	// Mutating the upstream must not show through while fresh.
	fake.Campaigns = nil
	second, err := cat.Cached(context.Background())
	require.NoError(t, err)
	require.Len(t, second, 1)

	cat.Invalidate()
	third, err := cat.Cached(context.Background())
	require.NoError(t, err)
	require.Empty(t, third)
}

func TestFindDrop(t *testing.T) {
	fake := testutil.NewFakeCatalogClient()
	camp := testutil.NewCampaignBuilder(1).WithDrop("d1", 30).WithDrop("d2", 60).Build()
	fake.Campaigns = []drops.Campaign{camp}

	cat := New(testutil.NewTestLogger(), fake, nil)
	_, err := cat.FetchActive(context.Background())
	require.NoError(t, err)

	d, owner, ok := cat.FindDrop("d2")
	require.True(t, ok)
	require.Equal(t, "d2", d.ID)
	require.Equal(t, camp.ID, owner.ID)

	_, _, ok = cat.FindDrop("missing")
	require.False(t, ok)
}

func TestApplyFilters_ExcludedGamesNeverSurvive(t *testing.T) {
	rust := testutil.NewCampaignBuilder(1).WithGame("Rust").Build()
	ark := testutil.NewCampaignBuilder(2).WithGame("ARK").Build()

	s := settings.Default()
	s.ExcludedGames = []string{"ARK"}

	filtered := ApplyFilters([]drops.Campaign{rust, ark}, s)
	require.Len(t, filtered, 1)
	require.Equal(t, "Rust", filtered[0].GameName)
}

func TestApplyFilters_PriorityOnlyMode(t *testing.T) {
	rust := testutil.NewCampaignBuilder(1).WithGame("Rust").Build()
	ark := testutil.NewCampaignBuilder(2).WithGame("ARK").Build()
	both := []drops.Campaign{rust, ark}

	s := settings.Default()
	s.PriorityMode = settings.PriorityModePriorityOnly
	s.PriorityGames = []string{"Rust"}

	filtered := ApplyFilters(both, s)
	require.Len(t, filtered, 1)
	require.Equal(t, "Rust", filtered[0].GameName)

	// An empty priority list disables the restriction.
	s.PriorityGames = nil
	require.Len(t, ApplyFilters(both, s), 2)
}

func TestApplyFilters_ExclusionBeatsPriority(t *testing.T) {
	rust := testutil.NewCampaignBuilder(1).WithGame("Rust").Build()

	s := settings.Default()
	s.PriorityGames = []string{"Rust"}
	s.ExcludedGames = []string{"Rust"}

	require.Empty(t, ApplyFilters([]drops.Campaign{rust}, s), "exclusion wins over priority membership")
}
