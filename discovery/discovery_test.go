//go:build test

package discovery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropstream/drops-miner/drops"
	"github.com/dropstream/drops-miner/settings"
	"github.com/dropstream/drops-miner/testutil"
)

func newTestDiscoverer(fake *testutil.FakeCatalogClient) *Discoverer {
	return New(testutil.NewTestLogger(), fake, nil)
}

func TestEligible_ACLCampaignProbesAllowList(t *testing.T) {
	fake := testutil.NewFakeCatalogClient()
	fake.SetLive("ch-alpha", "bc-1", 100)
	// "beta" stays offline.

	camp := testutil.NewCampaignBuilder(1).
		WithACL("alpha", "beta").
		WithDrop("d1", 30).
		Build()

	channels := newTestDiscoverer(fake).Eligible(context.Background(), []drops.Campaign{camp}, settings.Default())
	require.Len(t, channels, 1)
	require.Equal(t, "alpha", channels[0].Login)
	require.True(t, channels[0].FromACL)
	require.Equal(t, camp.GameName, channels[0].GameName)
}

func TestEligible_ACLExhaustedYieldsEmpty(t *testing.T) {
	fake := testutil.NewFakeCatalogClient()
	// ACL enforced but every allow-listed channel is offline; the open
	// pool must never be consulted as a fallback.
	fake.GameChannels["game-1"] = []drops.MiningChannel{testutil.BuildChannel("open", 100)}

	camp := testutil.NewCampaignBuilder(1).
		WithACL("alpha", "beta", "gamma").
		WithDrop("d1", 30).
		Build()
	camp.GameID = "game-1"

	channels := newTestDiscoverer(fake).Eligible(context.Background(), []drops.Campaign{camp}, settings.Default())
	require.Empty(t, channels)
}

func TestEligible_ACLLiveCapStopsProbing(t *testing.T) {
	fake := testutil.NewFakeCatalogClient()
	logins := []string{"a", "b", "c", "d", "e", "f"}
	for _, l := range logins {
		fake.SetLive("ch-"+l, "bc-"+l, 10)
	}

	camp := testutil.NewCampaignBuilder(1).
		WithACL(logins...).
		WithDrop("d1", 30).
		Build()

	s := settings.Default()
	s.MaxLiveChannelsPerCampaign = 2

	channels := newTestDiscoverer(fake).Eligible(context.Background(), []drops.Campaign{camp}, s)
	require.Len(t, channels, 2)
	require.Len(t, fake.ProbeCalls(), 2, "probing must stop at the live cap")
}

func TestEligible_OpenCampaignUsesGamePool(t *testing.T) {
	fake := testutil.NewFakeCatalogClient()
	fake.GameChannels["game-2"] = []drops.MiningChannel{
		testutil.BuildChannel("one", 50),
		testutil.BuildChannel("two", 70),
	}

	camp := testutil.NewCampaignBuilder(2).WithDrop("d1", 30).Build()
	camp.GameID = "game-2"

	channels := newTestDiscoverer(fake).Eligible(context.Background(), []drops.Campaign{camp}, settings.Default())
	require.Len(t, channels, 2)
	require.Empty(t, fake.ProbeCalls(), "open campaigns never probe channel-by-channel")
}

func TestEligible_DedupsAndOrdersACLFirst(t *testing.T) {
	fake := testutil.NewFakeCatalogClient()
	fake.SetLive("ch-shared", "bc-1", 100)
	fake.GameChannels["game-open"] = []drops.MiningChannel{
		testutil.BuildChannel("shared", 100),
		testutil.BuildChannel("other", 10),
	}

	aclCamp := testutil.NewCampaignBuilder(1).
		WithACL("shared").
		WithDrop("d1", 30).
		Build()
	openCamp := testutil.NewCampaignBuilder(2).WithDrop("d2", 30).Build()
	openCamp.GameID = "game-open"

	channels := newTestDiscoverer(fake).Eligible(
		context.Background(),
		[]drops.Campaign{aclCamp, openCamp},
		settings.Default(),
	)

	require.Len(t, channels, 2, "the shared channel appears once")
	require.Equal(t, "shared", channels[0].Login)
	require.True(t, channels[0].FromACL, "the ACL-sourced copy wins the dedup")
	require.Equal(t, "other", channels[1].Login)
}

func TestFirstEligible_ReturnsOnFirstHit(t *testing.T) {
	fake := testutil.NewFakeCatalogClient()
	fake.SetLive("ch-second", "bc-2", 500)

	first := testutil.NewCampaignBuilder(1).
		WithACL("first").
		WithDrop("d1", 30).
		Build()
	second := testutil.NewCampaignBuilder(2).
		WithACL("second").
		WithDrop("d2", 30).
		Build()

	ch, camp, ok := newTestDiscoverer(fake).FirstEligible(
		context.Background(),
		[]drops.Campaign{first, second},
		settings.Default(),
	)
	require.True(t, ok)
	require.Equal(t, "second", ch.Login)
	require.Equal(t, second.ID, camp.ID)
}

func TestFirstEligible_NothingLive(t *testing.T) {
	fake := testutil.NewFakeCatalogClient()
	camp := testutil.NewCampaignBuilder(1).
		WithACL("alpha").
		WithDrop("d1", 30).
		Build()

	_, _, ok := newTestDiscoverer(fake).FirstEligible(context.Background(), []drops.Campaign{camp}, settings.Default())
	require.False(t, ok)
}
