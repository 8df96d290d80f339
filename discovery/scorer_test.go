//go:build test

package discovery

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropstream/drops-miner/drops"
	"github.com/dropstream/drops-miner/settings"
	"github.com/dropstream/drops-miner/testutil"
)

func TestSelectBest_PrefersViewerCount(t *testing.T) {
	s := settings.Default()
	channels := []drops.MiningChannel{
		testutil.BuildChannel("small", 120),
		testutil.BuildChannel("big", 5000),
		testutil.BuildChannel("medium", 900),
	}

	best := SelectBest(channels, s)
	require.NotNil(t, best)
	require.Equal(t, "big", best.Login)
}

func TestSelectBest_ViewerCountIsCapped(t *testing.T) {
	s := settings.Default()
	s.PriorityGames = []string{"Rust"}

	priority := testutil.BuildChannel("priority", 0)
	priority.GameName = "Rust"
	giant := testutil.BuildChannel("giant", 5_000_000)

	// Even five million viewers cannot outvote priority membership.
	best := SelectBest([]drops.MiningChannel{giant, priority}, s)
	require.NotNil(t, best)
	require.Equal(t, "priority", best.Login)
}

func TestSelectBest_ACLOutranksOpenPool(t *testing.T) {
	s := settings.Default()

	acl := testutil.BuildChannel("acl", 100)
	acl.FromACL = true
	open := testutil.BuildChannel("open", 40000)

	best := SelectBest([]drops.MiningChannel{open, acl}, s)
	require.NotNil(t, best)
	require.Equal(t, "acl", best.Login)
}

func TestSelectBest_PriorityOrderMatters(t *testing.T) {
	s := settings.Default()
	s.PriorityGames = []string{"First", "Second"}

	first := testutil.BuildChannel("first", 0)
	first.GameName = "First"
	second := testutil.BuildChannel("second", 500)
	second.GameName = "Second"

	best := SelectBest([]drops.MiningChannel{second, first}, s)
	require.NotNil(t, best)
	require.Equal(t, "first", best.Login, "earlier priority entries score higher")
}

func TestSelectBest_SkipsUnwatchable(t *testing.T) {
	s := settings.Default()

	offline := testutil.BuildChannel("offline", 9000)
	offline.Online = false
	noDrops := testutil.BuildChannel("nodrops", 9000)
	noDrops.DropsEnabled = false
	live := testutil.BuildChannel("live", 10)

	best := SelectBest([]drops.MiningChannel{offline, noDrops, live}, s)
	require.NotNil(t, best)
	require.Equal(t, "live", best.Login)

	require.Nil(t, SelectBest([]drops.MiningChannel{offline, noDrops}, s))
}

func TestSelectBest_StableForIdenticalScores(t *testing.T) {
	s := settings.Default()
	a := testutil.BuildChannel("a", 100)
	b := testutil.BuildChannel("b", 100)

	for i := 0; i < 10; i++ {
		best := SelectBest([]drops.MiningChannel{a, b}, s)
		require.NotNil(t, best)
		require.Equal(t, "a", best.Login, "ties keep input order")
	}
}
