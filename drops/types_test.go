//go:build test

package drops

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDropMineable(t *testing.T) {
	require.True(t, Drop{ID: "d1", RequiredMinutes: 30}.Mineable())
	require.False(t, Drop{ID: "d2"}.Mineable(), "zero-minute drops are badge/event rewards")
	require.False(t, Drop{ID: "d3", RequiredMinutes: -1}.Mineable())
}

func TestCampaignActiveWindow(t *testing.T) {
	now := time.Now()
	camp := Campaign{
		ID:       "c1",
		GameID:   "g1",
		GameName: "Rust",
		StartAt:  now.Add(-time.Hour),
		EndAt:    now.Add(time.Hour),
	}
	require.True(t, camp.ActiveAt(now))
	require.False(t, camp.ActiveAt(now.Add(2*time.Hour)))
	require.True(t, camp.Valid(now))

	// Missing game metadata makes a campaign unusable for discovery.
	camp.GameName = ""
	require.False(t, camp.Valid(now))
}

func TestCampaignMineableDrops(t *testing.T) {
	camp := Campaign{
		Drops: []Drop{
			{ID: "timed", RequiredMinutes: 30},
			{ID: "badge"},
			{ID: "timed-2", RequiredMinutes: 60},
		},
	}
	mineable := camp.MineableDrops()
	require.Len(t, mineable, 2)
	for _, d := range mineable {
		require.True(t, d.Mineable())
	}
}

func TestDeriveClaimToken(t *testing.T) {
	token := DeriveClaimToken("user-1", "camp-1", "drop-1")
	decoded, err := base64.StdEncoding.DecodeString(token)
	require.NoError(t, err)
	require.Equal(t, "user-1#camp-1#drop-1", string(decoded))

	require.Empty(t, DeriveClaimToken("", "camp-1", "drop-1"))
	require.Empty(t, DeriveClaimToken("user-1", "", "drop-1"))
	require.Empty(t, DeriveClaimToken("user-1", "camp-1", ""))
}

func TestClaimTokenFor_PrefersExplicitToken(t *testing.T) {
	p := DropProgress{ClaimToken: "explicit"}
	require.Equal(t, "explicit", ClaimTokenFor(p, "u", "c", "d"))
	require.Equal(t, DeriveClaimToken("u", "c", "d"), ClaimTokenFor(DropProgress{}, "u", "c", "d"))
}

func TestInventoryDropClaimed(t *testing.T) {
	inv := InventorySnapshot{ClaimedBenefitIDs: []string{"b1", "b2"}}

	// Explicit progress record answers from the record alone.
	claimed := Drop{
		ID:       "d1",
		Benefits: []Benefit{{ID: "b1"}},
		Progress: &DropProgress{Claimed: false},
	}
	require.False(t, inv.DropClaimed(claimed), "a progress record overrides the benefit heuristic")

	claimed.Progress = &DropProgress{Claimed: true}
	require.True(t, inv.DropClaimed(claimed))

	// No progress record: claimed-benefit heuristic applies.
	badge := Drop{ID: "d2", Benefits: []Benefit{{ID: "b2"}}}
	require.True(t, inv.DropClaimed(badge))

	unknown := Drop{ID: "d3", Benefits: []Benefit{{ID: "b9"}}}
	require.False(t, inv.DropClaimed(unknown))
}
