//go:build test

package settings

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dropstream/drops-miner/testutil"
)

func TestDefaultSettings(t *testing.T) {
	s := Default()
	require.Equal(t, PriorityModeOpen, s.PriorityMode)
	require.True(t, s.AutoClaim)
	require.Equal(t, 60*time.Second, s.HeartbeatInterval)
	require.Equal(t, 60*time.Second, s.PollInterval)
	require.Equal(t, 5, s.MaxLiveChannelsPerCampaign)
	require.Equal(t, 30, s.OpenPoolChannelLimit)
	require.NoError(t, s.Validate())
}

func TestNormalizeFillsZeroValues(t *testing.T) {
	s := Settings{}.Normalize()
	require.Equal(t, PriorityModeOpen, s.PriorityMode)
	require.Equal(t, 60*time.Second, s.HeartbeatInterval)
	require.Equal(t, 5, s.MaxLiveChannelsPerCampaign)

	// Explicit values survive normalization.
	s = Settings{HeartbeatInterval: 30 * time.Second}.Normalize()
	require.Equal(t, 30*time.Second, s.HeartbeatInterval)
}

func TestValidateRejectsUnknownPriorityMode(t *testing.T) {
	s := Default()
	s.PriorityMode = "bogus"
	require.Error(t, s.Validate())
}

func TestGameExcludedIsCaseInsensitive(t *testing.T) {
	s := Default()
	s.ExcludedGames = []string{"Rust"}
	require.True(t, s.GameExcluded("rust"))
	require.True(t, s.GameExcluded("RUST"))
	require.False(t, s.GameExcluded("ARK"))
}

func TestPriorityIndex(t *testing.T) {
	s := Default()
	s.PriorityGames = []string{"Rust", "ARK"}
	require.Equal(t, 0, s.PriorityIndex("Rust"))
	require.Equal(t, 1, s.PriorityIndex("ark"))
	require.Equal(t, -1, s.PriorityIndex("Dota 2"))
}

func TestFileProviderLoadsAndReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("excluded_games: [ARK]\n"), 0o600))

	p, err := NewFileProvider(testutil.NewTestLogger(), path)
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	require.True(t, p.Current().GameExcluded("ARK"))
	require.True(t, p.Current().AutoClaim, "unset fields take defaults")

	require.NoError(t, os.WriteFile(path, []byte("excluded_games: [Rust]\n"), 0o600))
	require.Eventually(t, func() bool {
		return p.Current().GameExcluded("Rust")
	}, 3*time.Second, 20*time.Millisecond)
}

func TestFileProviderRejectsMissingFile(t *testing.T) {
	_, err := NewFileProvider(testutil.NewTestLogger(), filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestFileProviderKeepsLastGoodOnBadEdit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("excluded_games: [ARK]\n"), 0o600))

	p, err := NewFileProvider(testutil.NewTestLogger(), path)
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	require.NoError(t, os.WriteFile(path, []byte("excluded_games: [[[\n"), 0o600))

	// Give the watcher a moment; the last good snapshot must survive.
	time.Sleep(200 * time.Millisecond)
	require.True(t, p.Current().GameExcluded("ARK"))
}
