// Package settings holds the user-owned mining preferences. The engine
// reads them and never writes them; a file-backed provider hot-reloads
// edits so preference changes apply without a restart.
package settings

import (
	"fmt"
	"time"
)

// PriorityMode controls how the priority-game list is applied.
type PriorityMode string

const (
	// PriorityModeOpen mines any non-excluded campaign; the priority
	// list only influences channel scoring.
	PriorityModeOpen PriorityMode = "open"

	// PriorityModePriorityOnly mines only campaigns whose game appears
	// in the priority list (when the list is non-empty).
	PriorityModePriorityOnly PriorityMode = "priority-only"
)

// Settings are the user-configured mining preferences.
type Settings struct {
	// ExcludedGames is a set of game names that are never mined.
	ExcludedGames []string `yaml:"excluded_games"`

	// PriorityGames is an ordered list of preferred game names.
	// Position matters: earlier entries score higher.
	PriorityGames []string `yaml:"priority_games"`

	// PriorityMode selects open vs priority-only campaign filtering.
	// Default: open
	PriorityMode PriorityMode `yaml:"priority_mode"`

	// AutoClaim enables automatic claim submission for completed drops.
	// Default: true
	AutoClaim bool `yaml:"auto_claim"`

	// HeartbeatInterval overrides the watch-signal tick.
	// Default: 60s
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`

	// PollInterval overrides the inventory-poll tick.
	// Default: 60s
	PollInterval time.Duration `yaml:"poll_interval"`

	// MaxLiveChannelsPerCampaign caps ACL liveness probing per campaign.
	// Bounds worst-case discovery latency for large allow-lists.
	// Default: 5
	MaxLiveChannelsPerCampaign int `yaml:"max_live_channels_per_campaign"`

	// OpenPoolChannelLimit is how many live channels to request per game
	// in open (non-ACL) discovery.
	// Default: 30
	OpenPoolChannelLimit int `yaml:"open_pool_channel_limit"`

	// Notification toggles.
	NotifyOnDropClaim     bool `yaml:"notify_on_drop_claim"`
	NotifyOnDropReady     bool `yaml:"notify_on_drop_ready"`
	NotifyOnChannelSwitch bool `yaml:"notify_on_channel_switch"`
	NotifyOnComplete      bool `yaml:"notify_on_complete"`
}

// Default returns Settings with sensible defaults.
func Default() Settings {
	return Settings{
		PriorityMode:               PriorityModeOpen,
		AutoClaim:                  true,
		HeartbeatInterval:          60 * time.Second,
		PollInterval:               60 * time.Second,
		MaxLiveChannelsPerCampaign: 5,
		OpenPoolChannelLimit:       30,
		NotifyOnDropClaim:          true,
		NotifyOnDropReady:          true,
		NotifyOnChannelSwitch:      true,
		NotifyOnComplete:           true,
	}
}

// Normalize fills zero-valued fields with their defaults.
func (s Settings) Normalize() Settings {
	def := Default()
	if s.PriorityMode == "" {
		s.PriorityMode = def.PriorityMode
	}
	if s.HeartbeatInterval <= 0 {
		s.HeartbeatInterval = def.HeartbeatInterval
	}
	if s.PollInterval <= 0 {
		s.PollInterval = def.PollInterval
	}
	if s.MaxLiveChannelsPerCampaign <= 0 {
		s.MaxLiveChannelsPerCampaign = def.MaxLiveChannelsPerCampaign
	}
	if s.OpenPoolChannelLimit <= 0 {
		s.OpenPoolChannelLimit = def.OpenPoolChannelLimit
	}
	return s
}

// Validate checks settings for internal consistency.
func (s Settings) Validate() error {
	switch s.PriorityMode {
	case PriorityModeOpen, PriorityModePriorityOnly:
	default:
		return fmt.Errorf("invalid priority_mode %q: must be %q or %q",
			s.PriorityMode, PriorityModeOpen, PriorityModePriorityOnly)
	}
	return nil
}

// GameExcluded reports whether the named game is excluded.
func (s Settings) GameExcluded(game string) bool {
	for _, g := range s.ExcludedGames {
		if g == game {
			return true
		}
	}
	return false
}

// PriorityIndex returns the position of the named game in the priority
// list, or -1 when absent.
func (s Settings) PriorityIndex(game string) int {
	for i, g := range s.PriorityGames {
		if g == game {
			return i
		}
	}
	return -1
}
