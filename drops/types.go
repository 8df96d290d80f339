// Package drops defines the core data model of the mining engine:
// campaigns, drops, progress records, channels and the externally
// observable mining status. Everything in this package is a plain value
// type plus the pure rules that govern it (mineability, progress
// merging, claim-token derivation); all I/O lives elsewhere.
package drops

import "time"

// Benefit describes a single reward granted by a drop.
type Benefit struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url"`
}

// DropProgress is the per-drop progress record shared between the
// realtime push path and the inventory poll path.
type DropProgress struct {
	// CurrentMinutes is minutes watched so far. Never decreases except
	// on an explicit reset (see ProgressStore.Reset).
	CurrentMinutes int `json:"current_minutes"`

	// RequiredMinutes is the watch-time threshold for the drop.
	RequiredMinutes int `json:"required_minutes"`

	// Claimed is sticky: once true it never reverts to false.
	Claimed bool `json:"claimed"`

	// ClaimToken is the opaque claim-instance token needed to submit a
	// claim. Empty when the upstream API omitted it; DeriveClaimToken
	// synthesizes a replacement in that case.
	ClaimToken string `json:"claim_token,omitempty"`

	// UpdatedAt is when this record was last merged.
	UpdatedAt time.Time `json:"updated_at"`
}

// Percent returns completion as a percentage in [0,100].
func (p DropProgress) Percent() float64 {
	if p.RequiredMinutes <= 0 {
		return 0
	}
	pct := float64(p.CurrentMinutes) / float64(p.RequiredMinutes) * 100
	if pct > 100 {
		return 100
	}
	return pct
}

// Satisfied reports whether the drop needs no further watch time.
func (p DropProgress) Satisfied() bool {
	return p.Claimed || (p.RequiredMinutes > 0 && p.CurrentMinutes >= p.RequiredMinutes)
}

// Drop is a reward unit inside a campaign.
type Drop struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	RequiredMinutes int           `json:"required_minutes"`
	Benefits        []Benefit     `json:"benefits"`
	Progress        *DropProgress `json:"progress,omitempty"`
}

// Mineable reports whether the drop can be earned by watch time.
// Zero-minute drops are event/badge-triggered and must never be
// targeted by the heartbeat loop.
func (d Drop) Mineable() bool {
	return d.RequiredMinutes > 0
}

// ChannelRef is an allow-list entry of an access-controlled campaign.
type ChannelRef struct {
	ID    string `json:"id"`
	Login string `json:"login"`
}

// Campaign is a time-boxed promotional event.
type Campaign struct {
	ID              string       `json:"id"`
	Name            string       `json:"name"`
	GameID          string       `json:"game_id"`
	GameName        string       `json:"game_name"`
	StartAt         time.Time    `json:"start_at"`
	EndAt           time.Time    `json:"end_at"`
	Drops           []Drop       `json:"drops"`
	AllowedChannels []ChannelRef `json:"allowed_channels,omitempty"`

	// ACLEnforced marks the allow-list as binding: only the listed
	// channels can earn progress for this campaign.
	ACLEnforced bool `json:"acl_enforced"`
}

// ActiveAt reports whether the campaign window contains t.
func (c Campaign) ActiveAt(t time.Time) bool {
	return !c.StartAt.After(t) && c.EndAt.After(t)
}

// Valid reports whether the campaign is structurally usable for mining.
func (c Campaign) Valid(now time.Time) bool {
	return c.ID != "" && c.GameID != "" && c.GameName != "" && c.ActiveAt(now)
}

// FindDrop returns the drop with the given id, if present.
func (c Campaign) FindDrop(dropID string) (Drop, bool) {
	for _, d := range c.Drops {
		if d.ID == dropID {
			return d, true
		}
	}
	return Drop{}, false
}

// MineableDrops returns the drops that can be earned by watch time.
func (c Campaign) MineableDrops() []Drop {
	out := make([]Drop, 0, len(c.Drops))
	for _, d := range c.Drops {
		if d.Mineable() {
			out = append(out, d)
		}
	}
	return out
}

// MiningChannel is a channel eligible to earn progress.
type MiningChannel struct {
	ID           string `json:"id"`
	Login        string `json:"login"`
	GameID       string `json:"game_id"`
	GameName     string `json:"game_name"`
	Viewers      int    `json:"viewers"`
	DropsEnabled bool   `json:"drops_enabled"`
	Online       bool   `json:"online"`

	// FromACL marks channels sourced from a campaign's access-control
	// list. ACL channels always outrank open-pool channels.
	FromACL bool `json:"from_acl"`
}

// Watchable reports whether the channel can currently earn progress.
func (ch MiningChannel) Watchable() bool {
	return ch.Online && ch.DropsEnabled
}

// TrackedDrop is the "current drop" surfaced in the status snapshot,
// enriched with campaign metadata so the UI needs no extra lookups.
type TrackedDrop struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	ImageURL        string    `json:"image_url"`
	CampaignID      string    `json:"campaign_id"`
	CampaignName    string    `json:"campaign_name"`
	GameName        string    `json:"game_name"`
	CurrentMinutes  int       `json:"current_minutes"`
	RequiredMinutes int       `json:"required_minutes"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Percent returns completion as a percentage in [0,100].
func (t TrackedDrop) Percent() float64 {
	return DropProgress{CurrentMinutes: t.CurrentMinutes, RequiredMinutes: t.RequiredMinutes}.Percent()
}

// MiningStatus is the externally observable snapshot of a session.
// Exactly one snapshot exists per running session; it is replaced
// wholesale on each meaningful state change.
type MiningStatus struct {
	Active       bool            `json:"active"`
	Channel      *MiningChannel  `json:"channel,omitempty"`
	CampaignName string          `json:"campaign_name,omitempty"`
	CurrentDrop  *TrackedDrop    `json:"current_drop,omitempty"`
	Channels     []MiningChannel `json:"channels,omitempty"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
