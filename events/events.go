// Package events is the engine's outbound boundary: status snapshots
// and discrete notifications are published here and fanned out to
// in-process subscribers (the UI layer) and, optionally, to Redis
// pub/sub for out-of-process consumers.
package events

import (
	"time"

	"github.com/dropstream/drops-miner/drops"
)

// Kind identifies a discrete notification type.
type Kind string

const (
	KindStatusUpdated           Kind = "status_updated"
	KindDropReadyToClaim        Kind = "drop_ready_to_claim"
	KindDropClaimed             Kind = "drop_claimed"
	KindChannelSwitched         Kind = "channel_switched"
	KindMiningComplete          Kind = "mining_complete"
	KindMiningStoppedNoChannels Kind = "mining_stopped_no_channels"
)

// Event is one notification published by the engine. Exactly one of
// the payload pointers is set, matching Kind; Status rides along on
// every event so consumers never need a separate snapshot fetch.
type Event struct {
	Kind Kind      `json:"kind"`
	At   time.Time `json:"at"`

	Status *drops.MiningStatus `json:"status,omitempty"`

	DropReady       *DropPayload            `json:"drop_ready,omitempty"`
	DropClaimed     *DropPayload            `json:"drop_claimed,omitempty"`
	ChannelSwitched *ChannelSwitchedPayload `json:"channel_switched,omitempty"`
	MiningComplete  *MiningCompletePayload  `json:"mining_complete,omitempty"`
	MiningStopped   *MiningStoppedPayload   `json:"mining_stopped,omitempty"`
}

// DropPayload identifies a drop in ready/claimed notifications.
type DropPayload struct {
	DropID       string `json:"drop_id"`
	DropName     string `json:"drop_name"`
	ImageURL     string `json:"image_url,omitempty"`
	CampaignID   string `json:"campaign_id"`
	CampaignName string `json:"campaign_name"`
	GameName     string `json:"game_name"`
}

// ChannelSwitchedPayload carries old/new channel names and the reason.
type ChannelSwitchedPayload struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason"`
}

// MiningCompletePayload identifies the finished campaign.
type MiningCompletePayload struct {
	CampaignID   string `json:"campaign_id"`
	CampaignName string `json:"campaign_name"`
	GameName     string `json:"game_name"`
	Reason       string `json:"reason"`
}

// MiningStoppedPayload explains a terminal no-channels stop.
type MiningStoppedPayload struct {
	Reason string `json:"reason"`
}
