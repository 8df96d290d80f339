//go:build test

package testutil

import (
	"fmt"
	"time"

	"github.com/dropstream/drops-miner/drops"
)

// CampaignBuilder provides a fluent API for building deterministic test
// campaigns. The same seed always produces the same campaign, ensuring
// reproducible tests.
//
// Usage:
//
//	camp := testutil.NewCampaignBuilder(42).
//	    WithGame("Rust").
//	    WithDrop("drop-1", 60).
//	    Build()
type CampaignBuilder struct {
	seed int

	name      *string
	gameID    *string
	gameName  *string
	startsAt  *time.Time
	endsAt    *time.Time
	acl       []drops.ChannelRef
	dropSpecs []dropSpec
}

type dropSpec struct {
	id              string
	requiredMinutes int
	progress        *drops.DropProgress
	benefitIDs      []string
}

// NewCampaignBuilder creates a builder with the given seed. All fields
// default deterministically from the seed unless overridden.
func NewCampaignBuilder(seed int) *CampaignBuilder {
	return &CampaignBuilder{seed: seed}
}

// WithName sets the campaign display name.
func (b *CampaignBuilder) WithName(name string) *CampaignBuilder {
	b.name = &name
	return b
}

// WithGame sets both game id and game name from one label.
func (b *CampaignBuilder) WithGame(game string) *CampaignBuilder {
	id := "game-" + game
	b.gameID = &id
	b.gameName = &game
	return b
}

// WithWindow sets the active window.
func (b *CampaignBuilder) WithWindow(startsAt, endsAt time.Time) *CampaignBuilder {
	b.startsAt = &startsAt
	b.endsAt = &endsAt
	return b
}

// WithACL adds allow-listed channels, enabling ACL enforcement.
func (b *CampaignBuilder) WithACL(logins ...string) *CampaignBuilder {
	for _, login := range logins {
		b.acl = append(b.acl, drops.ChannelRef{
			ID:    "ch-" + login,
			Login: login,
		})
	}
	return b
}

// WithDrop adds a time-gated drop requiring the given watch minutes.
func (b *CampaignBuilder) WithDrop(id string, requiredMinutes int) *CampaignBuilder {
	b.dropSpecs = append(b.dropSpecs, dropSpec{id: id, requiredMinutes: requiredMinutes})
	return b
}

// WithDropProgress adds a drop carrying an explicit progress record.
func (b *CampaignBuilder) WithDropProgress(id string, requiredMinutes int, p drops.DropProgress) *CampaignBuilder {
	b.dropSpecs = append(b.dropSpecs, dropSpec{id: id, requiredMinutes: requiredMinutes, progress: &p})
	return b
}

// WithBadgeDrop adds a zero-minute drop carrying only benefits; such
// drops are never mineable.
func (b *CampaignBuilder) WithBadgeDrop(id string, benefitIDs ...string) *CampaignBuilder {
	b.dropSpecs = append(b.dropSpecs, dropSpec{id: id, benefitIDs: benefitIDs})
	return b
}

// Build creates the campaign with configured or seed-derived values.
func (b *CampaignBuilder) Build() drops.Campaign {
	camp := drops.Campaign{
		ID:       fmt.Sprintf("campaign-%d", b.seed),
		Name:     fmt.Sprintf("Campaign %d", b.seed),
		GameID:   fmt.Sprintf("game-%d", b.seed),
		GameName: fmt.Sprintf("Game %d", b.seed),
		StartAt:  time.Now().Add(-time.Hour),
		EndAt:    time.Now().Add(time.Hour),
	}

	if b.name != nil {
		camp.Name = *b.name
	}
	if b.gameID != nil {
		camp.GameID = *b.gameID
	}
	if b.gameName != nil {
		camp.GameName = *b.gameName
	}
	if b.startsAt != nil {
		camp.StartAt = *b.startsAt
	}
	if b.endsAt != nil {
		camp.EndAt = *b.endsAt
	}
	if len(b.acl) > 0 {
		camp.ACLEnforced = true
		camp.AllowedChannels = b.acl
	}

	for i, spec := range b.dropSpecs {
		d := drops.Drop{
			ID:              spec.id,
			Name:            fmt.Sprintf("Drop %s", spec.id),
			RequiredMinutes: spec.requiredMinutes,
			Progress:        spec.progress,
		}
		benefitIDs := spec.benefitIDs
		if len(benefitIDs) == 0 {
			benefitIDs = []string{fmt.Sprintf("benefit-%d-%d", b.seed, i)}
		}
		for _, id := range benefitIDs {
			d.Benefits = append(d.Benefits, drops.Benefit{
				ID:   id,
				Name: "Benefit " + id,
			})
		}
		camp.Drops = append(camp.Drops, d)
	}

	return camp
}

// BuildChannel creates a live, drops-enabled channel with the given
// login and viewer count.
func BuildChannel(login string, viewers int) drops.MiningChannel {
	return drops.MiningChannel{
		ID:           "ch-" + login,
		Login:        login,
		Viewers:      viewers,
		DropsEnabled: true,
		Online:       true,
	}
}
