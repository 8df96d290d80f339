package discovery

import (
	"sort"

	"github.com/dropstream/drops-miner/drops"
	"github.com/dropstream/drops-miner/settings"
)

// Scoring weights. Priority-list membership dominates, ACL membership
// comes next, viewer count breaks the rest.
const (
	// priorityBaseScore is the score of the first priority-list entry;
	// each later position is worth priorityStepPenalty less, floored.
	priorityBaseScore   = 1000
	priorityStepPenalty = 10
	priorityFloorScore  = 100

	// aclBonus is the flat bonus for ACL-sourced channels.
	aclBonus = 500

	// viewerCap caps the viewer count considered for scoring so a
	// single giant stream cannot outvote priority membership.
	viewerCap = 100000

	// viewerDivisor converts capped viewers into score points.
	viewerDivisor = 100
)

// score computes the selection score for one channel.
func score(ch drops.MiningChannel, s settings.Settings) int {
	total := 0

	if idx := s.PriorityIndex(ch.GameName); idx >= 0 {
		p := priorityBaseScore - idx*priorityStepPenalty
		if p < priorityFloorScore {
			p = priorityFloorScore
		}
		total += p
	}

	if ch.FromACL {
		total += aclBonus
	}

	viewers := ch.Viewers
	if viewers > viewerCap {
		viewers = viewerCap
	}
	total += viewers / viewerDivisor

	return total
}

// SelectBest ranks the channels and returns the best one to
// watch, or nil when no channel is online with drops enabled. The sort
// is stable, so identical inputs always produce identical selections
// (ties keep discovery order, which lists ACL channels first).
func SelectBest(channels []drops.MiningChannel, s settings.Settings) *drops.MiningChannel {
	eligible := make([]drops.MiningChannel, 0, len(channels))
	for _, ch := range channels {
		if ch.Watchable() {
			eligible = append(eligible, ch)
		}
	}
	if len(eligible) == 0 {
		return nil
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		return score(eligible[i], s) > score(eligible[j], s)
	})

	best := eligible[0]
	return &best
}
