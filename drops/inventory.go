package drops

import "time"

// InventorySnapshot is the result of one reward-inventory poll, grouped
// by campaign. ClaimedBenefitIDs lists benefit ids the account has
// already been awarded outside of any in-progress campaign record;
// badge and re-run campaigns surface claims only there.
type InventorySnapshot struct {
	Campaigns         []Campaign
	ClaimedBenefitIDs []string
	FetchedAt         time.Time
}

// claimedBenefitSet builds a lookup set once per snapshot.
func (inv InventorySnapshot) claimedBenefitSet() map[string]struct{} {
	if len(inv.ClaimedBenefitIDs) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(inv.ClaimedBenefitIDs))
	for _, id := range inv.ClaimedBenefitIDs {
		set[id] = struct{}{}
	}
	return set
}

// DropClaimed reports whether the inventory considers a drop claimed.
//
// A drop with an explicit progress record answers from that record
// alone. A drop with NO progress record is treated as claimed when any
// of its benefit ids appears in the claimed-benefit list: badge and
// re-run campaigns never carry self-progress, and without this rule
// they would be re-mined forever. A re-issued but not-yet-re-earned
// benefit can be misclassified as claimed by this heuristic; skipping
// such a drop is the cheaper failure, so the heuristic stands.
func (inv InventorySnapshot) DropClaimed(d Drop) bool {
	if d.Progress != nil {
		return d.Progress.Claimed
	}

	claimed := inv.claimedBenefitSet()
	if claimed == nil {
		return false
	}
	for _, b := range d.Benefits {
		if _, ok := claimed[b.ID]; ok {
			return true
		}
	}
	return false
}

// FindCampaign returns the snapshot's campaign with the given id.
func (inv InventorySnapshot) FindCampaign(campaignID string) (Campaign, bool) {
	for _, c := range inv.Campaigns {
		if c.ID == campaignID {
			return c, true
		}
	}
	return Campaign{}, false
}
