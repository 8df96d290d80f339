package drops

import (
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

// ProgressStore is the shared per-drop progress map, written by both the
// realtime push path and the inventory poll path and read by everything
// else. It uses xsync.Map so concurrent producers never contend on a
// global lock, and Compute so each merge is atomic with respect to
// other writers of the same drop.
type ProgressStore struct {
	m *xsync.Map[string, DropProgress]
}

// NewProgressStore creates an empty progress store.
func NewProgressStore() *ProgressStore {
	return &ProgressStore{m: xsync.NewMap[string, DropProgress]()}
}

// Get returns the progress record for a drop, if known.
func (s *ProgressStore) Get(dropID string) (DropProgress, bool) {
	return s.m.Load(dropID)
}

// Merge folds an incoming progress report into the store and returns the
// resulting record plus whether anything changed.
//
// Merge rules (keep-highest, not last-write-wins):
//   - CurrentMinutes never decreases; a lower report is kept out.
//   - RequiredMinutes takes the latest non-zero value.
//   - Claimed is sticky: true never reverts to false.
//   - ClaimToken takes the latest non-empty value.
//
// These rules make out-of-order delivery between the push and poll
// producers harmless: whichever arrives later cannot regress state.
func (s *ProgressStore) Merge(dropID string, incoming DropProgress) (DropProgress, bool) {
	var changed bool
	merged, _ := s.m.Compute(dropID, func(old DropProgress, loaded bool) (DropProgress, xsync.ComputeOp) {
		next := old
		if !loaded {
			next = incoming
			if next.UpdatedAt.IsZero() {
				next.UpdatedAt = time.Now()
			}
			changed = true
			return next, xsync.UpdateOp
		}

		if incoming.CurrentMinutes > next.CurrentMinutes {
			next.CurrentMinutes = incoming.CurrentMinutes
			changed = true
		}
		if incoming.RequiredMinutes > 0 && incoming.RequiredMinutes != next.RequiredMinutes {
			next.RequiredMinutes = incoming.RequiredMinutes
			changed = true
		}
		if incoming.Claimed && !next.Claimed {
			next.Claimed = true
			changed = true
		}
		if incoming.ClaimToken != "" && incoming.ClaimToken != next.ClaimToken {
			next.ClaimToken = incoming.ClaimToken
			changed = true
		}
		if changed {
			next.UpdatedAt = time.Now()
		}
		return next, xsync.UpdateOp
	})
	return merged, changed
}

// MarkClaimed sets the sticky claimed flag for a drop.
func (s *ProgressStore) MarkClaimed(dropID string) DropProgress {
	merged, _ := s.Merge(dropID, DropProgress{Claimed: true})
	return merged
}

// Range calls fn for each known drop until fn returns false.
func (s *ProgressStore) Range(fn func(dropID string, p DropProgress) bool) {
	s.m.Range(fn)
}

// Len returns the number of tracked drops.
func (s *ProgressStore) Len() int {
	return s.m.Size()
}

// Reset drops all records. This is the only sanctioned way progress can
// go backwards; it is called on session teardown, never mid-session.
func (s *ProgressStore) Reset() {
	s.m.Clear()
}
