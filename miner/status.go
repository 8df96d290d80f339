package miner

import (
	"sync"
	"time"

	"github.com/dropstream/drops-miner/drops"
	"github.com/dropstream/drops-miner/events"
)

// StatusStore owns the session's externally observable snapshot.
// Reads are concurrent; every mutation happens under the write lock as
// a compound read-modify-write. The snapshot is replaced wholesale and
// each replacement is broadcast to the event bus.
type StatusStore struct {
	bus *events.Bus

	mu     sync.RWMutex
	status drops.MiningStatus
}

// NewStatusStore creates an empty status store publishing to bus.
// A nil bus disables broadcasting (tests).
func NewStatusStore(bus *events.Bus) *StatusStore {
	return &StatusStore{bus: bus}
}

// Snapshot returns a copy of the current status.
func (s *StatusStore) Snapshot() drops.MiningStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Update applies mutate atomically, stamps the snapshot, and broadcasts
// it wholesale.
func (s *StatusStore) Update(mutate func(*drops.MiningStatus)) drops.MiningStatus {
	s.mu.Lock()
	mutate(&s.status)
	s.status.UpdatedAt = time.Now()
	snapshot := s.status
	s.mu.Unlock()

	s.publish(snapshot)
	return snapshot
}

// Clear resets the status to its empty form and broadcasts it.
func (s *StatusStore) Clear() drops.MiningStatus {
	return s.Update(func(st *drops.MiningStatus) {
		*st = drops.MiningStatus{}
	})
}

// ClearMiningFields clears the channel/campaign/drop fields while
// leaving the rest intact; used on campaign completion.
func (s *StatusStore) ClearMiningFields() drops.MiningStatus {
	return s.Update(func(st *drops.MiningStatus) {
		st.Active = false
		st.Channel = nil
		st.CampaignName = ""
		st.CurrentDrop = nil
		st.Channels = nil
	})
}

func (s *StatusStore) publish(snapshot drops.MiningStatus) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.Event{
		Kind:   events.KindStatusUpdated,
		Status: &snapshot,
	})
}
