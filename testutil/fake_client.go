//go:build test

package testutil

import (
	"context"
	"sync"

	"github.com/dropstream/drops-miner/client"
	"github.com/dropstream/drops-miner/drops"
)

// FakeCatalogClient is an in-memory, scriptable catalog client for
// tests. All fields are safe for concurrent use; per-call hooks
// override the canned data when set.
type FakeCatalogClient struct {
	mu sync.Mutex

	UserID    string
	Campaigns []drops.Campaign
	Inventory drops.InventorySnapshot

	// Streams maps channel id to its live stream. Absent ids probe as
	// offline (nil, nil).
	Streams map[string]*client.LiveStream

	// GameChannels maps game id to the open-pool discovery result.
	GameChannels map[string][]drops.MiningChannel

	// WatchErr, when non-nil, fails every watch-signal submission.
	WatchErr error

	// WatchErrs is consumed one per SubmitWatchSignal call before
	// WatchErr applies; nil entries mean success. Lets a test script
	// an exact failure sequence.
	WatchErrs []error

	// ClaimErr, when non-nil, fails every claim submission.
	ClaimErr error

	// InventoryErr, when non-nil, fails every inventory fetch.
	InventoryErr error

	// ProbeErrs maps channel id to a probe failure.
	ProbeErrs map[string]error

	watchCalls  []string
	claimCalls  []string
	probeCalls  []string
	invalidated []string
}

var _ client.CatalogClient = (*FakeCatalogClient)(nil)

// NewFakeCatalogClient returns a fake with a resolved user identity.
func NewFakeCatalogClient() *FakeCatalogClient {
	return &FakeCatalogClient{
		UserID:       "user-1",
		Streams:      make(map[string]*client.LiveStream),
		GameChannels: make(map[string][]drops.MiningChannel),
		ProbeErrs:    make(map[string]error),
	}
}

// SetLive marks a channel live with the given broadcast id and viewers.
func (f *FakeCatalogClient) SetLive(channelID, broadcastID string, viewers int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Streams[channelID] = &client.LiveStream{
		BroadcastID:  broadcastID,
		Viewers:      viewers,
		DropsEnabled: true,
	}
}

// SetOffline removes a channel's live stream.
func (f *FakeCatalogClient) SetOffline(channelID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Streams, channelID)
}

func (f *FakeCatalogClient) CurrentUserID(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.UserID, nil
}

func (f *FakeCatalogClient) ListActiveCampaigns(ctx context.Context) ([]drops.Campaign, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]drops.Campaign, len(f.Campaigns))
	copy(out, f.Campaigns)
	return out, nil
}

func (f *FakeCatalogClient) ProbeLiveness(ctx context.Context, channelID string) (*client.LiveStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probeCalls = append(f.probeCalls, channelID)
	if err, ok := f.ProbeErrs[channelID]; ok {
		return nil, err
	}
	stream, ok := f.Streams[channelID]
	if !ok {
		return nil, nil
	}
	cp := *stream
	return &cp, nil
}

func (f *FakeCatalogClient) LiveChannelsForGame(ctx context.Context, gameID string, limit int) ([]drops.MiningChannel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chs := f.GameChannels[gameID]
	if limit > 0 && len(chs) > limit {
		chs = chs[:limit]
	}
	out := make([]drops.MiningChannel, len(chs))
	copy(out, chs)
	return out, nil
}

func (f *FakeCatalogClient) FetchInventory(ctx context.Context) (drops.InventorySnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.InventoryErr != nil {
		return drops.InventorySnapshot{}, f.InventoryErr
	}
	return f.Inventory, nil
}

func (f *FakeCatalogClient) SubmitWatchSignal(ctx context.Context, channel drops.MiningChannel, broadcastID, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.watchCalls = append(f.watchCalls, channel.ID)
	if len(f.WatchErrs) > 0 {
		err := f.WatchErrs[0]
		f.WatchErrs = f.WatchErrs[1:]
		return err
	}
	return f.WatchErr
}

func (f *FakeCatalogClient) SubmitClaim(ctx context.Context, claimToken string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.claimCalls = append(f.claimCalls, claimToken)
	return f.ClaimErr
}

func (f *FakeCatalogClient) InvalidateWatchTarget(login string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, login)
}

// WatchCalls returns the channel ids of all watch-signal submissions.
func (f *FakeCatalogClient) WatchCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.watchCalls))
	copy(out, f.watchCalls)
	return out
}

// ClaimCalls returns the tokens of all claim submissions.
func (f *FakeCatalogClient) ClaimCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.claimCalls))
	copy(out, f.claimCalls)
	return out
}

// InvalidatedTargets returns the logins whose cached watch endpoint
// was invalidated.
func (f *FakeCatalogClient) InvalidatedTargets() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.invalidated))
	copy(out, f.invalidated)
	return out
}

// ProbeCalls returns the channel ids of all liveness probes.
func (f *FakeCatalogClient) ProbeCalls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.probeCalls))
	copy(out, f.probeCalls)
	return out
}
