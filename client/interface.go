// Package client wraps the streaming platform's catalog and watch APIs
// behind the abstract operations the mining engine consumes. The engine
// only ever calls this interface; the HTTP implementation lives in
// gql_client.go and can be swapped for a fake in tests.
package client

import (
	"context"

	"github.com/dropstream/drops-miner/drops"
)

// LiveStream describes a channel's live broadcast as seen by a
// liveness probe.
type LiveStream struct {
	// BroadcastID is the id of the live broadcast; required by the
	// watch-signal endpoint.
	BroadcastID string

	// Viewers is the current live viewer count.
	Viewers int

	// DropsEnabled reports whether the broadcast has drops enabled.
	DropsEnabled bool
}

// CatalogClient is the set of catalog/transport operations the engine
// consumes. Every call takes a context and must honor its deadline; the
// engine always supplies a bounded timeout.
type CatalogClient interface {
	// CurrentUserID returns the authenticated user's id.
	CurrentUserID(ctx context.Context) (string, error)

	// ListActiveCampaigns lists all currently running reward campaigns.
	ListActiveCampaigns(ctx context.Context) ([]drops.Campaign, error)

	// ProbeLiveness looks up a channel's live broadcast. It returns
	// (nil, nil) when the channel is offline.
	ProbeLiveness(ctx context.Context, channelID string) (*LiveStream, error)

	// LiveChannelsForGame returns up to limit live, drops-enabled
	// channels currently streaming the given game.
	LiveChannelsForGame(ctx context.Context, gameID string, limit int) ([]drops.MiningChannel, error)

	// FetchInventory fetches the full reward inventory grouped by
	// campaign, including the claimed-benefit id list.
	FetchInventory(ctx context.Context) (drops.InventorySnapshot, error)

	// SubmitWatchSignal emits one synthetic watch signal against the
	// channel's live broadcast. Success is recognized only by an
	// unambiguous no-content acknowledgment from the watch endpoint.
	SubmitWatchSignal(ctx context.Context, channel drops.MiningChannel, broadcastID, userID string) error

	// InvalidateWatchTarget drops any cached watch endpoint for the
	// channel, forcing re-resolution on the next watch signal.
	InvalidateWatchTarget(login string)

	// SubmitClaim submits a claim for the given claim-instance token.
	SubmitClaim(ctx context.Context, claimToken string) error
}
