//go:build test

package miner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dropstream/drops-miner/client"
	"github.com/dropstream/drops-miner/drops"
	"github.com/dropstream/drops-miner/testutil"
)

var errWatch = &client.TransportError{Op: "watch", Err: errors.New("boom")}

func newTestHeartbeat(fake *testutil.FakeCatalogClient, onThreshold thresholdFunc) *Heartbeat {
	hb := NewHeartbeat(testutil.NewTestLogger(), fake, DefaultHeartbeatConfig(), "user-1", onThreshold)
	hb.SetChannel(testutil.BuildChannel("alpha", 100), "bc-1")
	return hb
}

func TestBeat_SuccessResetsFailures(t *testing.T) {
	fake := testutil.NewFakeCatalogClient()
	fake.WatchErrs = []error{errWatch, errWatch, nil, errWatch, errWatch}

	called := 0
	hb := newTestHeartbeat(fake, func(ctx context.Context, failing drops.MiningChannel) (*SwitchResult, bool) {
		called++
		return nil, false
	})

	ctx := context.Background()
	// Two failures, then a success, then two more failures: the
	// counter restarts after the success so the threshold of three is
	// never reached.
	for i := 0; i < 5; i++ {
		stopped := hb.Beat(ctx)
		require.False(t, stopped)
	}
	require.Zero(t, called, "threshold must not fire without three consecutive failures")
}

func TestBeat_ThresholdTriggersSwitch(t *testing.T) {
	fake := testutil.NewFakeCatalogClient()
	fake.WatchErr = errWatch

	replacement := testutil.BuildChannel("beta", 50)
	called := 0
	hb := newTestHeartbeat(fake, func(ctx context.Context, failing drops.MiningChannel) (*SwitchResult, bool) {
		called++
		require.Equal(t, "alpha", failing.Login)
		return &SwitchResult{Channel: replacement, BroadcastID: "bc-2"}, true
	})

	ctx := context.Background()
	require.False(t, hb.Beat(ctx))
	require.False(t, hb.Beat(ctx))
	require.Zero(t, called, "two failures stay below the threshold")

	require.False(t, hb.Beat(ctx))
	require.Equal(t, 1, called, "the third consecutive failure fires exactly one switch")
	require.Equal(t, "beta", hb.Channel().Login)

	// The switch reset the counter: two more failures do not re-fire.
	require.False(t, hb.Beat(ctx))
	require.False(t, hb.Beat(ctx))
	require.Equal(t, 1, called)
}

func TestBeat_NoReplacementEndsSession(t *testing.T) {
	fake := testutil.NewFakeCatalogClient()
	fake.WatchErr = errWatch

	hb := newTestHeartbeat(fake, func(ctx context.Context, failing drops.MiningChannel) (*SwitchResult, bool) {
		return nil, false
	})

	ctx := context.Background()
	require.False(t, hb.Beat(ctx))
	require.False(t, hb.Beat(ctx))
	require.True(t, hb.Beat(ctx), "no replacement anywhere ends the session")
}

func TestHeartbeatConfigNormalized(t *testing.T) {
	cfg := HeartbeatConfig{}.normalized()
	require.Equal(t, DefaultHeartbeatConfig(), cfg)

	cfg = HeartbeatConfig{FailureThreshold: 5}.normalized()
	require.Equal(t, 5, cfg.FailureThreshold)
	require.Equal(t, DefaultHeartbeatConfig().Interval, cfg.Interval)
}
