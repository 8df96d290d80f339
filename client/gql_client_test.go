//go:build test

package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/dropstream/drops-miner/auth"
	"github.com/dropstream/drops-miner/drops"
)

// newTestClient points a GQLClient at the given handler with the rate
// limiter effectively disabled.
func newTestClient(t *testing.T, handler http.Handler) (*GQLClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewGQLClient(zerolog.Nop(), GQLConfig{
		GQLEndpoint:       srv.URL + "/gql",
		WatchEndpointBase: srv.URL + "/spade",
		ClientID:          "cid-test",
		RequestsPerSecond: 1000,
	}, auth.NewStaticTokenProvider("tok-test"))
	require.NoError(t, err)

	return c, srv
}

func gqlData(t *testing.T, w http.ResponseWriter, data string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	_, err := w.Write([]byte(`{"data":` + data + `}`))
	require.NoError(t, err)
}

func TestCurrentUserID(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "OAuth tok-test", r.Header.Get("Authorization"))
		require.Equal(t, "cid-test", r.Header.Get("Client-Id"))

		var req gqlRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "CurrentUser", req.OperationName)

		gqlData(t, w, `{"currentUser":{"id":"user-42"}}`)
	}))

	id, err := c.CurrentUserID(context.Background())
	require.NoError(t, err)
	require.Equal(t, "user-42", id)
}

func TestUnauthorizedPassesThrough(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := c.CurrentUserID(context.Background())
	require.ErrorIs(t, err, auth.ErrUnauthenticated)
	require.Equal(t, int32(1), calls.Load(), "auth failures must not be retried")
}

func TestReadRetriesTransportErrors(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		gqlData(t, w, `{"currentUser":{"id":"user-42"}}`)
	}))

	id, err := c.CurrentUserID(context.Background())
	require.NoError(t, err)
	require.Equal(t, "user-42", id)
	require.Equal(t, int32(2), calls.Load())
}

func TestReadGivesUpAfterRetryBudget(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := c.CurrentUserID(context.Background())
	require.True(t, IsTransport(err))
	require.Equal(t, int32(maxReadAttempts), calls.Load())
}

func TestUpstreamErrorsAreParseErrors(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"errors":[{"message":"service error"}]}`))
	}))

	_, err := c.CurrentUserID(context.Background())
	require.True(t, IsParse(err))
	require.Equal(t, int32(1), calls.Load(), "parse failures must not be retried")
}

func TestListActiveCampaignsDecoding(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		gqlData(t, w, `{"currentUser":{"dropCampaigns":[{
			"id":"camp-1","name":"Launch Rewards",
			"game":{"id":"game-1","displayName":"Rune Siege"},
			"startAt":"2026-08-01T00:00:00Z","endAt":"2026-09-01T00:00:00Z",
			"isAccountConnected":true,
			"allowedChannels":{"channels":[{"id":"ch-1","name":"streamer_one"}]},
			"timeBasedDrops":[{
				"id":"drop-1","name":"Golden Crate","requiredMinutesWatched":90,
				"benefitEdges":[{"id":"ben-1","name":"Crate","imageAssetURL":"https://img/crate.png"}],
				"self":{"currentMinutesWatched":30,"requiredMinutesWatched":90,"isClaimed":false,"dropInstanceID":"inst-1"}
			}]
		}]}}`)
	}))

	campaigns, err := c.ListActiveCampaigns(context.Background())
	require.NoError(t, err)
	require.Len(t, campaigns, 1)

	camp := campaigns[0]
	require.Equal(t, "camp-1", camp.ID)
	require.Equal(t, "Rune Siege", camp.GameName)
	require.True(t, camp.ACLEnforced)
	require.Equal(t, []drops.ChannelRef{{ID: "ch-1", Login: "streamer_one"}}, camp.AllowedChannels)

	require.Len(t, camp.Drops, 1)
	drop := camp.Drops[0]
	require.Equal(t, 90, drop.RequiredMinutes)
	require.Equal(t, "https://img/crate.png", drop.Benefits[0].ImageURL)
	require.NotNil(t, drop.Progress)
	require.Equal(t, 30, drop.Progress.CurrentMinutes)
	require.Equal(t, "inst-1", drop.Progress.ClaimToken)
}

func TestACLFlagRequiresChannels(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		gqlData(t, w, `{"currentUser":{"dropCampaigns":[{
			"id":"camp-1","name":"No ACL","isAccountConnected":true,
			"game":{"id":"game-1","displayName":"Rune Siege"},
			"startAt":"2026-08-01T00:00:00Z","endAt":"2026-09-01T00:00:00Z"
		}]}}`)
	}))

	campaigns, err := c.ListActiveCampaigns(context.Background())
	require.NoError(t, err)
	require.False(t, campaigns[0].ACLEnforced, "an empty allow list cannot enforce anything")
}

func TestProbeLiveness(t *testing.T) {
	t.Run("online", func(t *testing.T) {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			gqlData(t, w, `{"user":{"stream":{"id":"bcast-1","viewersCount":1200,"hasDropsEnabled":true}}}`)
		}))
		stream, err := c.ProbeLiveness(context.Background(), "ch-1")
		require.NoError(t, err)
		require.NotNil(t, stream)
		require.Equal(t, "bcast-1", stream.BroadcastID)
		require.Equal(t, 1200, stream.Viewers)
		require.True(t, stream.DropsEnabled)
	})

	t.Run("offline", func(t *testing.T) {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			gqlData(t, w, `{"user":{"stream":null}}`)
		}))
		stream, err := c.ProbeLiveness(context.Background(), "ch-1")
		require.NoError(t, err)
		require.Nil(t, stream)
	})

	t.Run("unknown channel", func(t *testing.T) {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			gqlData(t, w, `{"user":null}`)
		}))
		_, err := c.ProbeLiveness(context.Background(), "ch-gone")
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestSubmitWatchSignal(t *testing.T) {
	channel := drops.MiningChannel{ID: "ch-1", Login: "streamer_one"}

	t.Run("accepts only 204", func(t *testing.T) {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/spade/streamer_one", r.URL.Path)

			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			form, err := url.ParseQuery(string(body))
			require.NoError(t, err)

			raw, err := base64.StdEncoding.DecodeString(form.Get("data"))
			require.NoError(t, err)

			var events []map[string]any
			require.NoError(t, json.Unmarshal(raw, &events))
			require.Len(t, events, 1)
			require.Equal(t, "minute-watched", events[0]["event"])
			props := events[0]["properties"].(map[string]any)
			require.Equal(t, "ch-1", props["channel_id"])
			require.Equal(t, "bcast-1", props["broadcast_id"])
			require.Equal(t, "user-42", props["user_id"])

			w.WriteHeader(http.StatusNoContent)
		}))

		require.NoError(t, c.SubmitWatchSignal(context.Background(), channel, "bcast-1", "user-42"))
	})

	t.Run("200 with body is a failure", func(t *testing.T) {
		c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("ok"))
		}))

		err := c.SubmitWatchSignal(context.Background(), channel, "bcast-1", "user-42")
		require.True(t, IsTransport(err))
	})
}

func TestWatchTargetCache(t *testing.T) {
	c, srv := newTestClient(t, http.NotFoundHandler())

	target, err := c.watchTarget(context.Background(), "streamer_one")
	require.NoError(t, err)
	require.Equal(t, srv.URL+"/spade/streamer_one", target)

	c.watchTargetsMu.RLock()
	_, cached := c.watchTargets["streamer_one"]
	c.watchTargetsMu.RUnlock()
	require.True(t, cached)

	c.InvalidateWatchTarget("streamer_one")

	c.watchTargetsMu.RLock()
	_, cached = c.watchTargets["streamer_one"]
	c.watchTargetsMu.RUnlock()
	require.False(t, cached)
}

func TestSubmitClaim(t *testing.T) {
	respond := func(status string) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var req gqlRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			input := req.Variables["input"].(map[string]any)
			require.Equal(t, "inst-1", input["dropInstanceID"])

			gqlData(t, w, `{"claimDropRewards":{"status":"`+status+`"}}`)
		})
	}

	t.Run("eligible", func(t *testing.T) {
		c, _ := newTestClient(t, respond("ELIGIBLE_FOR_ALL"))
		require.NoError(t, c.SubmitClaim(context.Background(), "inst-1"))
	})

	t.Run("already claimed is success", func(t *testing.T) {
		c, _ := newTestClient(t, respond("DROP_INSTANCE_ALREADY_CLAIMED"))
		require.NoError(t, c.SubmitClaim(context.Background(), "inst-1"))
	})

	t.Run("rejected", func(t *testing.T) {
		c, _ := newTestClient(t, respond("NOT_CONNECTED"))
		err := c.SubmitClaim(context.Background(), "inst-1")
		require.ErrorContains(t, err, "NOT_CONNECTED")
		require.False(t, errors.Is(err, ErrNotFound))
	})
}

func TestConfigValidate(t *testing.T) {
	require.Error(t, GQLConfig{}.Validate())
	require.Error(t, GQLConfig{GQLEndpoint: "https://gql.example.com"}.Validate())
	require.NoError(t, GQLConfig{
		GQLEndpoint:       "https://gql.example.com",
		WatchEndpointBase: "https://spade.example.com",
	}.Validate())
}
