package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/dropstream/drops-miner/auth"
	"github.com/dropstream/drops-miner/drops"
	"github.com/dropstream/drops-miner/logging"
)

const (
	// defaultRequestTimeout bounds every catalog call.
	defaultRequestTimeout = 15 * time.Second

	// defaultRequestsPerSecond is the client-side rate limit. The
	// upstream throttles aggressively; staying under it avoids turning
	// rate limiting into heartbeat failures.
	defaultRequestsPerSecond = 4

	// maxReadAttempts is the retry budget for idempotent read
	// operations. Writes (watch signal, claim) are never retried here;
	// their callers own the retry/failover policy.
	maxReadAttempts = 3
)

// GQLConfig contains configuration for the HTTP catalog client.
type GQLConfig struct {
	// GQLEndpoint is the catalog GraphQL endpoint.
	GQLEndpoint string `yaml:"gql_endpoint"`

	// WatchEndpointBase is the base URL for per-channel watch-signal
	// ("spade") endpoint resolution.
	WatchEndpointBase string `yaml:"watch_endpoint_base"`

	// ClientID is sent alongside the bearer token on every request.
	ClientID string `yaml:"client_id"`

	// RequestTimeout bounds individual HTTP calls.
	// Default: 15s
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// RequestsPerSecond is the client-side rate limit.
	// Default: 4
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// DefaultGQLConfig returns sensible defaults.
func DefaultGQLConfig() GQLConfig {
	return GQLConfig{
		RequestTimeout:    defaultRequestTimeout,
		RequestsPerSecond: defaultRequestsPerSecond,
	}
}

// Validate checks required fields.
func (c GQLConfig) Validate() error {
	if c.GQLEndpoint == "" {
		return fmt.Errorf("gql_endpoint is required")
	}
	if _, err := url.Parse(c.GQLEndpoint); err != nil {
		return fmt.Errorf("invalid gql_endpoint: %w", err)
	}
	if c.WatchEndpointBase == "" {
		return fmt.Errorf("watch_endpoint_base is required")
	}
	return nil
}

var _ CatalogClient = (*GQLClient)(nil)

// GQLClient implements CatalogClient over the platform's GraphQL API
// plus the separate watch-signal endpoint. All reads go through a
// client-side rate limiter and a small transport-error retry; writes
// are single attempts because their callers (heartbeat, claimer) own
// the failure policy.
type GQLClient struct {
	logger     logging.Logger
	config     GQLConfig
	httpClient *http.Client
	tokens     auth.TokenProvider
	limiter    *rate.Limiter

	// Watch-target endpoints resolved once per channel login.
	// Invalidated implicitly on channel switch (new login, new key).
	watchTargets   map[string]string
	watchTargetsMu sync.RWMutex
}

// NewGQLClient creates the HTTP catalog client.
func NewGQLClient(logger logging.Logger, config GQLConfig, tokens auth.TokenProvider) (*GQLClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = defaultRequestTimeout
	}
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = defaultRequestsPerSecond
	}

	return &GQLClient{
		logger:       logging.ForComponent(logger, logging.ComponentClient),
		config:       config,
		httpClient:   &http.Client{Timeout: config.RequestTimeout},
		tokens:       tokens,
		limiter:      rate.NewLimiter(rate.Limit(config.RequestsPerSecond), int(config.RequestsPerSecond)+1),
		watchTargets: make(map[string]string),
	}, nil
}

// --- wire shapes ---

type gqlRequest struct {
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
	Query         string         `json:"query"`
}

type wireGame struct {
	ID   string `json:"id"`
	Name string `json:"displayName"`
}

type wireBenefit struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	ImageURL string `json:"imageAssetURL"`
}

type wireProgress struct {
	CurrentMinutesWatched  int    `json:"currentMinutesWatched"`
	RequiredMinutesWatched int    `json:"requiredMinutesWatched"`
	IsClaimed              bool   `json:"isClaimed"`
	DropInstanceID         string `json:"dropInstanceID"`
}

type wireDrop struct {
	ID                     string        `json:"id"`
	Name                   string        `json:"name"`
	RequiredMinutesWatched int           `json:"requiredMinutesWatched"`
	Benefits               []wireBenefit `json:"benefitEdges"`
	Self                   *wireProgress `json:"self"`
}

type wireChannel struct {
	ID    string `json:"id"`
	Login string `json:"name"`
}

type wireAllow struct {
	Channels []wireChannel `json:"channels"`
}

type wireCampaign struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Game            *wireGame  `json:"game"`
	StartAt         time.Time  `json:"startAt"`
	EndAt           time.Time  `json:"endAt"`
	TimeBasedDrops  []wireDrop `json:"timeBasedDrops"`
	AllowedChannels *wireAllow `json:"allowedChannels"`
	ACLEnforced     bool       `json:"isAccountConnected"`
}

type wireStream struct {
	ID           string       `json:"id"`
	ViewersCount int          `json:"viewersCount"`
	DropsEnabled bool         `json:"hasDropsEnabled"`
	Broadcaster  *wireChannel `json:"broadcaster"`
}

func (c *GQLClient) decodeCampaign(w wireCampaign) drops.Campaign {
	camp := drops.Campaign{
		ID:      w.ID,
		Name:    w.Name,
		StartAt: w.StartAt,
		EndAt:   w.EndAt,
	}
	if w.Game != nil {
		camp.GameID = w.Game.ID
		camp.GameName = w.Game.Name
	}
	if w.AllowedChannels != nil {
		for _, ch := range w.AllowedChannels.Channels {
			camp.AllowedChannels = append(camp.AllowedChannels, drops.ChannelRef{ID: ch.ID, Login: ch.Login})
		}
	}
	camp.ACLEnforced = w.ACLEnforced && len(camp.AllowedChannels) > 0
	for _, d := range w.TimeBasedDrops {
		drop := drops.Drop{
			ID:              d.ID,
			Name:            d.Name,
			RequiredMinutes: d.RequiredMinutesWatched,
		}
		for _, b := range d.Benefits {
			drop.Benefits = append(drop.Benefits, drops.Benefit{ID: b.ID, Name: b.Name, ImageURL: b.ImageURL})
		}
		if d.Self != nil {
			drop.Progress = &drops.DropProgress{
				CurrentMinutes:  d.Self.CurrentMinutesWatched,
				RequiredMinutes: d.Self.RequiredMinutesWatched,
				Claimed:         d.Self.IsClaimed,
				ClaimToken:      d.Self.DropInstanceID,
				UpdatedAt:       time.Now(),
			}
		}
		camp.Drops = append(camp.Drops, drop)
	}
	return camp
}

// do executes one GraphQL operation and decodes the "data" envelope
// into out. It classifies failures into the auth/transport/parse
// taxonomy; auth failures pass through untouched so callers can abort
// without retrying.
func (c *GQLClient) do(ctx context.Context, op string, vars map[string]any, query string, out any) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		requestsTotal.WithLabelValues(op, "auth_error").Inc()
		return err
	}

	if !c.limiter.Allow() {
		rateLimitWaits.Inc()
		if err := c.limiter.Wait(ctx); err != nil {
			return &TransportError{Op: op, Err: err}
		}
	}

	body, err := json.Marshal(gqlRequest{OperationName: op, Variables: vars, Query: query})
	if err != nil {
		return &ParseError{Op: op, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.GQLEndpoint, bytes.NewReader(body))
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "OAuth "+token)
	if c.config.ClientID != "" {
		req.Header.Set("Client-Id", c.config.ClientID)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	requestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		requestsTotal.WithLabelValues(op, "transport_error").Inc()
		return &TransportError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		requestsTotal.WithLabelValues(op, "auth_error").Inc()
		return fmt.Errorf("%s: %w", op, auth.ErrUnauthenticated)
	case resp.StatusCode != http.StatusOK:
		requestsTotal.WithLabelValues(op, "transport_error").Inc()
		return &TransportError{Op: op, Status: resp.StatusCode}
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		requestsTotal.WithLabelValues(op, "transport_error").Inc()
		return &TransportError{Op: op, Err: err}
	}

	envelope := struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}{}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		requestsTotal.WithLabelValues(op, "parse_error").Inc()
		return &ParseError{Op: op, Err: err}
	}
	if len(envelope.Errors) > 0 {
		requestsTotal.WithLabelValues(op, "parse_error").Inc()
		return &ParseError{Op: op, Err: fmt.Errorf("upstream error: %s", envelope.Errors[0].Message)}
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			requestsTotal.WithLabelValues(op, "parse_error").Inc()
			return &ParseError{Op: op, Err: err}
		}
	}

	requestsTotal.WithLabelValues(op, "ok").Inc()
	return nil
}

// doRead wraps do with a bounded exponential-backoff retry for
// idempotent reads. Only transport errors are retried; auth and parse
// errors return immediately.
func (c *GQLClient) doRead(ctx context.Context, op string, vars map[string]any, query string, out any) error {
	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxReadAttempts-1),
		ctx,
	)

	return backoff.Retry(func() error {
		err := c.do(ctx, op, vars, query, out)
		if err == nil {
			return nil
		}
		if IsTransport(err) {
			return err // retryable
		}
		return backoff.Permanent(err)
	}, bo)
}

// CurrentUserID implements CatalogClient.
func (c *GQLClient) CurrentUserID(ctx context.Context) (string, error) {
	var data struct {
		CurrentUser *struct {
			ID string `json:"id"`
		} `json:"currentUser"`
	}
	if err := c.doRead(ctx, "CurrentUser", nil, queryCurrentUser, &data); err != nil {
		return "", err
	}
	if data.CurrentUser == nil || data.CurrentUser.ID == "" {
		return "", &ParseError{Op: "CurrentUser", Err: fmt.Errorf("empty currentUser")}
	}
	return data.CurrentUser.ID, nil
}

// ListActiveCampaigns implements CatalogClient.
func (c *GQLClient) ListActiveCampaigns(ctx context.Context) ([]drops.Campaign, error) {
	var data struct {
		CurrentUser struct {
			DropCampaigns []wireCampaign `json:"dropCampaigns"`
		} `json:"currentUser"`
	}
	if err := c.doRead(ctx, "ViewerDropsDashboard", nil, queryCampaigns, &data); err != nil {
		return nil, err
	}

	campaigns := make([]drops.Campaign, 0, len(data.CurrentUser.DropCampaigns))
	for _, w := range data.CurrentUser.DropCampaigns {
		campaigns = append(campaigns, c.decodeCampaign(w))
	}
	return campaigns, nil
}

// ProbeLiveness implements CatalogClient. Returns (nil, nil) offline.
func (c *GQLClient) ProbeLiveness(ctx context.Context, channelID string) (*LiveStream, error) {
	var data struct {
		User *struct {
			Stream *wireStream `json:"stream"`
		} `json:"user"`
	}
	vars := map[string]any{"channelID": channelID}
	if err := c.doRead(ctx, "ChannelStatus", vars, queryChannelStatus, &data); err != nil {
		return nil, err
	}
	if data.User == nil {
		return nil, fmt.Errorf("channel %s: %w", channelID, ErrNotFound)
	}
	if data.User.Stream == nil {
		return nil, nil
	}
	return &LiveStream{
		BroadcastID:  data.User.Stream.ID,
		Viewers:      data.User.Stream.ViewersCount,
		DropsEnabled: data.User.Stream.DropsEnabled,
	}, nil
}

// LiveChannelsForGame implements CatalogClient.
func (c *GQLClient) LiveChannelsForGame(ctx context.Context, gameID string, limit int) ([]drops.MiningChannel, error) {
	var data struct {
		Game *struct {
			ID      string `json:"id"`
			Name    string `json:"displayName"`
			Streams struct {
				Edges []struct {
					Node wireStream `json:"node"`
				} `json:"edges"`
			} `json:"streams"`
		} `json:"game"`
	}
	vars := map[string]any{"gameID": gameID, "limit": limit, "dropsOnly": true}
	if err := c.doRead(ctx, "GameStreams", vars, queryGameStreams, &data); err != nil {
		return nil, err
	}
	if data.Game == nil {
		return nil, nil
	}

	channels := make([]drops.MiningChannel, 0, len(data.Game.Streams.Edges))
	for _, edge := range data.Game.Streams.Edges {
		node := edge.Node
		if node.Broadcaster == nil {
			continue
		}
		channels = append(channels, drops.MiningChannel{
			ID:           node.Broadcaster.ID,
			Login:        node.Broadcaster.Login,
			GameID:       data.Game.ID,
			GameName:     data.Game.Name,
			Viewers:      node.ViewersCount,
			DropsEnabled: node.DropsEnabled,
			Online:       true,
		})
		if len(channels) >= limit {
			break
		}
	}
	return channels, nil
}

// FetchInventory implements CatalogClient.
func (c *GQLClient) FetchInventory(ctx context.Context) (drops.InventorySnapshot, error) {
	var data struct {
		CurrentUser struct {
			Inventory struct {
				DropCampaignsInProgress []wireCampaign `json:"dropCampaignsInProgress"`
				GameEventDrops          []struct {
					BenefitID string `json:"id"`
				} `json:"gameEventDrops"`
			} `json:"inventory"`
		} `json:"currentUser"`
	}
	if err := c.doRead(ctx, "Inventory", nil, queryInventory, &data); err != nil {
		return drops.InventorySnapshot{}, err
	}

	inv := drops.InventorySnapshot{FetchedAt: time.Now()}
	for _, w := range data.CurrentUser.Inventory.DropCampaignsInProgress {
		inv.Campaigns = append(inv.Campaigns, c.decodeCampaign(w))
	}
	for _, b := range data.CurrentUser.Inventory.GameEventDrops {
		inv.ClaimedBenefitIDs = append(inv.ClaimedBenefitIDs, b.BenefitID)
	}
	return inv, nil
}

// SubmitWatchSignal implements CatalogClient. The watch endpoint is
// resolved once per channel login and cached; success is recognized
// only by an explicit 204 No Content acknowledgment.
func (c *GQLClient) SubmitWatchSignal(ctx context.Context, channel drops.MiningChannel, broadcastID, userID string) error {
	const op = "SubmitWatchSignal"

	target, err := c.watchTarget(ctx, channel.Login)
	if err != nil {
		return err
	}

	event := []map[string]any{{
		"event": "minute-watched",
		"properties": map[string]any{
			"channel_id":   channel.ID,
			"broadcast_id": broadcastID,
			"player":       "site",
			"user_id":      userID,
		},
	}}
	raw, err := json.Marshal(event)
	if err != nil {
		return &ParseError{Op: op, Err: err}
	}
	form := url.Values{"data": {base64.StdEncoding.EncodeToString(raw)}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	requestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		requestsTotal.WithLabelValues(op, "transport_error").Inc()
		return &TransportError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	// Anything but the explicit no-content ack is a failure, including
	// 200-with-body (the endpoint answers 200 to malformed payloads).
	if resp.StatusCode != http.StatusNoContent {
		requestsTotal.WithLabelValues(op, "transport_error").Inc()
		return &TransportError{Op: op, Status: resp.StatusCode}
	}

	requestsTotal.WithLabelValues(op, "ok").Inc()
	return nil
}

// SubmitClaim implements CatalogClient.
func (c *GQLClient) SubmitClaim(ctx context.Context, claimToken string) error {
	vars := map[string]any{"input": map[string]any{"dropInstanceID": claimToken}}
	var data struct {
		ClaimDropRewards *struct {
			Status string `json:"status"`
		} `json:"claimDropRewards"`
	}
	if err := c.do(ctx, "DropsPage_ClaimDropRewards", vars, queryClaimDrop, &data); err != nil {
		return err
	}
	if data.ClaimDropRewards == nil {
		return &ParseError{Op: "SubmitClaim", Err: fmt.Errorf("empty claim response")}
	}
	switch data.ClaimDropRewards.Status {
	case "ELIGIBLE_FOR_ALL", "DROP_INSTANCE_ALREADY_CLAIMED", "":
		return nil
	default:
		return fmt.Errorf("claim rejected: %s", data.ClaimDropRewards.Status)
	}
}

// watchTarget resolves (and caches) the per-channel watch endpoint.
func (c *GQLClient) watchTarget(_ context.Context, login string) (string, error) {
	c.watchTargetsMu.RLock()
	target, ok := c.watchTargets[login]
	c.watchTargetsMu.RUnlock()
	if ok {
		return target, nil
	}

	// The watch endpoint is stable per channel; base + login is the
	// documented resolution rule.
	resolved, err := url.JoinPath(c.config.WatchEndpointBase, login)
	if err != nil {
		return "", &TransportError{Op: "ResolveWatchTarget", Err: err}
	}

	c.watchTargetsMu.Lock()
	c.watchTargets[login] = resolved
	c.watchTargetsMu.Unlock()

	c.logger.Debug().
		Str(logging.FieldChannel, login).
		Str(logging.FieldURL, resolved).
		Msg("resolved watch-signal endpoint")

	return resolved, nil
}

// InvalidateWatchTarget drops the cached watch endpoint for a channel.
// The session controller calls this when it switches away from a
// channel, so a later return to it re-resolves the endpoint.
func (c *GQLClient) InvalidateWatchTarget(login string) {
	c.watchTargetsMu.Lock()
	delete(c.watchTargets, login)
	c.watchTargetsMu.Unlock()
}
