package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/dropstream/drops-miner/logging"
)

const (
	// statusChannel receives every status snapshot.
	statusChannel = "drops:events:status"

	// notifyChannel receives discrete notifications (everything except
	// plain status updates).
	notifyChannel = "drops:events:notify"
)

// RedisPublisherConfig configures the Redis event broadcaster.
type RedisPublisherConfig struct {
	// Enabled turns the broadcaster on.
	// Default: false (in-process subscribers only)
	Enabled bool `yaml:"enabled"`

	// URL is the Redis connection URL (redis://host:port/db).
	URL string `yaml:"url"`

	// Compression selects the payload compression level.
	// Default: "default"
	Compression CompressionLevel `yaml:"compression"`
}

// DefaultRedisPublisherConfig returns sensible defaults.
func DefaultRedisPublisherConfig() RedisPublisherConfig {
	return RedisPublisherConfig{
		Enabled:     false,
		Compression: CompressionLevelDefault,
	}
}

// RedisPublisher relays bus events to Redis pub/sub so out-of-process
// UIs can consume snapshots and notifications. Payloads are JSON,
// zstd-compressed above a small threshold.
type RedisPublisher struct {
	logger logging.Logger
	client redis.UniversalClient
	codec  *codec
	sub    Subscriber

	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
}

// NewRedisPublisher creates the broadcaster and verifies connectivity.
func NewRedisPublisher(logger logging.Logger, config RedisPublisherConfig) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	cdc, err := newCodec(config.Compression)
	if err != nil {
		return nil, err
	}

	return &RedisPublisher{
		logger: logging.ForComponent(logger, logging.ComponentEvents),
		client: redis.NewClient(opts),
		codec:  cdc,
	}, nil
}

// NewRedisPublisherWithClient wires an existing Redis client; used by
// tests (miniredis) and embedders that share a connection pool.
func NewRedisPublisherWithClient(logger logging.Logger, client redis.UniversalClient, level CompressionLevel) (*RedisPublisher, error) {
	cdc, err := newCodec(level)
	if err != nil {
		return nil, err
	}
	return &RedisPublisher{
		logger: logging.ForComponent(logger, logging.ComponentEvents),
		client: client,
		codec:  cdc,
	}, nil
}

// Start subscribes to the bus and begins relaying events.
func (p *RedisPublisher) Start(ctx context.Context, bus *Bus) error {
	if err := p.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return fmt.Errorf("redis publisher is closed")
	}
	p.sub = bus.Subscribe(64)
	p.mu.Unlock()

	p.wg.Add(1)
	go logging.RecoverGoRoutine(p.logger, "redis_event_publisher", func(ctx context.Context) {
		defer p.wg.Done()
		p.relayLoop(ctx)
	})(ctx)

	p.logger.Info().Msg("redis event publisher started")
	return nil
}

// Close stops relaying and releases the subscription.
func (p *RedisPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	sub := p.sub
	p.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
	p.wg.Wait()
	return nil
}

func (p *RedisPublisher) relayLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-p.sub.Events():
			if !ok {
				return
			}
			p.publish(ctx, ev)
		}
	}
}

// publish sends one event to Redis. Failures are logged and counted,
// never propagated: external broadcast is best-effort and must not
// disturb the mining session.
func (p *RedisPublisher) publish(ctx context.Context, ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		redisPublishes.WithLabelValues("marshal_error").Inc()
		p.logger.Warn().Err(err).Msg("failed to marshal event for redis")
		return
	}

	compressed := p.codec.compress(payload)
	redisPayloadBytes.Observe(float64(len(compressed)))

	channel := notifyChannel
	if ev.Kind == KindStatusUpdated {
		channel = statusChannel
	}

	if err := p.client.Publish(ctx, channel, compressed).Err(); err != nil {
		redisPublishes.WithLabelValues("error").Inc()
		p.logger.Warn().Err(err).Str("channel", channel).Msg("failed to publish event to redis")
		return
	}
	redisPublishes.WithLabelValues("ok").Inc()
}

// DecodePayload restores an event from a Redis message payload.
// Exported for out-of-process consumers built against this module.
func (p *RedisPublisher) DecodePayload(data []byte) (Event, error) {
	raw, err := p.codec.decompress(data)
	if err != nil {
		return Event{}, err
	}
	var ev Event
	if err := json.Unmarshal(raw, &ev); err != nil {
		return Event{}, err
	}
	return ev, nil
}
