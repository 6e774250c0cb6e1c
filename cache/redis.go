package cache

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sig-0/p2prates/market/types"
)

const redisKeyPrefix = "p2prates:offers:"

// Redis is a Redis-backed TTL cache, for deployments where multiple
// replicas should share one live-fetch cache
type Redis struct {
	client *redis.Client
	logger *slog.Logger
}

type RedisOption func(r *Redis)

// WithLogger specifies the logger for the cache
func WithLogger(l *slog.Logger) RedisOption {
	return func(r *Redis) {
		r.logger = l
	}
}

// NewRedis creates a new Redis-backed offer cache
func NewRedis(client *redis.Client, opts ...RedisOption) *Redis {
	r := &Redis{
		client: client,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

func (r *Redis) Get(ctx context.Context, key string) ([]*types.Offer, bool) {
	raw, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		// Cache misses and transport errors both degrade to a live fetch
		return nil, false
	}

	var offers []*types.Offer

	if err := json.Unmarshal(raw, &offers); err != nil {
		r.logger.Warn(
			"unable to decode cached offers",
			"key", key,
			"err", err,
		)

		return nil, false
	}

	return offers, true
}

func (r *Redis) Set(
	ctx context.Context,
	key string,
	offers []*types.Offer,
	ttl time.Duration,
) {
	raw, err := json.Marshal(offers)
	if err != nil {
		r.logger.Warn(
			"unable to encode offers for cache",
			"key", key,
			"err", err,
		)

		return
	}

	if err := r.client.Set(ctx, redisKeyPrefix+key, raw, ttl).Err(); err != nil {
		r.logger.Warn(
			"unable to cache offers",
			"key", key,
			"err", err,
		)
	}
}
