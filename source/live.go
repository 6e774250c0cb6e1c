package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/sig-0/p2prates/cache"
	"github.com/sig-0/p2prates/engine"
	"github.com/sig-0/p2prates/market/types"
	"github.com/sig-0/p2prates/platform"
)

const defaultTTL = time.Minute * 2

// Live sources offers by fetching marketplaces directly, memoizing each
// query tuple in a TTL cache. Within the TTL window repeated queries are
// served from cache with no network call
type Live struct {
	logger *slog.Logger

	registry *platform.Registry
	cache    cache.Cache
	ttl      time.Duration
}

type LiveOption func(l *Live)

// WithLogger specifies the logger for the source
func WithLogger(log *slog.Logger) LiveOption {
	return func(l *Live) {
		l.logger = log
	}
}

// WithTTL specifies the cache TTL. Defaults to 2m
func WithTTL(ttl time.Duration) LiveOption {
	return func(l *Live) {
		l.ttl = ttl
	}
}

// NewLive creates a new live (cache mode) offer source
func NewLive(
	registry *platform.Registry,
	offerCache cache.Cache,
	opts ...LiveOption,
) *Live {
	l := &Live{
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		registry: registry,
		cache:    offerCache,
		ttl:      defaultTTL,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

func (l *Live) Offers(
	ctx context.Context,
	query engine.OfferQuery,
) ([]*types.Offer, error) {
	key, err := l.cacheKey(ctx, query)
	if err != nil {
		return nil, err
	}

	if offers, ok := l.cache.Get(ctx, key); ok {
		return offers, nil
	}

	offers, err := l.registry.FetchWithFallback(
		ctx,
		query.Platform,
		platform.OfferRequest{
			Asset:   platform.DefaultAsset,
			Fiat:    query.Fiat,
			Side:    query.Side,
			Country: query.Country,
		},
	)
	if err != nil {
		if errors.Is(err, platform.ErrAllPlatformsFailed) {
			// Exhausted fallback degrades to an empty set, not an error
			l.logger.Warn(
				"all platforms failed",
				"fiat", query.Fiat,
				"side", query.Side,
				"country", query.Country,
			)

			return []*types.Offer{}, nil
		}

		return nil, err
	}

	l.cache.Set(ctx, key, offers, l.ttl)

	return offers, nil
}

// cacheKey builds the full query tuple key. The default platform code
// is resolved at call time so its cache segment tracks config changes
func (l *Live) cacheKey(ctx context.Context, query engine.OfferQuery) (string, error) {
	code := query.Platform

	if code == "" {
		p, err := l.registry.Default(ctx)
		if err != nil {
			return "", fmt.Errorf("unable to resolve default platform: %w", err)
		}

		code = p.Code()
	}

	country := query.Country
	if country == "" {
		country = "all"
	}

	return fmt.Sprintf(
		"%s:%s:%s:%s:%s",
		code,
		platform.DefaultAsset,
		query.Fiat,
		query.Side,
		country,
	), nil
}
