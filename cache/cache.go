package cache

import (
	"context"
	"time"

	"github.com/sig-0/p2prates/market/types"
)

// Cache is a TTL cache of normalized offer lists, keyed by the full
// query tuple. Entries expire by TTL only, never early
type Cache interface {
	// Get fetches the cached offers for the key, if fresh
	Get(ctx context.Context, key string) ([]*types.Offer, bool)

	// Set stores the offers for the key with the given TTL
	Set(ctx context.Context, key string, offers []*types.Offer, ttl time.Duration)
}
