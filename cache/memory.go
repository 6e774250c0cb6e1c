package cache

import (
	"context"
	"sync"
	"time"

	"github.com/sig-0/p2prates/market/types"
)

type entry struct {
	offers    []*types.Offer
	expiresAt time.Time
}

// Memory is an in-process TTL cache. Expiry is checked on read;
// there is no eviction goroutine
type Memory struct {
	data map[string]entry

	mu sync.RWMutex
}

// NewMemory creates a new in-memory offer cache
func NewMemory() *Memory {
	return &Memory{
		data: make(map[string]entry),
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]*types.Offer, bool) {
	m.mu.RLock()
	e, ok := m.data[key]
	m.mu.RUnlock()

	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}

	return e.offers, true
}

func (m *Memory) Set(
	_ context.Context,
	key string,
	offers []*types.Offer,
	ttl time.Duration,
) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data[key] = entry{
		offers:    offers,
		expiresAt: time.Now().Add(ttl),
	}
}
