package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/sig-0/p2prates/market/types"
)

type bestRateKey struct {
	fiat, side, country, platform string
}

// Store is the in-memory snapshot store
type Store struct {
	snapshots    map[types.SnapshotKey]*types.Snapshot
	bestRates    map[bestRateKey][]types.BestRate
	observations []types.RateObservation

	mu sync.RWMutex
}

// NewStore creates an empty in-memory snapshot store
func NewStore() *Store {
	return &Store{
		snapshots: make(map[types.SnapshotKey]*types.Snapshot),
		bestRates: make(map[bestRateKey][]types.BestRate),
	}
}

func (s *Store) SaveSnapshot(_ context.Context, snapshot *types.Snapshot) error {
	cp := *snapshot
	cp.Offers = make([]*types.Offer, len(snapshot.Offers))
	copy(cp.Offers, snapshot.Offers)

	s.mu.Lock()
	s.snapshots[snapshot.Key] = &cp // full replace
	s.mu.Unlock()

	return nil
}

func (s *Store) Snapshot(
	_ context.Context,
	key types.SnapshotKey,
) (*types.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot, ok := s.snapshots[key]
	if !ok {
		return nil, nil //nolint:nilnil // valid case, never refreshed
	}

	cp := *snapshot
	cp.Offers = make([]*types.Offer, len(snapshot.Offers))
	copy(cp.Offers, snapshot.Offers)

	return &cp, nil
}

func (s *Store) ReplaceBestRates(
	_ context.Context,
	key types.SnapshotKey,
	rates []types.BestRate,
) error {
	k := bestRateKey{
		fiat:     key.Fiat.String(),
		side:     key.Side.String(),
		country:  key.Country,
		platform: key.Platform,
	}

	cp := make([]types.BestRate, len(rates))
	copy(cp, rates)

	s.mu.Lock()
	s.bestRates[k] = cp
	s.mu.Unlock()

	return nil
}

func (s *Store) BestRates(
	_ context.Context,
	fiat types.Currency,
	side types.Side,
	country string,
) ([]types.BestRate, error) {
	s.mu.RLock()

	out := make([]types.BestRate, 0)

	for k, rates := range s.bestRates {
		if k.fiat != fiat.String() || k.side != side.String() || k.country != country {
			continue
		}

		out = append(out, rates...)
	}

	s.mu.RUnlock()

	// Best first across platforms: SELL descending, BUY ascending
	sort.SliceStable(out, func(i, j int) bool {
		if side == types.SideSELL {
			return out[i].Rate.GreaterThan(out[j].Rate)
		}

		return out[i].Rate.LessThan(out[j].Rate)
	})

	return out, nil
}

func (s *Store) SaveRateObservation(
	_ context.Context,
	obs *types.RateObservation,
) error {
	s.mu.Lock()
	s.observations = append(s.observations, *obs)
	s.mu.Unlock()

	return nil
}

// Observations returns a copy of the append-only rate history log
func (s *Store) Observations() []types.RateObservation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.RateObservation, len(s.observations))
	copy(out, s.observations)

	return out
}
