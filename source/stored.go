package source

import (
	"context"
	"fmt"

	"github.com/sig-0/p2prates/engine"
	"github.com/sig-0/p2prates/market/types"
	"github.com/sig-0/p2prates/platform"
	"github.com/sig-0/p2prates/snapshot"
)

// Stored sources offers from refreshed snapshots. Reads never reach a
// platform; the refresh job is the only writer. A country-scoped read
// never falls back to the global segment
type Stored struct {
	registry *platform.Registry
	store    snapshot.Store
}

// NewStored creates a new snapshot-mode offer source
func NewStored(registry *platform.Registry, store snapshot.Store) *Stored {
	return &Stored{
		registry: registry,
		store:    store,
	}
}

func (s *Stored) Offers(
	ctx context.Context,
	query engine.OfferQuery,
) ([]*types.Offer, error) {
	code := query.Platform

	if code == "" {
		p, err := s.registry.Default(ctx)
		if err != nil {
			return nil, fmt.Errorf("unable to resolve default platform: %w", err)
		}

		code = p.Code()
	}

	key := types.SnapshotKey{
		Platform: code,
		Fiat:     query.Fiat,
		Side:     query.Side,
		Country:  query.Country,
	}

	snap, err := s.store.Snapshot(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("unable to read snapshot: %w", err)
	}

	if snap == nil {
		// Never refreshed: an empty answer, not an error
		return []*types.Offer{}, nil
	}

	return snap.Offers, nil
}
