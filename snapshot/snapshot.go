package snapshot

import (
	"context"

	"github.com/sig-0/p2prates/market/types"
)

// Store is an abstraction over refreshed offer data.
// The refresh job is the sole writer; reads never reach a platform
type Store interface {
	// SaveSnapshot fully replaces the snapshot for its key.
	// The replacement is atomic per key
	SaveSnapshot(ctx context.Context, snapshot *types.Snapshot) error

	// Snapshot fetches the stored snapshot for the exact key.
	// Returns nil when the key was never refreshed; a snapshot with
	// zero offers is a valid, distinct state
	Snapshot(ctx context.Context, key types.SnapshotKey) (*types.Snapshot, error)

	// ReplaceBestRates fully replaces the ranked best-rate view for the
	// (fiat, side, country, platform) key
	ReplaceBestRates(
		ctx context.Context,
		key types.SnapshotKey,
		rates []types.BestRate,
	) error

	// BestRates lists the ranked best rates for the (fiat, side, country)
	// selector, across all platforms
	BestRates(
		ctx context.Context,
		fiat types.Currency,
		side types.Side,
		country string,
	) ([]types.BestRate, error)

	// SaveRateObservation appends one entry to the rate history log
	SaveRateObservation(ctx context.Context, obs *types.RateObservation) error
}
