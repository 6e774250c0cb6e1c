package platform

import (
	"context"

	"github.com/sig-0/p2prates/market/types"
)

// DefaultAsset is the bridge asset all offers are priced in
const DefaultAsset types.Currency = "USDT"

// OfferRequest is a single marketplace offer query
type OfferRequest struct {
	Asset   types.Currency
	Fiat    types.Currency
	Side    types.Side
	Country string // empty means all countries
}

// Platform is a single P2P marketplace adapter.
// New marketplaces register an implementation with the Registry
// without touching the aggregation engine
type Platform interface {
	// Code returns the unique platform code (ex. "binance")
	Code() string

	// Name returns the human-readable platform name
	Name() string

	// FetchOffers fetches the normalized offers for the given query.
	// A failed or malformed fetch returns an explicit error, never a
	// partial silent list
	FetchOffers(ctx context.Context, req OfferRequest) ([]*types.Offer, error)

	// IsAvailable is a best-effort health probe with a short timeout,
	// used only as a secondary hint
	IsAvailable(ctx context.Context) bool
}
