package engine

import (
	"github.com/shopspring/decimal"

	"github.com/sig-0/p2prates/market/types"
)

// filterByLiquidity drops offers whose tradable range fails the bound.
// A nil bound is unrestricted and keeps everything
func filterByLiquidity(
	offers []*types.Offer,
	bound *types.LiquidityBound,
) []*types.Offer {
	if bound == nil {
		return offers
	}

	out := make([]*types.Offer, 0, len(offers))

	for _, offer := range offers {
		if matchesBound(offer, bound) {
			out = append(out, offer)
		}
	}

	return out
}

// matchesBound compares the offer's range against the bound, in the
// bound's unit basis. An offer lacking a ceiling in that basis fails closed
func matchesBound(offer *types.Offer, bound *types.LiquidityBound) bool {
	var lo, hi decimal.Decimal

	if bound.AmountInFiat {
		lo, hi = offer.MinFiat, offer.MaxFiat
	} else {
		lo, hi = offer.MinAsset, offer.MaxAsset
	}

	if !hi.IsPositive() {
		return false
	}

	if bound.RequireInclusion {
		// [lo, hi] must be fully contained in [bound.Min, bound.Max]
		if lo.LessThan(bound.Min) {
			return false
		}

		return bound.Max == nil || hi.LessThanOrEqual(*bound.Max)
	}

	// Overlap mode: reject only when the ranges are disjoint
	if hi.LessThan(bound.Min) {
		return false
	}

	return bound.Max == nil || lo.LessThanOrEqual(*bound.Max)
}
